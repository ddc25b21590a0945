package repository

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"EpiPulse/internal/domain/models"
	domrepo "EpiPulse/internal/domain/repository"
	"EpiPulse/pkg/cache"
	xhttp "EpiPulse/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	return dir
}

func TestCSVSource(t *testing.T) {
	dir := writeDataset(t, "cases.csv", sampleCSV)
	cols := ColumnMap{Date: "date", Cases: "new_cases", Country: "location", Disease: "disease"}
	src := NewCSVSource(dir, cols, []string{"India", "Germany"}, nil)
	ctx := context.Background()

	rows, err := src.Load(ctx, domrepo.CaseQuery{Dataset: "cases.csv", Country: "India", Disease: "Dengue"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	_, err = src.Load(ctx, domrepo.CaseQuery{Dataset: "missing.csv", Country: "India"})
	assert.ErrorIs(t, err, models.ErrDatasetNotFound)
	_, err = src.Load(ctx, domrepo.CaseQuery{Dataset: "../cases.csv", Country: "India"})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
	_, err = src.Load(ctx, domrepo.CaseQuery{Country: "India"})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	countries, err := src.Countries(ctx, "cases.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"Brazil", "India"}, countries)

	fallback, err := src.Countries(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"India", "Germany"}, fallback)
}

func TestOWIDSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("iso_code,location,date,new_cases\nIND,India,2024-01-02,5\nIND,India,2024-01-01,\nBRA,Brazil,2024-01-01,3\n"))
	}))
	defer srv.Close()

	src := NewOWIDSource(xhttp.NewClient(), WithOWIDURL(srv.URL))
	rows, err := src.Load(context.Background(), domrepo.CaseQuery{Country: "India", Disease: OWIDDisease})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.DateOf(2024, 1, 1), rows[0].Date)
	assert.True(t, math.IsNaN(rows[0].Cases))
	assert.Equal(t, OWIDDisease, rows[1].Disease)

	_, err = src.Load(context.Background(), domrepo.CaseQuery{Country: "India", Disease: "Measles"})
	assert.ErrorIs(t, err, models.ErrNoData)

	countries, err := src.Countries(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Brazil", "India"}, countries)
}

func TestOWIDSourceBreakerOpens(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	var states []int
	src := NewOWIDSource(xhttp.NewClient(),
		WithOWIDURL(srv.URL),
		WithOWIDBreaker(2, time.Hour),
		WithOWIDStateHook(func(_ string, s int) { states = append(states, s) }),
	)
	for i := 0; i < 4; i++ {
		_, err := src.Countries(context.Background(), "")
		assert.ErrorIs(t, err, models.ErrSourceUnavailable)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, []int{2}, states)
}

func TestUpstreamHealthy(t *testing.T) {
	assert.True(t, upstreamHealthy(nil))
	assert.True(t, upstreamHealthy(context.Canceled))
	assert.True(t, upstreamHealthy(&xhttp.StatusError{StatusCode: 404}))
	assert.False(t, upstreamHealthy(&xhttp.StatusError{StatusCode: 503}))
	assert.False(t, upstreamHealthy(errors.New("connection reset")))
}

type countingSource struct {
	loads, lists int
	rows         []models.CasePoint
	err          error
}

func (c *countingSource) Name() domrepo.DataSource { return domrepo.SourceCSV }

func (c *countingSource) Load(context.Context, domrepo.CaseQuery) ([]models.CasePoint, error) {
	c.loads++
	return c.rows, c.err
}

func (c *countingSource) Countries(context.Context, string) ([]string, error) {
	c.lists++
	return []string{"India"}, nil
}

func TestCachedSource(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()

	next := &countingSource{rows: []models.CasePoint{
		{Date: models.DateOf(2024, 1, 1), Cases: 3, Country: "India"},
		{Date: models.DateOf(2024, 1, 2), Cases: math.NaN(), Country: "India"},
	}}
	src := NewCachedSource(next, mc, time.Minute, time.Minute, nil)
	q := domrepo.CaseQuery{Dataset: "a.csv", Country: "India", Disease: "Dengue"}

	for i := 0; i < 3; i++ {
		rows, err := src.Load(ctx, q)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 3.0, rows[0].Cases)
		assert.True(t, math.IsNaN(rows[1].Cases))
	}
	assert.Equal(t, 1, next.loads)

	for i := 0; i < 2; i++ {
		_, err := src.Countries(ctx, "a.csv")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, next.lists)

	require.NoError(t, src.Invalidate(ctx))
	_, err := src.Load(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, next.loads)

	next.err = models.ErrNoData
	_, err = src.Load(ctx, domrepo.CaseQuery{Country: "Chile"})
	assert.ErrorIs(t, err, models.ErrNoData)
	_, err = src.Load(ctx, domrepo.CaseQuery{Country: "Chile"})
	assert.ErrorIs(t, err, models.ErrNoData, "failures must not be cached")
}

func TestBuildInsert(t *testing.T) {
	q, args := buildInsert("epipulse.daily_cases", []models.CasePoint{
		{Date: models.DateOf(2024, 1, 1), Country: "India", Disease: "Dengue", Cases: 4},
		{Date: models.DateOf(2024, 1, 2), Country: "", Cases: 1},
		{Date: models.DateOf(2024, 1, 3), Country: "India", Disease: "Dengue", Cases: math.NaN()},
	})
	assert.Equal(t, "INSERT INTO epipulse.daily_cases (date, country, disease, cases) VALUES (?, ?, ?, ?),(?, ?, ?, ?)", q)
	require.Len(t, args, 8)
	assert.Equal(t, 4.0, args[3])
	assert.Nil(t, args[7])
}

func TestTableNameValidation(t *testing.T) {
	assert.True(t, identifierRe.MatchString("daily_cases"))
	assert.True(t, identifierRe.MatchString("epipulse.daily_cases"))
	assert.False(t, identifierRe.MatchString("cases; DROP TABLE x"))
	assert.False(t, identifierRe.MatchString("a.b.c"))
}
