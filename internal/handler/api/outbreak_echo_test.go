package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"EpiPulse/internal/domain/models"
	domrepo "EpiPulse/internal/domain/repository"
	"EpiPulse/internal/service/ratelimit"
	"EpiPulse/internal/services/analytics"
	"EpiPulse/internal/services/features"
	"EpiPulse/internal/usecase"
	xhttp "EpiPulse/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name domrepo.DataSource
	rows int
	err  error
}

func (s fakeSource) Name() domrepo.DataSource { return s.name }

func (s fakeSource) Load(_ context.Context, q domrepo.CaseQuery) ([]models.CasePoint, error) {
	if s.err != nil {
		return nil, s.err
	}
	day := models.DateOf(2024, 3, 1)
	out := make([]models.CasePoint, s.rows)
	for i := range out {
		out[i] = models.CasePoint{Date: day.AddDays(i), Cases: float64(50 + i%5), Country: q.Country, Disease: q.Disease}
	}
	return out, nil
}

func (s fakeSource) Countries(context.Context, string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []string{"Brazil", "India"}, nil
}

func newTestServer(t *testing.T, src domrepo.CaseSource, opts ...OutbreakHandlerOption) *echo.Echo {
	t.Helper()
	prep, err := features.NewPreparer()
	require.NoError(t, err)
	anomalies, err := analytics.NewAnomalyEngine()
	require.NoError(t, err)
	forecasts, err := analytics.NewForecastEngine()
	require.NoError(t, err)
	narrator, err := analytics.NewRiskNarrator()
	require.NoError(t, err)
	a, err := usecase.NewOutbreakAnalyzer([]domrepo.CaseSource{src}, prep, anomalies, forecasts, narrator)
	require.NoError(t, err)

	e := echo.New()
	NewOutbreakEchoHandler(nil, a, opts...).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func errorCode(t *testing.T, env envelope) string {
	t.Helper()
	var errs []xhttp.AppError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.NotEmpty(t, errs)
	return errs[0].Code
}

func TestRootAndHealth(t *testing.T) {
	e := newTestServer(t, fakeSource{name: domrepo.SourceOWID})

	rec := do(e, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var root rootResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &root))
	assert.Equal(t, "1.0.0", root.Version)
	assert.Contains(t, root.Endpoints, "POST /api/analyze")

	rec = do(e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestHealthReportsFailingDependency(t *testing.T) {
	e := newTestServer(t, fakeSource{name: domrepo.SourceOWID},
		WithHealthCheck("redis", func(context.Context) error { return nil }),
		WithHealthCheck("clickhouse", func(context.Context) error { return errors.New("connection refused") }),
	)

	rec := do(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var res xhttp.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "degraded", res.Status)
	assert.Equal(t, "ok", res.Checks["redis"])
	assert.Equal(t, "connection refused", res.Checks["clickhouse"])
}

func TestCatalogEndpoints(t *testing.T) {
	e := newTestServer(t, fakeSource{name: domrepo.SourceOWID})

	rec := do(e, http.MethodGet, "/api/diseases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), "Tuberculosis")

	rec = do(e, http.MethodGet, "/api/countries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"countries":["Brazil","India"]}`, string(decode(t, rec).Data))

	rec = do(e, http.MethodGet, "/api/countries?data_source=csv", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "csv source is not configured")

	rec = do(e, http.MethodGet, "/api/countries?data_source=ftp", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_ONEOF", errorCode(t, decode(t, rec)))
}

func TestAnalyzeEndpoint(t *testing.T) {
	e := newTestServer(t, fakeSource{name: domrepo.SourceOWID, rows: 60})

	rec := do(e, http.MethodPost, "/api/analyze", `{"country":"India","disease":"COVID-19","horizon":7,"method":"simple"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.Equal(t, http.StatusOK, env.Status)

	var res models.Analysis
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "India", res.Country)
	assert.Len(t, res.CleanedData, 60)
	assert.Len(t, res.Forecast, 7)
	assert.Equal(t, models.ForecastSimple, res.ForecastStats.Method)
	assert.NotEmpty(t, res.Explanation.Summary)
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    fakeSource
		body   string
		status int
		code   string
	}{
		{"missing country", fakeSource{name: domrepo.SourceOWID, rows: 60}, `{"disease":"COVID-19"}`, http.StatusBadRequest, "ERR_REQUIRED"},
		{"horizon too long", fakeSource{name: domrepo.SourceOWID, rows: 60}, `{"country":"India","disease":"x","horizon":365}`, http.StatusBadRequest, "ERR_LTE"},
		{"bad date", fakeSource{name: domrepo.SourceOWID, rows: 60}, `{"country":"India","disease":"x","start_date":"01/02/2024"}`, http.StatusBadRequest, "ERR_DATETIME"},
		{"csv without file", fakeSource{name: domrepo.SourceOWID, rows: 60}, `{"country":"India","disease":"x","data_source":"csv"}`, http.StatusBadRequest, "ERR_REQUIRED_IF"},
		{"short series", fakeSource{name: domrepo.SourceOWID, rows: 12}, `{"country":"India","disease":"x"}`, http.StatusBadRequest, "ERR_INSUFFICIENT_DATA"},
		{"unknown country", fakeSource{name: domrepo.SourceOWID, err: fmt.Errorf("%w for Atlantis", models.ErrNoData)}, `{"country":"Atlantis","disease":"x"}`, http.StatusNotFound, "ERR_NOT_FOUND"},
		{"upstream down", fakeSource{name: domrepo.SourceOWID, err: fmt.Errorf("%w: 503", models.ErrSourceUnavailable)}, `{"country":"India","disease":"x"}`, http.StatusBadGateway, "ERR_UPSTREAM"},
		{"unexpected", fakeSource{name: domrepo.SourceOWID, err: errors.New("disk on fire")}, `{"country":"India","disease":"x"}`, http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newTestServer(t, tt.src), http.MethodPost, "/api/analyze", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			env := decode(t, rec)
			assert.Equal(t, tt.status, env.Status)
			if tt.code != "" {
				assert.Equal(t, tt.code, errorCode(t, env))
			}
			assert.NotContains(t, rec.Body.String(), "disk on fire")
		})
	}
}

func TestAnalyzeRateLimited(t *testing.T) {
	e := newTestServer(t, fakeSource{name: domrepo.SourceOWID, rows: 40},
		WithRateLimiter(ratelimit.New(0.001, 1, time.Minute)))

	body := `{"country":"India","disease":"COVID-19","method":"simple"}`
	rec := do(e, http.MethodPost, "/api/analyze", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodPost, "/api/analyze", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "ERR_RATE_LIMITED", errorCode(t, decode(t, rec)))

	// catalog routes are not limited
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/diseases", "").Code)
}

func TestToAppErrorPassesThroughAppErrors(t *testing.T) {
	in := xhttp.NotFoundError("gone")
	assert.Same(t, in, toAppError(fmt.Errorf("wrapped: %w", in)))
	assert.Equal(t, http.StatusGatewayTimeout, toAppError(context.DeadlineExceeded).Status)
	assert.Equal(t, http.StatusInternalServerError, toAppError(models.ErrFeatureMismatch).Status)
}
