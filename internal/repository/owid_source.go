package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"EpiPulse/internal/domain/models"
	domrepo "EpiPulse/internal/domain/repository"
	xhttp "EpiPulse/pkg/http"
	applogger "EpiPulse/pkg/logger"

	"github.com/sony/gobreaker"
)

// OWIDDisease labels every row of the OWID dataset.
const OWIDDisease = "COVID-19"

// OWIDOption configures OWIDSource.
type OWIDOption func(*OWIDConfig)

// OWIDConfig holds the remote dataset settings.
type OWIDConfig struct {
	URL           string
	Columns       ColumnMap
	MaxFailures   uint32
	OpenTimeout   time.Duration
	OnStateChange func(source string, state int)
	Logger        applogger.Interface
}

// WithOWIDURL overrides the dataset URL.
func WithOWIDURL(url string) OWIDOption {
	return func(c *OWIDConfig) { c.URL = url }
}

// WithOWIDBreaker sets how many consecutive failures open the breaker and
// how long it stays open.
func WithOWIDBreaker(maxFailures uint32, openTimeout time.Duration) OWIDOption {
	return func(c *OWIDConfig) {
		c.MaxFailures = maxFailures
		c.OpenTimeout = openTimeout
	}
}

// WithOWIDStateHook reports breaker transitions (0 closed, 1 half-open, 2 open).
func WithOWIDStateHook(fn func(source string, state int)) OWIDOption {
	return func(c *OWIDConfig) { c.OnStateChange = fn }
}

// WithOWIDLogger sets the logger.
func WithOWIDLogger(l applogger.Interface) OWIDOption {
	return func(c *OWIDConfig) { c.Logger = l }
}

// OWIDSource downloads the Our World in Data COVID-19 CSV. Downloads go
// through a circuit breaker so a failing upstream is not hammered by every
// request.
type OWIDSource struct {
	cfg     OWIDConfig
	client  *xhttp.Client
	breaker *gobreaker.CircuitBreaker
	log     applogger.Interface
}

var _ domrepo.CaseSource = (*OWIDSource)(nil)

// NewOWIDSource creates the source.
func NewOWIDSource(client *xhttp.Client, opts ...OWIDOption) *OWIDSource {
	cfg := OWIDConfig{
		URL:         "https://raw.githubusercontent.com/owid/covid-19-data/master/public/data/owid-covid-data.csv",
		Columns:     DefaultColumns(),
		MaxFailures: 3,
		OpenTimeout: time.Minute,
		Logger:      applogger.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if client == nil {
		client = xhttp.NewClient()
	}

	s := &OWIDSource{cfg: cfg, client: client, log: cfg.Logger}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(domrepo.SourceOWID),
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: upstreamHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn("data source breaker state changed",
				applogger.String("source", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, int(to))
			}
		},
	})
	return s
}

func (s *OWIDSource) Name() domrepo.DataSource { return domrepo.SourceOWID }

func (s *OWIDSource) Load(ctx context.Context, q domrepo.CaseQuery) ([]models.CasePoint, error) {
	body, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	rows, stats, err := ParseCases(bytes.NewReader(body), ReadOptions{
		Columns:      s.cfg.Columns,
		FixedDisease: OWIDDisease,
		Keep:         func(country string) bool { return country == q.Country },
	})
	if err != nil {
		return nil, fmt.Errorf("parse owid dataset: %w", err)
	}
	s.log.Info("owid dataset loaded",
		applogger.String("country", q.Country),
		applogger.Int("rows", stats.Rows),
		applogger.Int("matched", len(rows)),
	)
	return FilterCases(rows, q.Country, q.Disease, time.Time{}, time.Time{})
}

func (s *OWIDSource) Countries(ctx context.Context, _ string) ([]string, error) {
	body, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	countries, err := ParseCountries(bytes.NewReader(body), s.cfg.Columns)
	if err != nil {
		return nil, fmt.Errorf("parse owid dataset: %w", err)
	}
	return countries, nil
}

func (s *OWIDSource) fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()
	res, err := s.breaker.Execute(func() (interface{}, error) {
		var buf bytes.Buffer
		if err := s.client.Download(ctx, s.cfg.URL, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: owid: %v", models.ErrSourceUnavailable, err)
		}
		s.log.Error("owid download failed", applogger.String("url", s.cfg.URL), applogger.Error(err))
		return nil, fmt.Errorf("%w: owid download: %v", models.ErrSourceUnavailable, err)
	}

	body := res.([]byte)
	s.log.Debug("owid dataset downloaded",
		applogger.Int("bytes", len(body)),
		applogger.Duration("elapsed", time.Since(start)),
	)
	return body, nil
}

// upstreamHealthy keeps caller cancellations and client errors (4xx) from
// tripping the breaker.
func upstreamHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return !se.Temporary()
	}
	return false
}
