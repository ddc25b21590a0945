package repository

import (
	"context"
	"math"
	"time"

	"EpiPulse/internal/domain/models"
	domrepo "EpiPulse/internal/domain/repository"
	"EpiPulse/pkg/cache"
	applogger "EpiPulse/pkg/logger"
)

// CachedSource memoizes another source's per-country rows and country
// lists. Only successful loads are stored.
type CachedSource struct {
	next      domrepo.CaseSource
	cache     cache.Service
	seriesTTL time.Duration
	listTTL   time.Duration
	log       applogger.Interface
}

var _ domrepo.CaseSource = (*CachedSource)(nil)

// NewCachedSource wraps next.
func NewCachedSource(next domrepo.CaseSource, c cache.Service, seriesTTL, listTTL time.Duration, l applogger.Interface) *CachedSource {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CachedSource{next: next, cache: c, seriesTTL: seriesTTL, listTTL: listTTL, log: l}
}

func (s *CachedSource) Name() domrepo.DataSource { return s.next.Name() }

// cachedCase mirrors CasePoint with a nullable case count; JSON cannot
// carry NaN.
type cachedCase struct {
	Date    models.Date `json:"d"`
	Cases   *float64    `json:"c"`
	Country string      `json:"n,omitempty"`
	Disease string      `json:"s,omitempty"`
}

func (s *CachedSource) Load(ctx context.Context, q domrepo.CaseQuery) ([]models.CasePoint, error) {
	key := cache.GenerateKeyWithParams("series", s.next.Name(), q.Dataset, q.Country, q.Disease)

	var hit []cachedCase
	if err := s.cache.Get(ctx, key, &hit); err == nil {
		s.log.Debug("case series cache hit", applogger.String("key", key))
		return fromCached(hit), nil
	}

	rows, err := s.next.Load(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, toCached(rows), s.seriesTTL); err != nil {
		s.log.Warn("case series cache write failed", applogger.String("key", key), applogger.Error(err))
	}
	return rows, nil
}

func (s *CachedSource) Countries(ctx context.Context, dataset string) ([]string, error) {
	key := cache.GenerateKeyWithParams("countries", s.next.Name(), dataset)
	return cache.GetOrLoad(ctx, s.cache, key, s.listTTL, func(ctx context.Context) ([]string, error) {
		return s.next.Countries(ctx, dataset)
	})
}

// Invalidate drops every cached entry of this source.
func (s *CachedSource) Invalidate(ctx context.Context) error {
	for _, prefix := range []string{"series", "countries"} {
		pattern := cache.BuildPattern(cache.GenerateKeyWithParams(prefix, s.next.Name()) + ":")
		if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
			return err
		}
	}
	return nil
}

func toCached(rows []models.CasePoint) []cachedCase {
	out := make([]cachedCase, len(rows))
	for i, r := range rows {
		out[i] = cachedCase{Date: r.Date, Country: r.Country, Disease: r.Disease}
		if !math.IsNaN(r.Cases) {
			v := r.Cases
			out[i].Cases = &v
		}
	}
	return out
}

func fromCached(rows []cachedCase) []models.CasePoint {
	out := make([]models.CasePoint, len(rows))
	for i, r := range rows {
		out[i] = models.CasePoint{Date: r.Date, Country: r.Country, Disease: r.Disease, Cases: math.NaN()}
		if r.Cases != nil {
			out[i].Cases = *r.Cases
		}
	}
	return out
}
