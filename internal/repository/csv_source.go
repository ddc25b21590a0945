package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"EpiPulse/internal/domain/models"
	domrepo "EpiPulse/internal/domain/repository"
	applogger "EpiPulse/pkg/logger"
)

// CSVSource reads case files from a local directory.
type CSVSource struct {
	dir      string
	cols     ColumnMap
	fallback []string
	log      applogger.Interface
}

var _ domrepo.CaseSource = (*CSVSource)(nil)

// NewCSVSource creates a source rooted at dir. fallback is returned by
// Countries when no dataset is named.
func NewCSVSource(dir string, cols ColumnMap, fallback []string, l applogger.Interface) *CSVSource {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CSVSource{dir: dir, cols: cols, fallback: fallback, log: l}
}

func (s *CSVSource) Name() domrepo.DataSource { return domrepo.SourceCSV }

func (s *CSVSource) Load(ctx context.Context, q domrepo.CaseQuery) ([]models.CasePoint, error) {
	start := time.Now()
	f, path, err := s.open(q.Dataset)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, stats, err := ParseCases(readerWithContext(ctx, f), ReadOptions{
		Columns: s.cols,
		Keep:    func(country string) bool { return country == q.Country },
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	s.log.Info("csv dataset loaded",
		applogger.String("file", filepath.Base(path)),
		applogger.String("country", q.Country),
		applogger.Int("rows", stats.Rows),
		applogger.Int("matched", len(rows)),
		applogger.Int("bad_dates", stats.BadDates),
		applogger.Duration("elapsed", time.Since(start)),
	)
	return FilterCases(rows, q.Country, q.Disease, time.Time{}, time.Time{})
}

func (s *CSVSource) Countries(ctx context.Context, dataset string) ([]string, error) {
	if dataset == "" {
		out := make([]string, len(s.fallback))
		copy(out, s.fallback)
		return out, nil
	}
	f, path, err := s.open(dataset)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	countries, err := ParseCountries(readerWithContext(ctx, f), s.cols)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return countries, nil
}

// open resolves name inside the data directory. Names with path
// separators are rejected.
func (s *CSVSource) open(name string) (*os.File, string, error) {
	if name == "" {
		return nil, "", fmt.Errorf("%w: csv_filename is required for the csv source", models.ErrInvalidRequest)
	}
	if filepath.Base(name) != name || name == "." || name == ".." {
		return nil, "", fmt.Errorf("%w: csv_filename must be a bare file name", models.ErrInvalidRequest)
	}

	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, path, fmt.Errorf("%w: %s", models.ErrDatasetNotFound, name)
		}
		return nil, path, fmt.Errorf("open dataset: %w", err)
	}
	return f, path, nil
}
