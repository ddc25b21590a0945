package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"EpiPulse/internal/domain/models"
	domrepo "EpiPulse/internal/domain/repository"
	pkgch "EpiPulse/pkg/clickhouse"
	applogger "EpiPulse/pkg/logger"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// insertChunk bounds the rows of one multi-row INSERT.
const insertChunk = 2000

// CHCaseStore reads and writes daily case rows in a ClickHouse table with
// columns (date Date, country String, disease String, cases Float64).
type CHCaseStore struct {
	db    *sql.DB
	table string
	log   applogger.Interface
}

var _ domrepo.CaseSource = (*CHCaseStore)(nil)

// NewCHCaseStore creates a store over table ("db.table" or "table").
func NewCHCaseStore(ch *pkgch.Client, table string, l applogger.Interface) (*CHCaseStore, error) {
	if !identifierRe.MatchString(table) {
		return nil, fmt.Errorf("invalid clickhouse table name %q", table)
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHCaseStore{db: ch.DB(), table: table, log: l}, nil
}

func (s *CHCaseStore) Name() domrepo.DataSource { return domrepo.SourceClickHouse }

// SchemaStatements returns the DDL creating the cases table.
func (s *CHCaseStore) SchemaStatements() []string {
	stmts := make([]string, 0, 2)
	if db, _, ok := strings.Cut(s.table, "."); ok {
		stmts = append(stmts, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db))
	}
	return append(stmts, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            date    Date,
            country LowCardinality(String),
            disease LowCardinality(String),
            cases   Nullable(Float64)
        )
        ENGINE = ReplacingMergeTree
        ORDER BY (country, disease, date)
    `, s.table))
}

func (s *CHCaseStore) Load(ctx context.Context, q domrepo.CaseQuery) ([]models.CasePoint, error) {
	start := time.Now()
	query := fmt.Sprintf(`
        SELECT date, country, disease, cases
        FROM %s FINAL
        WHERE country = ?
        ORDER BY date ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, query, q.Country)
	if err != nil {
		s.log.Error("clickhouse load_cases query error",
			applogger.String("table", s.table),
			applogger.String("country", q.Country),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("load cases: %w", err)
	}
	defer rows.Close()

	out := make([]models.CasePoint, 0, 1024)
	for rows.Next() {
		var (
			day   time.Time
			p     models.CasePoint
			cases sql.NullFloat64
		)
		if err := rows.Scan(&day, &p.Country, &p.Disease, &cases); err != nil {
			return nil, fmt.Errorf("scan case row: %w", err)
		}
		p.Date = models.NewDate(day)
		p.Cases = math.NaN()
		if cases.Valid {
			p.Cases = cases.Float64
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	s.log.Info("clickhouse load_cases ok",
		applogger.String("table", s.table),
		applogger.String("country", q.Country),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return FilterCases(out, q.Country, q.Disease, time.Time{}, time.Time{})
}

func (s *CHCaseStore) Countries(ctx context.Context, _ string) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT country FROM %s WHERE country != '' ORDER BY country", s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// StoreBatch inserts rows in chunks of multi-row VALUES statements. Rows
// without a country are skipped; NaN cases are stored as NULL.
func (s *CHCaseStore) StoreBatch(ctx context.Context, points []models.CasePoint) (int, error) {
	stored := 0
	for start := 0; start < len(points); start += insertChunk {
		end := min(start+insertChunk, len(points))

		query, args := buildInsert(s.table, points[start:end])
		if len(args) == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return stored, fmt.Errorf("insert cases: %w", err)
		}
		stored += len(args) / 4
	}
	s.log.Info("clickhouse store_cases ok", applogger.String("table", s.table), applogger.Int("rows", stored))
	return stored, nil
}

func buildInsert(table string, points []models.CasePoint) (string, []interface{}) {
	values := make([]string, 0, len(points))
	args := make([]interface{}, 0, len(points)*4)
	for _, p := range points {
		if p.Country == "" || p.Date.IsZero() {
			continue
		}
		var cases interface{}
		if !math.IsNaN(p.Cases) {
			cases = p.Cases
		}
		values = append(values, "(?, ?, ?, ?)")
		args = append(args, p.Date.Time, p.Country, p.Disease, cases)
	}
	query := fmt.Sprintf("INSERT INTO %s (date, country, disease, cases) VALUES %s", table, strings.Join(values, ","))
	return query, args
}
