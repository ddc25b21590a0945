package repository

// DataSource names where case rows are loaded from.
type DataSource string

const (
	SourceOWID       DataSource = "owid"
	SourceCSV        DataSource = "csv"
	SourceClickHouse DataSource = "clickhouse"
)

// IsValidDataSource returns true if s is a supported source.
func IsValidDataSource(s DataSource) bool {
	switch s {
	case SourceOWID, SourceCSV, SourceClickHouse:
		return true
	default:
		return false
	}
}

// DefaultDataSource returns the source used when a request names none.
func DefaultDataSource() DataSource { return SourceOWID }

// NormalizeDataSource converts a raw string to a source, defaulting when empty.
// Unknown names are returned as-is so callers can reject them.
func NormalizeDataSource(s string) DataSource {
	if s == "" {
		return DefaultDataSource()
	}
	return DataSource(s)
}
