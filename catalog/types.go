package catalog

// ScanOptions provides options for table scans.
type ScanOptions struct {
	// Columns to return. If nil/empty, return all columns.
	Columns []string

	// Filter is the serialized predicate sent by the client. Implementations
	// MAY ignore it; the client re-applies its filters.
	Filter []byte

	// Limit is the maximum number of rows to return.
	// If 0 or negative, no limit.
	Limit int64

	// BatchSize is a hint for the reader batch size.
	// If 0, the implementation chooses.
	BatchSize int
}
