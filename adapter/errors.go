package adapter

import "errors"

var (
	// ErrNoSuchSchema is returned for a schema name absent from the current catalog.
	ErrNoSuchSchema = errors.New("no such schema")

	// ErrNoSuchTable is returned for a table name absent from the current catalog.
	ErrNoSuchTable = errors.New("no such table")

	// ErrUnknownPresentation is returned by New for an unsupported selector.
	ErrUnknownPresentation = errors.New("unknown presentation")
)

// IsNotFound reports whether err means the relational identifier is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoSuchSchema) || errors.Is(err, ErrNoSuchTable)
}
