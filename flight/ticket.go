package flight

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/hugr-lab/opal-airport/catalog"
)

// TicketData is the decoded content of a Flight ticket.
type TicketData struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`

	// Columns the client projects, nil means all columns.
	Columns []string `json:"columns,omitempty"`

	// Filters is the JSON filter tree the client sent with the endpoints request.
	Filters []byte `json:"filters,omitempty"`
}

// EncodeTicket creates an opaque ticket for a table scan.
func EncodeTicket(schema, table string, columns []string, filters []byte) ([]byte, error) {
	if schema == "" {
		return nil, fmt.Errorf("schema name cannot be empty")
	}
	if table == "" {
		return nil, fmt.Errorf("table name cannot be empty")
	}

	data, err := json.Marshal(TicketData{Schema: schema, Table: table, Columns: columns, Filters: filters})
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket: %w", err)
	}
	return data, nil
}

// DecodeTicket parses a ticket created by EncodeTicket.
func DecodeTicket(ticketBytes []byte) (*TicketData, error) {
	if len(ticketBytes) == 0 {
		return nil, fmt.Errorf("ticket cannot be empty")
	}

	var ticket TicketData
	if err := json.Unmarshal(ticketBytes, &ticket); err != nil {
		return nil, fmt.Errorf("failed to decode ticket: %w", err)
	}
	if ticket.Schema == "" {
		return nil, fmt.Errorf("decoded ticket has empty schema name")
	}
	if ticket.Table == "" {
		return nil, fmt.Errorf("decoded ticket has empty table name")
	}
	return &ticket, nil
}

// ToScanOptions converts the ticket into scan options.
func (td *TicketData) ToScanOptions() *catalog.ScanOptions {
	return &catalog.ScanOptions{
		Columns: td.Columns,
		Filter:  td.Filters,
	}
}
