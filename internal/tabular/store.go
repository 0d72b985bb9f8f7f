// Package tabular describes the remote row store that holds the catalog and
// opens the configured driver.
//
// Rows are addressed the way a spreadsheet addresses them: row 1 is the
// header, the first entry lives in row 2. ReadAll returns data rows only,
// starting with row 2 and including blank rows, so that position i of the
// result is always remote row i+2.
package tabular

import (
	"context"

	"github.com/dmitrijs2005/supplierbot/internal/models"
)

// Reader is the read side used by the catalog cache.
type Reader interface {
	ReadAll(ctx context.Context) ([][]string, error)
}

// Store is the full set of operations the workflows need.
type Store interface {
	Reader

	// AppendRow adds a row after the last one.
	AppendRow(ctx context.Context, values []string) error

	// UpdateCell overwrites one cell of an existing row.
	UpdateCell(ctx context.Context, row int, col models.Column, value string) error

	// DeleteRow removes a row; following rows shift up by one.
	DeleteRow(ctx context.Context, row int) error
}
