package tabular

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/supplierbot/internal/common"
	"github.com/dmitrijs2005/supplierbot/internal/config"
	"github.com/dmitrijs2005/supplierbot/internal/tabular/memstore"
	"github.com/dmitrijs2005/supplierbot/internal/tabular/sheets"
	"github.com/dmitrijs2005/supplierbot/internal/tabular/sqlstore"
	"github.com/dmitrijs2005/supplierbot/internal/tabular/xlsx"
)

// Open builds the store selected by cfg.StoreDriver. Stores holding a
// connection also implement io.Closer.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case config.StoreSheets:
		return sheets.New(ctx, sheets.Options{
			SpreadsheetID:   cfg.SpreadsheetID,
			SheetName:       cfg.SheetName,
			CredentialsJSON: []byte(cfg.GoogleKeyJSON),
			CredentialsFile: cfg.GoogleCredentialsFile,
		})
	case config.StoreXLSX:
		return xlsx.New(cfg.XLSXPath, cfg.SheetName)
	case config.StorePostgres:
		return sqlstore.Open(ctx, sqlstore.Postgres, cfg.DatabaseDSN)
	case config.StoreSQLite:
		return sqlstore.Open(ctx, sqlstore.SQLite, cfg.DatabaseDSN)
	case config.StoreMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("store %q: %w", cfg.StoreDriver, common.ErrorUnknownDriver)
	}
}
