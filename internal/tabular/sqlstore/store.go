// Package sqlstore keeps the catalog in a SQL table. Rows are ordered by id,
// so remote row r is the (r-2)th record by id, matching spreadsheet
// addressing.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/dmitrijs2005/supplierbot/internal/common"
	"github.com/dmitrijs2005/supplierbot/internal/dbx"
	"github.com/dmitrijs2005/supplierbot/internal/models"
	"github.com/dmitrijs2005/supplierbot/internal/tabular/sqlstore/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

var columns = map[models.Column]string{
	models.ColumnName:     "name",
	models.ColumnImageRef: "image_ref",
	models.ColumnNote:     "note",
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open database. The schema is expected to exist.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Open connects to dsn and applies the embedded migrations.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	if dialect == SQLite {
		// one writer at a time; also keeps a :memory: database alive
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name, err)
	}

	s := New(db, dialect)
	if err := s.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// RunMigrations applies the embedded schema of the store's dialect.
func (s *Store) RunMigrations(ctx context.Context) error {
	sub, err := fs.Sub(migrations.Migrations, s.dialect.Name)
	if err != nil {
		return fmt.Errorf("migrations for %s: %w", s.dialect.Name, err)
	}

	goose.SetBaseFS(sub)
	if err := goose.SetDialect(s.dialect.Goose); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ReadAll(ctx context.Context) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, image_ref, note FROM suppliers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select suppliers: %w", err)
	}
	defer rows.Close()

	var result [][]string
	for rows.Next() {
		var name, imageRef, note string
		if err := rows.Scan(&name, &imageRef, &note); err != nil {
			return nil, err
		}
		result = append(result, []string{name, imageRef, note})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) AppendRow(ctx context.Context, values []string) error {
	v := make([]string, models.ColumnCount)
	copy(v, values)

	query := s.dialect.rebind(`INSERT INTO suppliers (name, image_ref, note) VALUES (?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, v[0], v[1], v[2]); err != nil {
		return fmt.Errorf("failed to insert supplier: %w", err)
	}
	return nil
}

func (s *Store) UpdateCell(ctx context.Context, row int, col models.Column, value string) error {
	name, ok := columns[col]
	if !ok {
		return fmt.Errorf("column %d: %w", col, common.ErrorValidation)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		id, err := s.idAt(ctx, tx, row)
		if err != nil {
			return err
		}

		query := s.dialect.rebind(`UPDATE suppliers SET ` + name + ` = ? WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, query, value, id); err != nil {
			return fmt.Errorf("failed to update supplier: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteRow(ctx context.Context, row int) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		id, err := s.idAt(ctx, tx, row)
		if err != nil {
			return err
		}

		query := s.dialect.rebind(`DELETE FROM suppliers WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("failed to delete supplier: %w", err)
		}
		return nil
	})
}

// idAt maps a remote row number onto the primary key of that record.
func (s *Store) idAt(ctx context.Context, tx dbx.DBTX, row int) (int64, error) {
	offset := row - models.FirstDataRow
	if offset < 0 {
		return 0, fmt.Errorf("row %d: %w", row, common.ErrorNotFound)
	}

	query := s.dialect.rebind(`SELECT id FROM suppliers ORDER BY id LIMIT 1 OFFSET ?`)

	var id int64
	err := tx.QueryRowContext(ctx, query, offset).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("row %d: %w", row, common.ErrorNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to locate row %d: %w", row, err)
	}
	return id, nil
}
