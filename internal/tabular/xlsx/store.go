// Package xlsx keeps the catalog in a local workbook. The file is reopened
// for every call so that edits made by hand are picked up by the next cache
// rebuild.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/dmitrijs2005/supplierbot/internal/common"
	"github.com/dmitrijs2005/supplierbot/internal/models"
	"github.com/xuri/excelize/v2"
)

const DefaultSheet = "Suppliers"

type Store struct {
	mu    sync.Mutex
	path  string
	sheet string
}

// New opens path, creating a workbook with a header row when the file does
// not exist yet.
func New(path, sheet string) (*Store, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	s := &Store{path: path, sheet: sheet}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := s.create(); err != nil {
			return nil, err
		}
		return s, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat workbook: %w", err)
	}

	err := s.update(func(f *excelize.File) error {
		idx, err := f.GetSheetIndex(s.sheet)
		if err != nil {
			return err
		}
		if idx < 0 {
			if _, err := f.NewSheet(s.sheet); err != nil {
				return err
			}
			return f.SetSheetRow(s.sheet, "A1", headerRow())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func headerRow() *[]any {
	row := make([]any, len(models.Header))
	for i, h := range models.Header {
		row[i] = h
	}
	return &row
}

func (s *Store) create() error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), s.sheet); err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	if err := f.SetSheetRow(s.sheet, "A1", headerRow()); err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// update opens the workbook, runs fn and saves the result.
func (s *Store) update(fn func(f *excelize.File) error) error {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return err
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (s *Store) rows(f *excelize.File) ([][]string, error) {
	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", s.sheet, err)
	}
	return rows, nil
}

func (s *Store) ReadAll(ctx context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := s.rows(f)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

func (s *Store) AppendRow(ctx context.Context, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(f *excelize.File) error {
		rows, err := s.rows(f)
		if err != nil {
			return err
		}
		next := len(rows) + 1
		if next < models.FirstDataRow {
			next = models.FirstDataRow
		}

		cell, err := excelize.CoordinatesToCellName(1, next)
		if err != nil {
			return err
		}
		row := make([]any, models.ColumnCount)
		for i := range row {
			if i < len(values) {
				row[i] = values[i]
			} else {
				row[i] = ""
			}
		}
		return f.SetSheetRow(s.sheet, cell, &row)
	})
}

func (s *Store) UpdateCell(ctx context.Context, row int, col models.Column, value string) error {
	if !col.Valid() {
		return fmt.Errorf("column %d: %w", col, common.ErrorValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(f *excelize.File) error {
		if err := s.checkRow(f, row); err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(int(col), row)
		if err != nil {
			return err
		}
		return f.SetCellStr(s.sheet, cell, value)
	})
}

func (s *Store) DeleteRow(ctx context.Context, row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(f *excelize.File) error {
		if err := s.checkRow(f, row); err != nil {
			return err
		}
		return f.RemoveRow(s.sheet, row)
	})
}

func (s *Store) checkRow(f *excelize.File, row int) error {
	rows, err := s.rows(f)
	if err != nil {
		return err
	}
	if row < models.FirstDataRow || row > len(rows) {
		return fmt.Errorf("row %d: %w", row, common.ErrorNotFound)
	}
	return nil
}
