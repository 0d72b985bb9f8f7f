// Package memstore is an in-process row store used by tests and the console
// transport.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/supplierbot/internal/common"
	"github.com/dmitrijs2005/supplierbot/internal/models"
)

// Operations that can be made to fail with FailOn.
const (
	OpRead   = "read"
	OpAppend = "append"
	OpUpdate = "update"
	OpDelete = "delete"
)

// UpdateOp names the update of a single column, so that a test can fail the
// image-ref update while letting the name update through.
func UpdateOp(col models.Column) string {
	return OpUpdate + ":" + col.String()
}

type Store struct {
	mu   sync.Mutex
	rows [][]string
	fail map[string]error
}

// New returns a store holding the given data rows (header excluded).
func New(rows ...[]string) *Store {
	s := &Store{fail: map[string]error{}}
	for _, r := range rows {
		s.rows = append(s.rows, normalize(r))
	}
	return s
}

// FailOn makes every following call of op return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

func (s *Store) ReadAll(ctx context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail[OpRead]; err != nil {
		return nil, err
	}

	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (s *Store) AppendRow(ctx context.Context, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail[OpAppend]; err != nil {
		return err
	}

	s.rows = append(s.rows, normalize(values))
	return nil
}

func (s *Store) UpdateCell(ctx context.Context, row int, col models.Column, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail[OpUpdate]; err != nil {
		return err
	}
	if err := s.fail[UpdateOp(col)]; err != nil {
		return err
	}

	if !col.Valid() {
		return fmt.Errorf("column %d: %w", col, common.ErrorValidation)
	}
	i, err := s.index(row)
	if err != nil {
		return err
	}

	s.rows[i][col-1] = value
	return nil
}

func (s *Store) DeleteRow(ctx context.Context, row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail[OpDelete]; err != nil {
		return err
	}

	i, err := s.index(row)
	if err != nil {
		return err
	}

	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	return nil
}

// Rows returns a copy of the stored data rows.
func (s *Store) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

func (s *Store) index(row int) (int, error) {
	i := row - models.FirstDataRow
	if i < 0 || i >= len(s.rows) {
		return 0, fmt.Errorf("row %d: %w", row, common.ErrorNotFound)
	}
	return i, nil
}

func normalize(values []string) []string {
	r := make([]string, models.ColumnCount)
	copy(r, values)
	return r
}
