// Package sheets keeps the catalog in a Google spreadsheet through the
// Sheets API v4.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/supplierbot/internal/common"
	"github.com/dmitrijs2005/supplierbot/internal/models"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	valueInputRaw = "RAW"
	insertRows    = "INSERT_ROWS"
)

// Options select the spreadsheet and the service account.
//
// CredentialsJSON takes precedence over CredentialsFile. ClientOptions are
// appended last and let tests point the client at a fake endpoint.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON []byte
	CredentialsFile string
	ClientOptions   []option.ClientOption
}

type Store struct {
	srv   *sheets.Service
	id    string
	sheet string

	mu      sync.Mutex
	sheetID *int64
}

func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id is not set")
	}

	var clientOpts []option.ClientOption
	switch {
	case len(opts.CredentialsJSON) > 0:
		clientOpts = append(clientOpts, option.WithCredentialsJSON(opts.CredentialsJSON))
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	clientOpts = append(clientOpts, option.WithScopes(sheets.SpreadsheetsScope))
	clientOpts = append(clientOpts, opts.ClientOptions...)

	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}

	sheet := opts.SheetName
	if sheet == "" {
		sheet = "Sheet1"
	}

	return &Store{srv: srv, id: opts.SpreadsheetID, sheet: sheet}, nil
}

// a1 builds an A1 range on the configured sheet, quoting its title.
func (s *Store) a1(ref string) string {
	return "'" + strings.ReplaceAll(s.sheet, "'", "''") + "'!" + ref
}

func (s *Store) ReadAll(ctx context.Context) ([][]string, error) {
	resp, err := s.srv.Spreadsheets.Values.Get(s.id, s.a1("A2:C")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read values: %w", err)
	}

	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		out[i] = cells
	}
	return out, nil
}

func (s *Store) AppendRow(ctx context.Context, values []string) error {
	row := make([]any, models.ColumnCount)
	for i := range row {
		if i < len(values) {
			row[i] = values[i]
		} else {
			row[i] = ""
		}
	}

	_, err := s.srv.Spreadsheets.Values.Append(s.id, s.a1("A:C"), &sheets.ValueRange{
		Values: [][]any{row},
	}).ValueInputOption(valueInputRaw).InsertDataOption(insertRows).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

func (s *Store) UpdateCell(ctx context.Context, row int, col models.Column, value string) error {
	if !col.Valid() {
		return fmt.Errorf("column %d: %w", col, common.ErrorValidation)
	}
	if row < models.FirstDataRow {
		return fmt.Errorf("row %d: %w", row, common.ErrorNotFound)
	}

	ref := fmt.Sprintf("%s%d", col.Letter(), row)
	_, err := s.srv.Spreadsheets.Values.Update(s.id, s.a1(ref), &sheets.ValueRange{
		Values: [][]any{{value}},
	}).ValueInputOption(valueInputRaw).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", ref, err)
	}
	return nil
}

func (s *Store) DeleteRow(ctx context.Context, row int) error {
	if row < models.FirstDataRow {
		return fmt.Errorf("row %d: %w", row, common.ErrorNotFound)
	}

	sheetID, err := s.resolveSheetID(ctx)
	if err != nil {
		return err
	}

	_, err = s.srv.Spreadsheets.BatchUpdate(s.id, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete row %d: %w", row, err)
	}
	return nil
}

// resolveSheetID looks the numeric sheet id up by title once.
func (s *Store) resolveSheetID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sheetID != nil {
		return *s.sheetID, nil
	}

	ss, err := s.srv.Spreadsheets.Get(s.id).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.sheet {
			id := sh.Properties.SheetId
			s.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q: %w", s.sheet, common.ErrorNotFound)
}
