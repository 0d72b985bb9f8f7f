// Package models defines the catalog record and the transport-neutral chat
// event and reply shapes.
package models

// Column identifies one of the three fixed columns of the remote table.
// Values are 1-based to match spreadsheet addressing.
type Column int

const (
	ColumnName     Column = 1
	ColumnImageRef Column = 2
	ColumnNote     Column = 3
)

// ColumnCount is the number of columns every catalog row carries.
const ColumnCount = 3

// FirstDataRow is the remote row index of the first entry; row 1 holds the header.
const FirstDataRow = 2

// Header is written by stores that create the table themselves.
var Header = []string{"supplier", "image_url", "info"}

func (c Column) Valid() bool {
	return c >= ColumnName && c <= ColumnNote
}

// Letter returns the spreadsheet column letter (A, B, C).
func (c Column) Letter() string {
	return string(rune('A' + int(c) - 1))
}

func (c Column) String() string {
	switch c {
	case ColumnName:
		return "name"
	case ColumnImageRef:
		return "image_ref"
	case ColumnNote:
		return "note"
	default:
		return "unknown"
	}
}

// Entry is one supplier record.
//
// Row is the 1-based remote row the entry was read from. It is only valid for
// the snapshot that produced the entry.
type Entry struct {
	Name     string
	ImageRef string
	Note     string
	Row      int
}

// Values returns the entry as a table row in column order.
func (e Entry) Values() []string {
	return []string{e.Name, e.ImageRef, e.Note}
}

// EntryFromRow maps a raw row onto an Entry. Missing trailing cells are
// treated as empty.
func EntryFromRow(cells []string, row int) Entry {
	get := func(c Column) string {
		if int(c) <= len(cells) {
			return cells[c-1]
		}
		return ""
	}
	return Entry{
		Name:     get(ColumnName),
		ImageRef: get(ColumnImageRef),
		Note:     get(ColumnNote),
		Row:      row,
	}
}
