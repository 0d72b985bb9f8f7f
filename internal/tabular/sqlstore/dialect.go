package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/supplierbot/internal/common"
)

// Dialect describes how to talk to one database engine.
type Dialect struct {
	Name     string
	Driver   string // database/sql driver name
	Goose    string // goose dialect name
	Numbered bool   // $1 placeholders instead of ?
}

var (
	Postgres = Dialect{Name: "postgres", Driver: "pgx", Goose: "pgx", Numbered: true}
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite", Goose: "sqlite3"}
)

func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case Postgres.Name, "postgresql", "pgx":
		return Postgres, nil
	case SQLite.Name, "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("sql dialect %q: %w", name, common.ErrorUnknownDriver)
	}
}

// rebind turns ? placeholders into the dialect's form.
func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
