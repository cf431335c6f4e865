package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Source locates a dataset. Path is a CSV/TSV file, a SQLite database file
// (.db, .sqlite, .sqlite3 or a sqlite:// prefix). Table names the SQL table
// and is ignored for delimited files.
type Source struct {
	Path  string
	Table string
}

// DefaultTable is the SQL table read when Source.Table is empty.
const DefaultTable = "drugs"

const sqlitePrefix = "sqlite://"

// Load reads the dataset described by src. Postgres sources are loaded with
// LoadPostgres because they need a live pool.
func Load(ctx context.Context, src Source) (*Store, error) {
	path := strings.TrimSpace(src.Path)
	if path == "" {
		return nil, sourceError(src.Path, "no dataset path configured", nil)
	}
	if isSQLite(path) {
		return loadSQLite(ctx, strings.TrimPrefix(path, sqlitePrefix), src.Table)
	}
	return loadDelimited(path)
}

func isSQLite(path string) bool {
	if strings.HasPrefix(path, sqlitePrefix) {
		return true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

func delimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

func loadDelimited(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sourceError(path, "open", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delimiterFor(path)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, sourceError(path, "empty file", nil)
		}
		return nil, sourceError(path, "read header", err)
	}
	header = append([]string(nil), header...)

	var rows [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, sourceError(path, "read row", err)
		}
		rows = append(rows, rec)
	}
	return FromRows(path, header, rows)
}
