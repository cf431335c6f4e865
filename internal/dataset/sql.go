package dataset

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func tableName(table string) (string, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		table = DefaultTable
	}
	if !identRe.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

func loadSQLite(ctx context.Context, path, table string) (*Store, error) {
	name, err := tableName(table)
	if err != nil {
		return nil, sourceError(path, "table", err)
	}
	// sql.Open would silently create a new database file.
	if _, err := os.Stat(path); err != nil {
		return nil, sourceError(path, "open", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, sourceError(path, "open", err)
	}
	defer db.Close()

	quoted := make([]string, 0, 2)
	for _, part := range strings.Split(name, ".") {
		quoted = append(quoted, `"`+part+`"`)
	}
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+strings.Join(quoted, "."))
	if err != nil {
		return nil, sourceError(path, "query "+name, err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, sourceError(path, "columns", err)
	}
	var data [][]string
	for rows.Next() {
		cells := make([]any, len(header))
		ptrs := make([]any, len(header))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, sourceError(path, "scan", err)
		}
		data = append(data, stringifyRow(cells))
	}
	if err := rows.Err(); err != nil {
		return nil, sourceError(path, "rows", err)
	}
	return FromRows(path, header, data)
}

// LoadPostgres reads every row of table through pool.
func LoadPostgres(ctx context.Context, pool *pgxpool.Pool, table string) (*Store, error) {
	name, err := tableName(table)
	if err != nil {
		return nil, sourceError("postgres", "table", err)
	}
	source := "postgres:" + name

	rows, err := pool.Query(ctx, "SELECT * FROM "+pgx.Identifier(strings.Split(name, ".")).Sanitize())
	if err != nil {
		return nil, sourceError(source, "query", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}
	var data [][]string
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, sourceError(source, "scan", err)
		}
		data = append(data, stringifyRow(vals))
	}
	if err := rows.Err(); err != nil {
		return nil, sourceError(source, "rows", err)
	}
	return FromRows(source, header, data)
}

// stringifyRow renders driver values as text; NULL becomes "" (missing).
func stringifyRow(cells []any) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = stringify(c)
	}
	return out
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return x.Format(time.RFC3339)
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return ""
		}
		return stringify(dv)
	default:
		return fmt.Sprint(x)
	}
}
