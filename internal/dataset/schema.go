package dataset

import (
	"strconv"
	"strings"
)

// Kind is the declared type of a column.
type Kind int

const (
	KindNumeric Kind = iota
	KindCategorical
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Well-known column names. None of them is required by the store itself.
const (
	ColDrugName            = "drug_name"
	ColDosageMg            = "dosage_mg"
	ColIndications         = "indications"
	ColSideEffects         = "side_effects"
	ColAdministrationRoute = "administration_route"
	ColContraindications   = "contraindications"
	ColWarnings            = "warnings"
	ColDrugClass           = "drug_class"
	ColManufacturer        = "manufacturer"
	ColPriceUSD            = "price_usd"
)

// Column describes one column of the dataset.
type Column struct {
	Name  string
	Kind  Kind
	Index int
}

// Schema is the ordered column list discovered at load time.
type Schema struct {
	columns []Column
	index   map[string]int
}

func newSchema(columns []Column) *Schema {
	s := &Schema{columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		s.index[c.Name] = i
	}
	return s
}

// Columns returns the columns in source order. The slice must not be modified.
func (s *Schema) Columns() []Column {
	if s == nil {
		return nil
	}
	return s.columns
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.columns)
}

// Lookup returns the named column, or false when the schema has no such column.
func (s *Schema) Lookup(name string) (Column, bool) {
	if s == nil {
		return Column{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

// Value is one cell. Present is false for missing cells; Num is only
// meaningful for numeric columns.
type Value struct {
	Text    string
	Num     float64
	Present bool
}

// Missing is the absent cell.
var Missing = Value{}

// Any returns the cell as float64 (numeric), string (categorical) or nil (missing).
func (v Value) Any(kind Kind) any {
	if !v.Present {
		return nil
	}
	if kind == KindNumeric {
		return v.Num
	}
	return v.Text
}

// missingMarkers mirrors the tokens common tabular readers treat as NA.
var missingMarkers = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"-nan": {},
	"null": {},
	"none": {},
	"#n/a": {},
	"<na>": {},
}

func isMissing(raw string) bool {
	_, ok := missingMarkers[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

func parseNumber(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// inferKinds marks a column numeric when every present cell parses as a
// number. A column with no present cells is numeric.
func inferKinds(ncol int, rows [][]string) []Kind {
	kinds := make([]Kind, ncol)
	for j := 0; j < ncol; j++ {
		for _, row := range rows {
			if j >= len(row) || isMissing(row[j]) {
				continue
			}
			if _, ok := parseNumber(row[j]); !ok {
				kinds[j] = KindCategorical
				break
			}
		}
	}
	return kinds
}

// normalizeHeader trims names, fills blanks and disambiguates duplicates
// with a numeric suffix (name, name.1, name.2, ...).
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for {
			n, dup := seen[name]
			if !dup {
				break
			}
			seen[name] = n + 1
			name = base + "." + strconv.Itoa(n+1)
		}
		seen[name] = 0
		out[i] = name
	}
	return out
}
