// Package dataset holds the drug records loaded at startup together with
// their schema and, once clustering has run, their cluster labels.
package dataset

// Noise is the cluster label of records that belong to no cluster, and the
// label every record carries before clustering.
const Noise = -1

// Record is one row of the dataset. Records are handed out by value; the
// cells are shared with the store and must be treated as read-only.
type Record struct {
	Index   int
	Cluster int

	schema *Schema
	values []Value
}

// Get returns the named cell. ok is false when the schema has no such column;
// a missing cell in an existing column returns ok=true and Present=false.
func (r Record) Get(name string) (v Value, ok bool) {
	c, ok := r.schema.Lookup(name)
	if !ok {
		return Missing, false
	}
	return r.values[c.Index], true
}

// At returns the cell in column i.
func (r Record) At(i int) Value {
	return r.values[i]
}

// DrugName returns the drug_name cell text, or "" when absent.
func (r Record) DrugName() string {
	v, ok := r.Get(ColDrugName)
	if !ok || !v.Present {
		return ""
	}
	return v.Text
}

// Store is the append-once, read-many collection of records.
type Store struct {
	source  string
	schema  *Schema
	records []Record
	labeled bool
}

// FromRows builds a store from a header and string rows. Empty cells (and
// the usual NA tokens) are missing. Short rows are padded, long rows are
// truncated to the header width.
func FromRows(source string, header []string, rows [][]string) (*Store, error) {
	if len(header) == 0 {
		return nil, sourceError(source, "no header", nil)
	}
	if len(rows) == 0 {
		return nil, sourceError(source, "no data rows", nil)
	}
	names := normalizeHeader(header)
	kinds := inferKinds(len(names), rows)
	columns := make([]Column, len(names))
	for i, n := range names {
		columns[i] = Column{Name: n, Kind: kinds[i], Index: i}
	}
	schema := newSchema(columns)

	records := make([]Record, len(rows))
	for i, row := range rows {
		values := make([]Value, len(columns))
		for j, c := range columns {
			if j >= len(row) || isMissing(row[j]) {
				continue
			}
			v := Value{Text: row[j], Present: true}
			if c.Kind == KindNumeric {
				v.Num, _ = parseNumber(row[j])
			}
			values[j] = v
		}
		records[i] = Record{Index: i, Cluster: Noise, schema: schema, values: values}
	}
	return &Store{source: source, schema: schema, records: records}, nil
}

// Source returns where the store was loaded from.
func (s *Store) Source() string { return s.source }

// Schema returns the column description.
func (s *Store) Schema() *Schema { return s.schema }

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// Record returns the i-th record.
func (s *Store) Record(i int) Record { return s.records[i] }

// Records returns all records in row order.
func (s *Store) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// RecordsMatching returns, in row order, every record for which pred is true.
func (s *Store) RecordsMatching(pred func(Record) bool) []Record {
	var out []Record
	for _, r := range s.records {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// Labeled reports whether cluster labels have been assigned.
func (s *Store) Labeled() bool { return s.labeled }

// Labels returns the cluster label of every record in row order.
func (s *Store) Labels() []int {
	out := make([]int, len(s.records))
	for i, r := range s.records {
		out[i] = r.Cluster
	}
	return out
}

// SetClusterLabels assigns labels[i] to the i-th record. It may be called once.
func (s *Store) SetClusterLabels(labels []int) error {
	if len(labels) != len(s.records) {
		return &DimensionMismatchError{Expected: len(s.records), Actual: len(labels)}
	}
	if s.labeled {
		return ErrLabelsAssigned
	}
	for i := range s.records {
		s.records[i].Cluster = labels[i]
	}
	s.labeled = true
	return nil
}
