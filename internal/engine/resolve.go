package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/Skufu/dosewise/internal/dataset"
	"github.com/Skufu/dosewise/internal/stats"
)

// displayOrder is the order fields appear in a lookup result.
var displayOrder = []string{
	dataset.ColDrugName,
	dataset.ColIndications,
	dataset.ColSideEffects,
	dataset.ColDosageMg,
	dataset.ColAdministrationRoute,
	dataset.ColContraindications,
	dataset.ColWarnings,
	dataset.ColDrugClass,
	dataset.ColManufacturer,
	dataset.ColPriceUSD,
}

// Field is one displayed attribute of the matched record. Value is a float64
// for numeric columns, a string for categorical ones and nil when the cell
// is missing.
type Field struct {
	Name  string
	Value any
}

// Fields keeps display order and marshals as a JSON object.
type Fields []Field

// Get returns the named field value.
func (f Fields) Get(name string) (any, bool) {
	for _, fld := range f {
		if fld.Name == name {
			return fld.Value, true
		}
	}
	return nil, false
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fld := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(fld.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(fld.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SimilarDrug is a short summary of another record in the same cluster.
type SimilarDrug struct {
	DrugName    string   `json:"drug_name"`
	DrugClass   *string  `json:"drug_class,omitempty"`
	DosageMg    *float64 `json:"dosage_mg,omitempty"`
	SideEffects *string  `json:"side_effects,omitempty"`
}

// Result is the answer to a drug lookup.
type Result struct {
	Query       string              `json:"query"`
	Fields      Fields              `json:"fields"`
	ClusterID   int                 `json:"clusterId"`
	Similar     []SimilarDrug       `json:"similar"`
	DosageStats *stats.ClusterStats `json:"dosageStats,omitempty"`
}

// Resolve looks up query against drug names. Every record whose lowercased
// name contains the lowercased query matches, with an exact case-insensitive
// comparison as fallback; the first match in dataset order wins.
func (e *Engine) Resolve(query string) (*Result, error) {
	res, err := e.resolve(query)
	clusterID, similar := 0, 0
	if res != nil {
		clusterID, similar = res.ClusterID, len(res.Similar)
	}
	e.log.LogLookup(context.Background(), strings.TrimSpace(query), clusterID, similar, err)
	return res, err
}

func (e *Engine) resolve(query string) (*Result, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, ErrEmptyQuery
	}
	needle := strings.ToLower(trimmed)

	matches := e.store.RecordsMatching(func(r dataset.Record) bool {
		name := r.DrugName()
		return name != "" && strings.Contains(strings.ToLower(name), needle)
	})
	if len(matches) == 0 {
		matches = e.store.RecordsMatching(func(r dataset.Record) bool {
			name := r.DrugName()
			return name != "" && strings.EqualFold(name, trimmed)
		})
	}
	if len(matches) == 0 {
		return nil, &NotFoundError{Query: trimmed}
	}
	primary := matches[0]

	res := &Result{
		Query:     trimmed,
		Fields:    e.fields(primary),
		ClusterID: primary.Cluster,
		Similar:   e.similar(primary),
	}
	if s, ok := e.stats.DosageStats(primary.Cluster); ok {
		res.DosageStats = &s
	}
	return res, nil
}

func (e *Engine) fields(r dataset.Record) Fields {
	schema := e.store.Schema()
	out := make(Fields, 0, len(displayOrder))
	for _, name := range displayOrder {
		c, ok := schema.Lookup(name)
		if !ok {
			continue
		}
		out = append(out, Field{Name: name, Value: r.At(c.Index).Any(c.Kind)})
	}
	return out
}

// similar lists the other records of r's cluster in dataset order, skipping
// any that share r's name. Noise is treated like any other label.
func (e *Engine) similar(r dataset.Record) []SimilarDrug {
	name := r.DrugName()
	out := make([]SimilarDrug, 0, e.similarLimit)
	e.membership.Each(r.Cluster, func(row int) bool {
		other := e.store.Record(row)
		if other.DrugName() == name {
			return true
		}
		out = append(out, e.summarize(other))
		return len(out) < e.similarLimit
	})
	return out
}

func (e *Engine) summarize(r dataset.Record) SimilarDrug {
	d := SimilarDrug{DrugName: r.DrugName()}
	if v, ok := r.Get(dataset.ColDrugClass); ok && v.Present {
		s := v.Text
		d.DrugClass = &s
	}
	if v, ok := r.Get(dataset.ColSideEffects); ok && v.Present {
		s := v.Text
		d.SideEffects = &s
	}
	if c, ok := e.store.Schema().Lookup(dataset.ColDosageMg); ok && c.Kind == dataset.KindNumeric {
		if v := r.At(c.Index); v.Present {
			n := v.Num
			d.DosageMg = &n
		}
	}
	return d
}
