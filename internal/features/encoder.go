// Package features turns heterogeneous drug records into a standardized
// numeric matrix suitable for distance-based clustering.
//
// The transform is fitted once over the whole dataset:
//  1. numeric gaps are filled with the column median;
//  2. categorical gaps are filled with the column mode (ties: first seen);
//  3. each categorical column expands into one indicator per category except
//     the first (drop-first one-hot);
//  4. every resulting column is standardized with population statistics,
//     constant columns becoming all zero.
package features

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Skufu/dosewise/internal/dataset"
)

// CategoryOrder controls how categories are enumerated, which decides the
// dropped baseline and the indicator column order.
type CategoryOrder string

const (
	// OrderAppearance enumerates categories in order of first appearance.
	OrderAppearance CategoryOrder = "appearance"
	// OrderSorted enumerates categories lexicographically, which makes the
	// encoding independent of row order.
	OrderSorted CategoryOrder = "sorted"
)

// Options configures the encoder.
type Options struct {
	CategoryOrder CategoryOrder
	// Exclude lists columns left out of the feature space.
	Exclude []string
}

// DefaultOptions returns the encoder defaults.
func DefaultOptions() Options {
	return Options{CategoryOrder: OrderAppearance}
}

// Matrix is the encoded dataset: one row per record, one column per feature.
type Matrix struct {
	Columns []string
	Rows    [][]float64
}

// ColumnIndex returns the position of a feature column.
func (m *Matrix) ColumnIndex(name string) (int, bool) {
	for i, c := range m.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

type numericFeature struct {
	column int
	name   string
	median float64
}

type categoricalFeature struct {
	column     int
	name       string
	mode       string
	categories []string // categories[0] is the dropped baseline
}

// Encoder holds the statistics learned by Fit.
type Encoder struct {
	opts        Options
	numeric     []numericFeature
	categorical []categoricalFeature
	columns     []string
	means       []float64
	scales      []float64
}

// Fit learns imputation values, categories and scaling statistics from s.
func Fit(s *dataset.Store, opts Options) (*Encoder, error) {
	if s == nil || s.Len() == 0 {
		return nil, &EncodingError{Reason: "dataset has no rows"}
	}
	if opts.CategoryOrder == "" {
		opts.CategoryOrder = OrderAppearance
	}
	if opts.CategoryOrder != OrderAppearance && opts.CategoryOrder != OrderSorted {
		return nil, &EncodingError{Reason: fmt.Sprintf("unknown category order %q", opts.CategoryOrder)}
	}
	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, name := range opts.Exclude {
		excluded[name] = struct{}{}
	}

	e := &Encoder{opts: opts}
	records := s.Records()
	for _, c := range s.Schema().Columns() {
		if _, skip := excluded[c.Name]; skip {
			continue
		}
		switch c.Kind {
		case dataset.KindNumeric:
			vals := make([]float64, 0, len(records))
			for _, r := range records {
				v := r.At(c.Index)
				if !v.Present {
					continue
				}
				if math.IsInf(v.Num, 0) || math.IsNaN(v.Num) {
					return nil, &EncodingError{Column: c.Name, Reason: fmt.Sprintf("non-finite value %v", v.Num)}
				}
				vals = append(vals, v.Num)
			}
			if len(vals) == 0 {
				return nil, &EncodingError{Column: c.Name, Reason: "numeric column has no values; median undefined"}
			}
			e.numeric = append(e.numeric, numericFeature{column: c.Index, name: c.Name, median: median(vals)})
		case dataset.KindCategorical:
			mode, seen := modeAndCategories(records, c.Index)
			if opts.CategoryOrder == OrderSorted {
				sort.Strings(seen)
			}
			e.categorical = append(e.categorical, categoricalFeature{
				column:     c.Index,
				name:       c.Name,
				mode:       mode,
				categories: seen,
			})
		}
	}

	for _, f := range e.numeric {
		e.columns = append(e.columns, f.name)
	}
	for _, f := range e.categorical {
		for _, cat := range f.categories[1:] {
			e.columns = append(e.columns, f.name+"_"+cat)
		}
	}
	e.columns = uniqueNames(e.columns)

	raw := e.encode(records)
	e.means, e.scales = columnStats(raw, len(e.columns))
	return e, nil
}

// FitTransform fits an encoder on s and returns it with the encoded matrix.
func FitTransform(s *dataset.Store, opts Options) (*Encoder, *Matrix, error) {
	e, err := Fit(s, opts)
	if err != nil {
		return nil, nil, err
	}
	m, err := e.Transform(s)
	if err != nil {
		return nil, nil, err
	}
	return e, m, nil
}

// Transform applies the fitted transform to every record of s. Categories
// not seen during Fit encode as the baseline.
func (e *Encoder) Transform(s *dataset.Store) (*Matrix, error) {
	if s == nil || s.Len() == 0 {
		return nil, &EncodingError{Reason: "dataset has no rows"}
	}
	if err := e.checkSchema(s.Schema()); err != nil {
		return nil, err
	}
	rows := e.encode(s.Records())
	for _, row := range rows {
		for j := range row {
			if e.scales[j] == 0 {
				row[j] = 0
				continue
			}
			row[j] = (row[j] - e.means[j]) / e.scales[j]
		}
	}
	cols := make([]string, len(e.columns))
	copy(cols, e.columns)
	return &Matrix{Columns: cols, Rows: rows}, nil
}

// Columns returns the feature column names in matrix order.
func (e *Encoder) Columns() []string {
	out := make([]string, len(e.columns))
	copy(out, e.columns)
	return out
}

// Median returns the imputation value learned for a numeric column.
func (e *Encoder) Median(column string) (float64, bool) {
	for _, f := range e.numeric {
		if f.name == column {
			return f.median, true
		}
	}
	return 0, false
}

// Mode returns the imputation value learned for a categorical column.
func (e *Encoder) Mode(column string) (string, bool) {
	for _, f := range e.categorical {
		if f.name == column {
			return f.mode, true
		}
	}
	return "", false
}

// Categories returns the enumerated categories of a categorical column,
// baseline first.
func (e *Encoder) Categories(column string) ([]string, bool) {
	for _, f := range e.categorical {
		if f.name == column {
			out := make([]string, len(f.categories))
			copy(out, f.categories)
			return out, true
		}
	}
	return nil, false
}

// Scaling returns the mean and standard deviation used for a feature column.
func (e *Encoder) Scaling(column string) (mean, std float64, ok bool) {
	for i, c := range e.columns {
		if c == column {
			return e.means[i], e.scales[i], true
		}
	}
	return 0, 0, false
}

// checkSchema verifies that every fitted column sits at the same position in
// schema, so the learned statistics stay aligned.
func (e *Encoder) checkSchema(schema *dataset.Schema) error {
	check := func(name string, index int, kind dataset.Kind) error {
		c, ok := schema.Lookup(name)
		if !ok || c.Index != index || c.Kind != kind {
			return &EncodingError{Column: name, Reason: "column missing or moved since fit"}
		}
		return nil
	}
	for _, f := range e.numeric {
		if err := check(f.name, f.column, dataset.KindNumeric); err != nil {
			return err
		}
	}
	for _, f := range e.categorical {
		if err := check(f.name, f.column, dataset.KindCategorical); err != nil {
			return err
		}
	}
	return nil
}

// encode produces the imputed, one-hot, unscaled rows.
func (e *Encoder) encode(records []dataset.Record) [][]float64 {
	width := len(e.columns)
	rows := make([][]float64, len(records))
	for i, r := range records {
		row := make([]float64, width)
		j := 0
		for _, f := range e.numeric {
			v := r.At(f.column)
			if v.Present {
				row[j] = v.Num
			} else {
				row[j] = f.median
			}
			j++
		}
		for _, f := range e.categorical {
			v := r.At(f.column)
			val := f.mode
			if v.Present {
				val = v.Text
			}
			for k, cat := range f.categories[1:] {
				if cat == val {
					row[j+k] = 1
				}
			}
			j += len(f.categories) - 1
		}
		rows[i] = row
	}
	return rows
}

// modeAndCategories returns the most frequent present value (ties go to the
// value seen first) and the distinct values of the imputed column in order of
// first appearance.
func modeAndCategories(records []dataset.Record, column int) (string, []string) {
	counts := make(map[string]int)
	var firstSeen []string
	for _, r := range records {
		v := r.At(column)
		if !v.Present {
			continue
		}
		if _, ok := counts[v.Text]; !ok {
			firstSeen = append(firstSeen, v.Text)
		}
		counts[v.Text]++
	}
	mode := ""
	best := 0
	for _, val := range firstSeen {
		if counts[val] > best {
			mode, best = val, counts[val]
		}
	}

	seen := make(map[string]struct{}, len(firstSeen))
	order := make([]string, 0, len(firstSeen))
	for _, r := range records {
		val := mode
		if v := r.At(column); v.Present {
			val = v.Text
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		order = append(order, val)
	}
	return mode, order
}

// median of vals; the mean of the two middle values for even counts.
func median(vals []float64) float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	n := len(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}

// uniqueNames suffixes repeated feature names (name, name.1, name.2, ...).
// Indicator names can repeat, e.g. column "a" with category "b_c" and column
// "a_b" with category "c".
func uniqueNames(names []string) []string {
	taken := make(map[string]struct{}, len(names))
	for _, n := range names {
		taken[n] = struct{}{}
	}
	used := make(map[string]struct{}, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		name := n
		for k := 1; ; k++ {
			_, dup := used[name]
			_, clash := taken[name]
			if !dup && (name == n || !clash) {
				break
			}
			name = fmt.Sprintf("%s.%d", n, k)
		}
		used[name] = struct{}{}
		out[i] = name
	}
	return out
}

// columnStats returns per-column population mean and standard deviation.
func columnStats(rows [][]float64, width int) (means, stds []float64) {
	means = make([]float64, width)
	stds = make([]float64, width)
	col := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i, row := range rows {
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		// Rounding leaves constant columns with a tiny non-zero spread.
		if std <= 1e-12*math.Max(1, math.Abs(mean)) {
			std = 0
		}
		means[j] = mean
		stds[j] = std
	}
	return means, stds
}
