package cluster

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// Membership maps each label (Noise included) to the row indices carrying it.
// It is immutable once built.
type Membership struct {
	byLabel map[int]*roaring.Bitmap
	labels  []int
	total   int
}

// NewMembership indexes labels by value.
func NewMembership(labels []int) *Membership {
	m := &Membership{byLabel: make(map[int]*roaring.Bitmap), total: len(labels)}
	for i, l := range labels {
		bm, ok := m.byLabel[l]
		if !ok {
			bm = roaring.New()
			m.byLabel[l] = bm
			m.labels = append(m.labels, l)
		}
		bm.Add(uint32(i))
	}
	for _, bm := range m.byLabel {
		bm.RunOptimize()
	}
	sort.Ints(m.labels)
	return m
}

// Labels returns every label present, ascending (Noise first when present).
func (m *Membership) Labels() []int {
	out := make([]int, len(m.labels))
	copy(out, m.labels)
	return out
}

// Clusters returns the number of genuine clusters (Noise excluded).
func (m *Membership) Clusters() int {
	n := len(m.labels)
	if _, ok := m.byLabel[Noise]; ok {
		n--
	}
	return n
}

// Has reports whether any row carries label.
func (m *Membership) Has(label int) bool {
	_, ok := m.byLabel[label]
	return ok
}

// Size returns how many rows carry label.
func (m *Membership) Size(label int) int {
	bm, ok := m.byLabel[label]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}

// NoiseCount returns how many rows are noise.
func (m *Membership) NoiseCount() int {
	return m.Size(Noise)
}

// Total returns the number of labelled rows.
func (m *Membership) Total() int {
	return m.total
}

// Members returns the rows carrying label in ascending (dataset) order.
func (m *Membership) Members(label int) []int {
	bm, ok := m.byLabel[label]
	if !ok {
		return nil
	}
	out := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Each calls fn for the rows carrying label in dataset order until fn
// returns false.
func (m *Membership) Each(label int, fn func(row int) bool) {
	bm, ok := m.byLabel[label]
	if !ok {
		return
	}
	it := bm.Iterator()
	for it.HasNext() {
		if !fn(int(it.Next())) {
			return
		}
	}
}
