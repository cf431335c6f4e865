// Package stats summarizes dosage values per cluster and derives the
// suggested upper dosage limit.
package stats

import (
	"strconv"

	"github.com/patrickmn/go-cache"
	"gonum.org/v1/gonum/stat"

	"github.com/Skufu/dosewise/internal/cluster"
	"github.com/Skufu/dosewise/internal/dataset"
)

// DefaultLimitMultiplier is how many standard deviations above the mean the
// suggested limit sits.
const DefaultLimitMultiplier = 1.0

// ClusterStats summarizes the non-missing dosage values of one cluster.
// Std is the population standard deviation.
type ClusterStats struct {
	Count          int     `json:"count"`
	Mean           float64 `json:"mean"`
	Std            float64 `json:"std"`
	SuggestedLimit float64 `json:"suggestedLimit"`
}

// Summarize computes ClusterStats over values. ok is false for no values.
func Summarize(values []float64, multiplier float64) (ClusterStats, bool) {
	if len(values) == 0 {
		return ClusterStats{}, false
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return ClusterStats{
		Count:          len(values),
		Mean:           mean,
		Std:            std,
		SuggestedLimit: mean + multiplier*std,
	}, true
}

// Options configures a Module.
type Options struct {
	// Column holds the dosage values; defaults to dataset.ColDosageMg.
	Column string
	// LimitMultiplier scales the standard deviation added to the mean.
	LimitMultiplier float64
}

// DefaultOptions returns the module defaults.
func DefaultOptions() Options {
	return Options{Column: dataset.ColDosageMg, LimitMultiplier: DefaultLimitMultiplier}
}

// Module computes dosage statistics per cluster over a labelled store.
// Results are cached by cluster id for the lifetime of the module.
type Module struct {
	store      *dataset.Store
	membership *cluster.Membership
	column     dataset.Column
	hasColumn  bool
	multiplier float64
	cache      *cache.Cache
}

// New builds a Module. The dosage column is resolved once; a missing or
// non-numeric column makes every lookup absent.
func New(store *dataset.Store, membership *cluster.Membership, opts Options) *Module {
	if opts.Column == "" {
		opts.Column = dataset.ColDosageMg
	}
	m := &Module{
		store:      store,
		membership: membership,
		multiplier: opts.LimitMultiplier,
		cache:      cache.New(cache.NoExpiration, 0),
	}
	if c, ok := store.Schema().Lookup(opts.Column); ok && c.Kind == dataset.KindNumeric {
		m.column, m.hasColumn = c, true
	}
	return m
}

// Multiplier returns the configured limit multiplier.
func (m *Module) Multiplier() float64 { return m.multiplier }

type cached struct {
	stats ClusterStats
	ok    bool
}

// DosageStats returns the dosage summary of clusterID (Noise allowed).
// ok is false when there is no numeric dosage column or the cluster has no
// non-missing dosage values.
func (m *Module) DosageStats(clusterID int) (ClusterStats, bool) {
	if !m.hasColumn {
		return ClusterStats{}, false
	}
	key := strconv.Itoa(clusterID)
	if v, found := m.cache.Get(key); found {
		c := v.(cached)
		return c.stats, c.ok
	}

	var values []float64
	m.membership.Each(clusterID, func(row int) bool {
		if v := m.store.Record(row).At(m.column.Index); v.Present {
			values = append(values, v.Num)
		}
		return true
	})
	s, ok := Summarize(values, m.multiplier)
	m.cache.Set(key, cached{stats: s, ok: ok}, cache.NoExpiration)
	return s, ok
}
