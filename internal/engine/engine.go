// Package engine wires the record store, feature encoder, clusterer and
// statistics module together and answers drug lookups against the result.
//
// An Engine is built once and is read-only afterwards, so any number of
// goroutines may call Resolve concurrently.
package engine

import (
	"context"
	"fmt"

	"github.com/Skufu/dosewise/internal/cluster"
	"github.com/Skufu/dosewise/internal/dataset"
	"github.com/Skufu/dosewise/internal/features"
	"github.com/Skufu/dosewise/internal/logging"
	"github.com/Skufu/dosewise/internal/stats"
)

// DefaultSimilarLimit caps the similar-drugs list of a lookup.
const DefaultSimilarLimit = 10

// Clusterer assigns one label per feature vector, cluster.Noise for outliers.
type Clusterer interface {
	Fit(ctx context.Context, points [][]float64) ([]int, error)
}

// Options configures engine construction.
type Options struct {
	Source dataset.Source

	// Eps and MinSamples are passed to DBSCAN as given; zero values are
	// rejected with a ClusteringError. Start from DefaultOptions.
	Eps        float64
	MinSamples int
	Workers    int
	// Clusterer overrides the DBSCAN built from Eps, MinSamples and Workers.
	Clusterer Clusterer

	Features        features.Options
	LimitMultiplier float64
	SimilarLimit    int

	Logger *logging.Logger
}

// DefaultOptions returns the stock engine configuration.
func DefaultOptions() Options {
	return Options{
		Eps:             cluster.DefaultEps,
		MinSamples:      cluster.DefaultMinSamples,
		Features:        features.DefaultOptions(),
		LimitMultiplier: stats.DefaultLimitMultiplier,
		SimilarLimit:    DefaultSimilarLimit,
	}
}

func (o Options) withDefaults() Options {
	if o.SimilarLimit <= 0 {
		o.SimilarLimit = DefaultSimilarLimit
	}
	if o.Features.CategoryOrder == "" {
		o.Features.CategoryOrder = features.OrderAppearance
	}
	if o.Logger == nil {
		o.Logger = logging.Noop()
	}
	return o
}

// Engine holds the labelled dataset and everything derived from it.
type Engine struct {
	store        *dataset.Store
	encoder      *features.Encoder
	membership   *cluster.Membership
	stats        *stats.Module
	similarLimit int
	log          *logging.Logger
}

// Initialize loads the configured source and builds an engine from it.
func Initialize(ctx context.Context, opts Options) (*Engine, error) {
	opts = opts.withDefaults()
	store, err := dataset.Load(ctx, opts.Source)
	if err != nil {
		opts.Logger.LogLoad(ctx, opts.Source.Path, 0, 0, err)
		return nil, err
	}
	return New(ctx, store, opts)
}

// New encodes and clusters an already loaded store, then attaches the labels
// to it. The store must not have been labelled before.
func New(ctx context.Context, store *dataset.Store, opts Options) (*Engine, error) {
	opts = opts.withDefaults()
	log := opts.Logger.WithComponent("engine")
	log.LogLoad(ctx, store.Source(), store.Len(), store.Schema().Len(), nil)
	if _, ok := store.Schema().Lookup(dataset.ColDrugName); !ok {
		log.WarnContext(ctx, "dataset has no drug_name column; every lookup will miss",
			"source", store.Source(),
		)
	}

	enc, matrix, err := features.FitTransform(store, opts.Features)
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}
	log.LogEncode(ctx, len(matrix.Rows), len(matrix.Columns))

	clusterer := opts.Clusterer
	if clusterer == nil {
		clusterer = &cluster.DBSCAN{Eps: opts.Eps, MinSamples: opts.MinSamples, Workers: opts.Workers}
	}
	labels, err := clusterer.Fit(ctx, matrix.Rows)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}
	if err := store.SetClusterLabels(labels); err != nil {
		return nil, fmt.Errorf("assign labels: %w", err)
	}

	membership := cluster.NewMembership(labels)
	log.LogCluster(ctx, opts.Eps, opts.MinSamples, membership.Clusters(), membership.NoiseCount())

	return &Engine{
		store:      store,
		encoder:    enc,
		membership: membership,
		stats: stats.New(store, membership, stats.Options{
			Column:          dataset.ColDosageMg,
			LimitMultiplier: opts.LimitMultiplier,
		}),
		similarLimit: opts.SimilarLimit,
		log:          log,
	}, nil
}

// Store returns the labelled record store.
func (e *Engine) Store() *dataset.Store { return e.store }

// Summary describes the engine state.
type Summary struct {
	Source       string `json:"source"`
	Rows         int    `json:"rows"`
	FeatureWidth int    `json:"featureWidth"`
	Clusters     int    `json:"clusters"`
	Noise        int    `json:"noise"`
}

// Summary reports dataset size, feature width and cluster counts.
func (e *Engine) Summary() Summary {
	return Summary{
		Source:       e.store.Source(),
		Rows:         e.store.Len(),
		FeatureWidth: len(e.encoder.Columns()),
		Clusters:     e.membership.Clusters(),
		Noise:        e.membership.NoiseCount(),
	}
}

// ClusterInfo summarizes one label.
type ClusterInfo struct {
	ID          int                 `json:"id"`
	Size        int                 `json:"size"`
	DosageStats *stats.ClusterStats `json:"dosageStats,omitempty"`
}

// ClusterDetail is a ClusterInfo plus its member drug names in dataset order.
type ClusterDetail struct {
	ClusterInfo
	Members []string `json:"members"`
}

// Clusters lists every label present, noise first when there is any.
func (e *Engine) Clusters() []ClusterInfo {
	labels := e.membership.Labels()
	out := make([]ClusterInfo, 0, len(labels))
	for _, l := range labels {
		out = append(out, e.info(l))
	}
	return out
}

// Cluster returns the members and stats of label id. ok is false when no
// record carries it.
func (e *Engine) Cluster(id int) (ClusterDetail, bool) {
	if !e.membership.Has(id) {
		return ClusterDetail{}, false
	}
	d := ClusterDetail{ClusterInfo: e.info(id), Members: make([]string, 0, e.membership.Size(id))}
	e.membership.Each(id, func(row int) bool {
		d.Members = append(d.Members, e.store.Record(row).DrugName())
		return true
	})
	return d, true
}

func (e *Engine) info(id int) ClusterInfo {
	ci := ClusterInfo{ID: id, Size: e.membership.Size(id)}
	if s, ok := e.stats.DosageStats(id); ok {
		ci.DosageStats = &s
	}
	return ci
}
