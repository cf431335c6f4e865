// Package cluster groups feature vectors with DBSCAN and indexes the
// resulting membership.
package cluster

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Noise labels points that belong to no cluster.
const Noise = -1

const (
	// DefaultEps is the default neighbourhood radius.
	DefaultEps = 0.9
	// DefaultMinSamples is the default core-point threshold, the point itself included.
	DefaultMinSamples = 5
)

const unvisited = -2

// DBSCAN is a density-based clusterer over Euclidean distance.
//
// A point is core when at least MinSamples points (itself included) lie
// within Eps of it. Clusters are grown from core points in index order and
// numbered from 0; a border point joins the first cluster that reaches it.
// Everything else is Noise.
type DBSCAN struct {
	Eps        float64
	MinSamples int
	// Workers bounds the goroutines used for neighbourhood queries;
	// 0 means runtime.GOMAXPROCS(0).
	Workers int
}

// New returns a DBSCAN with the given parameters.
func New(eps float64, minSamples int) *DBSCAN {
	return &DBSCAN{Eps: eps, MinSamples: minSamples}
}

// Default returns a DBSCAN with DefaultEps and DefaultMinSamples.
func Default() *DBSCAN {
	return New(DefaultEps, DefaultMinSamples)
}

// Fit returns one label per point.
func (d *DBSCAN) Fit(ctx context.Context, points [][]float64) ([]int, error) {
	if err := d.validate(points); err != nil {
		return nil, err
	}

	neighbors, err := d.neighborhoods(ctx, points)
	if err != nil {
		return nil, err
	}

	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		if len(neighbors[i]) < d.MinSamples {
			labels[i] = Noise
			continue
		}

		id := next
		next++
		labels[i] = id

		queue := make([]int, 0, len(neighbors[i]))
		queue = append(queue, neighbors[i]...)
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]

			if labels[q] == Noise {
				// Border point previously marked as noise.
				labels[q] = id
				continue
			}
			if labels[q] != unvisited {
				continue
			}
			labels[q] = id
			if len(neighbors[q]) >= d.MinSamples {
				queue = append(queue, neighbors[q]...)
			}
		}
	}
	return labels, nil
}

func (d *DBSCAN) validate(points [][]float64) error {
	if d.Eps <= 0 || math.IsNaN(d.Eps) {
		return &ClusteringError{Reason: fmt.Sprintf("eps must be positive, got %v", d.Eps)}
	}
	if d.MinSamples <= 0 {
		return &ClusteringError{Reason: fmt.Sprintf("min samples must be positive, got %d", d.MinSamples)}
	}
	if len(points) == 0 {
		return &ClusteringError{Reason: "feature matrix is empty"}
	}
	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return &ClusteringError{Reason: fmt.Sprintf("row %d has %d columns, expected %d", i, len(p), dim)}
		}
	}
	return nil
}

// neighborhoods computes every point's eps-neighbourhood (itself included,
// ascending index order). Each goroutine owns a disjoint stripe of rows.
func (d *DBSCAN) neighborhoods(ctx context.Context, points [][]float64) ([][]int, error) {
	n := len(points)
	workers := d.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	out := make([][]int, n)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := w; i < n; i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				var nb []int
				for j := 0; j < n; j++ {
					if euclidean(points[i], points[j]) <= d.Eps {
						nb = append(nb, j)
					}
				}
				out[i] = nb
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("neighbourhood query: %w", err)
	}
	return out, nil
}

func euclidean(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}
