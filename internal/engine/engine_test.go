package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/dosewise/internal/cluster"
	"github.com/Skufu/dosewise/internal/dataset"
	"github.com/Skufu/dosewise/internal/features"
)

// fixedLabels is a Clusterer returning preset labels.
type fixedLabels []int

func (f fixedLabels) Fit(context.Context, [][]float64) ([]int, error) {
	return append([]int(nil), f...), nil
}

type failingClusterer struct{}

func (failingClusterer) Fit(context.Context, [][]float64) ([]int, error) {
	return nil, &cluster.ClusteringError{Reason: "boom"}
}

var header = []string{"drug_name", "manufacturer", "dosage_mg", "drug_class", "side_effects", "indications"}

func build(t *testing.T, rows [][]string, labels []int) *Engine {
	t.Helper()
	s, err := dataset.FromRows("mem", header, rows)
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.Clusterer = fixedLabels(labels)
	e, err := New(context.Background(), s, opts)
	require.NoError(t, err)
	return e
}

func sample(t *testing.T) *Engine {
	return build(t, [][]string{
		{"DrugA", "Acme", "10", "Analgesic", "Nausea", "Pain"},
		{"DrugB", "Acme", "20", "Analgesic", "", "Pain"},
		{"Other", "Beta", "500", "Antibiotic", "Rash", "Infection"},
		{"DrugC", "Beta", "30", "Analgesic", "Dizziness", ""},
		{"Lonely", "Gamma", "", "Antiviral", "", "Flu"},
	}, []int{0, 0, cluster.Noise, 0, cluster.Noise})
}

func TestResolvePrimary(t *testing.T) {
	e := sample(t)

	res, err := e.Resolve("  druga ")
	require.NoError(t, err)
	assert.Equal(t, "druga", res.Query)
	assert.Equal(t, 0, res.ClusterID)

	var names []string
	for _, f := range res.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"drug_name", "indications", "side_effects", "dosage_mg", "drug_class", "manufacturer"}, names)
	v, ok := res.Fields.Get("dosage_mg")
	require.True(t, ok)
	assert.Equal(t, 10.0, v)
	v, _ = res.Fields.Get("drug_name")
	assert.Equal(t, "DrugA", v)
	_, ok = res.Fields.Get("warnings")
	assert.False(t, ok, "absent columns are omitted")

	require.Len(t, res.Similar, 2)
	assert.Equal(t, "DrugB", res.Similar[0].DrugName)
	assert.Nil(t, res.Similar[0].SideEffects)
	require.NotNil(t, res.Similar[0].DosageMg)
	assert.Equal(t, 20.0, *res.Similar[0].DosageMg)
	assert.Equal(t, "DrugC", res.Similar[1].DrugName)
	require.NotNil(t, res.Similar[1].DrugClass)
	assert.Equal(t, "Analgesic", *res.Similar[1].DrugClass)

	require.NotNil(t, res.DosageStats)
	assert.Equal(t, 3, res.DosageStats.Count)
	assert.InDelta(t, 20.0, res.DosageStats.Mean, 1e-12)
	assert.InDelta(t, 28.165, res.DosageStats.SuggestedLimit, 1e-3)
}

func TestResolveFirstMatchWins(t *testing.T) {
	res, err := sample(t).Resolve("drug")
	require.NoError(t, err)
	v, _ := res.Fields.Get("drug_name")
	assert.Equal(t, "DrugA", v)
}

func TestResolveMissingCellIsNull(t *testing.T) {
	res, err := sample(t).Resolve("DrugB")
	require.NoError(t, err)
	v, ok := res.Fields.Get("side_effects")
	require.True(t, ok)
	assert.Nil(t, v)
}

func TestResolveNotFound(t *testing.T) {
	_, err := sample(t).Resolve("Zzyzx")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, "Zzyzx", nf.Query)
}

func TestResolveEmptyQuery(t *testing.T) {
	e := sample(t)
	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := e.Resolve(q)
		assert.ErrorIs(t, err, ErrEmptyQuery, "query %q", q)
	}
}

func TestResolveNoiseUsesOtherNoise(t *testing.T) {
	res, err := sample(t).Resolve("lonely")
	require.NoError(t, err)
	assert.Equal(t, cluster.Noise, res.ClusterID)
	require.Len(t, res.Similar, 1)
	assert.Equal(t, "Other", res.Similar[0].DrugName)
	require.NotNil(t, res.DosageStats)
	assert.Equal(t, 500.0, res.DosageStats.Mean)
}

func TestResolveSimilarCap(t *testing.T) {
	rows := [][]string{{"Primary", "Acme", "10", "X", "Nausea", "Pain"}}
	labels := []int{0}
	for i := 0; i < 15; i++ {
		rows = append(rows, []string{fmt.Sprintf("Peer%02d", i), "Acme", "10", "X", "Nausea", "Pain"})
		labels = append(labels, 0)
		// An unrelated record between peers must not disturb order.
		rows = append(rows, []string{fmt.Sprintf("Far%02d", i), "Beta", "99", "Y", "Rash", "Acne"})
		labels = append(labels, 1)
	}
	e := build(t, rows, labels)

	res, err := e.Resolve("primary")
	require.NoError(t, err)
	require.Len(t, res.Similar, DefaultSimilarLimit)
	for i, s := range res.Similar {
		assert.Equal(t, fmt.Sprintf("Peer%02d", i), s.DrugName)
	}
}

func TestResolveSimilarExcludesSameName(t *testing.T) {
	e := build(t, [][]string{
		{"Twin", "Acme", "10", "X", "Nausea", "Pain"},
		{"Twin", "Beta", "12", "X", "Nausea", "Pain"},
		{"Solo", "Acme", "14", "X", "Rash", "Pain"},
	}, []int{0, 0, 0})
	res, err := e.Resolve("twin")
	require.NoError(t, err)
	require.Len(t, res.Similar, 1)
	assert.Equal(t, "Solo", res.Similar[0].DrugName)
}

func TestResolveWithoutDosageColumn(t *testing.T) {
	s, err := dataset.FromRows("mem", []string{"drug_name", "drug_class"}, [][]string{
		{"A", "X"}, {"B", "X"},
	})
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.Clusterer = fixedLabels{0, 0}
	e, err := New(context.Background(), s, opts)
	require.NoError(t, err)

	res, err := e.Resolve("a")
	require.NoError(t, err)
	assert.Nil(t, res.DosageStats)
	require.Len(t, res.Similar, 1)
	assert.Nil(t, res.Similar[0].DosageMg)
}

func TestResultJSON(t *testing.T) {
	res, err := sample(t).Resolve("DrugB")
	require.NoError(t, err)
	raw, err := json.Marshal(res)
	require.NoError(t, err)

	s := string(raw)
	assert.True(t, strings.HasPrefix(s, `{"query":"DrugB","fields":{"drug_name":"DrugB","indications":"Pain","side_effects":null,"dosage_mg":20,`), s)
	assert.Contains(t, s, `"clusterId":0`)
	assert.Contains(t, s, `"suggestedLimit":`)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Len(t, generic["similar"], 2)
}

func TestClustersAndCluster(t *testing.T) {
	e := sample(t)

	infos := e.Clusters()
	require.Len(t, infos, 2)
	assert.Equal(t, cluster.Noise, infos[0].ID)
	assert.Equal(t, 2, infos[0].Size)
	assert.Equal(t, 0, infos[1].ID)
	assert.Equal(t, 3, infos[1].Size)
	require.NotNil(t, infos[1].DosageStats)

	d, ok := e.Cluster(0)
	require.True(t, ok)
	assert.Equal(t, []string{"DrugA", "DrugB", "DrugC"}, d.Members)

	_, ok = e.Cluster(42)
	assert.False(t, ok)

	sum := e.Summary()
	assert.Equal(t, 5, sum.Rows)
	assert.Equal(t, 1, sum.Clusters)
	assert.Equal(t, 2, sum.Noise)
	assert.Positive(t, sum.FeatureWidth)
}

func TestNewPropagatesErrors(t *testing.T) {
	s, err := dataset.FromRows("mem", header, [][]string{{"A", "Acme", "1", "X", "Nausea", "Pain"}})
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Clusterer = failingClusterer{}
	_, err = New(context.Background(), s, opts)
	var ce *cluster.ClusteringError
	assert.True(t, errors.As(err, &ce), "got %v", err)
	assert.False(t, s.Labeled())

	opts.Clusterer = fixedLabels{0, 0}
	_, err = New(context.Background(), s, opts)
	var dm *dataset.DimensionMismatchError
	assert.True(t, errors.As(err, &dm), "got %v", err)

	opts.Clusterer = fixedLabels{0}
	_, err = New(context.Background(), s, opts)
	require.NoError(t, err)
	_, err = New(context.Background(), s, opts)
	assert.ErrorIs(t, err, dataset.ErrLabelsAssigned)
}

func TestNewEncodingError(t *testing.T) {
	s, err := dataset.FromRows("mem", []string{"drug_name", "dosage_mg"}, [][]string{{"A", ""}, {"B", ""}})
	require.NoError(t, err)
	_, err = New(context.Background(), s, DefaultOptions())
	var ee *features.EncodingError
	assert.True(t, errors.As(err, &ee), "got %v", err)
}

func TestNewRejectsNonFiniteValues(t *testing.T) {
	s, err := dataset.FromRows("mem", []string{"drug_name", "price_usd"}, [][]string{
		{"a", "1"}, {"b", "inf"}, {"c", "3"},
	})
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.MinSamples = 1
	_, err = New(context.Background(), s, opts)
	var ee *features.EncodingError
	require.True(t, errors.As(err, &ee), "got %v", err)
	assert.Equal(t, "price_usd", ee.Column)
}

func TestNewZeroClusterParams(t *testing.T) {
	rows := [][]string{{"a", "1"}, {"b", "2"}}
	for name, mutate := range map[string]func(*Options){
		"eps":         func(o *Options) { o.Eps = 0 },
		"min samples": func(o *Options) { o.MinSamples = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			s, err := dataset.FromRows("mem", []string{"drug_name", "dosage_mg"}, rows)
			require.NoError(t, err)
			opts := DefaultOptions()
			mutate(&opts)
			_, err = New(context.Background(), s, opts)
			var ce *cluster.ClusteringError
			assert.True(t, errors.As(err, &ce), "got %v", err)
		})
	}
}

func TestInitializeWithDBSCAN(t *testing.T) {
	var b strings.Builder
	b.WriteString("drug_name,dosage_mg,drug_class,side_effects\n")
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&b, "Calmex%d,10,Sedative,Drowsiness\n", i)
	}
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&b, "Heavycin%d,1000,Antibiotic,Rash\n", i)
	}
	path := filepath.Join(t.TempDir(), "drugs.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	opts := DefaultOptions()
	opts.Source = dataset.Source{Path: path}
	opts.Features.Exclude = []string{"drug_name"}
	e, err := Initialize(context.Background(), opts)
	require.NoError(t, err)

	sum := e.Summary()
	assert.Equal(t, 12, sum.Rows)
	assert.Equal(t, 2, sum.Clusters)
	assert.Equal(t, 0, sum.Noise)

	res, err := e.Resolve("heavycin3")
	require.NoError(t, err)
	assert.NotEqual(t, cluster.Noise, res.ClusterID)
	var names []string
	for _, d := range res.Similar {
		names = append(names, d.DrugName)
	}
	assert.Equal(t, []string{"Heavycin0", "Heavycin1", "Heavycin2", "Heavycin4", "Heavycin5"}, names)

	calm, err := e.Resolve("calmex0")
	require.NoError(t, err)
	assert.NotEqual(t, res.ClusterID, calm.ClusterID)
	require.NotNil(t, res.DosageStats)
	assert.Equal(t, 1000.0, res.DosageStats.Mean)
	assert.Equal(t, 0.0, res.DosageStats.Std)
}

func TestInitializeMissingSource(t *testing.T) {
	opts := DefaultOptions()
	opts.Source = dataset.Source{Path: filepath.Join(t.TempDir(), "absent.csv")}
	_, err := Initialize(context.Background(), opts)
	var dse *dataset.DataSourceError
	assert.True(t, errors.As(err, &dse), "got %v", err)
}

func TestConcurrentResolve(t *testing.T) {
	e := sample(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := []string{"druga", "drugb", "lonely", "zzz"}[i%4]
			_, _ = e.Resolve(q)
		}(i)
	}
	wg.Wait()

	res, err := e.Resolve("drugc")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ClusterID)
}

func TestResolveWithoutDrugNameColumn(t *testing.T) {
	s, err := dataset.FromRows("mem", []string{"dosage_mg", "drug_class"}, [][]string{
		{"10", "X"}, {"20", "Y"},
	})
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.Clusterer = fixedLabels{0, 0}
	e, err := New(context.Background(), s, opts)
	require.NoError(t, err)

	_, err = e.Resolve("x")
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf), "got %v", err)
}
