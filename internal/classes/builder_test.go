package classes

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	dclasses "glyphstat/domain/classes"
	"glyphstat/domain/core"
	"glyphstat/domain/corpus"
	"glyphstat/domain/morphology"
)

// syntheticCorpus builds 200 three-token lines: a qo+y opener, a ch+dy or
// sh+dy middle (identical behavior), and an ok+aiin closer. Eight lines carry
// the rare _+y signature in the middle slot.
func syntheticCorpus(t *testing.T) (*corpus.Corpus, []morphology.Decomposition) {
	t.Helper()
	var records []corpus.Record
	for i := 0; i < 200; i++ {
		middle := "shedy"
		switch {
		case i%25 == 0:
			middle = "oly"
		case i%2 == 0:
			middle = "chedy"
		}
		folio := fmt.Sprintf("f%d", i/50)
		line := fmt.Sprint(i)
		for p, tok := range []string{"qoey", middle, "okeaiin"} {
			records = append(records, corpus.Record{Text: tok, LineID: line, FolioID: folio, PositionInLine: p})
		}
	}
	c, err := corpus.New(records)
	require.NoError(t, err)

	inv, err := morphology.NewInventory([]morphology.Component{
		{Kind: morphology.KindPrefix, Text: "ch"},
		{Kind: morphology.KindPrefix, Text: "sh"},
		{Kind: morphology.KindPrefix, Text: "qo"},
		{Kind: morphology.KindPrefix, Text: "ok"},
		{Kind: morphology.KindSuffix, Text: "dy"},
		{Kind: morphology.KindSuffix, Text: "y"},
		{Kind: morphology.KindSuffix, Text: "aiin"},
	})
	require.NoError(t, err)
	decs, err := morphology.NewDecomposer(inv).DecomposeAll(c)
	require.NoError(t, err)
	return c, decs
}

func TestBuild_MergesHomogeneousSignatures(t *testing.T) {
	c, decs := syntheticCorpus(t)
	a, err := NewBuilder(DefaultConfig(), zap.NewNop()).Build(context.Background(), c, decs)
	require.NoError(t, err)

	require.Equal(t, 4, a.Len())
	ch, _ := a.ClassOf("ch+dy")
	sh, _ := a.ClassOf("sh+dy")
	qo, _ := a.ClassOf("qo+y")
	ok, _ := a.ClassOf("ok+aiin")
	rare, _ := a.ClassOf("_+y")

	assert.Equal(t, ch, sh, "behaviorally identical signatures share a class")
	assert.NotEqual(t, ch, qo)
	assert.NotEqual(t, qo, ok)
	assert.Equal(t, 0, ok, "ties in frequency break lexically")

	merged, err := a.Class(ch)
	require.NoError(t, err)
	assert.Equal(t, 192, merged.Observations)
	assert.False(t, merged.LowConfidence)

	low, err := a.Class(rare)
	require.NoError(t, err)
	assert.True(t, low.LowConfidence)
	assert.Equal(t, 8, low.Observations)
	assert.Equal(t, []string{"_+y"}, low.Signatures)
}

func TestBuild_PartitionCoversEveryToken(t *testing.T) {
	c, decs := syntheticCorpus(t)
	a, err := NewBuilder(DefaultConfig(), nil).Build(context.Background(), c, decs)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, cls := range a.Classes() {
		for _, s := range cls.Signatures {
			seen[s]++
		}
	}
	for _, s := range seen {
		assert.Equal(t, 1, s, "signature assigned more than once")
	}
	total := 0
	for _, d := range decs {
		_, ok := a.ClassOf(d.Signature())
		assert.True(t, ok, "token signature %s unassigned", d.Signature())
	}
	for _, cls := range a.Classes() {
		total += cls.Observations
	}
	assert.Equal(t, c.Len(), total)
}

func TestBuild_Deterministic(t *testing.T) {
	c, decs := syntheticCorpus(t)
	b := NewBuilder(DefaultConfig(), nil)

	first, err := b.Build(context.Background(), c, decs)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), c, decs)
	require.NoError(t, err)
	assert.Equal(t, first.Version(), second.Version())
	assert.Equal(t, first.Macro(), second.Macro())
}

func TestBuild_LowConfidenceNeverMerges(t *testing.T) {
	c, decs := syntheticCorpus(t)
	cfg := DefaultConfig()
	cfg.MinSampleSize = 150

	a, err := NewBuilder(cfg, nil).Build(context.Background(), c, decs)
	require.NoError(t, err)

	ch, _ := a.ClassOf("ch+dy")
	sh, _ := a.ClassOf("sh+dy")
	assert.NotEqual(t, ch, sh)
	assert.Equal(t, 5, a.Len())
	assert.Nil(t, a.Macro(), "two eligible classes cannot be clustered")
}

func TestBuild_MacroStatesExcludeLowConfidence(t *testing.T) {
	c, decs := syntheticCorpus(t)
	for _, method := range []string{MethodKMeans, MethodAverageLinkage} {
		t.Run(method, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MacroMethod = method
			a, err := NewBuilder(cfg, nil).Build(context.Background(), c, decs)
			require.NoError(t, err)

			macro := a.Macro()
			require.NotNil(t, macro)
			assert.Equal(t, 2, macro.K)
			assert.Contains(t, macro.Scores, 2)

			rare, _ := a.ClassOf("_+y")
			assert.Equal(t, -1, macro.StateOf[rare])
			members := 0
			for _, st := range macro.States {
				members += len(st.Classes)
			}
			assert.Equal(t, 3, members)
		})
	}
}

func TestBuild_RejectsMismatchedInput(t *testing.T) {
	c, decs := syntheticCorpus(t)
	_, err := NewBuilder(DefaultConfig(), nil).Build(context.Background(), c, decs[:10])
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestAssignRole_PriorityOrder(t *testing.T) {
	tests := []struct {
		name string
		agg  classAggregate
		want dclasses.Role
	}{
		{"frequent wins over position", classAggregate{count: 200, meanPosition: 0.0}, dclasses.RoleFrequent},
		{"line initial", classAggregate{count: 10, meanPosition: 0.1}, dclasses.RoleControl},
		{"self transition", classAggregate{count: 10, meanPosition: 0.5, selfTransition: 0.4, outgoing: 8}, dclasses.RoleFlow},
		{"line final", classAggregate{count: 10, meanPosition: 0.9, outgoing: 2}, dclasses.RoleEnergy},
		{"otherwise", classAggregate{count: 10, meanPosition: 0.5, outgoing: 8}, dclasses.RoleAuxiliary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, assignRole(tt.agg, 1000))
		})
	}
}

func TestSilhouette_PrefersSeparatedClusters(t *testing.T) {
	points := [][]float64{{0, 0}, {0.1, 0}, {0, 0.1}, {5, 5}, {5.1, 5}, {5, 5.1}}
	good := silhouette(points, []int{0, 0, 0, 1, 1, 1}, 2)
	bad := silhouette(points, []int{0, 1, 0, 1, 0, 1}, 2)
	assert.Greater(t, good, 0.9)
	assert.Less(t, bad, good)

	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, canonical(kMeansPlusPlus(points, 2, 7)))
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, canonical(averageLinkage(points, 2)))
}

func TestLloyd_EmptyClustersTakeDistinctPoints(t *testing.T) {
	a, b := []float64{0, 0}, []float64{5, 5}
	points := [][]float64{a, a, a, a, b}
	centroids := [][]float64{{0, 0}, {0, 0}, {0, 0}}

	labels, _ := lloyd(points, centroids)
	assert.Equal(t, 3, distinctClusters(canonical(labels)))

	same := [][]float64{a, a, a}
	labels = kMeansPlusPlus(same, 2, 7)
	assert.Equal(t, 2, distinctClusters(canonical(labels)))
}

func TestDistinctClusters(t *testing.T) {
	assert.Equal(t, 0, distinctClusters(nil))
	assert.Equal(t, 1, distinctClusters([]int{0, 0, 0}))
	assert.Equal(t, 3, distinctClusters(canonical([]int{4, 4, 1, 9})))
}
