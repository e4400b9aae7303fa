package classes

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"glyphstat/adapters/rng"
	dclasses "glyphstat/domain/classes"
	"glyphstat/domain/core"
	"glyphstat/domain/corpus"
)

// Macro-state clustering methods.
const (
	MethodKMeans         = "kmeans"
	MethodAverageLinkage = "average_linkage"
)

// ForbiddenExpected is the minimum expected count for an unobserved
// transition to count as forbidden.
const ForbiddenExpected = 5.0

const kmeansRestarts = 4

// macroStates clusters the classes that are not LOW_CONFIDENCE. It returns nil
// when fewer than three classes are eligible, since silhouette needs k <= n-1.
func (b *Builder) macroStates(ctx context.Context, s *corpus.Stream, cls []dclasses.Class) (*dclasses.MacroPartition, error) {
	var eligible []int
	for _, c := range cls {
		if !c.LowConfidence {
			eligible = append(eligible, c.ID)
		}
	}
	kMax := min(b.cfg.MacroKMax, len(eligible)-1)
	if len(eligible) < 3 || kMax < b.cfg.MacroKMin {
		b.logger.Info("skipping macro-states", zap.Int("eligible_classes", len(eligible)))
		return nil, nil
	}

	points, err := classFeatures(s, cls, eligible)
	if err != nil {
		return nil, err
	}

	part := &dclasses.MacroPartition{
		Method:     b.cfg.MacroMethod,
		Scores:     make(map[int]float64),
		Silhouette: math.Inf(-1),
	}
	var bestLabels []int
	for k := b.cfg.MacroKMin; k <= kMax; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var labels []int
		switch b.cfg.MacroMethod {
		case MethodKMeans:
			labels = kMeansPlusPlus(points, k, b.cfg.Seed)
		case MethodAverageLinkage:
			labels = averageLinkage(points, k)
		default:
			return nil, core.NewValidationError("macro_method", "unknown method "+b.cfg.MacroMethod)
		}
		labels = canonical(labels)
		if n := distinctClusters(labels); n < k {
			b.logger.Debug("skipping degenerate clustering", zap.Int("k", k), zap.Int("clusters", n))
			continue
		}
		score := silhouette(points, labels, k)
		part.Scores[k] = score
		// strict comparison keeps the smaller k on ties
		if score > part.Silhouette {
			part.Silhouette, part.K, bestLabels = score, k, labels
		}
	}

	if bestLabels == nil {
		b.logger.Info("skipping macro-states", zap.String("reason", "no k yields distinct clusters"))
		return nil, nil
	}
	part.StateOf = make([]int, len(cls))
	for i := range part.StateOf {
		part.StateOf[i] = -1
	}
	part.States = make([]dclasses.MacroState, part.K)
	for i := range part.States {
		part.States[i].ID = i
	}
	for i, id := range eligible {
		st := bestLabels[i]
		part.StateOf[id] = st
		part.States[st].Classes = append(part.States[st].Classes, id)
	}
	return part, nil
}

// classFeatures builds z-scored (self-transition, hazard adjacency, mean
// position) vectors for the eligible classes.
func classFeatures(s *corpus.Stream, cls []dclasses.Class, eligible []int) ([][]float64, error) {
	k := s.NumLabels
	counts := make([][]float64, k)
	for i := range counts {
		counts[i] = make([]float64, k)
	}
	s.EachTransition(func(a, b int) { counts[a][b]++ })

	rowSum := make([]float64, k)
	colSum := make([]float64, k)
	total := 0.0
	for i := range counts {
		for j, v := range counts[i] {
			rowSum[i] += v
			colSum[j] += v
			total += v
		}
	}
	forbidden := func(i, j int) bool {
		if total == 0 {
			return false
		}
		return counts[i][j] == 0 && rowSum[i]*colSum[j]/total >= ForbiddenExpected
	}

	raw := make([][]float64, 3)
	for _, id := range eligible {
		hazard := 0
		for _, other := range eligible {
			if other != id && (forbidden(id, other) || forbidden(other, id)) {
				hazard++
			}
		}
		raw[0] = append(raw[0], cls[id].SelfTransition)
		raw[1] = append(raw[1], float64(hazard)/float64(len(eligible)-1))
		raw[2] = append(raw[2], cls[id].MeanPosition)
	}

	points := make([][]float64, len(eligible))
	for i := range points {
		points[i] = make([]float64, 3)
	}
	for f, col := range raw {
		mean, err := stats.Mean(col)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", f, err)
		}
		sd, err := stats.StandardDeviationPopulation(col)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", f, err)
		}
		for i, v := range col {
			if sd > 0 {
				points[i][f] = (v - mean) / sd
			}
		}
	}
	return points, nil
}

// kMeansPlusPlus runs seeded k-means++ with a few restarts and keeps the
// lowest-inertia labeling.
func kMeansPlusPlus(points [][]float64, k int, seed int64) []int {
	var best []int
	bestInertia := math.Inf(1)
	for restart := 0; restart < kmeansRestarts; restart++ {
		src := rand.New(rand.NewSource(rng.DeriveSeed(seed, "kmeans", fmt.Sprint(k), fmt.Sprint(restart))))
		labels, inertia := lloyd(points, seedCentroids(points, k, src))
		if inertia < bestInertia {
			best, bestInertia = labels, inertia
		}
	}
	return best
}

func seedCentroids(points [][]float64, k int, src *rand.Rand) [][]float64 {
	centroids := [][]float64{append([]float64(nil), points[src.Intn(len(points))]...)}
	d2 := make([]float64, len(points))
	for len(centroids) < k {
		sum := 0.0
		for i, p := range points {
			d2[i] = math.Inf(1)
			for _, c := range centroids {
				d := floats.Distance(p, c, 2)
				d2[i] = math.Min(d2[i], d*d)
			}
			sum += d2[i]
		}
		pick := len(points) - 1
		if sum > 0 {
			target := src.Float64() * sum
			for i, d := range d2 {
				target -= d
				if target <= 0 {
					pick = i
					break
				}
			}
		} else {
			pick = src.Intn(len(points))
		}
		centroids = append(centroids, append([]float64(nil), points[pick]...))
	}
	return centroids
}

func lloyd(points [][]float64, centroids [][]float64) ([]int, float64) {
	k := len(centroids)
	labels := make([]int, len(points))
	for iter := 0; iter < 100; iter++ {
		changed := iter == 0
		for i, p := range points {
			best, bestD := 0, math.Inf(1)
			for c, cen := range centroids {
				if d := floats.Distance(p, cen, 2); d < bestD {
					best, bestD = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		sizes := make([]int, k)
		for _, l := range labels {
			sizes[l]++
		}
		for c := range sizes {
			if sizes[c] > 0 {
				continue
			}
			// an empty cluster takes the farthest point of a cluster that can spare one
			far, farD := -1, -1.0
			for i, p := range points {
				if sizes[labels[i]] < 2 {
					continue
				}
				if d := floats.Distance(p, centroids[labels[i]], 2); d > farD {
					far, farD = i, d
				}
			}
			if far < 0 {
				break
			}
			sizes[labels[far]]--
			labels[far] = c
			sizes[c] = 1
		}
		next := make([][]float64, k)
		for c := range next {
			next[c] = make([]float64, len(points[0]))
		}
		for i, p := range points {
			floats.Add(next[labels[i]], p)
		}
		for c := range next {
			if sizes[c] > 0 {
				floats.Scale(1/float64(sizes[c]), next[c])
			}
		}
		centroids = next
	}

	inertia := 0.0
	for i, p := range points {
		d := floats.Distance(p, centroids[labels[i]], 2)
		inertia += d * d
	}
	return labels, inertia
}

// averageLinkage merges the two closest clusters by mean pairwise distance
// until k remain. Ties merge the lowest-index pair.
func averageLinkage(points [][]float64, k int) []int {
	clusters := make([][]int, len(points))
	for i := range clusters {
		clusters[i] = []int{i}
	}
	for len(clusters) > k {
		bi, bj, bd := 0, 1, math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if d := meanDistance(points, clusters[i], clusters[j]); d < bd {
					bi, bj, bd = i, j, d
				}
			}
		}
		clusters[bi] = append(clusters[bi], clusters[bj]...)
		clusters = append(clusters[:bj], clusters[bj+1:]...)
	}
	labels := make([]int, len(points))
	for c, members := range clusters {
		for _, m := range members {
			labels[m] = c
		}
	}
	return labels
}

func meanDistance(points [][]float64, a, b []int) float64 {
	sum := 0.0
	for _, i := range a {
		for _, j := range b {
			sum += floats.Distance(points[i], points[j], 2)
		}
	}
	return sum / float64(len(a)*len(b))
}

// silhouette is the mean silhouette coefficient; members of singleton
// clusters score 0.
func silhouette(points [][]float64, labels []int, k int) float64 {
	n := len(points)
	total := 0.0
	for i := 0; i < n; i++ {
		sums := make([]float64, k)
		sizes := make([]int, k)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			sums[labels[j]] += floats.Distance(points[i], points[j], 2)
			sizes[labels[j]]++
		}
		own := labels[i]
		if sizes[own] == 0 {
			continue
		}
		a := sums[own] / float64(sizes[own])
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c != own && sizes[c] > 0 {
				b = math.Min(b, sums[c]/float64(sizes[c]))
			}
		}
		if math.IsInf(b, 1) {
			continue
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n)
}

// canonical relabels clusters in order of first appearance.
func canonical(labels []int) []int {
	remap := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		if _, ok := remap[l]; !ok {
			remap[l] = len(remap)
		}
		out[i] = remap[l]
	}
	return out
}

// distinctClusters counts the labels of a canonical labeling.
func distinctClusters(labels []int) int {
	n := 0
	for _, l := range labels {
		n = max(n, l+1)
	}
	return n
}
