package engine

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"glyphstat/domain/classes"
	"glyphstat/domain/core"
	"glyphstat/domain/corpus"
	"glyphstat/domain/morphology"
	"glyphstat/internal/logging"
)

// Options tunes an engine.
type Options struct {
	Workers int
	Logger  *zap.Logger
}

// StatsEngine computes corpus statistics over one (corpus, decompositions,
// class assignment) snapshot. Results are cached by content hash; the cache
// is the only mutable state.
type StatsEngine struct {
	corpus     *corpus.Corpus
	decs       []morphology.Decomposition
	assignment *classes.Assignment
	workers    int
	logger     *zap.Logger

	classOf []int
	vocab   map[Feature]*vocabulary

	mu    sync.Mutex
	cache map[core.Hash]interface{}
}

type vocabulary struct {
	names []string
	codes []int
}

// NewStatsEngine binds an engine to a snapshot. Every decomposition signature
// must have a class.
func NewStatsEngine(c *corpus.Corpus, decs []morphology.Decomposition, a *classes.Assignment, opts Options) (*StatsEngine, error) {
	if len(decs) != c.Len() {
		return nil, fmt.Errorf("%w: %d decompositions for %d tokens", core.ErrInvalidInput, len(decs), c.Len())
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	e := &StatsEngine{
		corpus:     c,
		decs:       decs,
		assignment: a,
		workers:    opts.Workers,
		logger:     logging.OrNop(opts.Logger).Named("engine"),
		classOf:    make([]int, len(decs)),
		vocab:      make(map[Feature]*vocabulary),
		cache:      make(map[core.Hash]interface{}),
	}
	for i, d := range decs {
		id, ok := a.ClassOf(d.Signature())
		if !ok {
			return nil, fmt.Errorf("%w: token %d signature %s", core.ErrClassNotFound, i, d.Signature())
		}
		e.classOf[i] = id
	}
	e.vocab[FeaturePrefix] = buildVocabulary(decs, func(d morphology.Decomposition) string { return d.Prefix })
	e.vocab[FeatureSuffix] = buildVocabulary(decs, func(d morphology.Decomposition) string { return d.Suffix })
	e.vocab[FeatureMiddle] = buildVocabulary(decs, func(d morphology.Decomposition) string { return d.Middle })
	return e, nil
}

func buildVocabulary(decs []morphology.Decomposition, part func(morphology.Decomposition) string) *vocabulary {
	set := make(map[string]struct{})
	for _, d := range decs {
		set[part(d)] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for s := range set {
		names = append(names, s)
	}
	sort.Strings(names)
	index := make(map[string]int, len(names))
	for i, s := range names {
		index[s] = i
	}
	codes := make([]int, len(decs))
	for i, d := range decs {
		codes[i] = index[part(d)]
	}
	return &vocabulary{names: names, codes: codes}
}

// Corpus returns the bound corpus.
func (e *StatsEngine) Corpus() *corpus.Corpus { return e.corpus }

// Assignment returns the bound class assignment.
func (e *StatsEngine) Assignment() *classes.Assignment { return e.assignment }

// ClassLabels returns the class id of every token.
func (e *StatsEngine) ClassLabels() []int { return append([]int(nil), e.classOf...) }

// ClassStream returns the corpus labeled by class.
func (e *StatsEngine) ClassStream() (*corpus.Stream, error) {
	return e.corpus.Stream(e.classOf, e.assignment.Len())
}

// MiddleStream returns the corpus labeled by middle.
func (e *StatsEngine) MiddleStream() (*corpus.Stream, error) {
	v := e.vocab[FeatureMiddle]
	return e.corpus.Stream(v.codes, len(v.names))
}

// Stream returns the corpus labeled at the given level.
func (e *StatsEngine) Stream(level Level) (*corpus.Stream, error) {
	switch level {
	case LevelClass, "":
		return e.ClassStream()
	case LevelMiddle:
		return e.MiddleStream()
	default:
		return nil, core.NewValidationError("level", fmt.Sprintf("unknown level %q", level))
	}
}

// LowConfidenceClasses lists the ids of classes flagged LOW_CONFIDENCE.
func (e *StatsEngine) LowConfidenceClasses() []int {
	var ids []int
	for _, c := range e.assignment.Classes() {
		if c.LowConfidence {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// PooledStream labels the corpus at level with every token of a
// low-confidence class folded into one shared label, numbered last. The
// remaining labels keep their order and are renumbered densely. It also
// returns the pooled class ids, nil when every class is confident.
func (e *StatsEngine) PooledStream(level Level) (*corpus.Stream, []int, error) {
	base, err := e.Stream(level)
	if err != nil {
		return nil, nil, err
	}
	pooled := e.LowConfidenceClasses()
	if len(pooled) == 0 {
		return base, nil, nil
	}
	low := make(map[int]bool, len(pooled))
	for _, id := range pooled {
		low[id] = true
	}

	used := make([]bool, base.NumLabels)
	for i, l := range base.Labels {
		if !low[e.classOf[i]] {
			used[l] = true
		}
	}
	remap := make([]int, base.NumLabels)
	next := 0
	for code, ok := range used {
		if ok {
			remap[code] = next
			next++
		}
	}
	labels := make([]int, len(base.Labels))
	for i, l := range base.Labels {
		if low[e.classOf[i]] {
			labels[i] = next
		} else {
			labels[i] = remap[l]
		}
	}
	out := base.WithLabels(labels)
	out.NumLabels = next + 1
	if err := out.Validate(); err != nil {
		return nil, nil, err
	}
	return out, pooled, nil
}

func (e *StatsEngine) cacheKey(op string, params ...int64) core.Hash {
	h := core.NewHasher("engine/v1").
		Field(string(e.corpus.Version())).
		Field(string(e.assignment.Version())).
		Field(op)
	for _, p := range params {
		h.Int(p)
	}
	return h.Sum()
}

func cached[T any](e *StatsEngine, key core.Hash, build func() (T, error)) (T, error) {
	e.mu.Lock()
	if v, ok := e.cache[key]; ok {
		e.mu.Unlock()
		return v.(T), nil
	}
	e.mu.Unlock()

	v, err := build()
	if err != nil {
		var zero T
		return zero, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.cache[key]; ok {
		return prev.(T), nil
	}
	e.cache[key] = v
	e.logger.Debug("cached result", zap.String("key", key.Short()))
	return v, nil
}
