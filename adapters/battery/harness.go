// Package battery runs declarative hypothesis specs through the null model
// and referee and records every outcome in the verdict ledger.
package battery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"glyphstat/adapters/nullmodel"
	"glyphstat/adapters/rng"
	"glyphstat/adapters/stats/engine"
	"glyphstat/domain/core"
	"glyphstat/domain/corpus"
	"glyphstat/domain/verdict"
	"glyphstat/internal/logging"
	"glyphstat/internal/referee"
	"glyphstat/ports"
)

// Defaults fill fields a hypothesis spec leaves empty.
type Defaults struct {
	NullMethod    verdict.NullMethod
	Samples       int
	MaxSamples    int
	BatchSize     int
	Tolerance     float64
	Threshold     float64
	Correction    verdict.Correction
	MinSampleSize int
	Seed          int64
	Workers       int
	CodeVersion   string
}

// DefaultDefaults mirrors the referee standards.
func DefaultDefaults() Defaults {
	return Defaults{
		NullMethod:    verdict.NullShuffle,
		Samples:       referee.DEFAULT_PERMUTATIONS,
		MaxSamples:    nullmodel.DefaultMaxSamples,
		BatchSize:     nullmodel.DefaultBatchSize,
		Tolerance:     referee.PRECISION_TOLERANCE,
		Threshold:     referee.DEFAULT_ALPHA,
		Correction:    verdict.CorrectionBonferroni,
		MinSampleSize: referee.DEFAULT_MIN_SAMPLE_SIZE,
		Seed:          42,
		Workers:       1,
		CodeVersion:   "dev",
	}
}

// Harness evaluates hypotheses against one engine snapshot.
type Harness struct {
	engine    *engine.StatsEngine
	generator *nullmodel.Generator
	referee   *referee.Referee
	ledger    ports.LedgerPort
	inventory core.InventoryVersion
	defaults  Defaults
	logger    *zap.Logger

	mu         sync.Mutex
	registered map[core.HypothesisID]verdict.Registration
}

var _ ports.BatteryPort = (*Harness)(nil)

// NewHarness wires a harness. inventory is recorded in every verdict's
// provenance.
func NewHarness(eng *engine.StatsEngine, gen *nullmodel.Generator, ref *referee.Referee, ledger ports.LedgerPort,
	inventory core.InventoryVersion, defaults Defaults, logger *zap.Logger) *Harness {
	return &Harness{
		engine:     eng,
		generator:  gen,
		referee:    ref,
		ledger:     ledger,
		inventory:  inventory,
		defaults:   defaults,
		logger:     logging.OrNop(logger).Named("battery"),
		registered: make(map[core.HypothesisID]verdict.Registration),
	}
}

func (h *Harness) withDefaults(spec ports.HypothesisSpec) ports.HypothesisSpec {
	d := h.defaults
	if spec.NullMethod == "" {
		spec.NullMethod = d.NullMethod
	}
	if spec.Statistic == "" && spec.NullMethod == verdict.NullClosedForm {
		spec.Statistic = spec.Test
	}
	if spec.Samples == 0 && (spec.NullMethod.IsResampling() || permutesClosedForm(spec)) {
		spec.Samples = d.Samples
	}
	if spec.Direction == "" {
		spec.Direction = verdict.DirectionGreater
	}
	if spec.Threshold == 0 {
		spec.Threshold = d.Threshold
	}
	if spec.FamilySize == 0 {
		spec.FamilySize = 1
	}
	if spec.Correction == "" {
		spec.Correction = d.Correction
	}
	if spec.MinSampleSize == 0 {
		spec.MinSampleSize = d.MinSampleSize
	}
	if spec.Level == "" {
		spec.Level = string(engine.LevelClass)
	}
	return spec
}

// permutesClosedForm reports whether a closed-form test draws its p-value
// from seeded permutations.
func permutesClosedForm(spec ports.HypothesisSpec) bool {
	return spec.NullMethod == verdict.NullClosedForm && spec.Test == "adjusted_rand"
}

func (h *Harness) seedFor(spec ports.HypothesisSpec) int64 {
	if spec.Seed != nil {
		return *spec.Seed
	}
	return rng.DeriveSeed(h.defaults.Seed, string(spec.ID))
}

// Register freezes a spec's protocol before any data is examined. A later
// Run of the same hypothesis must present the identical protocol.
func (h *Harness) Register(spec ports.HypothesisSpec) error {
	spec = h.withDefaults(spec)
	reg := spec.Registration()
	if err := reg.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.registered[spec.ID]; ok && prev.Fingerprint() != reg.Fingerprint() {
		return core.NewProtocolViolation(spec.ID, "registered twice with different protocols")
	}
	h.registered[spec.ID] = reg
	return nil
}

// draft opens a claim from the frozen registration when there is one, so
// that drift between registration and run is caught at evaluation.
func (h *Harness) draft(spec ports.HypothesisSpec) (*verdict.Claim, error) {
	h.mu.Lock()
	reg, ok := h.registered[spec.ID]
	h.mu.Unlock()
	if !ok {
		reg = spec.Registration()
	}
	return verdict.Draft(reg)
}

// Run evaluates one hypothesis and appends its verdict. A hypothesis with a
// recorded verdict must be re-run through Rerun.
func (h *Harness) Run(ctx context.Context, spec ports.HypothesisSpec) (*verdict.Record, error) {
	spec = h.withDefaults(spec)
	if prev, err := h.ledger.Latest(ctx, spec.ID); err == nil {
		if prev.Provenance.RegistrationHash != spec.Registration().Fingerprint() {
			return nil, core.NewProtocolViolation(spec.ID, "protocol differs from the recorded verdict")
		}
		return nil, fmt.Errorf("%w: hypothesis %s already has verdict %s; use rerun to supersede", core.ErrRecordExists, spec.ID, prev.ID)
	} else if !core.IsNotFoundError(err) {
		return nil, err
	}

	rec, runErr := h.evaluate(ctx, spec)
	if rec == nil {
		return nil, runErr
	}
	if err := h.ledger.Append(context.WithoutCancel(ctx), rec); err != nil {
		return nil, err
	}
	return rec, runErr
}

// Rerun evaluates a hypothesis again under its recorded protocol against the
// current snapshot and supersedes the latest verdict.
func (h *Harness) Rerun(ctx context.Context, spec ports.HypothesisSpec, note string) (*verdict.Record, error) {
	if note == "" {
		return nil, core.NewValidationError("rerun", "a note is required to supersede a verdict")
	}
	spec = h.withDefaults(spec)
	prev, err := h.ledger.Latest(ctx, spec.ID)
	if err != nil {
		return nil, err
	}
	if prev.Provenance.RegistrationHash != spec.Registration().Fingerprint() {
		return nil, core.NewProtocolViolation(spec.ID, "protocol differs from the recorded verdict")
	}
	rec, runErr := h.evaluate(ctx, spec)
	if rec == nil {
		return nil, runErr
	}
	rec.FamilyID = prev.FamilyID
	if err := h.ledger.Supersede(context.WithoutCancel(ctx), prev.ID, rec, note); err != nil {
		return nil, err
	}
	return rec, runErr
}

// evaluate produces a record without storing it. A cancelled resampling run
// yields a PARTIAL record together with the context error.
func (h *Harness) evaluate(ctx context.Context, spec ports.HypothesisSpec) (*verdict.Record, error) {
	claim, err := h.draft(spec)
	if err != nil {
		return nil, err
	}
	prov := h.provenance(spec)

	// low-confidence classes never enter a test as labels of their own
	stream, pooled, err := h.engine.PooledStream(engine.Level(spec.Level))
	if err != nil {
		return nil, err
	}
	prov.SampleSize = stream.Len()
	prov.PooledClasses = pooled

	if err := h.checkSupport(spec, stream); err != nil {
		if !core.IsInsufficientSample(err) {
			return nil, err
		}
		return h.insufficient(claim, spec, err, prov)
	}

	var ev referee.Evidence
	var runErr error
	if spec.NullMethod == verdict.NullClosedForm {
		ev, err = h.closedForm(spec, stream)
		if core.IsInsufficientSample(err) {
			return h.insufficient(claim, spec, err, prov)
		}
		if err != nil {
			return nil, err
		}
		n := ev.Provenance.SampleSize
		ev.Provenance = prov
		ev.Provenance.SampleSize = n
		if permutesClosedForm(spec) {
			ev.Provenance.SamplesUsed = spec.Samples
		}
	} else {
		ev, runErr = h.resampled(ctx, spec, stream, prov)
		if runErr != nil && !ev.Partial {
			return nil, runErr
		}
	}

	rec, err := h.referee.Evaluate(claim, spec.Registration(), ev)
	if err != nil {
		return nil, err
	}
	rec.FamilyID = spec.FamilyID
	if len(pooled) > 0 {
		rec.Reason = fmt.Sprintf("%s; low-confidence classes %v pooled into one label", rec.Reason, pooled)
	}
	return rec, runErr
}

func (h *Harness) insufficient(claim *verdict.Claim, spec ports.HypothesisSpec, cause error, prov verdict.Provenance) (*verdict.Record, error) {
	rec, err := h.referee.Insufficient(claim, cause, prov)
	if err != nil {
		return nil, err
	}
	rec.FamilyID = spec.FamilyID
	return rec, nil
}

func (h *Harness) provenance(spec ports.HypothesisSpec) verdict.Provenance {
	prov := verdict.Provenance{
		NullMethod:       spec.NullMethod,
		SamplesRequested: spec.Samples,
		CorpusVersion:    h.engine.Corpus().Version(),
		InventoryVersion: h.inventory,
		ClassVersion:     h.engine.Assignment().Version(),
		CodeVersion:      h.defaults.CodeVersion,
	}
	if spec.NullMethod.IsResampling() || permutesClosedForm(spec) {
		prov.Seed = h.seedFor(spec)
	}
	return prov
}

// checkSupport enforces the observation floor on the stream and on every
// class the test reads.
func (h *Harness) checkSupport(spec ports.HypothesisSpec, stream *corpus.Stream) error {
	if stream.Len() < spec.MinSampleSize {
		return &core.InsufficientSampleError{Subject: "corpus", Observed: stream.Len(), Required: spec.MinSampleSize}
	}
	for _, id := range spec.Classes {
		c, err := h.engine.Assignment().Class(id)
		if err != nil {
			return err
		}
		if c.Observations < spec.MinSampleSize {
			return &core.InsufficientSampleError{
				Subject:  fmt.Sprintf("class %d", id),
				Observed: c.Observations,
				Required: spec.MinSampleSize,
			}
		}
	}
	return nil
}

func (h *Harness) resampled(ctx context.Context, spec ports.HypothesisSpec, stream *corpus.Stream, prov verdict.Provenance) (referee.Evidence, error) {
	statistic, err := engine.LookupStatistic(spec.Statistic)
	if err != nil {
		return referee.Evidence{}, err
	}
	observed, err := statistic(stream)
	if err != nil {
		return referee.Evidence{}, err
	}
	corrected, err := referee.CorrectedAlpha(spec.Correction, spec.Threshold, spec.FamilySize)
	if err != nil {
		return referee.Evidence{}, err
	}

	req := nullmodel.Request{
		Method:     spec.NullMethod,
		Samples:    spec.Samples,
		Seed:       prov.Seed,
		MaxSamples: h.defaults.MaxSamples,
		BatchSize:  h.defaults.BatchSize,
		Tolerance:  h.defaults.Tolerance,
		Observed:   observed,
		Direction:  spec.Direction,
		NullValue:  spec.NullValue,
		Alpha:      corrected,
	}
	dist, genErr := h.generator.Generate(ctx, statistic, stream, req)
	if dist == nil {
		return referee.Evidence{}, genErr
	}

	opposite := req
	opposite.Direction = spec.Direction.Opposite()
	summary := dist.Summary()
	prov.SamplesUsed = dist.Used()

	ev := referee.Evidence{
		Observed:       observed,
		PValue:         req.PValue(dist),
		OppositePValue: opposite.PValue(dist),
		Null:           &summary,
		Provenance:     prov,
		Partial:        dist.Partial,
	}
	if spec.NullMethod == verdict.NullBlockBootstrap {
		mean, _ := stats.Mean(dist.Samples)
		ev.EffectSize = mean - spec.NullValue
		ev.EffectSizeName = "shift_from_null"
	} else {
		ev.EffectSize = dist.ZScore(observed)
		ev.EffectSizeName = "z"
	}
	if math.IsNaN(ev.PValue) {
		return referee.Evidence{}, fmt.Errorf("%w: p-value is NaN", core.ErrNormalization)
	}
	return ev, genErr
}

// closedForm builds the sample a closed-form test reads: the listed classes'
// line positions, the macro-state partition, or the within-line transitions
// of stream.
func (h *Harness) closedForm(spec ports.HypothesisSpec, stream *corpus.Stream) (referee.Evidence, error) {
	test, err := referee.GetTestFactory(spec.Test)
	if err != nil {
		return referee.Evidence{}, err
	}
	ids := spec.Classes
	if len(ids) == 0 {
		for _, c := range h.engine.Assignment().Classes() {
			if !c.LowConfidence {
				ids = append(ids, c.ID)
			}
		}
	}

	var sample referee.Sample
	switch spec.Test {
	case "chi_square":
		sample.Table, err = h.engine.PositionTable(ids, engine.PositionBins)
	case "fisher_exact":
		if len(ids) != 2 {
			return referee.Evidence{}, core.NewValidationError("classes", "fisher_exact compares exactly two classes")
		}
		var t [][]float64
		t, err = h.engine.PositionTable(ids, engine.PositionBins)
		if err == nil {
			// initial bin against the rest of the line
			sample.Table = [][]float64{
				{t[0][0], sumFrom(t[0], 1)},
				{t[1][0], sumFrom(t[1], 1)},
			}
		}
	case "mann_whitney", "kolmogorov_smirnov":
		if len(ids) != 2 {
			return referee.Evidence{}, core.NewValidationError("classes", spec.Test+" compares exactly two classes")
		}
		sample.X = h.engine.ClassPositions(ids[0])
		sample.Y = h.engine.ClassPositions(ids[1])
	case "anova":
		for _, id := range ids {
			sample.Groups = append(sample.Groups, h.engine.ClassPositions(id))
		}
	case "spearman":
		if len(ids) != 1 {
			return referee.Evidence{}, core.NewValidationError("classes", "spearman correlates position with one class")
		}
		labels := h.engine.ClassLabels()
		for i, c := range labels {
			sample.X = append(sample.X, h.engine.Corpus().Token(i).Position)
			if c == ids[0] {
				sample.Y = append(sample.Y, 1)
			} else {
				sample.Y = append(sample.Y, 0)
			}
		}
	case "adjusted_rand":
		sample, err = h.partitionSample(spec)
	case "bic_compare":
		// next label modeled from the current one, inside lines only
		stream.EachTransition(func(from, to int) {
			sample.A = append(sample.A, to)
			sample.B = append(sample.B, from)
		})
	}
	if err != nil {
		return referee.Evidence{}, err
	}
	return referee.ClosedFormEvidence(test, sample, spec.Direction)
}

// partitionSample pairs each clustered class's macro-state with its group in
// the competing partition. Without a registered partition the classes are
// grouped by role.
func (h *Harness) partitionSample(spec ports.HypothesisSpec) (referee.Sample, error) {
	a := h.engine.Assignment()
	cls := a.Classes()
	macro := a.Macro()
	if macro == nil {
		confident := 0
		for _, c := range cls {
			if !c.LowConfidence {
				confident++
			}
		}
		return referee.Sample{}, &core.InsufficientSampleError{Subject: "macro-state classes", Observed: confident, Required: 3}
	}

	partition := spec.Partition
	if len(partition) == 0 {
		roles := make(map[string]int)
		for _, c := range cls {
			if _, ok := roles[string(c.Role)]; !ok {
				roles[string(c.Role)] = len(roles)
			}
			partition = append(partition, roles[string(c.Role)])
		}
	}
	if len(partition) != len(cls) {
		return referee.Sample{}, core.NewValidationError("partition",
			fmt.Sprintf("%d groups for %d classes", len(partition), len(cls)))
	}

	sample := referee.Sample{Permutations: spec.Samples, Seed: h.seedFor(spec)}
	for _, c := range cls {
		state := macro.StateOf[c.ID]
		if state < 0 {
			continue
		}
		sample.A = append(sample.A, state)
		sample.B = append(sample.B, partition[c.ID])
	}
	return sample, nil
}

func sumFrom(row []float64, from int) float64 {
	s := 0.0
	for _, v := range row[from:] {
		s += v
	}
	return s
}

// RunFamily runs a family's hypotheses concurrently under one correction.
// Running more hypotheses than the declared family size, counting those
// already recorded, is a protocol violation.
func (h *Harness) RunFamily(ctx context.Context, family ports.FamilySpec) ([]*verdict.Record, error) {
	if family.Size < 1 {
		return nil, core.NewValidationError("family", "size must be at least 1")
	}
	fid := family.ID
	recorded, err := h.ledger.List(ctx, ports.VerdictFilters{FamilyID: &fid, LatestOnly: true})
	if err != nil {
		return nil, err
	}
	seen := make(map[core.HypothesisID]bool, len(recorded))
	for _, r := range recorded {
		seen[r.HypothesisID] = true
	}

	specs := make([]ports.HypothesisSpec, len(family.Hypotheses))
	for i, spec := range family.Hypotheses {
		if spec.FamilySize != 0 && spec.FamilySize != family.Size {
			return nil, core.NewProtocolViolation(spec.ID,
				fmt.Sprintf("declares family size %d inside family %s of size %d", spec.FamilySize, family.ID, family.Size))
		}
		spec.FamilyID = family.ID
		spec.FamilySize = family.Size
		if family.Correction != "" {
			spec.Correction = family.Correction
		}
		specs[i] = spec
		seen[spec.ID] = true
	}
	if len(seen) > family.Size {
		return nil, core.NewProtocolViolation(family.Hypotheses[0].ID,
			fmt.Sprintf("family %s would hold %d hypotheses, declared size is %d", family.ID, len(seen), family.Size))
	}

	// one member failing does not cancel its siblings
	out := make([]*verdict.Record, len(specs))
	errs := make([]error, len(specs))
	var eg errgroup.Group
	eg.SetLimit(max(h.defaults.Workers, 1))
	for i, spec := range specs {
		eg.Go(func() error {
			rec, err := h.Run(ctx, spec)
			out[i] = rec
			if err != nil {
				errs[i] = fmt.Errorf("hypothesis %s: %w", spec.ID, err)
			}
			return nil
		})
	}
	_ = eg.Wait()
	if err := errors.Join(errs...); err != nil {
		return out, err
	}
	h.logger.Info("family evaluated", zap.String("family_id", string(family.ID)), zap.Int("hypotheses", len(specs)))
	return out, nil
}

// Stale lists latest verdicts derived from a corpus, inventory or class
// version other than the current snapshot's.
func (h *Harness) Stale(ctx context.Context) ([]*verdict.Record, error) {
	latest, err := h.ledger.List(ctx, ports.VerdictFilters{LatestOnly: true})
	if err != nil {
		return nil, err
	}
	corpusVersion := h.engine.Corpus().Version()
	classVersion := h.engine.Assignment().Version()
	var stale []*verdict.Record
	for _, r := range latest {
		p := r.Provenance
		if p.CorpusVersion != corpusVersion || p.InventoryVersion != h.inventory || p.ClassVersion != classVersion {
			stale = append(stale, r)
		}
	}
	return stale, nil
}

// IsProtocolViolation reports whether err rejects a run on protocol grounds.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, core.ErrProtocolViolation)
}
