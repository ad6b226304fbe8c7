package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oncomatch/oncomatch/internal/config"
	"github.com/oncomatch/oncomatch/internal/criteria"
	"github.com/oncomatch/oncomatch/internal/querycompile"
	"github.com/oncomatch/oncomatch/internal/queryir"
	"github.com/oncomatch/oncomatch/internal/rank"
	"github.com/oncomatch/oncomatch/internal/store"
	"github.com/oncomatch/oncomatch/internal/transform"
)

// MatchField is the trial document key holding the eligibility
// criteria tree.
const MatchField = "match"

// DefaultWorkers bounds concurrent trial lookups against the store.
const DefaultWorkers = 8

// DefaultTrialTimeout caps one trial's compile-and-query pipeline. A
// hung lookup fails that trial only, never the batch.
const DefaultTrialTimeout = 30 * time.Second

// Engine orchestrates batch matching: status gate, per-trial compile,
// bounded-concurrency store queries, join, projection, deduplication,
// and ranking.
//
// Shared state (configuration, transform registry) is read-only after
// construction, so concurrent trial pipelines need no locking; each
// worker aggregates into the run result under a single mutex.
type Engine struct {
	store        *store.Store
	cfg          *config.Config
	registry     *transform.Registry
	compiler     *querycompile.Compiler
	projector    *Projector
	logger       *slog.Logger
	policy       querycompile.Policy
	workers      int
	trialTimeout time.Duration
}

// Option configures engine parameters.
type Option func(*Engine)

// WithWorkers sets the worker pool size for concurrent trial lookups.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithTrialTimeout sets the per-trial pipeline deadline.
func WithTrialTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.trialTimeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPolicy sets the unmapped-criterion policy. Strict by default.
func WithPolicy(p querycompile.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// New creates an Engine over an opened store, a loaded configuration,
// and a populated transform registry.
func New(s *store.Store, cfg *config.Config, registry *transform.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		cfg:          cfg,
		registry:     registry,
		projector:    NewProjector(cfg),
		logger:       slog.Default(),
		policy:       querycompile.Strict,
		workers:      DefaultWorkers,
		trialTimeout: DefaultTrialTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.compiler = querycompile.NewCompiler(querycompile.NewTranslator(registry), e.policy)

	return e
}

// RunOptions scopes one batch run.
type RunOptions struct {
	// Protocols restricts the run to the named trials. Empty means all.
	Protocols []string

	// SampleIDs restricts the run to the named clinical records. Empty
	// means all.
	SampleIDs []string

	// MatchOnClosed bypasses the trial accrual status gate.
	MatchOnClosed bool

	// MatchOnDeceased bypasses the clinical vital status gate. Without
	// it, a configured vital_status_key restricts matching to clinical
	// records whose status counts as alive.
	MatchOnDeceased bool
}

// RunResult is one batch outcome: the ranked deduplicated candidate
// list plus the manifest of evaluated, matched, and failed trials.
type RunResult struct {
	RunID    string            `json:"run_id"`
	Manifest *Manifest         `json:"manifest"`
	Matches  []*MatchCandidate `json:"matches"`
}

// Run executes one batch match. Per-trial failures land in the
// manifest; only batch-level failures (trial retrieval, cancellation)
// return an error.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	runID := newRunID()
	logger := e.logger.With("run_id", runID)

	trials, err := e.fetchTrials(ctx, opts.Protocols)
	if err != nil {
		return nil, fmt.Errorf("fetch trials: %w", err)
	}
	logger.Info("batch start",
		"trials", len(trials),
		"protocols", len(opts.Protocols),
		"sample_ids", len(opts.SampleIDs),
		"match_on_closed", opts.MatchOnClosed,
		"match_on_deceased", opts.MatchOnDeceased)

	manifest := newManifest()
	tasks := e.buildTasks(logger, trials, opts, manifest)

	results := make([][]*MatchCandidate, len(tasks))
	var mu sync.Mutex

	queue := newTaskQueue()
	for _, t := range tasks {
		queue.Enqueue(t)
	}
	queue.Close()

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(ctx, queue, opts, results, manifest, &mu)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := e.assemble(results, manifest)
	manifest.sortStable()

	logger.Info("batch done",
		"evaluated", len(manifest.Evaluated),
		"matched", len(manifest.Matched),
		"failed", len(manifest.Failed),
		"candidates", len(matches))

	return &RunResult{RunID: runID, Manifest: manifest, Matches: matches}, nil
}

// buildTasks applies the status gate and parses each trial's criteria
// tree. Gated-out trials are skipped silently; trials with malformed
// criteria fail individually.
func (e *Engine) buildTasks(logger *slog.Logger, trials []store.Document, opts RunOptions, manifest *Manifest) []trialTask {
	tasks := make([]trialTask, 0, len(trials))
	for _, doc := range trials {
		protocol := fieldString(doc.Fields[e.cfg.TrialIdentifier])
		if protocol == "" {
			protocol = doc.ID
		}

		if !opts.MatchOnClosed {
			status := doc.Fields[e.cfg.TrialStatusKey.KeyName]
			if !e.cfg.TrialStatusKey.IsOpen(status) {
				logger.Debug("trial closed to accrual", "protocol", protocol, "status", status)
				continue
			}
		}

		rawMatch, ok := doc.Fields[MatchField]
		if !ok {
			logger.Debug("trial has no criteria", "protocol", protocol)
			continue
		}

		manifest.Evaluated = append(manifest.Evaluated, protocol)

		tree, err := parseCriteria(rawMatch)
		if err != nil {
			manifest.Failed = append(manifest.Failed, TrialFailure{
				Protocol: protocol,
				Code:     ErrCodeInvalidCriteria,
				Message:  err.Error(),
			})
			continue
		}

		tasks = append(tasks, trialTask{
			Order:    len(tasks),
			Protocol: protocol,
			Trial:    doc.Fields,
			Tree:     tree,
		})
	}
	return tasks
}

func (e *Engine) worker(ctx context.Context, queue *taskQueue, opts RunOptions, results [][]*MatchCandidate, manifest *Manifest, mu *sync.Mutex) {
	for {
		task, ok := queue.TryDequeue()
		if !ok {
			if queue.Drained() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-queue.Wait():
				continue
			}
		}

		candidates, err := e.matchTrial(ctx, task, opts)

		mu.Lock()
		if err != nil {
			me := classifyTrialError(task.Protocol, err)
			manifest.Failed = append(manifest.Failed, TrialFailure{
				Protocol: me.Protocol,
				Code:     me.Code,
				Message:  me.Message,
			})
			e.logger.Warn("trial failed", "protocol", task.Protocol, "code", me.Code, "error", me.Message)
		} else {
			results[task.Order] = candidates
		}
		mu.Unlock()
	}
}

// matchTrial runs one trial's pipeline under its own deadline: compile
// the criteria tree, query each applicable collection, join child rows
// to clinical rows, and project candidates.
func (e *Engine) matchTrial(ctx context.Context, task trialTask, opts RunOptions) ([]*MatchCandidate, error) {
	tctx, cancel := context.WithTimeout(ctx, e.trialTimeout)
	defer cancel()

	preds, err := e.compiler.CompileAll(e.cfg, task.Tree)
	if err != nil {
		return nil, err
	}

	clinical, ok := e.cfg.Clinical()
	if !ok {
		return nil, fmt.Errorf("configuration has no clinical collection mapping")
	}

	clinPred := preds[config.ClinicalCollection]
	if len(opts.SampleIDs) > 0 {
		ids := make([]criteria.Value, len(opts.SampleIDs))
		for i, id := range opts.SampleIDs {
			ids[i] = criteria.String(id)
		}
		clinPred = queryir.And{Preds: []queryir.Predicate{
			clinPred,
			queryir.In{Field: clinical.IDField, Values: ids},
		}}
	}

	clinDocs, err := e.store.Query(tctx, queryCollection(config.ClinicalCollection, clinical), clinPred,
		e.queryProjection(config.ClinicalCollection, clinical))
	if err != nil {
		return nil, err
	}

	if k := e.cfg.VitalStatusKey; k != nil && !opts.MatchOnDeceased {
		living := make([]store.Document, 0, len(clinDocs))
		for _, doc := range clinDocs {
			if k.IsAlive(doc.Fields[k.KeyName]) {
				living = append(living, doc)
			}
		}
		clinDocs = living
	}

	// Index join parents by id_field value.
	clinByID := make(map[string][]store.Document)
	for _, doc := range clinDocs {
		key := fieldString(doc.Fields[clinical.IDField])
		clinByID[key] = append(clinByID[key], doc)
	}

	var candidates []*MatchCandidate
	childActive := false

	for _, child := range e.cfg.ChildCollections() {
		pred := preds[child]
		if isNeutral(pred) {
			// No criteria touch this collection; querying it would turn
			// every row into a candidate.
			continue
		}
		childActive = true

		m := e.cfg.CollectionMappings[child]
		rows, err := e.store.Query(tctx, queryCollection(child, m), pred, e.queryProjection(child, m))
		if err != nil {
			return nil, err
		}

		// Inner join: a child row with no clinical parent yields nothing.
		for _, row := range rows {
			joinKey := fieldString(row.Fields[m.JoinField])
			for _, clinDoc := range clinByID[joinKey] {
				candidates = append(candidates, e.buildCandidate(task.Protocol, child, clinical, clinDoc, &row))
			}
		}
	}

	if !childActive {
		for i := range clinDocs {
			if !e.hasClinicalReason(clinDocs[i]) {
				continue
			}
			candidates = append(candidates, e.buildCandidate(task.Protocol, config.ClinicalCollection, clinical, clinDocs[i], nil))
		}
	}

	return candidates, nil
}

// buildCandidate merges the projected clinical and child rows into one
// match reason. Child fields win on collision; the trial link field is
// always stamped.
func (e *Engine) buildCandidate(protocol, reason string, clinical config.CollectionMapping, clinDoc store.Document, childDoc *store.Document) *MatchCandidate {
	fields := e.projector.Project(config.ClinicalCollection, clinDoc)
	if childDoc != nil {
		for k, v := range e.projector.Project(reason, *childDoc) {
			fields[k] = v
		}
	}
	fields[e.cfg.MatchTrialLinkID] = protocol

	patientID := fieldString(clinDoc.Fields[clinical.IDField])
	if patientID == "" {
		patientID = clinDoc.ID
	}

	return &MatchCandidate{
		TrialID:   protocol,
		PatientID: patientID,
		Reason:    reason,
		Fields:    fields,
	}
}

// hasClinicalReason reports whether a clinical row legitimizes a
// clinical-only match: some configured field tuple is fully present.
// With no tuples configured every clinical row qualifies.
func (e *Engine) hasClinicalReason(doc store.Document) bool {
	if len(e.cfg.ValidClinicalReasons) == 0 {
		return true
	}
	for _, tuple := range e.cfg.ValidClinicalReasons {
		all := true
		for _, field := range tuple {
			if v, ok := doc.Fields[field]; !ok || v == nil {
				all = false
				break
			}
		}
		if all && len(tuple) > 0 {
			return true
		}
	}
	return false
}

// assemble flattens per-task results in retrieval order, deduplicates
// by content hash, fills the matched list, and ranks.
func (e *Engine) assemble(results [][]*MatchCandidate, manifest *Manifest) []*MatchCandidate {
	seen := make(map[string]struct{})
	matchedProtocols := make(map[string]struct{})
	var matches []*MatchCandidate

	for _, trialMatches := range results {
		for _, c := range trialMatches {
			h, err := c.Hash()
			if err != nil {
				// Unhashable projections are kept rather than dropped.
				e.logger.Warn("candidate hash failed", "trial", c.TrialID, "error", err)
			} else {
				if _, dup := seen[h]; dup {
					continue
				}
				seen[h] = struct{}{}
			}
			matchedProtocols[c.TrialID] = struct{}{}
			matches = append(matches, c)
		}
	}

	for p := range matchedProtocols {
		manifest.Matched = append(manifest.Matched, p)
	}

	ranked := make([]rank.Candidate, len(matches))
	for i, c := range matches {
		ranked[i] = c
	}
	rank.Rank(e.cfg.TrialMatchSorting, ranked)
	for i, rc := range ranked {
		matches[i] = rc.(*MatchCandidate)
	}

	return matches
}

// fetchTrials retrieves the trial documents in scope.
func (e *Engine) fetchTrials(ctx context.Context, protocols []string) ([]store.Document, error) {
	var pred queryir.Predicate = queryir.True{}
	if len(protocols) > 0 {
		values := make([]criteria.Value, len(protocols))
		for i, p := range protocols {
			values[i] = criteria.String(p)
		}
		pred = queryir.In{Field: e.cfg.TrialIdentifier, Values: values}
	}
	return e.store.Query(ctx, e.cfg.TrialCollection, pred, nil)
}

// queryProjection widens the configured projection with the fields the
// join itself needs; an unconfigured projection retrieves everything.
func (e *Engine) queryProjection(collection string, m config.CollectionMapping) []string {
	base := e.cfg.ProjectionFor(collection)
	if len(base) == 0 {
		return nil
	}
	out := append([]string{}, base...)
	extra := []string{m.IDField, m.JoinField, e.cfg.MatchTrialLinkID}
	if collection == config.ClinicalCollection && e.cfg.VitalStatusKey != nil {
		extra = append(extra, e.cfg.VitalStatusKey.KeyName)
	}
	for _, f := range extra {
		if f == "" {
			continue
		}
		dup := false
		for _, existing := range out {
			if existing == f {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, f)
		}
	}
	return out
}

func queryCollection(name string, m config.CollectionMapping) string {
	if m.QueryCollection != "" {
		return m.QueryCollection
	}
	return name
}

func isNeutral(p queryir.Predicate) bool {
	_, ok := p.(queryir.True)
	return ok
}

func parseCriteria(raw any) (criteria.Criterion, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode criteria: %w", err)
	}
	return criteria.Parse(data)
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// fieldString renders a document field value as a join/identifier key.
// JSON decoding turns integral identifiers into float64; those render
// without a fractional part so "123" and 123 coincide.
func fieldString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
