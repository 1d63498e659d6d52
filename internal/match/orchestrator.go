// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package match

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nadavby/reclaim/internal/analyzer"
	"github.com/nadavby/reclaim/internal/config"
	"github.com/nadavby/reclaim/internal/history"
	"github.com/nadavby/reclaim/internal/logging"
	"github.com/nadavby/reclaim/internal/metrics"
	"github.com/nadavby/reclaim/internal/models"
	"github.com/nadavby/reclaim/internal/provider"
)

// runPhase tracks where a match run is in its lifecycle. Phases appear in
// debug logs so a stalled run can be localized from output alone.
type runPhase string

const (
	phaseStart     runPhase = "start"
	phaseFiltering runPhase = "filtering"
	phaseScoring   runPhase = "scoring"
	phaseErrored   runPhase = "errored"
	phaseFallback  runPhase = "fallback"
	phaseRanking   runPhase = "ranking"
	phaseDone      runPhase = "done"
)

// Match run outcomes, used as metric labels.
const (
	outcomeCompleted = "completed"
	outcomeDegraded  = "degraded"
	outcomeRejected  = "rejected"
)

// ScoredItem pairs a surviving candidate with its final score and the
// per-channel evidence behind it.
type ScoredItem struct {
	Item        *models.Item `json:"item"`
	Score       int          `json:"score"`
	VisualScore int          `json:"visual_score"`
	TextScore   int          `json:"text_score"`
	Reasoning   string       `json:"reasoning"`
}

// NotificationIntent asks the notification layer to tell a user that a
// strong match for their item surfaced. The recipient is always the owner
// of the lost-side report; delivery policy (cooldowns, channels) is the
// dispatcher's concern, not the orchestrator's.
type NotificationIntent struct {
	UserID        string    `json:"user_id"`
	ItemID        string    `json:"item_id"`
	MatchedItemID string    `json:"matched_item_id"`
	Score         int       `json:"score"`
	RunID         string    `json:"run_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// MatchResult is the full outcome of one match run.
type MatchResult struct {
	Target   *models.Item         `json:"target"`
	Matches  []ScoredItem         `json:"matches"`
	Intents  []NotificationIntent `json:"intents"`
	Degraded bool                 `json:"degraded"`
	RunID    string               `json:"run_id"`
	Elapsed  time.Duration        `json:"elapsed"`
}

// CandidateSource provides the candidate pool for a run. Implementations
// return unresolved items of the requested type when excludeResolved is
// set.
type CandidateSource interface {
	FindCandidates(ctx context.Context, itemType models.ItemType, excludeResolved bool) ([]*models.Item, error)
}

// RunRecorder ingests run summaries for the history store. Record is
// called on the hot path and must not block.
type RunRecorder interface {
	Record(rec history.RunRecord)
}

// Orchestrator drives the matching pipeline: filter the candidate pool,
// score survivors concurrently through the visual and text channels plus
// the evaluator, then rank and threshold the results.
//
// A run moves Start -> Filtering -> Scoring -> Ranking -> Done. If the
// evaluation provider becomes unavailable mid-run the run detours through
// Errored -> Fallback, where the entire surviving candidate set is
// rescored with the deterministic rubric so every score in one result was
// produced by the same method.
type Orchestrator struct {
	cfg      *config.MatchingConfig
	visual   *analyzer.VisualAnalyzer
	text     *analyzer.TextAnalyzer
	eval     *Evaluator
	source   CandidateSource
	recorder RunRecorder
}

// NewOrchestrator wires the pipeline. Nil collaborators are replaced with
// provider-less equivalents, which score through the degraded paths; a nil
// source only disables FindMatches, not MatchAgainst.
func NewOrchestrator(cfg *config.MatchingConfig, visual *analyzer.VisualAnalyzer, text *analyzer.TextAnalyzer, eval *Evaluator, source CandidateSource) *Orchestrator {
	if cfg == nil {
		def := config.DefaultMatchingConfig()
		cfg = &def
	}
	if visual == nil {
		visual = analyzer.NewVisualAnalyzer(nil, nil, nil)
	}
	if text == nil {
		text = analyzer.NewTextAnalyzer(nil)
	}
	if eval == nil {
		eval = NewEvaluator(nil, nil, config.WeightsConfig{})
	}
	return &Orchestrator{
		cfg:    cfg,
		visual: visual,
		text:   text,
		eval:   eval,
		source: source,
	}
}

// SetRecorder registers a history recorder for finished runs. Optional.
func (o *Orchestrator) SetRecorder(r RunRecorder) {
	o.recorder = r
}

// FindMatches fetches the opposite-type candidate pool for the target and
// runs a full match against it. A lost target is matched against found
// reports and vice versa.
func (o *Orchestrator) FindMatches(ctx context.Context, target *models.Item) (*MatchResult, error) {
	if target == nil {
		return nil, errors.New("match: target item is required")
	}
	if o.source == nil {
		return nil, errors.New("match: no candidate source configured")
	}

	opposite := models.ItemTypeFound
	if target.Type == models.ItemTypeFound {
		opposite = models.ItemTypeLost
	}
	pool, err := o.source.FindCandidates(ctx, opposite, true)
	if err != nil {
		return nil, fmt.Errorf("fetching candidate pool: %w", err)
	}
	return o.MatchAgainst(ctx, target, pool)
}

// MatchAgainst runs the pipeline for target over an explicit candidate
// pool. An unmatchable target (already resolved, or carrying no
// description, category, or image) short-circuits to an empty result
// rather than an error. The returned error is reserved for context
// cancellation and pool fetch problems; scoring failures degrade instead.
func (o *Orchestrator) MatchAgainst(ctx context.Context, target *models.Item, pool []*models.Item) (*MatchResult, error) {
	if target == nil {
		return nil, errors.New("match: target item is required")
	}

	run := newMatchRun(target)
	logging.Info().
		Str("run_id", run.id).
		Str("target_id", target.ID).
		Str("target_type", string(target.Type)).
		Int("pool_size", len(pool)).
		Msg("Match run started")

	if target.IsResolved || !target.HasComparableData() {
		logging.Warn().
			Str("run_id", run.id).
			Str("target_id", target.ID).
			Bool("resolved", target.IsResolved).
			Msg("Target not matchable, returning empty result")
		res := run.finish(nil, nil, false)
		o.record(run, res, len(pool), 0, 0)
		metrics.RecordMatchRun(outcomeRejected, res.Elapsed, len(pool))
		return res, nil
	}

	run.setPhase(phaseFiltering)
	survivors := make([]*models.Item, 0, len(pool))
	filtered := 0
	for _, cand := range pool {
		if cand == nil {
			filtered++
			metrics.RecordCandidateFiltered(FilterReasonType)
			logging.Warn().Str("run_id", run.id).Msg("Skipping nil candidate in pool")
			continue
		}
		skip, reason := ShouldSkip(target, cand)
		if skip {
			filtered++
			metrics.RecordCandidateFiltered(reason)
			logging.Debug().
				Str("run_id", run.id).
				Str("candidate_id", cand.ID).
				Str("reason", reason).
				Msg("Candidate filtered")
			continue
		}
		survivors = append(survivors, cand)
	}

	run.setPhase(phaseScoring)
	scored, degraded, err := o.scoreCandidates(ctx, run, target, survivors)
	if err != nil {
		return nil, err
	}

	run.setPhase(phaseRanking)
	matches := o.rank(scored)
	intents := o.buildIntents(run, target, matches)

	res := run.finish(matches, intents, degraded)
	o.record(run, res, len(pool), filtered, len(scored))

	outcome := outcomeCompleted
	if degraded {
		outcome = outcomeDegraded
	}
	metrics.RecordMatchRun(outcome, res.Elapsed, len(pool))

	logging.Info().
		Str("run_id", run.id).
		Int("filtered", filtered).
		Int("scored", len(scored)).
		Int("matches", len(matches)).
		Int("intents", len(intents)).
		Bool("degraded", degraded).
		Dur("elapsed", res.Elapsed).
		Msg("Match run finished")
	return res, nil
}

// scoreCandidates fans the surviving candidates out over a bounded worker
// pool. Results land in an index-aligned slice so candidate pool order is
// preserved regardless of completion order; ranking depends on that for
// stable tie-breaks.
func (o *Orchestrator) scoreCandidates(ctx context.Context, run *matchRun, target *models.Item, survivors []*models.Item) ([]ScoredItem, bool, error) {
	if len(survivors) == 0 {
		return nil, false, nil
	}

	results := make([]*ScoredItem, len(survivors))
	var unavailable atomic.Bool

	workers := o.cfg.Parallelism
	if workers < 1 {
		workers = 1
	}
	if workers > len(survivors) {
		workers = len(survivors)
	}

	jobs := make(chan int, len(survivors))
	for i := range survivors {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if unavailable.Load() || ctx.Err() != nil {
					continue
				}
				scored, err := o.scoreOne(ctx, run, target, survivors[idx])
				if err != nil {
					if errors.Is(err, provider.ErrUnavailable) {
						unavailable.Store(true)
						continue
					}
					logging.Warn().
						Err(err).
						Str("run_id", run.id).
						Str("candidate_id", survivors[idx].ID).
						Msg("Candidate scoring failed, skipping candidate")
					continue
				}
				results[idx] = scored
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("match run %s abandoned: %w", run.id, err)
	}

	if unavailable.Load() {
		run.setPhase(phaseErrored)
		logging.Warn().
			Str("run_id", run.id).
			Int("candidates", len(survivors)).
			Msg("Evaluation provider unavailable, rescoring entire candidate set with fallback rubric")

		run.setPhase(phaseFallback)
		metrics.MatchFallbackRuns.Inc()
		out := make([]ScoredItem, 0, len(survivors))
		for _, cand := range survivors {
			lost, found := Orient(target, cand)
			eval := o.eval.EvaluateFallback(lost, found)
			metrics.RecordCandidateScored()
			metrics.RecordMatchScore(float64(eval.Score), eval.Score >= o.cfg.MatchThreshold)
			out = append(out, ScoredItem{Item: cand, Score: eval.Score, Reasoning: eval.Reasoning})
		}
		return out, true, nil
	}

	out := make([]ScoredItem, 0, len(survivors))
	for _, scored := range results {
		if scored != nil {
			out = append(out, *scored)
		}
	}
	return out, false, nil
}

// scoreOne runs both comparison channels concurrently under the
// per-candidate time budget, then folds their results through the
// evaluator. The only error it returns is provider unavailability.
func (o *Orchestrator) scoreOne(ctx context.Context, run *matchRun, target, candidate *models.Item) (*ScoredItem, error) {
	callCtx := ctx
	if o.cfg.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.ProviderTimeout)
		defer cancel()
	}

	lost, found := Orient(target, candidate)

	var (
		wg     sync.WaitGroup
		visual analyzer.VisualResult
		text   analyzer.TextResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		visual = o.visual.Compare(callCtx, lost, found)
	}()
	go func() {
		defer wg.Done()
		text = o.text.CompareDescriptions(callCtx, lost, found)
	}()
	wg.Wait()

	eval, err := o.eval.Evaluate(callCtx, lost, found, text, visual)
	if err != nil {
		return nil, err
	}

	metrics.RecordCandidateScored()
	metrics.RecordMatchScore(float64(eval.Score), eval.Score >= o.cfg.MatchThreshold)
	logging.Debug().
		Str("run_id", run.id).
		Str("candidate_id", candidate.ID).
		Int("score", eval.Score).
		Int("visual_score", visual.Score).
		Int("text_confidence", text.Confidence).
		Msg("Candidate scored")

	return &ScoredItem{
		Item:        candidate,
		Score:       eval.Score,
		VisualScore: visual.Score,
		TextScore:   text.Confidence,
		Reasoning:   eval.Reasoning,
	}, nil
}

// rank keeps candidates at or above the match threshold, sorted by score
// descending. The sort is stable over pool order, so equal scores keep
// their insertion order; after sorting, repeated item IDs collapse to
// their best-ranked occurrence.
func (o *Orchestrator) rank(scored []ScoredItem) []ScoredItem {
	matches := make([]ScoredItem, 0, len(scored))
	for _, s := range scored {
		if s.Score >= o.cfg.MatchThreshold {
			matches = append(matches, s)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	seen := make(map[string]struct{}, len(matches))
	deduped := matches[:0]
	for _, m := range matches {
		if m.Item != nil && m.Item.ID != "" {
			if _, dup := seen[m.Item.ID]; dup {
				continue
			}
			seen[m.Item.ID] = struct{}{}
		}
		deduped = append(deduped, m)
	}
	return deduped
}

// buildIntents emits one notification intent per match at or above the
// notify threshold, addressed to the lost-side owner.
func (o *Orchestrator) buildIntents(run *matchRun, target *models.Item, matches []ScoredItem) []NotificationIntent {
	intents := make([]NotificationIntent, 0)
	now := time.Now().UTC()
	for _, m := range matches {
		if m.Score < o.cfg.NotifyThreshold {
			continue
		}
		lost, found := Orient(target, m.Item)
		intents = append(intents, NotificationIntent{
			UserID:        lost.UserID,
			ItemID:        lost.ID,
			MatchedItemID: found.ID,
			Score:         m.Score,
			RunID:         run.id,
			CreatedAt:     now,
		})
	}
	return intents
}

func (o *Orchestrator) record(run *matchRun, res *MatchResult, poolSize, filtered, scoredCount int) {
	if o.recorder == nil {
		return
	}
	top := 0
	if len(res.Matches) > 0 {
		top = res.Matches[0].Score
	}
	o.recorder.Record(history.RunRecord{
		RunID:      run.id,
		TargetID:   run.target.ID,
		TargetType: run.target.Type,
		PoolSize:   poolSize,
		Filtered:   filtered,
		Scored:     scoredCount,
		Matched:    len(res.Matches),
		Notified:   len(res.Intents),
		Degraded:   res.Degraded,
		TopScore:   top,
		ElapsedMS:  res.Elapsed.Milliseconds(),
		StartedAt:  run.startedAt,
	})
}

type matchRun struct {
	id        string
	target    *models.Item
	startedAt time.Time
	phase     runPhase
}

func newMatchRun(target *models.Item) *matchRun {
	return &matchRun{
		id:        uuid.New().String(),
		target:    target,
		startedAt: time.Now().UTC(),
		phase:     phaseStart,
	}
}

func (r *matchRun) setPhase(p runPhase) {
	r.phase = p
	logging.Debug().
		Str("run_id", r.id).
		Str("phase", string(p)).
		Msg("Match run phase change")
}

// finish closes the run and assembles its result. Matches and intents are
// never nil so API responses serialize as empty arrays.
func (r *matchRun) finish(matches []ScoredItem, intents []NotificationIntent, degraded bool) *MatchResult {
	r.setPhase(phaseDone)
	if matches == nil {
		matches = []ScoredItem{}
	}
	if intents == nil {
		intents = []NotificationIntent{}
	}
	return &MatchResult{
		Target:   r.target,
		Matches:  matches,
		Intents:  intents,
		Degraded: degraded,
		RunID:    r.id,
		Elapsed:  time.Since(r.startedAt),
	}
}
