package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/user/review-harvester/internal/dedupe"
	"github.com/user/review-harvester/internal/entity"
	"github.com/user/review-harvester/internal/extractor"
	"github.com/user/review-harvester/internal/repository"
	"github.com/user/review-harvester/pkg/config"
	"github.com/user/review-harvester/pkg/metrics"
	"github.com/user/review-harvester/pkg/utils"
)

const (
	anonymousAuthor  = "Anonymous"
	fallbackTitleLen = 60
	minConfidence    = 0.5
)

// HarvestOrchestrator accepts harvest requests, runs the pipeline on a
// bounded worker pool, and exposes pollable job state. Jobs are
// fire-and-forget once submitted: the caller's only lever is to stop
// polling.
type HarvestOrchestrator interface {
	Submit(ctx context.Context, req entity.HarvestRequest) (string, error)
	Poll(ctx context.Context, jobID string) (*entity.JobState, error)
	Start()
	Stop()
}

type harvestTask struct {
	jobID string
	req   entity.HarvestRequest
}

type orchestrator struct {
	cfg        *config.Config
	fetcher    repository.FetcherRepository
	renderer   repository.RendererRepository
	normalizer repository.NormalizerRepository
	states     repository.JobStateRepository
	archive    repository.ArchiveRepository // nil disables archiving

	tasks    chan harvestTask
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewOrchestrator wires the pipeline. Call Start before submitting.
func NewOrchestrator(
	cfg *config.Config,
	fetcher repository.FetcherRepository,
	renderer repository.RendererRepository,
	normalizer repository.NormalizerRepository,
	states repository.JobStateRepository,
	archive repository.ArchiveRepository,
) HarvestOrchestrator {
	return &orchestrator{
		cfg:        cfg,
		fetcher:    fetcher,
		renderer:   renderer,
		normalizer: normalizer,
		states:     states,
		archive:    archive,
		tasks:      make(chan harvestTask, cfg.QueueSize),
		stopChan:   make(chan struct{}),
	}
}

func (o *orchestrator) Start() {
	for i := 0; i < o.cfg.WorkerCount; i++ {
		o.wg.Add(1)
		go o.worker()
	}
}

func (o *orchestrator) Stop() {
	close(o.stopChan)
	o.wg.Wait()
}

func (o *orchestrator) worker() {
	defer o.wg.Done()
	for {
		select {
		case task := <-o.tasks:
			o.runJob(task)
		case <-o.stopChan:
			return
		}
	}
}

// Submit validates the request, registers a PENDING state, and enqueues the
// job. It never blocks on pipeline work.
func (o *orchestrator) Submit(ctx context.Context, req entity.HarvestRequest) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}

	jobID := uuid.NewString()

	// Submit-side duplicate suppression: an identical in-flight request
	// returns the existing job instead of spawning a sibling.
	if existing, err := o.states.ClaimRequest(ctx, fingerprint(req), jobID, o.cfg.JobTimeout); err != nil {
		slog.Warn("request claim failed", "error", err)
	} else if existing != "" {
		return existing, nil
	}

	o.saveState(&entity.JobState{ID: jobID, Phase: entity.PhasePending})

	select {
	case o.tasks <- harvestTask{jobID: jobID, req: req}:
	default:
		o.saveState(&entity.JobState{
			ID:    jobID,
			Phase: entity.PhaseFailure,
			Error: ErrQueueFull.Error(),
		})
		return "", ErrQueueFull
	}
	return jobID, nil
}

func (o *orchestrator) Poll(ctx context.Context, jobID string) (*entity.JobState, error) {
	return o.states.Find(ctx, jobID)
}

func validateRequest(req entity.HarvestRequest) error {
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidRequest, req.Kind)
	}
	if strings.TrimSpace(req.Product) == "" {
		return fmt.Errorf("%w: product_name is required", ErrInvalidRequest)
	}
	switch req.Kind {
	case entity.SourceRetailer:
		if len(req.StoreURLs) == 0 {
			return fmt.Errorf("%w: store_urls is required", ErrInvalidRequest)
		}
	case entity.SourceShopping:
		if req.SurfaceURL == "" {
			return fmt.Errorf("%w: shopping_surface_url is required", ErrInvalidRequest)
		}
	}
	return nil
}

func fingerprint(req entity.HarvestRequest) string {
	return utils.HashText(strings.Join([]string{
		string(req.Kind),
		strings.ToLower(strings.TrimSpace(req.Product)),
		strings.ToLower(strings.TrimSpace(req.Brand)),
		strings.Join(req.StoreURLs, ","),
		req.SurfaceURL,
	}, "|"))
}

// runJob drives one job through retries to a terminal state. It is the sole
// writer of the job's state; every update is a whole-state replace.
func (o *orchestrator) runJob(task harvestTask) {
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	o.saveState(&entity.JobState{ID: task.jobID, Phase: entity.PhaseStarted})

	var (
		result  *entity.HarvestResult
		lastErr error
	)
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.HarvestsTotal.WithLabelValues("retry", "").Inc()
			o.saveState(&entity.JobState{
				ID:    task.jobID,
				Phase: entity.PhaseRetry,
				Error: lastErr.Error(),
			})

			backoff := o.cfg.BackoffBase * (1 << (attempt - 1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
		}

		if ctx.Err() != nil {
			lastErr = &FatalError{Err: fmt.Errorf("job exceeded wall-clock budget")}
			break
		}

		result, lastErr = o.runPipeline(ctx, task)
		if lastErr == nil || !retryable(lastErr) {
			break
		}
		slog.Warn("harvest attempt failed", "job_id", task.jobID, "attempt", attempt, "error", lastErr)
	}

	duration := time.Since(start)
	if lastErr != nil {
		metrics.HarvestsTotal.WithLabelValues("failure", errorType(lastErr)).Inc()
		slog.Error("harvest failed", "job_id", task.jobID, "duration_ms", duration.Milliseconds(), "error", lastErr)
		o.saveState(&entity.JobState{
			ID:    task.jobID,
			Phase: entity.PhaseFailure,
			Error: lastErr.Error(),
		})
		return
	}

	metrics.HarvestsTotal.WithLabelValues("success", "").Inc()
	metrics.HarvestDuration.WithLabelValues(string(task.req.Kind)).Observe(duration.Seconds())
	slog.Info("harvest complete", "job_id", task.jobID,
		"reviews", result.TotalFound, "raw", result.RawCount,
		"duration_ms", duration.Milliseconds())

	o.saveState(&entity.JobState{
		ID:     task.jobID,
		Phase:  entity.PhaseSuccess,
		Result: result,
	})
	o.archiveResult(task.jobID, result)
}

func errorType(err error) string {
	if !retryable(err) {
		return "fatal"
	}
	return "retries_exhausted"
}

// runPipeline is one full attempt: derive targets, fan out fetch+extract,
// dedupe, validate, format, summarize. Partial state from a failed attempt
// is discarded by the caller, never merged.
func (o *orchestrator) runPipeline(ctx context.Context, task harvestTask) (result *entity.HarvestResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &RetryableError{Err: fmt.Errorf("pipeline panic: %v", r)}
		}
	}()

	targets := o.deriveTargets(ctx, task.req)
	slog.Info("derived targets", "job_id", task.jobID, "count", len(targets))

	publisher := newProgressPublisher(o.states, task.jobID)
	raw := o.collectCandidates(ctx, task, targets, publisher)

	if ctx.Err() != nil {
		return nil, &FatalError{Err: fmt.Errorf("job exceeded wall-clock budget")}
	}

	rawCount := len(raw)
	deduped := dedupe.Dedupe(raw, o.cfg.SimilarityThreshold)
	validated := o.validate(ctx, task.req.Product, deduped)
	reviews := o.buildReviews(ctx, task.req.Kind, validated)
	summary := o.summarize(ctx, task.req.Product, validated, reviews)

	return &entity.HarvestResult{
		Success:    true,
		Product:    task.req.Product,
		Source:     task.req.Kind,
		Summary:    summary,
		Reviews:    reviews,
		TotalFound: len(reviews),
		RawCount:   rawCount,
	}, nil
}

// collectCandidates fans fetch+extract out over all targets concurrently
// and gathers the results. Each target is isolated: its transport and
// extraction faults shrink the result set, never fail the job or cancel
// siblings.
func (o *orchestrator) collectCandidates(ctx context.Context, task harvestTask, targets []entity.ScrapeTarget, publisher *progressPublisher) []entity.RawCandidate {
	var (
		mu  sync.Mutex
		raw []entity.RawCandidate
		wg  sync.WaitGroup
	)
	var escalations atomic.Int32

	for _, target := range targets {
		wg.Add(1)
		go func(tg entity.ScrapeTarget) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("extractor panic, dropping target", "job_id", task.jobID, "url", tg.URL, "panic", r)
				}
			}()

			cands := o.processTarget(ctx, tg, &escalations, publisher)
			if len(cands) == 0 {
				return
			}
			mu.Lock()
			raw = append(raw, cands...)
			mu.Unlock()
		}(target)
	}
	wg.Wait()
	return raw
}

// processTarget runs fetch -> conditional render escalation -> extraction
// for a single target.
func (o *orchestrator) processTarget(ctx context.Context, tg entity.ScrapeTarget, escalations *atomic.Int32, publisher *progressPublisher) []entity.RawCandidate {
	if tg.Strategy == entity.SourceShopping {
		shop := extractor.ShoppingExtractor{
			Renderer:     o.renderer,
			MaxRounds:    o.cfg.LoadMoreRounds,
			StableRounds: o.cfg.StableRounds,
		}
		cands, err := shop.Harvest(ctx, tg.URL, publisher.publish)
		if err != nil {
			slog.Warn("shopping surface harvest failed", "url", tg.URL, "error", err)
			return nil
		}
		return cands
	}

	html, err := o.fetcher.Fetch(ctx, tg.URL)
	if err != nil {
		slog.Warn("fetch failed, skipping target", "url", tg.URL, "error", err)
		return nil
	}

	if extractor.NeedsRendering(html) && o.tryEscalate(escalations) {
		metrics.RenderEscalationsTotal.Inc()
		rendered, err := o.renderer.Render(ctx, tg.URL)
		if err != nil {
			slog.Warn("render escalation failed, using static fetch", "url", tg.URL, "error", err)
		} else {
			html = rendered
		}
	}

	return extractor.ForStrategy(tg.Strategy).Extract(html, tg.URL)
}

// tryEscalate consumes one unit of the per-job render budget if any remains.
func (o *orchestrator) tryEscalate(escalations *atomic.Int32) bool {
	for {
		current := escalations.Load()
		if current >= int32(o.cfg.RenderBudget) {
			return false
		}
		if escalations.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// validate runs the batch classifier over the deduplicated candidates. On
// collaborator failure every candidate passes through at the confidence
// floor, so the job still succeeds.
func (o *orchestrator) validate(ctx context.Context, product string, candidates []entity.RawCandidate) []entity.ValidatedCandidate {
	if len(candidates) == 0 {
		return nil
	}

	byIndex := make(map[int]repository.ValidationScore, len(candidates))
	scores, err := o.normalizer.Validate(ctx, product, candidates)
	if err != nil {
		slog.Warn("validation unavailable, passing candidates through", "error", err)
	} else {
		for _, s := range scores {
			byIndex[s.Index] = s
		}
	}

	var out []entity.ValidatedCandidate
	for i, cand := range candidates {
		score, ok := byIndex[i]
		if !ok {
			// Unscored (or fallback): pass through at the survival floor.
			score = repository.ValidationScore{Index: i, Genuine: true, Confidence: minConfidence}
		}
		if !score.Genuine || score.Confidence < minConfidence {
			continue
		}
		out = append(out, entity.ValidatedCandidate{
			RawCandidate: cand,
			Confidence:   score.Confidence,
			Genuine:      true,
		})
	}
	return out
}

// buildReviews produces the caller-visible records. Forum candidates are
// additionally reduced by the formatter in fixed-size batches; everything
// else is projected directly.
func (o *orchestrator) buildReviews(ctx context.Context, kind entity.SourceKind, validated []entity.ValidatedCandidate) []entity.NormalizedReview {
	reviews := make([]entity.NormalizedReview, 0, len(validated))

	if kind != entity.SourceForum {
		for _, v := range validated {
			reviews = append(reviews, directReview(v))
		}
		return reviews
	}

	batchSize := o.cfg.FormatBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	for start := 0; start < len(validated); start += batchSize {
		end := start + batchSize
		if end > len(validated) {
			end = len(validated)
		}
		batch := validated[start:end]

		raws := make([]entity.RawCandidate, len(batch))
		for i, v := range batch {
			raws[i] = v.RawCandidate
		}

		formatted, err := o.normalizer.Format(ctx, raws)
		if err != nil || len(formatted) != len(batch) {
			if err != nil {
				slog.Warn("formatter unavailable, using truncation fallback", "error", err)
			}
			for _, v := range batch {
				reviews = append(reviews, directReview(v))
			}
			continue
		}

		for i, v := range batch {
			review := directReview(v)
			review.Title = formatted[i].Title
			review.Summary = formatted[i].Summary
			if r := formatted[i].Rating; r >= 1 && r <= 5 {
				rating := r
				review.Rating = &rating
			}
			reviews = append(reviews, review)
		}
	}
	return reviews
}

func directReview(v entity.ValidatedCandidate) entity.NormalizedReview {
	title := v.Title
	if title == "" {
		title = fallbackTitle(v.Text)
	}
	return entity.NormalizedReview{
		Source:     v.Source,
		Author:     anonymousAuthor,
		Rating:     v.Rating,
		Title:      title,
		Summary:    v.Text,
		Confidence: v.Confidence,
	}
}

func fallbackTitle(text string) string {
	title := utils.Truncate(utils.CollapseWhitespace(text), fallbackTitleLen)
	if len(title) < len(text) {
		title += "..."
	}
	return title
}

// summarize produces the job-level aggregate: one collaborator call per job
// plus a locally computed average rating. Collaborator failure yields a
// neutral summary, never a job error.
func (o *orchestrator) summarize(ctx context.Context, product string, validated []entity.ValidatedCandidate, reviews []entity.NormalizedReview) entity.HarvestSummary {
	summary := entity.HarvestSummary{
		OverallSentiment: "neutral",
		CommonPraises:    []string{},
		CommonComplaints: []string{},
	}

	if len(validated) > 0 {
		raws := make([]entity.RawCandidate, len(validated))
		for i, v := range validated {
			raws[i] = v.RawCandidate
		}
		if s, err := o.normalizer.Summarize(ctx, product, raws); err != nil {
			slog.Warn("summarizer unavailable, using neutral summary", "error", err)
		} else {
			summary = *s
			if summary.CommonPraises == nil {
				summary.CommonPraises = []string{}
			}
			if summary.CommonComplaints == nil {
				summary.CommonComplaints = []string{}
			}
		}
	}

	var sum float64
	var rated int
	for _, review := range reviews {
		if review.Rating != nil {
			sum += *review.Rating
			rated++
		}
	}
	if rated > 0 {
		avg := sum / float64(rated)
		summary.AverageRating = &avg
	}
	return summary
}

// archiveResult fire-and-forgets the completed harvest into the external
// storage collaborator.
func (o *orchestrator) archiveResult(jobID string, result *entity.HarvestResult) {
	if o.archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.archive.SaveResult(ctx, jobID, result); err != nil {
			slog.Warn("archive write failed", "job_id", jobID, "error", err)
		}
	}()
}

// saveState replaces the job's pollable state. State writes survive the
// job's own deadline so a terminal FAILURE is always recorded.
func (o *orchestrator) saveState(state *entity.JobState) {
	state.UpdatedAt = time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.states.Save(ctx, state); err != nil {
		slog.Error("job state save failed", "job_id", state.ID, "phase", state.Phase, "error", err)
	}
}
