package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/user/review-harvester/internal/entity"
	"github.com/user/review-harvester/internal/repository"
	"github.com/user/review-harvester/pkg/config"
	"github.com/user/review-harvester/pkg/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		WorkerCount:         2,
		QueueSize:           8,
		MaxRetries:          2,
		BackoffBase:         5 * time.Millisecond,
		JobTimeout:          5 * time.Second,
		StateRetention:      time.Minute,
		RenderBudget:        2,
		MaxSearchResults:    5,
		LoadMoreRounds:      8,
		StableRounds:        2,
		FormatBatchSize:     10,
		SimilarityThreshold: 0.90,
		SearchEndpoint:      "http://search.test",
	}
}

// --- fakes -----------------------------------------------------------------

type memStateRepo struct {
	mu      sync.Mutex
	states  map[string]*entity.JobState
	history map[string][]entity.JobPhase
	claims  map[string]string
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{
		states:  make(map[string]*entity.JobState),
		history: make(map[string][]entity.JobPhase),
		claims:  make(map[string]string),
	}
}

func (r *memStateRepo) Save(ctx context.Context, state *entity.JobState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *state
	r.states[state.ID] = &clone
	r.history[state.ID] = append(r.history[state.ID], state.Phase)
	return nil
}

func (r *memStateRepo) Find(ctx context.Context, jobID string) (*entity.JobState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[jobID]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	clone := *state
	return &clone, nil
}

func (r *memStateRepo) ClaimRequest(ctx context.Context, fingerprint, jobID string, ttl time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.claims[fingerprint]; ok {
		return existing, nil
	}
	r.claims[fingerprint] = jobID
	return "", nil
}

func (r *memStateRepo) phases(jobID string) []entity.JobPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.JobPhase(nil), r.history[jobID]...)
}

// mapFetcher serves canned pages by URL prefix.
type mapFetcher struct {
	pages      map[string]string
	panicsLeft atomic.Int32
}

func (f *mapFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.panicsLeft.Add(-1) >= 0 {
		panic("injected fetcher fault")
	}
	for prefix, html := range f.pages {
		if strings.HasPrefix(url, prefix) {
			return html, nil
		}
	}
	return "", repository.ErrFetchFailed
}

// countingRenderer fails renders but records how often it was asked, and
// replays scripted DOM rounds for shopping surfaces.
type countingRenderer struct {
	renderCalls atomic.Int32
	rounds      []string
}

func (r *countingRenderer) Render(ctx context.Context, url string) (string, error) {
	r.renderCalls.Add(1)
	return "", repository.ErrNavigationFailed
}

func (r *countingRenderer) Interact(ctx context.Context, url string, maxRounds int, round repository.RoundFunc) error {
	for i, html := range r.rounds {
		if i >= maxRounds {
			break
		}
		present := i < len(r.rounds)-1
		if round(html, present) || !present {
			break
		}
	}
	return nil
}

// downNormalizer simulates the classifier being unavailable.
type downNormalizer struct{}

func (downNormalizer) Validate(ctx context.Context, product string, c []entity.RawCandidate) ([]repository.ValidationScore, error) {
	return nil, errors.New("normalizer unavailable")
}

func (downNormalizer) Summarize(ctx context.Context, product string, c []entity.RawCandidate) (*entity.HarvestSummary, error) {
	return nil, errors.New("normalizer unavailable")
}

func (downNormalizer) Format(ctx context.Context, c []entity.RawCandidate) ([]repository.FormattedReview, error) {
	return nil, errors.New("normalizer unavailable")
}

// scoringNormalizer marks candidates mentioning "Genuine opinion" as real
// reviews and rejects the rest. Content-keyed because the fan-out does not
// guarantee candidate order.
type scoringNormalizer struct{}

func (scoringNormalizer) Validate(ctx context.Context, product string, c []entity.RawCandidate) ([]repository.ValidationScore, error) {
	out := make([]repository.ValidationScore, len(c))
	for i, cand := range c {
		genuine := strings.Contains(cand.Text, "Genuine opinion")
		confidence := 0.2
		if genuine {
			confidence = 0.92
		}
		out[i] = repository.ValidationScore{Index: i, Genuine: genuine, Confidence: confidence}
	}
	return out, nil
}

func (scoringNormalizer) Summarize(ctx context.Context, product string, c []entity.RawCandidate) (*entity.HarvestSummary, error) {
	return &entity.HarvestSummary{
		OverallSentiment: "mixed",
		CommonPraises:    []string{"build quality"},
		CommonComplaints: []string{"noise"},
	}, nil
}

func (scoringNormalizer) Format(ctx context.Context, c []entity.RawCandidate) ([]repository.FormattedReview, error) {
	out := make([]repository.FormattedReview, len(c))
	for i := range c {
		out[i] = repository.FormattedReview{Rating: 4, Title: fmt.Sprintf("Formatted %d", i), Summary: "short take"}
	}
	return out, nil
}

// --- helpers ---------------------------------------------------------------

func startOrchestrator(t *testing.T, cfg *config.Config, fetcher repository.FetcherRepository, renderer repository.RendererRepository, normalizer repository.NormalizerRepository, states *memStateRepo) HarvestOrchestrator {
	t.Helper()
	orch := NewOrchestrator(cfg, fetcher, renderer, normalizer, states, nil)
	orch.Start()
	t.Cleanup(orch.Stop)
	return orch
}

func waitForTerminal(t *testing.T, orch HarvestOrchestrator, jobID string) *entity.JobState {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		state, err := orch.Poll(context.Background(), jobID)
		require.NoError(t, err)
		if state.Phase.Terminal() {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return nil
}

const forumThreadURL = "http://forum.test/thread"

func forumSearchPage() string {
	return `<html><body><a class="result__a" href="` + forumThreadURL + `">Acme Blender X200 owners thread</a></body></html>`
}

func forumThreadPage() string {
	return `<html><body>
		<div class="post-content">I love the Acme Blender X200, a great blender for my smoothies.</div>
		<div class="comment">Bought this blender for review two months ago and honestly disappointed, the motor is loud and the jar cracked early.</div>
		<div class="nav">Home | Products | Contact</div>
	</body></html>`
}

// --- tests -----------------------------------------------------------------

func TestForumHarvestEndToEnd(t *testing.T) {
	states := newMemStateRepo()
	fetcher := &mapFetcher{pages: map[string]string{
		"http://search.test": forumSearchPage(),
		forumThreadURL:       forumThreadPage(),
	}}
	orch := startOrchestrator(t, testConfig(), fetcher, &countingRenderer{}, downNormalizer{}, states)

	jobID, err := orch.Submit(context.Background(), entity.HarvestRequest{
		Product: "Acme Blender X200",
		Kind:    entity.SourceForum,
	})
	require.NoError(t, err)

	state := waitForTerminal(t, orch, jobID)
	require.Equal(t, entity.PhaseSuccess, state.Phase)
	require.NotNil(t, state.Result)

	require.Equal(t, 2, state.Result.TotalFound, "two reviews survive, nav fragment does not")
	for _, review := range state.Result.Reviews {
		require.NotContains(t, review.Summary, "Contact")
		require.Equal(t, "Anonymous", review.Author)
		require.GreaterOrEqual(t, review.Confidence, 0.5)
	}
}

func TestCrossTargetDeduplication(t *testing.T) {
	review := "This kettle is excellent, the water boils fast and the handle stays cool to touch always."
	page := "<html><body><p>" + review + "</p></body></html>"

	cfg := testConfig()
	cfg.RenderBudget = 0
	states := newMemStateRepo()
	fetcher := &mapFetcher{pages: map[string]string{
		"http://store-a.test": page,
		"http://store-b.test": page,
	}}
	orch := startOrchestrator(t, cfg, fetcher, &countingRenderer{}, downNormalizer{}, states)

	jobID, err := orch.Submit(context.Background(), entity.HarvestRequest{
		Product:   "Acme Kettle",
		Kind:      entity.SourceRetailer,
		StoreURLs: []string{"http://store-a.test/p/1", "http://store-b.test/p/1"},
	})
	require.NoError(t, err)

	state := waitForTerminal(t, orch, jobID)
	require.Equal(t, entity.PhaseSuccess, state.Phase)
	require.Equal(t, 1, state.Result.TotalFound, "identical text from two targets appears once")
	require.Equal(t, 2, state.Result.RawCount)
}

func shoppingSurface(items int) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < items; i++ {
		fmt.Fprintf(&sb, `<div class="review-item"><h3>Take %d</h3>Review body %d: works great and I would recommend it to anyone.</div>`, i, i)
	}
	sb.WriteString(`<button class="load-more">More</button></body></html>`)
	return sb.String()
}

func TestShoppingHarvestPublishesProgress(t *testing.T) {
	states := newMemStateRepo()
	renderer := &countingRenderer{rounds: []string{
		shoppingSurface(5),
		shoppingSurface(12),
		shoppingSurface(12),
	}}
	orch := startOrchestrator(t, testConfig(), &mapFetcher{}, renderer, downNormalizer{}, states)

	jobID, err := orch.Submit(context.Background(), entity.HarvestRequest{
		Product:    "Acme Blender X200",
		Kind:       entity.SourceShopping,
		SurfaceURL: "http://surface.test/product",
	})
	require.NoError(t, err)

	state := waitForTerminal(t, orch, jobID)
	require.Equal(t, entity.PhaseSuccess, state.Phase)
	require.Equal(t, 12, state.Result.TotalFound)

	var progress int
	for _, phase := range states.phases(jobID) {
		if phase == entity.PhaseProgress {
			progress++
		}
	}
	require.Equal(t, 2, progress, "one publish per round that grew the set")
}

func TestRenderEscalationBudget(t *testing.T) {
	starved := "<html><body>thin</body></html>"
	states := newMemStateRepo()
	fetcher := &mapFetcher{pages: map[string]string{
		"http://a.test": starved,
		"http://b.test": starved,
		"http://c.test": starved,
	}}
	renderer := &countingRenderer{}
	orch := startOrchestrator(t, testConfig(), fetcher, renderer, downNormalizer{}, states)

	jobID, err := orch.Submit(context.Background(), entity.HarvestRequest{
		Product:   "Acme Kettle",
		Kind:      entity.SourceRetailer,
		StoreURLs: []string{"http://a.test/p", "http://b.test/p", "http://c.test/p"},
	})
	require.NoError(t, err)

	state := waitForTerminal(t, orch, jobID)
	require.Equal(t, entity.PhaseSuccess, state.Phase, "budget exhaustion never fails the job")
	require.Equal(t, 0, state.Result.TotalFound)
	require.Equal(t, int32(2), renderer.renderCalls.Load(), "only the first two targets escalate")
}

func TestLifecycleNeverRegresses(t *testing.T) {
	states := newMemStateRepo()
	fetcher := &mapFetcher{pages: map[string]string{
		"http://search.test": forumSearchPage(),
		forumThreadURL:       forumThreadPage(),
	}}
	orch := startOrchestrator(t, testConfig(), fetcher, &countingRenderer{}, downNormalizer{}, states)

	jobID, err := orch.Submit(context.Background(), entity.HarvestRequest{
		Product: "Acme Blender X200",
		Kind:    entity.SourceForum,
	})
	require.NoError(t, err)
	waitForTerminal(t, orch, jobID)

	phases := states.phases(jobID)
	require.Equal(t, entity.PhasePending, phases[0])
	for i, phase := range phases {
		if phase.Terminal() {
			require.Equal(t, len(phases)-1, i, "nothing is written after a terminal state")
		}
	}

	// Late polls keep observing the terminal state.
	state, err := orch.Poll(context.Background(), jobID)
	require.NoError(t, err)
	require.True(t, state.Phase.Terminal())
}

func TestRetryOnPipelineFault(t *testing.T) {
	states := newMemStateRepo()
	fetcher := &mapFetcher{pages: map[string]string{
		"http://search.test": forumSearchPage(),
		forumThreadURL:       forumThreadPage(),
	}}
	fetcher.panicsLeft.Store(1)
	orch := startOrchestrator(t, testConfig(), fetcher, &countingRenderer{}, downNormalizer{}, states)

	jobID, err := orch.Submit(context.Background(), entity.HarvestRequest{
		Product: "Acme Blender X200",
		Kind:    entity.SourceForum,
	})
	require.NoError(t, err)

	state := waitForTerminal(t, orch, jobID)
	require.Equal(t, entity.PhaseSuccess, state.Phase, "second attempt succeeds")
	require.Contains(t, states.phases(jobID), entity.PhaseRetry)
}

func TestRetriesExhaustedReportsFailure(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 1
	states := newMemStateRepo()
	fetcher := &mapFetcher{}
	fetcher.panicsLeft.Store(100)
	orch := startOrchestrator(t, cfg, fetcher, &countingRenderer{}, downNormalizer{}, states)

	jobID, err := orch.Submit(context.Background(), entity.HarvestRequest{
		Product: "Acme Blender X200",
		Kind:    entity.SourceForum,
	})
	require.NoError(t, err)

	state := waitForTerminal(t, orch, jobID)
	require.Equal(t, entity.PhaseFailure, state.Phase)
	require.NotEmpty(t, state.Error)
	require.Nil(t, state.Result)
}

func TestNormalizerVerdictsFilterCandidates(t *testing.T) {
	cfg := testConfig()
	cfg.RenderBudget = 0
	pageA := "<html><body><p>Genuine opinion: this kettle is excellent and boils water surprisingly fast every morning.</p></body></html>"
	pageB := "<html><body><p>Borderline: purchased through the store but this reads like marketing copy rather than an owner account.</p></body></html>"

	states := newMemStateRepo()
	fetcher := &mapFetcher{pages: map[string]string{
		"http://a.test": pageA,
		"http://b.test": pageB,
	}}
	orch := startOrchestrator(t, cfg, fetcher, &countingRenderer{}, scoringNormalizer{}, states)

	jobID, err := orch.Submit(context.Background(), entity.HarvestRequest{
		Product:   "Acme Kettle",
		Kind:      entity.SourceRetailer,
		StoreURLs: []string{"http://a.test/p", "http://b.test/p"},
	})
	require.NoError(t, err)

	state := waitForTerminal(t, orch, jobID)
	require.Equal(t, entity.PhaseSuccess, state.Phase)
	require.Equal(t, 1, state.Result.TotalFound)
	require.Equal(t, 2, state.Result.RawCount)
	require.Equal(t, "mixed", state.Result.Summary.OverallSentiment)
	require.Equal(t, 0.92, state.Result.Reviews[0].Confidence)
}

func TestDuplicateSubmissionReturnsExistingJob(t *testing.T) {
	states := newMemStateRepo()
	orch := startOrchestrator(t, testConfig(), &mapFetcher{}, &countingRenderer{}, downNormalizer{}, states)

	req := entity.HarvestRequest{
		Product:    "Acme Blender X200",
		Kind:       entity.SourceShopping,
		SurfaceURL: "http://surface.test/product",
	}
	first, err := orch.Submit(context.Background(), req)
	require.NoError(t, err)
	second, err := orch.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSubmitValidation(t *testing.T) {
	orch := NewOrchestrator(testConfig(), &mapFetcher{}, &countingRenderer{}, downNormalizer{}, newMemStateRepo(), nil)

	cases := []entity.HarvestRequest{
		{Product: "Acme", Kind: "blog"},
		{Product: "   ", Kind: entity.SourceForum},
		{Product: "Acme", Kind: entity.SourceRetailer},
		{Product: "Acme", Kind: entity.SourceShopping},
	}
	for _, req := range cases {
		_, err := orch.Submit(context.Background(), req)
		require.ErrorIs(t, err, ErrInvalidRequest)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 0
	states := newMemStateRepo()
	// Not started: nothing drains the queue.
	orch := NewOrchestrator(cfg, &mapFetcher{}, &countingRenderer{}, downNormalizer{}, states, nil)

	jobID, err := orch.Submit(context.Background(), entity.HarvestRequest{
		Product:    "Acme Blender X200",
		Kind:       entity.SourceShopping,
		SurfaceURL: "http://surface.test/product",
	})
	require.ErrorIs(t, err, ErrQueueFull)
	require.Empty(t, jobID)
}
