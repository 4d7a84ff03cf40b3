package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
	"github.com/samvad-hq/samvad-newsdesk/internal/metrics"
	"github.com/samvad-hq/samvad-newsdesk/internal/storage"
	"github.com/samvad-hq/samvad-newsdesk/pkg/publishers"
	"github.com/samvad-hq/samvad-newsdesk/pkg/sources"
)

type fakeFetcher struct {
	id    string
	name  string
	calls atomic.Int32

	items []domain.RawArticle
	err   error
	// entered is closed on the first call; release blocks the call until closed.
	entered    chan struct{}
	release    chan struct{}
	waitForCtx bool
	once       sync.Once
	// during runs inside Fetch, e.g. to move a test clock.
	during func()
}

func (f *fakeFetcher) ID() string          { return f.id }
func (f *fakeFetcher) DisplayName() string { return f.name }

func (f *fakeFetcher) Fetch(ctx context.Context) ([]domain.RawArticle, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.once.Do(func() { close(f.entered) })
	}
	if f.release != nil {
		<-f.release
	}
	if f.during != nil {
		f.during()
	}
	if f.waitForCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.items, f.err
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []publishers.Event
	err    error
}

func (d *fakeDispatcher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
	if d.err != nil {
		return 0, d.err
	}
	return 1, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewStore("bbolt", filepath.Join(t.TempDir(), "sched.db"), storage.Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestService(t *testing.T, store storage.Store, dispatcher publishers.Dispatcher, clk *clock, fetchers ...sources.Fetcher) *Service {
	t.Helper()
	svc, err := NewService(store, fetchers, dispatcher, metrics.New(), logger.Nop{}, Options{
		Cooldown:   24 * time.Hour,
		RunTimeout: 200 * time.Millisecond,
		Now:        clk.Now,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func bensItems() []domain.RawArticle {
	return []domain.RawArticle{
		{Title: "Agents all the way down", URL: "https://bensbites.com/p/agents"},
		{Title: "Models ship weekly now", URL: "https://bensbites.com/p/models?utm=x"},
	}
}

func TestRunSourceSuccessThenCooldown(t *testing.T) {
	store := newTestStore(t)
	clk := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	bens := &fakeFetcher{id: "bens_bites", name: "Ben's Bites", items: bensItems()}
	svc := newTestService(t, store, nil, clk, bens)
	ctx := context.Background()

	res, err := svc.RunSource(ctx, "bens_bites", false)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if res.Outcome != OutcomeSuccess || res.NewArticles != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	state, _ := store.GetScrapeState("bens_bites")
	if state.Status != domain.StatusSuccess || state.ArticlesFound != 2 || state.LastScrapedAt == nil {
		t.Fatalf("unexpected state %+v", state)
	}

	clk.Advance(23 * time.Hour)
	res, err = svc.RunSource(ctx, "bens_bites", false)
	if !errors.Is(err, domain.ErrCooldownActive) {
		t.Fatalf("expected cooldown, got %v", err)
	}
	if res.Outcome != OutcomeSkipped || res.RetryAfterSeconds != int64(time.Hour/time.Second) {
		t.Fatalf("unexpected skip result %+v", res)
	}
	if got := bens.calls.Load(); got != 1 {
		t.Fatalf("adapter must run once inside the cooldown, ran %d", got)
	}

	clk.Advance(time.Hour)
	res, err = svc.RunSource(ctx, "bens_bites", false)
	if err != nil {
		t.Fatalf("due run: %v", err)
	}
	if res.Outcome != OutcomeNoNew {
		t.Fatalf("repeat listing should yield no_new, got %+v", res)
	}
	state, _ = store.GetScrapeState("bens_bites")
	if state.Status != domain.StatusNoNew || state.ArticlesFound != 0 {
		t.Fatalf("unexpected state after duplicate run %+v", state)
	}
	if count, _ := store.CountArticles(); count != 2 {
		t.Fatalf("duplicates must not be stored, count=%d", count)
	}
}

func TestSlowFetchDoesNotPushBackNextDueRun(t *testing.T) {
	store := newTestStore(t)
	started := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clk := &clock{now: started}
	bens := &fakeFetcher{id: "bens_bites", name: "Ben's Bites", items: bensItems()}
	bens.during = func() { clk.Advance(7 * time.Second) }
	svc := newTestService(t, store, nil, clk, bens)
	ctx := context.Background()

	if _, err := svc.RunSource(ctx, "bens_bites", false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	state, _ := store.GetScrapeState("bens_bites")
	if state.LastScrapedAt == nil || !state.LastScrapedAt.Equal(started) {
		t.Fatalf("last_scraped_at should be the attempt start, got %v", state.LastScrapedAt)
	}

	// Next timer tick lands exactly one cooldown after the first one fired.
	clk.Advance(started.Add(24 * time.Hour).Sub(clk.Now()))
	res, err := svc.RunSource(ctx, "bens_bites", false)
	if err != nil {
		t.Fatalf("tick one cooldown later must run, got %v (%+v)", err, res)
	}
	if got := bens.calls.Load(); got != 2 {
		t.Fatalf("expected two adapter calls, got %d", got)
	}
}

func TestForceBypassesCooldown(t *testing.T) {
	store := newTestStore(t)
	clk := &clock{now: time.Now().UTC()}
	bens := &fakeFetcher{id: "bens_bites", name: "Ben's Bites", items: bensItems()}
	svc := newTestService(t, store, nil, clk, bens)

	if _, err := svc.RunSource(context.Background(), "bens_bites", false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := svc.RunSource(context.Background(), "bens_bites", true); err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if got := bens.calls.Load(); got != 2 {
		t.Fatalf("forced run should reach the adapter, calls=%d", got)
	}
}

func TestFailureKeepsArticlesFoundAndStartsCooldown(t *testing.T) {
	store := newTestStore(t)
	clk := &clock{now: time.Now().UTC()}
	bens := &fakeFetcher{id: "bens_bites", name: "Ben's Bites", items: bensItems()}
	svc := newTestService(t, store, nil, clk, bens)
	ctx := context.Background()

	if _, err := svc.RunSource(ctx, "bens_bites", false); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	bens.err = domain.ParseFailure("bens_bites", "listing yielded no items", nil)
	clk.Advance(25 * time.Hour)
	res, err := svc.RunSource(ctx, "bens_bites", false)
	if !domain.IsSourceError(err, domain.KindParseFailure) {
		t.Fatalf("expected parse failure, got %v", err)
	}
	if res.Outcome != OutcomeError {
		t.Fatalf("unexpected result %+v", res)
	}

	state, _ := store.GetScrapeState("bens_bites")
	if state.Status != domain.StatusError || state.ErrorMessage == nil {
		t.Fatalf("expected error state, got %+v", state)
	}
	if state.ArticlesFound != 2 {
		t.Fatalf("articles_found must be untouched on failure, got %d", state.ArticlesFound)
	}
	if !state.LastScrapedAt.Equal(clk.Now()) {
		t.Fatalf("last_scraped_at should record the attempt, got %v", state.LastScrapedAt)
	}

	if _, err := svc.RunSource(ctx, "bens_bites", false); !errors.Is(err, domain.ErrCooldownActive) {
		t.Fatalf("cooldown must apply after failure, got %v", err)
	}

	bens.err = nil
	clk.Advance(25 * time.Hour)
	if _, err := svc.RunSource(ctx, "bens_bites", false); err != nil {
		t.Fatalf("recovery run: %v", err)
	}
	state, _ = store.GetScrapeState("bens_bites")
	if state.Status != domain.StatusNoNew || state.ErrorMessage != nil || state.ArticlesFound != 0 {
		t.Fatalf("recovered run should clear the error, got %+v", state)
	}
}

func TestTimeoutDoesNotBlockOtherSources(t *testing.T) {
	store := newTestStore(t)
	clk := &clock{now: time.Now().UTC()}
	bens := &fakeFetcher{id: "bens_bites", name: "Ben's Bites", items: bensItems()}
	rundown := &fakeFetcher{id: "the_rundown", name: "The Rundown AI", waitForCtx: true}
	svc := newTestService(t, store, nil, clk, bens, rundown)

	results := svc.RunAll(context.Background(), false)
	if len(results) != 2 {
		t.Fatalf("expected two results, got %+v", results)
	}
	if results[0].Source != "bens_bites" || results[0].Outcome != OutcomeSuccess {
		t.Fatalf("bens_bites should succeed, got %+v", results[0])
	}
	if results[1].Source != "the_rundown" || results[1].Outcome != OutcomeError {
		t.Fatalf("the_rundown should fail, got %+v", results[1])
	}

	state, _ := store.GetScrapeState("the_rundown")
	if state.Status != domain.StatusError || state.ErrorMessage == nil {
		t.Fatalf("unexpected rundown state %+v", state)
	}
	if count, _ := store.CountArticles(); count != 2 {
		t.Fatalf("bens_bites articles should be stored, count=%d", count)
	}
}

func TestRunTimeoutIsUnreachable(t *testing.T) {
	store := newTestStore(t)
	clk := &clock{now: time.Now().UTC()}
	rundown := &fakeFetcher{id: "the_rundown", name: "The Rundown AI", waitForCtx: true}
	svc := newTestService(t, store, nil, clk, rundown)

	_, err := svc.RunSource(context.Background(), "the_rundown", false)
	if !domain.IsSourceError(err, domain.KindSourceUnreachable) {
		t.Fatalf("expected unreachable, got %v", err)
	}
}

func TestConcurrentTriggerIsRejected(t *testing.T) {
	store := newTestStore(t)
	clk := &clock{now: time.Now().UTC()}
	bens := &fakeFetcher{
		id: "bens_bites", name: "Ben's Bites", items: bensItems(),
		entered: make(chan struct{}), release: make(chan struct{}),
	}
	svc := newTestService(t, store, nil, clk, bens)

	done := make(chan RunResult)
	go func() {
		res, _ := svc.RunSource(context.Background(), "bens_bites", true)
		done <- res
	}()
	<-bens.entered

	state, _ := store.GetScrapeState("bens_bites")
	if state.Status != domain.StatusRunning {
		t.Fatalf("expected running while the adapter works, got %s", state.Status)
	}

	res, err := svc.RunSource(context.Background(), "bens_bites", true)
	if !errors.Is(err, domain.ErrAlreadyRunning) || res.Outcome != OutcomeAlreadyRunning {
		t.Fatalf("expected rejection, got %+v err=%v", res, err)
	}

	close(bens.release)
	if first := <-done; first.Outcome != OutcomeSuccess {
		t.Fatalf("first run should finish normally, got %+v", first)
	}
	if got := bens.calls.Load(); got != 1 {
		t.Fatalf("rejected trigger must not be queued, calls=%d", got)
	}
}

func TestEventsPublishedBestEffort(t *testing.T) {
	store := newTestStore(t)
	clk := &clock{now: time.Now().UTC()}
	bens := &fakeFetcher{id: "bens_bites", name: "Ben's Bites", items: bensItems()}
	dispatcher := &fakeDispatcher{err: errors.New("sink down")}
	svc := newTestService(t, store, dispatcher, clk, bens)

	res, err := svc.RunSource(context.Background(), "bens_bites", false)
	if err != nil || res.Outcome != OutcomeSuccess {
		t.Fatalf("publish failure must not fail the run: %+v err=%v", res, err)
	}
	if len(dispatcher.events) != 2 {
		t.Fatalf("expected one event per inserted article, got %d", len(dispatcher.events))
	}
	if dispatcher.events[0].SourceID != "bens_bites" || dispatcher.events[0].SourceName != "Ben's Bites" {
		t.Fatalf("unexpected event %+v", dispatcher.events[0])
	}
}

func TestStartupRecoversInterruptedRun(t *testing.T) {
	store := newTestStore(t)
	state, _ := store.EnsureScrapeState("bens_bites")
	last := time.Now().Add(-48 * time.Hour).UTC()
	state.Status = domain.StatusRunning
	state.LastScrapedAt = &last
	if err := store.SetScrapeState(state); err != nil {
		t.Fatalf("seed: %v", err)
	}

	clk := &clock{now: time.Now().UTC()}
	bens := &fakeFetcher{id: "bens_bites", name: "Ben's Bites", items: bensItems()}
	svc := newTestService(t, store, nil, clk, bens)

	got, _ := store.GetScrapeState("bens_bites")
	if got.Status != domain.StatusError || got.ErrorMessage == nil || *got.ErrorMessage != interruptedMessage {
		t.Fatalf("expected recovered error state, got %+v", got)
	}
	if _, err := svc.RunSource(context.Background(), "bens_bites", false); err != nil {
		t.Fatalf("recovered source should be admitted when due: %v", err)
	}
}

func TestTriggerRejectsUnknownSource(t *testing.T) {
	store := newTestStore(t)
	clk := &clock{now: time.Now().UTC()}
	svc := newTestService(t, store, nil, clk, &fakeFetcher{id: "bens_bites", name: "Ben's Bites"})

	if _, err := svc.Trigger(context.Background(), []string{"nope"}, false); !errors.Is(err, domain.ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
	states, err := svc.States()
	if err != nil || len(states) != 1 || states[0].Status != domain.StatusNeverRun {
		t.Fatalf("unexpected states %+v err=%v", states, err)
	}
}

func TestParseSchedule(t *testing.T) {
	for _, spec := range []string{"@every 24h", "0 6 * * *", "@daily"} {
		if _, err := ParseSchedule(spec); err != nil {
			t.Fatalf("%q: %v", spec, err)
		}
	}
	for _, spec := range []string{"", "every day", "* * *"} {
		if _, err := ParseSchedule(spec); err == nil {
			t.Fatalf("%q should be rejected", spec)
		}
	}
}
