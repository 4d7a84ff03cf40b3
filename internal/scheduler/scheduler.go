package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
	"github.com/samvad-hq/samvad-newsdesk/internal/identity"
	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
	"github.com/samvad-hq/samvad-newsdesk/internal/metrics"
	"github.com/samvad-hq/samvad-newsdesk/internal/storage"
	"github.com/samvad-hq/samvad-newsdesk/pkg/publishers"
	"github.com/samvad-hq/samvad-newsdesk/pkg/sources"
)

const (
	defaultCooldown       = 24 * time.Hour
	defaultRunTimeout     = 5 * time.Minute
	defaultPublishTimeout = 30 * time.Second

	interruptedMessage = "interrupted before completion"
)

// Outcome is the per-source result of one trigger.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeNoNew          Outcome = "no_new"
	OutcomeError          Outcome = "error"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeAlreadyRunning Outcome = "already_running"
)

// RunResult reports what a trigger did for one source.
type RunResult struct {
	Source      string  `json:"source"`
	Name        string  `json:"name"`
	Outcome     Outcome `json:"status"`
	NewArticles int     `json:"new_articles"`
	Message     string  `json:"message,omitempty"`
	// RetryAfterSeconds is set when the cooldown guard skipped the run.
	RetryAfterSeconds int64 `json:"retry_after_seconds,omitempty"`
}

// Options tunes the guard and run bounds.
type Options struct {
	Cooldown       time.Duration
	RunTimeout     time.Duration
	PublishTimeout time.Duration
	Now            func() time.Time
}

// Service drives scrape runs per source. Each source has one in-process guard
// shared by the periodic timer and manual triggers.
type Service struct {
	store      storage.Store
	fetchers   map[string]sources.Fetcher
	order      []string
	guards     map[string]*sync.Mutex
	dispatcher publishers.Dispatcher
	metrics    *metrics.Metrics
	log        logger.Logger
	opts       Options
}

// NewService registers every fetcher with the store and recovers rows left
// in running by a previous process.
func NewService(store storage.Store, fetchers []sources.Fetcher, dispatcher publishers.Dispatcher, m *metrics.Metrics, log logger.Logger, opts Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("scheduler requires a store")
	}
	if len(fetchers) == 0 {
		return nil, fmt.Errorf("no sources configured for scraping")
	}
	opts = normalizeOptions(opts)

	s := &Service{
		store:      store,
		fetchers:   make(map[string]sources.Fetcher, len(fetchers)),
		guards:     make(map[string]*sync.Mutex, len(fetchers)),
		dispatcher: dispatcher,
		metrics:    m,
		log:        logger.OrNop(log),
		opts:       opts,
	}
	for _, f := range fetchers {
		id := f.ID()
		if _, dup := s.fetchers[id]; dup {
			return nil, fmt.Errorf("duplicate source id %q", id)
		}
		if err := s.register(id); err != nil {
			return nil, err
		}
		s.fetchers[id] = f
		s.guards[id] = &sync.Mutex{}
		s.order = append(s.order, id)
	}
	return s, nil
}

func normalizeOptions(opts Options) Options {
	if opts.Cooldown <= 0 {
		opts.Cooldown = defaultCooldown
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

func (s *Service) register(id string) error {
	state, err := s.store.EnsureScrapeState(id)
	if err != nil {
		return fmt.Errorf("register source %s: %w", id, err)
	}
	if state.Status != domain.StatusRunning {
		return nil
	}
	msg := interruptedMessage
	state.Status = domain.StatusError
	state.ErrorMessage = &msg
	if err := s.store.SetScrapeState(state); err != nil {
		return fmt.Errorf("recover source %s: %w", id, err)
	}
	s.log.WarnObj("recovered interrupted scrape", "scrape_state", map[string]any{
		"source": id,
	})
	return nil
}

// SourceIDs returns registered source ids in registry order.
func (s *Service) SourceIDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// DisplayName returns the human name for a source id, or the id itself.
func (s *Service) DisplayName(id string) string {
	if f, ok := s.fetchers[id]; ok {
		return f.DisplayName()
	}
	return id
}

// Has reports whether id is a registered source.
func (s *Service) Has(id string) bool {
	_, ok := s.fetchers[id]
	return ok
}

// RunAll triggers every source concurrently and returns results in registry order.
func (s *Service) RunAll(ctx context.Context, force bool) []RunResult {
	return s.runMany(ctx, s.order, force)
}

// Trigger runs the given sources, or every source when ids is empty.
func (s *Service) Trigger(ctx context.Context, ids []string, force bool) ([]RunResult, error) {
	if len(ids) == 0 {
		return s.RunAll(ctx, force), nil
	}
	for _, id := range ids {
		if !s.Has(id) {
			return nil, fmt.Errorf("trigger %q: %w", id, domain.ErrUnknownSource)
		}
	}
	return s.runMany(ctx, ids, force), nil
}

func (s *Service) runMany(ctx context.Context, ids []string, force bool) []RunResult {
	results := make([]RunResult, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			res, err := s.RunSource(ctx, id, force)
			if err != nil && !isSkip(err) {
				s.log.ErrorObj("source scrape failed", "scrape_error", map[string]any{
					"source": id,
					"error":  err.Error(),
				})
			}
			results[i] = res
		}(i, id)
	}
	wg.Wait()
	return results
}

func isSkip(err error) bool {
	return errors.Is(err, domain.ErrCooldownActive) || errors.Is(err, domain.ErrAlreadyRunning)
}

// RunSource performs one guarded run. A refused trigger returns a filled
// RunResult together with domain.ErrCooldownActive or domain.ErrAlreadyRunning.
// Source failures are recorded on the ScrapeState and returned.
func (s *Service) RunSource(ctx context.Context, id string, force bool) (RunResult, error) {
	fetcher, ok := s.fetchers[id]
	if !ok {
		return RunResult{Source: id, Name: id}, fmt.Errorf("run %q: %w", id, domain.ErrUnknownSource)
	}
	result := RunResult{Source: id, Name: fetcher.DisplayName()}

	guard := s.guards[id]
	if !guard.TryLock() {
		s.metrics.Skipped(id, metrics.ReasonAlreadyRunning)
		result.Outcome = OutcomeAlreadyRunning
		result.Message = "scrape already running"
		return result, fmt.Errorf("run %s: %w", id, domain.ErrAlreadyRunning)
	}
	defer guard.Unlock()

	state, err := s.store.GetScrapeState(id)
	if err != nil {
		result.Outcome = OutcomeError
		result.Message = err.Error()
		return result, fmt.Errorf("load scrape state %s: %w", id, err)
	}

	started := s.opts.Now().UTC()
	if !force {
		if remaining := state.CooldownRemaining(started, s.opts.Cooldown); remaining > 0 {
			s.metrics.Skipped(id, metrics.ReasonCooldown)
			result.Outcome = OutcomeSkipped
			result.Message = "skipped, cooldown active"
			result.RetryAfterSeconds = int64(remaining.Round(time.Second) / time.Second)
			s.log.DebugObj("scrape skipped", "scrape_skip", map[string]any{
				"source":            id,
				"remaining_seconds": result.RetryAfterSeconds,
			})
			return result, fmt.Errorf("run %s: %w", id, domain.ErrCooldownActive)
		}
	}

	state.Status = domain.StatusRunning
	if err := s.store.SetScrapeState(state); err != nil {
		result.Outcome = OutcomeError
		result.Message = err.Error()
		return result, fmt.Errorf("mark %s running: %w", id, err)
	}

	inserted, runErr := s.scrape(ctx, fetcher, started)
	finished := s.opts.Now().UTC()
	// Cooldown counts from the attempt start, not its end.
	state.LastScrapedAt = &started

	if runErr != nil {
		msg := runErr.Error()
		state.Status = domain.StatusError
		state.ErrorMessage = &msg
		result.Outcome = OutcomeError
		result.Message = msg
	} else {
		state.Status = domain.StatusNoNew
		if len(inserted) > 0 {
			state.Status = domain.StatusSuccess
		}
		state.ArticlesFound = len(inserted)
		state.ErrorMessage = nil
		result.Outcome = Outcome(state.Status)
		result.NewArticles = len(inserted)
	}

	if err := s.store.SetScrapeState(state); err != nil {
		s.log.ErrorObj("persist scrape state failed", "scrape_error", map[string]any{
			"source": id,
			"error":  err.Error(),
		})
		runErr = errors.Join(runErr, fmt.Errorf("persist scrape state %s: %w", id, err))
	}
	s.metrics.ObserveRun(id, string(state.Status), len(inserted), finished.Sub(started))

	if len(inserted) > 0 {
		s.publish(ctx, inserted)
	}

	s.log.InfoObj("source scrape completed", "scrape_result", map[string]any{
		"source":       id,
		"status":       state.Status,
		"new_articles": len(inserted),
		"elapsed_ms":   finished.Sub(started).Milliseconds(),
	})
	return result, runErr
}

// scrape fetches, filters and appends. The run is detached from the caller's
// cancellation and bounded by RunTimeout.
func (s *Service) scrape(ctx context.Context, fetcher sources.Fetcher, started time.Time) ([]domain.Article, error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RunTimeout)
	defer cancel()

	id := fetcher.ID()
	raws, err := fetcher.Fetch(runCtx)
	if err != nil {
		var se *domain.SourceError
		if !errors.As(err, &se) && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, domain.Unreachable(id, "run timed out", err)
		}
		return nil, err
	}

	existing, err := s.store.ArticleIDs()
	if err != nil {
		return nil, fmt.Errorf("load article ids: %w", err)
	}
	res := identity.Filter(identity.Origin{
		Source:        id,
		SourceDisplay: fetcher.DisplayName(),
		ScrapedAt:     started,
	}, raws, existing)
	if len(res.Rejected) > 0 {
		s.log.WarnObj("raw articles rejected", "identity_rejects", map[string]any{
			"source":   id,
			"rejected": res.Rejected,
		})
	}

	inserted, err := s.store.Append(res.Articles)
	if err != nil {
		s.log.ErrorObj("article append failed", "store_error", map[string]any{
			"source": id,
			"batch":  len(res.Articles),
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("append articles: %w", err)
	}
	return inserted, nil
}

// publish is best-effort; failures are logged and counted only.
func (s *Service) publish(ctx context.Context, articles []domain.Article) {
	if s.dispatcher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
	defer cancel()

	delivered, failed := 0, 0
	for _, a := range articles {
		if _, err := s.dispatcher.Publish(pubCtx, publishers.NewEvent(a)); err != nil {
			failed++
			s.log.WarnObj("article event publish failed", "publish_error", map[string]any{
				"article_id": a.ID,
				"source":     a.Source,
				"error":      err.Error(),
			})
			continue
		}
		delivered++
	}
	s.metrics.Published(delivered, failed)
}

// States returns the scrape state of every registered source in registry order.
func (s *Service) States() ([]domain.ScrapeState, error) {
	all, err := s.store.ScrapeStates()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.ScrapeState, len(all))
	for _, st := range all {
		byID[st.Source] = st
	}
	out := make([]domain.ScrapeState, 0, len(s.order))
	for _, id := range s.order {
		st, ok := byID[id]
		if !ok {
			st = domain.NewScrapeState(id)
		}
		out = append(out, st)
	}
	return out, nil
}
