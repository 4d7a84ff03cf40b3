package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a cron expression or descriptor such as "@every 24h".
func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("schedule is empty")
	}
	sched, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return sched, nil
}

// Run fires an initial pass over every source, then one per schedule tick,
// until ctx is cancelled. Ticks reuse the cooldown guard, so a source that ran
// recently is skipped rather than re-scraped.
func (s *Service) Run(ctx context.Context, spec string) error {
	sched, err := ParseSchedule(spec)
	if err != nil {
		return err
	}

	c := cron.New(cron.WithParser(scheduleParser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Schedule(sched, cron.FuncJob(func() { s.tick(ctx, "scheduled") }))

	s.log.InfoObj("scrape scheduler starting", "scheduler_state", map[string]any{
		"sources":  s.order,
		"schedule": spec,
		"cooldown": s.opts.Cooldown.String(),
	})

	c.Start()
	s.tick(ctx, "initial")

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	s.log.InfoObj("scrape scheduler exiting", "reason", ctx.Err())
	return nil
}

func (s *Service) tick(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	results := s.RunAll(ctx, false)

	summary := make(map[string]Outcome, len(results))
	for _, r := range results {
		summary[r.Source] = r.Outcome
	}
	s.log.InfoObj("scrape pass completed", "scrape_pass", map[string]any{
		"trigger":    trigger,
		"outcomes":   summary,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
}
