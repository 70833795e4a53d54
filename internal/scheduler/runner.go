package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"staffing-backend/config"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Runner periodically re-expands every active template over its horizon so
// the shift calendar keeps rolling forward. Inactive templates are skipped.
// The sweep is a pure top-up: ids dedup anything already generated, and
// instances holding assignments are never touched.
type Runner struct {
	svc *Service
	cfg config.ExpanderConfig
}

// NewRunner creates the periodic expansion runner.
func NewRunner(svc *Service, cfg config.ExpanderConfig) *Runner {
	return &Runner{svc: svc, cfg: cfg}
}

// Run sweeps once immediately and then on every schedule tick until the
// context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	if !r.cfg.Enabled {
		log.Println("expansion runner disabled")
		return
	}

	r.SweepOnce(ctx)
	for {
		wait := r.nextWait()
		select {
		case <-time.After(wait):
			r.SweepOnce(ctx)
		case <-ctx.Done():
			log.Println("expansion runner shutting down")
			return
		}
	}
}

// nextWait returns the duration until the next sweep: the cron schedule when
// one is configured and parses, the fixed interval otherwise.
func (r *Runner) nextWait() time.Duration {
	if r.cfg.Schedule != "" {
		if sched, err := cronParser.Parse(r.cfg.Schedule); err == nil {
			if d := time.Until(sched.Next(time.Now())); d > 0 {
				return d
			}
		} else {
			log.Printf("invalid expander schedule %q, falling back to interval: %v", r.cfg.Schedule, err)
		}
	}
	return r.cfg.Interval
}

// SweepOnce expands every active template over its own horizon.
func (r *Runner) SweepOnce(ctx context.Context) {
	templates, err := r.svc.store.ListActiveTemplates(ctx)
	if err != nil {
		log.Printf("expansion sweep: listing active templates: %v", err)
		return
	}

	total := 0
	for i := range templates {
		generated, err := r.svc.expandHorizon(ctx, &templates[i], ExpandOptions{})
		if err != nil {
			if errors.Is(err, ErrRegenerationInProgress) {
				// Someone is already regenerating this template; the next
				// sweep picks it up.
				continue
			}
			log.Printf("expansion sweep: template %s: %v", templates[i].ID, err)
			continue
		}
		total += generated
	}
	if total > 0 {
		log.Printf("expansion sweep: generated %d shift instances across %d templates", total, len(templates))
	}
}
