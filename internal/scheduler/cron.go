package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// CronRunner drives the registry on a cron schedule. It is the drop-in
// replacement for opportunistic ticking on deployments that want a real
// background job; the due-check logic is identical either way.
type CronRunner struct {
	c      *cron.Cron
	logger *slog.Logger
}

func NewCronRunner(registry *Registry, spec string, logger *slog.Logger) (*CronRunner, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		registry.RunAll(context.Background())
	})
	if err != nil {
		return nil, fmt.Errorf("add cron schedule %q: %w", spec, err)
	}
	return &CronRunner{c: c, logger: logger}, nil
}

func (r *CronRunner) Start() {
	r.logger.Info("cron runner started")
	r.c.Start()
}

// Stop halts scheduling and waits for a running job sweep to finish.
func (r *CronRunner) Stop() {
	ctx := r.c.Stop()
	<-ctx.Done()
	r.logger.Info("cron runner stopped")
}
