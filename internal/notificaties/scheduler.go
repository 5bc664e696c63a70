package notificaties

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/logger"
)

// Scheduler periodically resends pending failed notifications.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(n *Notifier, spec string) (*Scheduler, error) {
	l := cron.PrintfLogger(logger.Logrus())
	c := cron.New(cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)))
	if _, err := c.AddFunc(spec, func() {
		if _, err := n.Resend(context.Background(), nil); err != nil {
			logger.Errorf("scheduled resend: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("resend schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for a running resend to finish.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }
