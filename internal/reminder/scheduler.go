package reminder

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"spicedesk/internal/service"
)

// Scheduler runs the due-reminder pass on a cron spec, default once a day
// at 09:00. The same pass is reachable through the admin run-due endpoint
// for out-of-band runs.
type Scheduler struct {
	cron     *cron.Cron
	svc      *service.Service
	cronSpec string
}

func NewScheduler(svc *service.Service, cronSpec string) *Scheduler {
	if cronSpec == "" {
		cronSpec = "0 9 * * *"
	}
	return &Scheduler{
		cron:     cron.New(),
		svc:      svc,
		cronSpec: cronSpec,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cronSpec, s.runDue); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[reminder] scheduler started, spec %q", s.cronSpec)
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Printf("[reminder] scheduler stopped")
}

func (s *Scheduler) runDue() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	resp, err := s.svc.RunDueReminders(ctx)
	if err != nil {
		log.Printf("[reminder] WARN: due reminder pass failed: %v", err)
		return
	}
	if resp.Dispatched > 0 {
		log.Printf("[reminder] dispatched %d payment reminders", resp.Dispatched)
	}
}
