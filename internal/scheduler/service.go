package scheduler

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/oceanwatch/hazard-monitor/internal/ingest"
)

// Runner runs one ingestion pass over every platform.
type Runner interface {
	RunAll(ctx context.Context) []*ingest.RunResult
}

// Service handles scheduling of ingestion runs
type Service struct {
	schedule string
	runner   Runner
	cron     *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a scheduler running runner on schedule, a cron
// expression with a seconds field. A tick is skipped while the previous
// run is still going.
func NewService(schedule string, runner Runner) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		schedule: schedule,
		runner:   runner,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logrus.StandardLogger()))),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the scheduled ingestion
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.RunNow()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with schedule %q", s.schedule)
	return nil
}

// RunNow runs one pass immediately on the calling goroutine.
func (s *Service) RunNow() {
	s.wg.Add(1)
	defer s.wg.Done()

	logrus.Info("Starting scheduled ingestion run")
	saved := 0
	results := s.runner.RunAll(s.ctx)
	for _, res := range results {
		saved += res.Saved
	}
	logrus.WithFields(logrus.Fields{"platforms": len(results), "saved": saved}).Info("Scheduled ingestion run completed")
}

// Stop stops the scheduler, cancels a run in progress and waits for it.
func (s *Service) Stop() {
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
	s.wg.Wait()
	logrus.Info("Scheduler stopped")
}
