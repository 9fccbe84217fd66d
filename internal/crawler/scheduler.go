package crawler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler manages recurring crawl and maintenance jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
	ctx       context.Context
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// ScheduleJob registers a job against a cron expression.
func (s *Scheduler) ScheduleJob(tag string, cronExpr string, job func() error) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(job)
	return err
}

// ScheduleInterval registers a job to run every duration.
func (s *Scheduler) ScheduleInterval(tag string, duration time.Duration, job func() error) error {
	_, err := s.scheduler.Every(duration).Tag(tag).Do(job)
	return err
}

func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

func (s *Scheduler) GetJobs() []*gocron.Job {
	return s.scheduler.Jobs()
}
