// Package scheduler arms periodic sweep jobs on top of a cron runner.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service handles scheduling of sweep jobs. Each named job is
// single-flight: a tick that arrives while the previous run has not
// settled is skipped, so the effective cadence re-arms only after the
// sweep completes.
type Service struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewService creates a scheduler service.
func NewService() *Service {
	return &Service{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.PrintfLogger(logrus.StandardLogger())),
			cron.Recover(cron.PrintfLogger(logrus.StandardLogger())),
		)),
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins firing armed jobs.
func (s *Service) Start() {
	s.cron.Start()
	logrus.Info("Scheduler started")
}

// Stop stops the scheduler. In-flight jobs are not interrupted.
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}

// Arm schedules job under name at the given cadence, replacing any
// previous schedule for that name. Changing an interval therefore
// stops and re-arms the job without touching an in-flight run.
func (s *Service) Arm(name string, everyMinutes int, job func()) error {
	if everyMinutes < 1 {
		return fmt.Errorf("scheduler: interval for %s must be at least 1 minute", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
	}

	spec := fmt.Sprintf("@every %s", time.Duration(everyMinutes)*time.Minute)
	id, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("scheduler: arming %s: %w", name, err)
	}
	s.entries[name] = id
	logrus.Infof("Armed %s every %d minutes", name, everyMinutes)
	return nil
}

// Disarm removes the named job. A no-op when the name is unknown.
func (s *Service) Disarm(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
		logrus.Infof("Disarmed %s", name)
	}
}
