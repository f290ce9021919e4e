package sync

import (
	"log"

	"github.com/robfig/cron/v3"
)

// Scheduler fires incremental sync runs on a cron expression, feeding the
// same queue the HTTP trigger uses so scheduled and manual runs never
// interleave.
type Scheduler struct {
	cron  *cron.Cron
	queue *Queue
	spec  string
}

func NewScheduler(queue *Queue, spec string) *Scheduler {
	return &Scheduler{cron: cron.New(), queue: queue, spec: spec}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		id, err := s.queue.EnqueueIncremental()
		if err != nil {
			log.Printf("[WARN] scheduled incremental sync not enqueued: %v", err)
			return
		}
		log.Printf("[INFO] scheduled incremental sync enqueued as job %s", id)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[INFO] sync scheduler started (cron %q)", s.spec)
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Printf("[INFO] sync scheduler stopped")
}
