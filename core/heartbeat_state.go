package core

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"
	"time"
)

// HeartbeatState holds the aggregate status of one revalidation worker process.
type HeartbeatState struct {
	mu       sync.Mutex
	hb       WorkerHeartbeat
	running  map[string]int
	interval time.Duration
}

func NewHeartbeatState(workerID, hostname string, concurrency int) *HeartbeatState {
	now := time.Now()
	return &HeartbeatState{
		hb: WorkerHeartbeat{
			WorkerID:    workerID,
			Hostname:    hostname,
			PID:         os.Getpid(),
			Concurrency: concurrency,
			Status:      "starting",
			StartedAt:   now,
			UpdatedAt:   now,
			RunningJobs: []string{},
		},
		running:  make(map[string]int),
		interval: 5 * time.Second,
	}
}

// Start publishes the heartbeat immediately and then every interval until ctx is done.
func (s *HeartbeatState) Start(ctx context.Context, client RedisClientRaw) {
	s.flush(ctx, client)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx, client)
		}
	}
}

// JobStarted marks job as running.
func (s *HeartbeatState) JobStarted(job string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hb.Status = "busy"
	s.running[job]++
	s.updateRunningFieldsLocked()
}

// JobFinished updates counters once a job is done.
func (s *HeartbeatState) JobFinished(job string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[job] <= 1 {
		delete(s.running, job)
	} else {
		s.running[job]--
	}
	s.hb.ProcessedTotal++
	if err != nil {
		s.hb.FailedTotal++
		s.hb.LastError = err.Error()
	}
	if len(s.running) == 0 {
		s.hb.Status = "idle"
	} else {
		s.hb.Status = "busy"
	}
	s.updateRunningFieldsLocked()
}

// Snapshot returns a copy of the current heartbeat.
func (s *HeartbeatState) Snapshot() WorkerHeartbeat {
	s.mu.Lock()
	defer s.mu.Unlock()
	hb := s.hb
	hb.RunningJobs = append([]string(nil), s.hb.RunningJobs...)
	return hb
}

func (s *HeartbeatState) updateRunningFieldsLocked() {
	count := 0
	jobs := make([]string, 0, len(s.running))
	for job, n := range s.running {
		count += n
		jobs = append(jobs, job)
	}
	sort.Strings(jobs)
	if len(jobs) > 3 {
		jobs = jobs[:3]
	}
	s.hb.RunningCount = count
	s.hb.RunningJobs = jobs
	if len(jobs) == 0 {
		s.hb.CurrentJob = ""
	} else {
		s.hb.CurrentJob = jobs[0]
	}
}

func (s *HeartbeatState) flush(ctx context.Context, client RedisClientRaw) {
	s.mu.Lock()
	s.hb.UptimeSeconds = int64(time.Since(s.hb.StartedAt).Seconds())
	s.hb.UpdateRuntimeStats()
	hbCopy := s.hb
	hbCopy.RunningJobs = append([]string(nil), s.hb.RunningJobs...)
	s.mu.Unlock()
	if err := SaveHeartbeat(ctx, client, hbCopy); err != nil && ctx.Err() == nil {
		log.Printf("[heartbeat] save failed: %v", err)
	}
}
