package masterindex

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kartikbazzad/gasdb/gasdblog"
)

// Janitor periodically dispatches CleanupExpiredLocks through a small ants
// worker pool, so a long-idle process's stale locks don't sit visible until
// some other accessor happens to trip over them. Optional: correctness never
// depends on it running, since every lock read already self-expires.
//
// Grounded on docdb/internal/docdb's HealingService (Start/Stop lifecycle:
// a stopCh + WaitGroup-guarded ticker loop) and docdb/internal/pool's use of
// panjf2000/ants for the worker pool itself.
type Janitor struct {
	mi       *MasterIndex
	interval time.Duration
	logger   *gasdblog.Logger
	pool     *ants.Pool

	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	running bool
}

// NewJanitor constructs a Janitor that cleans up mi's expired locks every
// interval, dispatched through a one-worker ants.Pool.
func NewJanitor(mi *MasterIndex, interval time.Duration, logger *gasdblog.Logger) (*Janitor, error) {
	pool, err := ants.NewPool(1, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &Janitor{mi: mi, interval: interval, logger: logger, pool: pool, stopCh: make(chan struct{})}, nil
}

// Start begins the background cleanup loop. A no-op if already running.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}
	j.running = true
	j.wg.Add(1)
	go j.loop()
}

// Stop ends the background cleanup loop and releases the worker pool.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	j.mu.Unlock()

	close(j.stopCh)
	j.wg.Wait()
	j.pool.Release()
}

func (j *Janitor) loop() {
	defer j.wg.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	err := j.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.interval)
		defer cancel()
		removed, err := j.mi.CleanupExpiredLocks(ctx, time.Now().UTC())
		if err != nil {
			if j.logger != nil {
				j.logger.Warn("masterindex: lock cleanup sweep failed: " + err.Error())
			}
			return
		}
		if removed && j.logger != nil {
			j.logger.Info("masterindex: expired locks cleaned up")
		}
	})
	if err != nil && j.logger != nil {
		j.logger.Warn("masterindex: lock cleanup sweep dropped: pool busy")
	}
}
