package weaver

import (
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/aboosoyeed/weaver/internal/logger"
	"github.com/aboosoyeed/weaver/internal/metrics"
)

// Compactor drives DB.RunCompaction on a timer (spec §4.7), adapted from the
// teacher's docdb compaction loop. Ticks are submitted through a
// single-slot, non-blocking ants.Pool rather than invoked directly off the
// ticker goroutine: if a rewrite is still running when the next tick fires,
// the submission is rejected and that tick is simply skipped, so a slow
// rewrite can never queue up a backlog of overlapping compactions.
type Compactor struct {
	db       *DB
	interval time.Duration
	log      *logger.Logger
	mx       *metrics.Metrics

	pool *ants.Pool

	stopOnce sync.Once
	done     chan struct{}
	stopped  chan struct{}
}

func newCompactor(db *DB, interval time.Duration, log *logger.Logger, mx *metrics.Metrics) *Compactor {
	log = log.Component("compactor")

	pool, err := ants.NewPool(1, ants.WithNonblocking(true))
	if err != nil {
		// ants.NewPool only fails on an invalid size; 1 is always valid, but
		// fall back to a nil pool (ticks run inline) rather than panic.
		log.Error("failed to create worker pool: %v", err)
		pool = nil
	}

	return &Compactor{
		db:       db,
		interval: interval,
		log:      log,
		mx:       mx,
		pool:     pool,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start begins the ticker loop in its own goroutine.
func (c *Compactor) Start() {
	go c.run()
}

func (c *Compactor) run() {
	defer close(c.stopped)

	interval := c.interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Compactor) tick() {
	run := func() {
		if err := c.db.RunCompaction(); err != nil {
			c.log.Warn("compaction tick failed, will retry next interval: %v", err)
		}
	}

	if c.pool == nil {
		run()
		return
	}

	if err := c.pool.Submit(run); err != nil {
		c.log.Debug("compaction tick skipped, previous rewrite still running: %v", err)
	}
}

// Stop cancels the ticker loop between ticks (spec §4.7 "Cancellation") and
// waits for it to exit. An in-progress rewrite submitted to the pool is not
// interrupted; it either completes and its rename is observed, or it leaves
// only wal.log.new behind for the next Open to ignore.
func (c *Compactor) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
	<-c.stopped
	if c.pool != nil {
		c.pool.Release()
	}
}
