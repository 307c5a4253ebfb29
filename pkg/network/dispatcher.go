package network

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var logger = log.With().Str("component", "network").Logger()

// Dispatcher is the server's logic tick loop: a single goroutine that
// drains queued tasks once per tick. Deferred output flushes run here,
// which is what coalesces many small writes into one frame per
// connection per tick.
type Dispatcher struct {
	interval time.Duration
	tasks    chan func()
	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
}

// NewDispatcher builds a dispatcher ticking at the given interval.
func NewDispatcher(interval time.Duration) *Dispatcher {
	return &Dispatcher{
		interval: interval,
		tasks:    make(chan func(), 4096),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop. Safe to call once.
func (d *Dispatcher) Start() {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	go d.loop()
}

// Stop shuts the loop down after one final drain, so tasks queued
// before Stop still run. Blocks until the loop has exited.
func (d *Dispatcher) Stop() {
	if !d.started.Load() {
		return
	}
	close(d.stop)
	<-d.done
}

// Schedule queues a task for the next tick. Tasks run in submission
// order on the loop goroutine. After Stop the task is dropped.
func (d *Dispatcher) Schedule(task func()) {
	select {
	case <-d.done:
	case d.tasks <- task:
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			d.drain()
			return
		case <-ticker.C:
			d.drain()
		}
	}
}

// drain runs every task queued so far. Tasks scheduled by a running
// task land in the channel and run on the same drain, so the loop keeps
// going until the queue is momentarily empty.
func (d *Dispatcher) drain() {
	for {
		select {
		case task := <-d.tasks:
			task()
		default:
			return
		}
	}
}
