package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anavictoriasalon/citabot/internal/channels/whatsapp"
	"github.com/anavictoriasalon/citabot/pkg/logging"
)

// ErrDispatcherClosed indicates the dispatcher no longer accepts work.
var ErrDispatcherClosed = errors.New("engine: dispatcher closed")

const (
	defaultWorkerBuffer = 64
	defaultIdleAfter    = 2 * time.Minute
)

// Dispatcher runs one logical worker per customer phone. Messages for the
// same phone execute strictly in arrival order; different phones run
// concurrently. Idle workers are garbage collected.
type Dispatcher struct {
	handler   func(ctx context.Context, msg whatsapp.Inbound)
	logger    *logging.Logger
	idleAfter time.Duration

	mu      sync.Mutex
	workers map[string]*phoneWorker
	closed  bool
	wg      sync.WaitGroup
}

type phoneWorker struct {
	ch chan whatsapp.Inbound
}

// DispatcherOption customizes dispatcher behavior.
type DispatcherOption func(*Dispatcher)

// WithIdleTimeout sets how long a customer worker lingers without messages
// before it is retired.
func WithIdleTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.idleAfter = d
		}
	}
}

func NewDispatcher(handler func(ctx context.Context, msg whatsapp.Inbound), logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if handler == nil {
		panic("engine: dispatcher handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		handler:   handler,
		logger:    logger,
		idleAfter: defaultIdleAfter,
		workers:   make(map[string]*phoneWorker),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit appends a message to its customer's ordered queue, spawning a
// worker if none is running. A full per-customer buffer drops the message
// with a warning rather than blocking other customers.
func (d *Dispatcher) Submit(msg whatsapp.Inbound) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	w, ok := d.workers[msg.From]
	if !ok {
		w = &phoneWorker{ch: make(chan whatsapp.Inbound, defaultWorkerBuffer)}
		d.workers[msg.From] = w
		d.wg.Add(1)
		go d.run(msg.From, w)
	}

	// Enqueued under the lock so retire cannot race the send: a worker is
	// only removed when its buffer is observably empty.
	select {
	case w.ch <- msg:
		return nil
	default:
		d.logger.Warn("customer queue full, dropping message",
			"phone", msg.From, "message_id", msg.MessageID)
		return nil
	}
}

// Shutdown stops accepting work and waits for in-flight tasks, bounded by
// ctx. Tasks are never cancelled mid-flight.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, w := range d.workers {
		close(w.ch)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run(phone string, w *phoneWorker) {
	defer d.wg.Done()

	idle := time.NewTimer(d.idleAfter)
	defer idle.Stop()

	for {
		select {
		case msg, ok := <-w.ch:
			if !ok {
				return
			}
			// Tasks run to completion; shutdown waits rather than cancels.
			d.handler(context.Background(), msg)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idleAfter)
		case <-idle.C:
			if d.retire(phone, w) {
				return
			}
			idle.Reset(d.idleAfter)
		}
	}
}

// retire removes an idle worker from the map unless a message raced in.
func (d *Dispatcher) retire(phone string, w *phoneWorker) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		// Shutdown closed the channel; let run drain and exit.
		return false
	}
	if len(w.ch) > 0 {
		return false
	}
	delete(d.workers, phone)
	return true
}

// WorkerCount reports active customer workers, for status endpoints.
func (d *Dispatcher) WorkerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.workers)
}
