package transport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultShutdownTimeout = 30 * time.Second

// drainer lets shutdown wait for the requests it already admitted while
// refusing new ones. The HTTP transport admits every request through it
// and drains on context cancellation.
type drainer struct {
	timeout time.Duration
	delay   time.Duration

	mu       sync.Mutex
	draining bool
	inFlight int
	settled  chan struct{}
	once     sync.Once
}

func newDrainer(timeout, delay time.Duration) *drainer {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return &drainer{
		timeout: timeout,
		delay:   delay,
		settled: make(chan struct{}),
	}
}

// admit registers one request. It reports false once draining has
// begun; the caller answers 503 and must not call release.
func (d *drainer) admit() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draining {
		return false
	}
	d.inFlight++
	return true
}

// release retires one admitted request. The last release during a drain
// unblocks it.
func (d *drainer) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight--
	if d.draining && d.inFlight == 0 {
		d.settle()
	}
}

// settle is called with mu held.
func (d *drainer) settle() {
	d.once.Do(func() { close(d.settled) })
}

// pending reports the number of requests still in flight.
func (d *drainer) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// drain stops admitting requests and waits for the in-flight ones. The
// optional delay holds the gate open first, giving a load balancer time
// to route traffic elsewhere before requests start bouncing.
func (d *drainer) drain(ctx context.Context) error {
	if d.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.delay):
		}
	}

	d.mu.Lock()
	d.draining = true
	if d.inFlight == 0 {
		d.settle()
	}
	d.mu.Unlock()

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case <-d.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("drain timed out with %d requests in flight", d.pending())
	}
}

// WithShutdownTimeout bounds how long Serve waits for in-flight
// requests after its context is cancelled.
func WithShutdownTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.shutdownTimeout = d
	}
}

// WithShutdownDrainDelay keeps accepting requests for d after shutdown
// begins, for deployments where a load balancer needs time to notice.
func WithShutdownDrainDelay(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.drainDelay = d
	}
}
