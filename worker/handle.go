package worker

import (
	"errors"
	"sync"

	"github.com/hupe1980/agentswarm/core"
)

// errStopped is returned by Post once the runtime left its message loop.
var errStopped = errors.New("worker stopped")

// handle is the channel bundle connecting the supervisor to one runtime
// goroutine. It implements core.WorkerHandle.
type handle struct {
	ready    chan struct{}
	outbound chan core.ResponseEnvelope
	errs     chan error
	exited   chan int
	inbound  chan core.Envelope
	quit     chan struct{}
	termOnce sync.Once
}

var _ core.WorkerHandle = (*handle)(nil)

func newHandle(queueSize int) *handle {
	return &handle{
		ready:    make(chan struct{}),
		outbound: make(chan core.ResponseEnvelope, queueSize),
		errs:     make(chan error, 1),
		exited:   make(chan int, 1),
		inbound:  make(chan core.Envelope, queueSize),
		quit:     make(chan struct{}),
	}
}

func (h *handle) Ready() <-chan struct{}                 { return h.ready }
func (h *handle) Outbound() <-chan core.ResponseEnvelope { return h.outbound }
func (h *handle) Errors() <-chan error                   { return h.errs }
func (h *handle) Exited() <-chan int                     { return h.exited }

func (h *handle) Post(env core.Envelope) error {
	select {
	case <-h.quit:
		return errStopped
	case h.inbound <- env:
		return nil
	}
}

func (h *handle) Terminate() {
	h.termOnce.Do(func() { close(h.quit) })
}

// reportError surfaces a fatal runtime error without blocking; the channel
// holds one entry and the supervisor drains it.
func (h *handle) reportError(err error) {
	select {
	case h.errs <- err:
	default:
	}
}
