package mailbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// Options configures a Mailbox.
type Options struct {
	// QueueSize is the buffer of each agent's inbound channel. Defaults
	// to 16.
	QueueSize int

	// Logger receives routing diagnostics. Defaults to NoOp logger.
	Logger logging.Logger
}

// Mailbox routes messages to per-agent inbound queues and correlates each
// one with its eventual response via a generated message id. Safe for
// concurrent use.
type Mailbox struct {
	queueSize int
	logger    logging.Logger

	mu      sync.Mutex
	queues  map[string]chan core.Envelope
	pending map[string]chan core.MessageResponse
	// byAgent indexes pending ids per agent so Unregister can abandon them.
	byAgent map[string]map[string]struct{}

	// counter feeds monotonic sequence numbers into message ids so two
	// sends in the same millisecond can never collide.
	counter atomic.Uint64
}

// New constructs an empty mailbox.
func New(optFns ...func(o *Options)) *Mailbox {
	opts := Options{
		QueueSize: 16,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Mailbox{
		queueSize: opts.QueueSize,
		logger:    opts.Logger,
		queues:    make(map[string]chan core.Envelope),
		pending:   make(map[string]chan core.MessageResponse),
		byAgent:   make(map[string]map[string]struct{}),
	}
}

// Register creates the inbound queue for agentID. Idempotent: registering an
// already-registered agent keeps the existing queue.
func (m *Mailbox) Register(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[agentID]; ok {
		return
	}
	m.queues[agentID] = make(chan core.Envelope, m.queueSize)
	m.byAgent[agentID] = make(map[string]struct{})
}

// Subscribe returns the agent's inbound channel for its worker message loop.
// Returns core.ErrMailboxClosed if the agent is not registered.
func (m *Mailbox) Subscribe(agentID string) (<-chan core.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue, ok := m.queues[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrMailboxClosed, agentID)
	}
	return queue, nil
}

// Send delivers msg to the agent's queue and blocks until the matching
// response is resolved or ctx is cancelled. The mailbox has no built-in
// timeout; a caller that needs a bound supplies it through ctx.
//
// A send to an agent whose queue was unregistered mid-wait is abandoned —
// the response channel is never resolved — so callers must treat ctx as
// their deadline of last resort.
func (m *Mailbox) Send(ctx context.Context, agentID string, msg core.Message) (core.MessageResponse, error) {
	messageID := m.nextMessageID(agentID)
	respCh := make(chan core.MessageResponse, 1)

	m.mu.Lock()
	queue, ok := m.queues[agentID]
	if !ok {
		m.mu.Unlock()
		return core.MessageResponse{}, fmt.Errorf("%w: %s", core.ErrMailboxClosed, agentID)
	}
	m.pending[messageID] = respCh
	m.byAgent[agentID][messageID] = struct{}{}
	m.mu.Unlock()

	env := core.Envelope{MessageID: messageID, Message: msg}
	select {
	case queue <- env:
	case <-ctx.Done():
		m.dropPending(agentID, messageID)
		return core.MessageResponse{}, ctx.Err()
	}

	select {
	case resp := <-respCh:
		return resp, nil
	case <-ctx.Done():
		m.dropPending(agentID, messageID)
		return core.MessageResponse{}, ctx.Err()
	}
}

// Resolve fulfills exactly one pending response and removes its bookkeeping
// entry. An unknown id — already resolved, or belonging to a terminated
// agent — is logged and otherwise ignored.
func (m *Mailbox) Resolve(messageID string, resp core.MessageResponse) {
	m.mu.Lock()
	respCh, ok := m.pending[messageID]
	if ok {
		delete(m.pending, messageID)
		for _, ids := range m.byAgent {
			delete(ids, messageID)
		}
	}
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("resolve for unknown message id %s", messageID)
		return
	}
	respCh <- resp
}

// Unregister drops the agent's queue and abandons all of its pending
// responses: their channels are never resolved, so in-flight Send calls
// unblock only through their own ctx.
func (m *Mailbox) Unregister(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[agentID]; !ok {
		return
	}
	delete(m.queues, agentID)
	for id := range m.byAgent[agentID] {
		delete(m.pending, id)
	}
	delete(m.byAgent, agentID)
}

// PendingCount returns the number of unresolved sends across all agents.
// Exposed for tests and introspection.
func (m *Mailbox) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Mailbox) dropPending(agentID, messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, messageID)
	if ids, ok := m.byAgent[agentID]; ok {
		delete(ids, messageID)
	}
}

// nextMessageID builds an id from the agent id, a monotonic counter and a
// UUID. Wall-clock time is deliberately absent: two sends in the same
// millisecond under load must still get distinct ids.
func (m *Mailbox) nextMessageID(agentID string) string {
	return fmt.Sprintf("%s-%d-%s", agentID, m.counter.Add(1), uuid.NewString())
}
