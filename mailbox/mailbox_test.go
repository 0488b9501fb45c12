package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentswarm/core"
)

func TestMailbox_SendResolveRoundTrip(t *testing.T) {
	mb := New()
	mb.Register("agent-1")

	inbound, err := mb.Subscribe("agent-1")
	require.NoError(t, err)

	// Worker loop: echo the content back.
	go func() {
		env := <-inbound
		mb.Resolve(env.MessageID, core.MessageResponse{
			Success:  true,
			Response: "echo: " + env.Message.Content,
		})
	}()

	resp, err := mb.Send(context.Background(), "agent-1", core.Message{Type: "task", Content: "hello"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "echo: hello", resp.Response)
	assert.Zero(t, mb.PendingCount())
}

func TestMailbox_RegisterIdempotent(t *testing.T) {
	mb := New()
	mb.Register("agent-1")
	first, err := mb.Subscribe("agent-1")
	require.NoError(t, err)

	mb.Register("agent-1")
	second, err := mb.Subscribe("agent-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMailbox_SendToUnregisteredAgent(t *testing.T) {
	mb := New()
	_, err := mb.Send(context.Background(), "ghost", core.Message{Type: "task"})
	assert.ErrorIs(t, err, core.ErrMailboxClosed)
}

func TestMailbox_ResolveUnknownIDIsSilent(t *testing.T) {
	mb := New()
	assert.NotPanics(t, func() {
		mb.Resolve("never-issued", core.MessageResponse{Success: true})
	})
}

func TestMailbox_ResolveFulfillsExactlyOnce(t *testing.T) {
	mb := New()
	mb.Register("agent-1")
	inbound, err := mb.Subscribe("agent-1")
	require.NoError(t, err)

	go func() {
		env := <-inbound
		mb.Resolve(env.MessageID, core.MessageResponse{Success: true})
		// Second resolve for the same id must be a no-op.
		mb.Resolve(env.MessageID, core.MessageResponse{Success: false})
	}()

	resp, err := mb.Send(context.Background(), "agent-1", core.Message{Type: "task"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestMailbox_UnregisterAbandonsPending(t *testing.T) {
	mb := New()
	mb.Register("agent-1")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := mb.Send(ctx, "agent-1", core.Message{Type: "task"})
		done <- err
	}()

	// Let the send enqueue, then drop the agent. The pending promise is
	// abandoned; only the caller's ctx unblocks the send.
	time.Sleep(10 * time.Millisecond)
	mb.Unregister("agent-1")
	assert.Zero(t, mb.PendingCount())

	err := <-done
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMailbox_ContextCancellationDropsPending(t *testing.T) {
	mb := New()
	mb.Register("agent-1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := mb.Send(ctx, "agent-1", core.Message{Type: "task"})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Zero(t, mb.PendingCount())
}

func TestMailbox_MessageIDsUniqueUnderLoad(t *testing.T) {
	mb := New(func(o *Options) { o.QueueSize = 512 })
	mb.Register("agent-1")
	inbound, err := mb.Subscribe("agent-1")
	require.NoError(t, err)

	const n = 256
	seen := make(map[string]bool, n)
	var seenMu sync.Mutex

	go func() {
		for env := range inbound {
			seenMu.Lock()
			assert.False(t, seen[env.MessageID], "duplicate id %s", env.MessageID)
			seen[env.MessageID] = true
			seenMu.Unlock()
			mb.Resolve(env.MessageID, core.MessageResponse{Success: true})
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mb.Send(context.Background(), "agent-1", core.Message{Type: "task"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seenMu.Lock()
	defer seenMu.Unlock()
	assert.Len(t, seen, n)
}

func TestMailbox_PerAgentDeliveryOrder(t *testing.T) {
	mb := New(func(o *Options) { o.QueueSize = 8 })
	mb.Register("agent-1")
	inbound, err := mb.Subscribe("agent-1")
	require.NoError(t, err)

	var delivered []string
	go func() {
		for env := range inbound {
			delivered = append(delivered, env.Message.Content)
			mb.Resolve(env.MessageID, core.MessageResponse{Success: true})
		}
	}()

	// Sequential sends from one caller arrive in send order.
	for _, content := range []string{"a", "b", "c", "d"} {
		_, err := mb.Send(context.Background(), "agent-1", core.Message{Type: "task", Content: content})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, delivered)
}
