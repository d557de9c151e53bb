package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadcall/roadcall/internal/core/domain"
)

func mustSignal(t *testing.T, id domain.CallID, kind domain.SignalKind, sender domain.CallRole) domain.SignalingMessage {
	t.Helper()
	msg, err := domain.NewSignalingMessage(id, kind, sender, "payload")
	require.NoError(t, err)
	return msg
}

func recv(t *testing.T, ch <-chan domain.SignalingMessage) domain.SignalingMessage {
	t.Helper()
	select {
	case msg, open := <-ch:
		require.True(t, open, "channel closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no signal delivered")
		return domain.SignalingMessage{}
	}
}

func assertNothing(t *testing.T, ch <-chan domain.SignalingMessage) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected signal: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubSuppressesEcho(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()
	id := domain.NewCallID()

	callerCh, cancelCaller, err := hub.Subscribe(ctx, id, domain.RoleCaller)
	require.NoError(t, err)
	defer cancelCaller()
	receiverCh, cancelReceiver, err := hub.Subscribe(ctx, id, domain.RoleReceiver)
	require.NoError(t, err)
	defer cancelReceiver()

	require.NoError(t, hub.Publish(ctx, mustSignal(t, id, domain.SignalOffer, domain.RoleCaller)))

	got := recv(t, receiverCh)
	assert.Equal(t, domain.SignalOffer, got.Kind)
	assert.Equal(t, domain.RoleCaller, got.Sender)
	assertNothing(t, callerCh)

	require.NoError(t, hub.Publish(ctx, mustSignal(t, id, domain.SignalAnswer, domain.RoleReceiver)))
	got = recv(t, callerCh)
	assert.Equal(t, domain.SignalAnswer, got.Kind)
	assertNothing(t, receiverCh)
}

func TestHubDropsAnswerBeforeOffer(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()
	id := domain.NewCallID()

	callerCh, cancel, err := hub.Subscribe(ctx, id, domain.RoleCaller)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, mustSignal(t, id, domain.SignalAnswer, domain.RoleReceiver)))
	assertNothing(t, callerCh)

	// After an offer the answer goes through.
	require.NoError(t, hub.Publish(ctx, mustSignal(t, id, domain.SignalOffer, domain.RoleCaller)))
	require.NoError(t, hub.Publish(ctx, mustSignal(t, id, domain.SignalAnswer, domain.RoleReceiver)))
	assert.Equal(t, domain.SignalAnswer, recv(t, callerCh).Kind)
}

func TestHubIceCandidatesFlowFreely(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()
	id := domain.NewCallID()

	receiverCh, cancel, err := hub.Subscribe(ctx, id, domain.RoleReceiver)
	require.NoError(t, err)
	defer cancel()

	// Candidates are not gated on the offer.
	require.NoError(t, hub.Publish(ctx, mustSignal(t, id, domain.SignalIceCandidate, domain.RoleCaller)))
	assert.Equal(t, domain.SignalIceCandidate, recv(t, receiverCh).Kind)
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()
	id := domain.NewCallID()

	ch, cancel, err := hub.Subscribe(ctx, id, domain.RoleReceiver)
	require.NoError(t, err)
	defer cancel()

	hub.Close(id)

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}

	// Publishing into a torn-down call is a silent no-op.
	assert.NoError(t, hub.Publish(ctx, mustSignal(t, id, domain.SignalOffer, domain.RoleCaller)))

	// Double close and cancel-after-close are safe.
	hub.Close(id)
	cancel()
}

func TestHubCancelUnsubscribes(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()
	id := domain.NewCallID()

	ch, cancel, err := hub.Subscribe(ctx, id, domain.RoleReceiver)
	require.NoError(t, err)
	cancel()

	require.NoError(t, hub.Publish(ctx, mustSignal(t, id, domain.SignalOffer, domain.RoleCaller)))

	_, open := <-ch
	assert.False(t, open, "cancelled subscription channel is closed")
}

func TestHubReapsAbandonedCallChannels(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	// An expired pending call is simply abandoned: both peers cancel and
	// nobody calls Close. The per-call state must not outlive them.
	for i := 0; i < 100; i++ {
		id := domain.NewCallID()
		_, cancelCaller, err := hub.Subscribe(ctx, id, domain.RoleCaller)
		require.NoError(t, err)
		_, cancelReceiver, err := hub.Subscribe(ctx, id, domain.RoleReceiver)
		require.NoError(t, err)

		cancelCaller()
		hub.mu.Lock()
		_, live := hub.calls[id]
		hub.mu.Unlock()
		assert.True(t, live, "channel must survive while a subscriber remains")

		cancelReceiver()
	}

	hub.mu.Lock()
	leaked := len(hub.calls)
	hub.mu.Unlock()
	assert.Zero(t, leaked, "abandoned call channels must be reaped")
}

func TestInboxDeliversToCalleeOnly(t *testing.T) {
	inbox := NewInbox()
	ctx := context.Background()

	calleeCh, cancelCallee, err := inbox.Subscribe(ctx, "XYZ-5678")
	require.NoError(t, err)
	defer cancelCallee()
	otherCh, cancelOther, err := inbox.Subscribe(ctx, "JKL-9012")
	require.NoError(t, err)
	defer cancelOther()

	call := domain.NewCallSession("ABC-1234", "XYZ-5678", time.Now(), 5*time.Minute)
	require.NoError(t, inbox.NotifyIncoming(ctx, *call))

	select {
	case got := <-calleeCh:
		assert.Equal(t, call.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("callee never notified")
	}

	select {
	case got := <-otherCh:
		t.Fatalf("unrelated plate received call %s", got.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInboxCancelStopsDelivery(t *testing.T) {
	inbox := NewInbox()
	ctx := context.Background()

	ch, cancel, err := inbox.Subscribe(ctx, "XYZ-5678")
	require.NoError(t, err)
	cancel()

	call := domain.NewCallSession("ABC-1234", "XYZ-5678", time.Now(), 5*time.Minute)
	require.NoError(t, inbox.NotifyIncoming(ctx, *call))

	_, open := <-ch
	assert.False(t, open)
}
