package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discussion-service/internal/models"
)

type fakeSender struct {
	calls  int
	keys   []string
	result models.Message
	err    error
}

func (f *fakeSender) SendMessage(_ context.Context, _ Target, _ string, clientKey string) (models.Message, error) {
	f.calls++
	f.keys = append(f.keys, clientKey)
	if f.err != nil {
		return models.Message{}, f.err
	}
	msg := f.result
	msg.ClientKey = clientKey
	return msg, nil
}

func newTestOutbox(rec *Reconciler, stream StreamSender, fallback FallbackSender, onFailure FailureHandler) *Outbox {
	o := NewOutbox(1, "alice", rec, stream, fallback, onFailure)
	o.sleep = func(time.Duration) {}
	return o
}

func TestOutboxStreamAckDelivers(t *testing.T) {
	rec := NewReconciler()
	target := Target{ChatID: 5}
	rec.SwitchConversation(target)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	stream := &fakeSender{result: chatMsg(10, 5, 1, "hi", base)}
	fallback := &fakeSender{}
	o := newTestOutbox(rec, stream, fallback, nil)

	ps, err := o.Send(context.Background(), target, "hi")
	require.NoError(t, err)
	assert.Equal(t, SendDelivered, ps.State())
	assert.Equal(t, 1, stream.calls)
	assert.Zero(t, fallback.calls, "fallback must not run when the stream acks")

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 10, msgs[0].ID)
	assert.Empty(t, pendingOf(rec.Entries()))
}

func TestOutboxLostAckSettledByBroadcast(t *testing.T) {
	rec := NewReconciler()
	target := Target{ChatID: 5}
	rec.SwitchConversation(target)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	stream := &fakeSender{err: context.DeadlineExceeded}
	fallback := &fakeSender{}
	o := newTestOutbox(rec, stream, fallback, nil)
	o.now = func() time.Time { return base }

	// During the grace wait the server's broadcast of the persisted message
	// arrives, carrying the client key of the in-flight send.
	o.sleep = func(time.Duration) {
		msg := chatMsg(11, 5, 1, "hi", base.Add(time.Second))
		msg.ClientKey = stream.keys[0]
		rec.OnLiveMessage(msg)
	}

	ps, err := o.Send(context.Background(), target, "hi")
	require.NoError(t, err)
	assert.Equal(t, SendDelivered, ps.State())
	assert.Zero(t, fallback.calls, "broadcast settled the send; no resend")

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 11, msgs[0].ID)
	assert.Empty(t, pendingOf(rec.Entries()))
}

func TestOutboxFallsBackOverRest(t *testing.T) {
	rec := NewReconciler()
	target := Target{TopicID: 3}
	rec.SwitchConversation(target)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	stream := &fakeSender{err: errors.New("write: broken pipe")}
	fallback := &fakeSender{result: topicMsg(12, 3, 30, 1, "hi", base)}
	o := newTestOutbox(rec, stream, fallback, nil)

	ps, err := o.Send(context.Background(), target, "hi")
	require.NoError(t, err)
	assert.Equal(t, SendDelivered, ps.State())
	require.Equal(t, 1, fallback.calls)
	assert.Equal(t, stream.keys[0], fallback.keys[0], "both paths must carry the same client key")

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 12, msgs[0].ID)
}

func TestOutboxBothPathsFailRestoresDraft(t *testing.T) {
	rec := NewReconciler()
	target := Target{ChatID: 5}
	rec.SwitchConversation(target)

	stream := &fakeSender{err: errors.New("stream down")}
	fallback := &fakeSender{err: errors.New("http 503")}

	var restoredContent string
	var restoredTarget Target
	o := newTestOutbox(rec, stream, fallback, func(target Target, content string, err error) {
		restoredTarget = target
		restoredContent = content
	})

	ps, err := o.Send(context.Background(), target, "draft text")
	require.Error(t, err)
	assert.Equal(t, SendFailed, ps.State())
	assert.Equal(t, "draft text", restoredContent)
	assert.Equal(t, target, restoredTarget)
	assert.Empty(t, rec.Entries(), "failed echo must be removed from the view")
}

func TestOutboxEchoVisibleWhilePending(t *testing.T) {
	rec := NewReconciler()
	target := Target{ChatID: 5}
	rec.SwitchConversation(target)

	stream := &fakeSender{err: errors.New("stream down")}
	fallback := &fakeSender{err: errors.New("http 503")}
	o := newTestOutbox(rec, stream, fallback, nil)

	var sawEcho bool
	o.sleep = func(time.Duration) {
		sawEcho = len(pendingOf(rec.Entries())) == 1
	}

	o.Send(context.Background(), target, "hi")
	assert.True(t, sawEcho, "echo must be in the view while the send is unsettled")
}

func TestPendingSendTransitions(t *testing.T) {
	ps := &PendingSend{TempID: "tmp-1"}
	require.Equal(t, SendPending, ps.State())

	require.NoError(t, ps.Transition(SendTimedOut))
	require.NoError(t, ps.Transition(SendFallbackPending))
	require.NoError(t, ps.Transition(SendDelivered))
	assert.True(t, ps.Terminal())

	// Terminal states accept nothing.
	assert.Error(t, ps.Transition(SendPending))
	assert.Error(t, ps.Transition(SendFailed))
}

func TestPendingSendRejectsSkippingStates(t *testing.T) {
	ps := &PendingSend{TempID: "tmp-2"}
	assert.Error(t, ps.Transition(SendFallbackPending), "fallback requires a timeout first")
	assert.Error(t, ps.Transition(SendDelivered), "delivery requires an ack or fallback result")

	require.NoError(t, ps.Transition(SendAcknowledged))
	assert.Error(t, ps.Transition(SendTimedOut))
	require.NoError(t, ps.Transition(SendDelivered))
}
