package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChanEmitter_DeliversInOrder(t *testing.T) {
	e := NewChanEmitter(4)
	sub := e.Subscribe()
	ctx := context.Background()

	e.Emit(ctx, Event{Type: EventAttemptStarted, RunID: "r1", Data: AttemptData{Attempt: 0, Kind: "run"}})
	e.Emit(ctx, Event{Type: EventDone, RunID: "r1", Data: DoneData{Followups: 0, Candidates: 1, LeaderStatus: "ok"}})
	e.Close()

	var got []EventType
	for ev := range sub.Events() {
		got = append(got, ev.Type)
		assert.Equal(t, "r1", ev.RunID)
	}
	assert.Equal(t, []EventType{EventAttemptStarted, EventDone}, got)
}

func TestChanEmitter_EmitAfterCloseIsNoop(t *testing.T) {
	e := NewChanEmitter(1)
	e.Close()
	e.Close()

	assert.NotPanics(t, func() {
		e.Emit(context.Background(), Event{Type: EventError, Data: ErrorData{Err: errors.New("boom")}})
	})
}

func TestChanEmitter_RespectsContext(t *testing.T) {
	e := NewChanEmitter(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		e.Emit(ctx, Event{Type: EventDone})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "Emit blocked on a cancelled context")
	}
}

func TestEmitterFunc(t *testing.T) {
	var seen []Event
	var em Emitter = EmitterFunc(func(_ context.Context, ev Event) {
		seen = append(seen, ev)
	})
	em.Emit(context.Background(), Event{Type: EventRepairScheduled, Data: RepairData{Attempt: 1, Error: "KeyError"}})

	require.Len(t, seen, 1)
	data, ok := seen[0].Data.(RepairData)
	require.True(t, ok)
	assert.Equal(t, "KeyError", data.Error)
}

func TestChanEmitter_CloseWaitsForBlockedEmit(t *testing.T) {
	e := NewChanEmitter(0)
	sub := e.Subscribe()

	sent := make(chan struct{})
	go func() {
		e.Emit(context.Background(), Event{Type: EventDone})
		close(sent)
	}()

	var got []Event
	drained := make(chan struct{})
	go func() {
		for ev := range sub.Events() {
			got = append(got, ev)
		}
		close(drained)
	}()

	<-sent
	e.Close()
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("subscriber channel was not closed")
	}
	require.Len(t, got, 1)
	assert.Equal(t, EventDone, got[0].Type)
}
