package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ehrlich-b/mudcore/internal/world/clientupdate"
	"github.com/ehrlich-b/mudcore/internal/world/entity"
)

// recordingConn captures every batch WriteUpdates was called with, so a
// test can tell whether several enqueued updates reached the transport in
// one call or several.
type recordingConn struct {
	mu      sync.Mutex
	batches [][]clientupdate.Update
	closed  bool
}

func (c *recordingConn) WriteUpdates(ctx context.Context, updates []clientupdate.Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := append([]clientupdate.Update(nil), updates...)
	c.batches = append(c.batches, batch)
	return nil
}

func (c *recordingConn) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *recordingConn) snapshot() [][]clientupdate.Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]clientupdate.Update(nil), c.batches...)
}

// TestTickCoalescesUpdatesIntoOneFrame transcribes §8 scenario 6: several
// updates enqueued within the same tick reach the transport as a single
// WriteUpdates call carrying them in enqueue order, not one call per update.
func TestTickCoalescesUpdatesIntoOneFrame(t *testing.T) {
	conn := &recordingConn{}
	avatar := entity.New(entity.KindAvatar)
	s := New(conn, avatar)

	avatar.EnqueueUpdate(clientupdate.ShowText{Text: "first"})
	avatar.EnqueueUpdate(clientupdate.ShowText{Text: "second"})
	avatar.EnqueueUpdate(clientupdate.ShowText{Text: "third"})

	mgr := NewManager(nil, time.Millisecond)
	mgr.Add(s)
	mgr.flushAll(context.Background())

	batches := conn.snapshot()
	if len(batches) != 1 {
		t.Fatalf("got %d WriteUpdates calls, want exactly 1 (all three updates coalesced)", len(batches))
	}
	if len(batches[0]) != 3 {
		t.Fatalf("batch has %d updates, want 3", len(batches[0]))
	}
	want := []string{"first", "second", "third"}
	for i, u := range batches[0] {
		st, ok := u.(clientupdate.ShowText)
		if !ok || st.Text != want[i] {
			t.Errorf("batch[%d] = %+v, want ShowText{%q}", i, u, want[i])
		}
	}
}

// TestTickWithNoUpdatesSendsNothing confirms an idle session's tick never
// produces an empty WriteUpdates call.
func TestTickWithNoUpdatesSendsNothing(t *testing.T) {
	conn := &recordingConn{}
	avatar := entity.New(entity.KindAvatar)
	s := New(conn, avatar)

	mgr := NewManager(nil, time.Millisecond)
	mgr.Add(s)
	mgr.flushAll(context.Background())

	if batches := conn.snapshot(); len(batches) != 0 {
		t.Fatalf("got %d WriteUpdates calls for an idle session, want 0", len(batches))
	}
}

// TestDisconnectClearsActivityAndOffer confirms §5's rule that an in-flight
// activity and a pending quest offer never survive past the connection
// that started them.
func TestDisconnectClearsActivityAndOffer(t *testing.T) {
	conn := &recordingConn{}
	avatar := entity.New(entity.KindAvatar)
	s := New(conn, avatar)

	canceled := false
	avatar.Activity = &entity.Activity{Cancel: func() { canceled = true }}
	avatar.Offer = &entity.QuestOffer{}

	s.Disconnect()

	if !canceled {
		t.Error("expected the in-flight activity's Cancel to be called")
	}
	if avatar.Activity != nil {
		t.Error("expected Activity to be cleared")
	}
	if avatar.Offer != nil {
		t.Error("expected a pending quest offer to be cleared")
	}
	if avatar.Session != nil {
		t.Error("expected avatar.Session to be cleared")
	}
}
