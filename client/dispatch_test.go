package client

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

type fakeTransport struct {
	sent          []string
	correlationID string
}

func (f *fakeTransport) SendEnvelope(frameType string, _ any) error {
	f.sent = append(f.sent, frameType)
	return nil
}

func (f *fakeTransport) noteCorrelationID(id string) { f.correlationID = id }

func frame(t *testing.T, frameType string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal frame data: %v", err)
	}
	b, err := json.Marshal(Envelope{
		Type:      frameType,
		Data:      raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return b
}

func TestHandleFrame_MalformedFramesAreDropped(t *testing.T) {
	store := NewStore(nil)
	d := NewDispatcher(store, Listeners{}, nil)

	d.HandleFrame([]byte("{this is not json"))
	d.HandleFrame([]byte(`{"data": {}}`)) // missing type
	d.HandleFrame(frame(t, "territory_claimed", "not an object"))

	if store.Len() != 0 {
		t.Errorf("store has %d territories after garbage frames, want 0", store.Len())
	}
}

func TestHandleFrame_TerritoryEventAppliedOnceAndForwarded(t *testing.T) {
	store := NewStore(nil)
	var events []TerritoryEvent
	d := NewDispatcher(store, Listeners{
		OnEvent: func(ev TerritoryEvent) { events = append(events, ev) },
	}, nil)

	d.HandleFrame(frame(t, "territory_claimed", eventPayload{
		Territory: testTerritory("t1", "alice"),
		Actor:     "alice",
	}))

	if len(events) != 1 {
		t.Fatalf("listener saw %d events, want 1", len(events))
	}
	if events[0].Type != EventClaimed || events[0].Actor != "alice" {
		t.Errorf("event = %+v", events[0])
	}
	if got, ok := store.Get("t1"); !ok || got.Status != StatusClaimed {
		t.Errorf("store state after claim: %+v ok=%v", got, ok)
	}
}

func TestHandleFrame_UnknownEventTypeForwardedButNoOp(t *testing.T) {
	store := NewStore(nil)
	var events []TerritoryEvent
	d := NewDispatcher(store, Listeners{
		OnEvent: func(ev TerritoryEvent) { events = append(events, ev) },
	}, nil)

	d.HandleFrame(frame(t, "territory_microtransaction", eventPayload{Territory: testTerritory("t1", "x")}))

	if len(events) != 1 {
		t.Fatalf("unrecognized sub-type not forwarded: %d events", len(events))
	}
	if store.Len() != 0 {
		t.Error("unrecognized sub-type mutated state")
	}
}

func TestHandleFrame_UnknownFrameKindIgnored(t *testing.T) {
	store := NewStore(nil)
	called := false
	d := NewDispatcher(store, Listeners{
		OnEvent: func(TerritoryEvent) { called = true },
	}, nil)

	d.HandleFrame(frame(t, "server_gossip", map[string]string{"hot": "take"}))

	if called || store.Len() != 0 {
		t.Error("unknown frame kind reached the store or listener")
	}
}

func TestHandleFrame_HeartbeatPong(t *testing.T) {
	d := NewDispatcher(NewStore(nil), Listeners{}, nil)
	ft := &fakeTransport{}
	d.bind(ft)

	d.HandleFrame(frame(t, FramePing, nil))

	if len(ft.sent) != 1 || ft.sent[0] != FramePong {
		t.Errorf("sent frames = %v, want one pong", ft.sent)
	}

	// Pongs are absorbed silently.
	d.HandleFrame(frame(t, FramePong, nil))
	if len(ft.sent) != 1 {
		t.Errorf("pong frame triggered an outbound frame: %v", ft.sent)
	}
}

func TestHandleFrame_ConnectionEstablished(t *testing.T) {
	d := NewDispatcher(NewStore(nil), Listeners{}, nil)
	ft := &fakeTransport{}
	d.bind(ft)

	d.HandleFrame(frame(t, FrameConnectionEstablished, map[string]string{"connectionId": "conn-42"}))

	if ft.correlationID != "conn-42" {
		t.Errorf("correlationID = %q, want conn-42", ft.correlationID)
	}
}

func TestHandleFrame_NotificationForwardedAndClassified(t *testing.T) {
	store := NewStore(nil)
	store.Apply(TerritoryEvent{Type: EventClaimed, Territory: testTerritory("t1", "alice")})

	var notes []Notification
	var events []TerritoryEvent
	d := NewDispatcher(store, Listeners{
		OnNotification: func(n Notification) { notes = append(notes, n) },
		OnEvent:        func(ev TerritoryEvent) { events = append(events, ev) },
	}, nil)

	terr := testTerritory("t1", "mallory")
	d.HandleFrame(frame(t, FrameNotification, Notification{
		ID:        "n1",
		Kind:      "territory_attacked",
		Message:   "your turf is under attack",
		Territory: &terr,
		Actor:     "mallory",
	}))

	if len(notes) != 1 || notes[0].ID != "n1" {
		t.Fatalf("notifications = %+v", notes)
	}
	if len(events) != 1 || events[0].Type != EventAttacked {
		t.Fatalf("derived events = %+v", events)
	}
	got, _ := store.Get("t1")
	if got.Status != StatusContested || got.Owner != "alice" {
		t.Errorf("classified notification not applied: %+v", got)
	}
}

func TestHandleFrame_NotificationWithoutTerritoryIsForwardOnly(t *testing.T) {
	store := NewStore(nil)
	var notes []Notification
	d := NewDispatcher(store, Listeners{
		OnNotification: func(n Notification) { notes = append(notes, n) },
	}, nil)

	d.HandleFrame(frame(t, FrameNotification, Notification{ID: "n2", Kind: "friend_request", Message: "hi"}))

	if len(notes) != 1 {
		t.Fatalf("notifications = %+v", notes)
	}
	if store.Len() != 0 {
		t.Error("plain notification mutated state")
	}
}

// One bad frame must not prevent later frames from applying.
func TestHandleFrame_StreamSurvivesBadFrames(t *testing.T) {
	store := NewStore(nil)
	d := NewDispatcher(store, Listeners{}, nil)

	for i := 0; i < 3; i++ {
		d.HandleFrame([]byte(fmt.Sprintf(`{"type": %d}`, i))) // type is not a string
		d.HandleFrame(frame(t, "territory_claimed", eventPayload{Territory: testTerritory(fmt.Sprintf("t%d", i), "alice")}))
	}
	if store.Len() != 3 {
		t.Errorf("store has %d territories, want 3", store.Len())
	}
}
