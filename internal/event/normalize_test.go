package event

import (
	"fmt"
	"testing"
	"time"
)

func testNormalizer() *Normalizer {
	n := 0
	return NewNormalizerAt(
		func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
		func() string { n++; return fmt.Sprintf("gen-%d", n) },
	)
}

func TestNormalizeCollaborationEvent(t *testing.T) {
	n := testNormalizer()
	raw := []byte(`{"type":"collaboration_event","event":{"id":"e1","type":"message","user":{"id":"u1","name":"Ada"},"timestamp":"2024-05-01T10:00:00Z","details":"hi"}}`)

	ev := n.Normalize(raw)
	if ev.ID != "e1" {
		t.Fatalf("expected id e1, got %s", ev.ID)
	}
	if ev.Type != TypeMessage {
		t.Fatalf("expected message, got %s", ev.Type)
	}
	if ev.User.ID != "u1" || ev.User.Name != "Ada" {
		t.Fatalf("unexpected user %+v", ev.User)
	}
	if ev.Details != "hi" {
		t.Fatalf("unexpected details %q", ev.Details)
	}
}

func TestNormalizeAssignsMissingIdentity(t *testing.T) {
	n := testNormalizer()
	ev := n.Normalize([]byte(`{"type":"collaboration_event","event":{"type":"join","user":{"id":"u2"}}}`))

	if ev.ID == "" {
		t.Fatal("expected generated id")
	}
	if ev.Timestamp.IsZero() {
		t.Fatal("expected stamped timestamp")
	}
}

func TestNormalizeLegacyCursorEnvelope(t *testing.T) {
	n := testNormalizer()
	raw := []byte(`{"type":"event","event":{"id":"c1","type":"cursor_update","user":{"id":"u3"},"target":"{\"x\":120.5,\"y\":44}"}}`)

	ev := n.Normalize(raw)
	if ev.Type != TypeCursorUpdate {
		t.Fatalf("expected cursor_update, got %s", ev.Type)
	}
	p, err := ev.Cursor()
	if err != nil {
		t.Fatalf("cursor decode: %v", err)
	}
	if p.X != 120.5 || p.Y != 44 {
		t.Fatalf("unexpected position %+v", p)
	}
}

func TestNormalizeFlatShapes(t *testing.T) {
	n := testNormalizer()

	ev := n.Normalize([]byte(`{"type":"message","message":"hello","user":{"id":"u1","name":"Ada"}}`))
	if ev.Type != TypeMessage || ev.Details != "hello" {
		t.Fatalf("unexpected message event %+v", ev)
	}

	ev = n.Normalize([]byte(`{"type":"user_action","action":"opened","target":"doc-7","user":{"id":"u1"}}`))
	if ev.Type != TypeUserAction || ev.Action != "opened" || ev.Target != "doc-7" {
		t.Fatalf("unexpected user_action event %+v", ev)
	}

	ev = n.Normalize([]byte(`{"type":"activity","activityType":"deploy","target":"prod","message":"deployed"}`))
	if ev.Type != TypeActivity || ev.Action != "deploy" || ev.Details != "deployed" {
		t.Fatalf("unexpected activity event %+v", ev)
	}

	ev = n.Normalize([]byte(`{"type":"ping"}`))
	if ev.Type != TypePresence || ev.Action != "ping" {
		t.Fatalf("unexpected ping event %+v", ev)
	}
}

func TestNormalizeMalformedPayloadBecomesOpaqueMessage(t *testing.T) {
	n := testNormalizer()

	for _, raw := range []string{"not json at all", `{"event":{}}`, `{"type":"wat","x":1}`} {
		ev := n.Normalize([]byte(raw))
		if ev.Type != TypeMessage {
			t.Fatalf("raw %q: expected opaque message, got %s", raw, ev.Type)
		}
		if ev.ID == "" || ev.Timestamp.IsZero() {
			t.Fatalf("raw %q: opaque event missing identity", raw)
		}
	}
}

func TestNormalizeUnknownInnerTypeClosesUnion(t *testing.T) {
	n := testNormalizer()
	ev := n.Normalize([]byte(`{"type":"collaboration_event","event":{"id":"x1","type":"teleport","user":{"id":"u9"}}}`))

	if ev.Type != TypeMessage {
		t.Fatalf("expected unknown type to degrade to message, got %s", ev.Type)
	}
	if ev.ID != "x1" {
		t.Fatalf("expected id preserved, got %s", ev.ID)
	}
}
