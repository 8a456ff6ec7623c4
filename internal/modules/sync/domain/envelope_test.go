package domain_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"focuskit/internal/modules/sync/domain"
)

func TestEnvelopeCarriesKindRevisionAndOrigin(t *testing.T) {
	t.Parallel()
	sent := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	raw, err := domain.Encode(domain.NewEnvelope(json.RawMessage(`{"status":"paused"}`), 8, "surface-a", sent))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := domain.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Kind != domain.KindSessionSync || decoded.Revision != 8 || decoded.Origin != "surface-a" || !decoded.SentAt.Equal(sent) {
		t.Fatalf("unexpected envelope %+v", decoded)
	}
	if string(decoded.Snapshot) != `{"status":"paused"}` {
		t.Fatalf("snapshot must pass through untouched, got %s", decoded.Snapshot)
	}
}

func TestDecodeRejectsForeignMessages(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		`not json`,
		`{"kind":"chat","snapshot":{},"revision":1,"origin":"a"}`,
		`{"kind":"session-sync","snapshot":{},"revision":1}`,
		`{"kind":"session-sync","revision":1,"origin":"a"}`,
	} {
		if _, err := domain.Decode([]byte(raw)); !errors.Is(err, domain.ErrInvalidEnvelope) {
			t.Fatalf("expected invalid envelope for %s, got %v", raw, err)
		}
	}
}

func TestRevisionGateDiscardsStaleAndBreaksTiesByOrigin(t *testing.T) {
	t.Parallel()
	gate := &domain.RevisionGate{}
	if !gate.Admit(5, "a") {
		t.Fatalf("first revision must be admitted")
	}
	if gate.Admit(5, "a") || gate.Admit(4, "z") {
		t.Fatalf("revisions at or below the last seen must be discarded")
	}
	if !gate.Admit(5, "b") {
		t.Fatalf("equal revision from a higher origin wins the tie")
	}
	if gate.Admit(5, "a") {
		t.Fatalf("lower origin must lose the tie")
	}
	gate.Observe(6, "a")
	if gate.Admit(6, "a") {
		t.Fatalf("own revision must not be readmitted")
	}
	if rev, origin := gate.Last(); rev != 6 || origin != "a" {
		t.Fatalf("unexpected last %d %s", rev, origin)
	}
}
