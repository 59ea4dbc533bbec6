package store

import (
	"encoding/json"
	"testing"
	"time"
)

func TestVerifyVisitChain(t *testing.T) {
	base := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	payloads := []json.RawMessage{
		json.RawMessage(`{"status":"scheduled"}`),
		json.RawMessage(`{"status":"in_triage"}`),
		json.RawMessage(`{"status":"ready_for_doctor"}`),
	}
	types := []string{"visit.booked", "visit.triage_started", "visit.triage_completed"}

	var events []VisitEvent
	prev := ""
	for i := range payloads {
		createdAt := base.Add(time.Duration(i) * time.Minute)
		hash := ComputeVisitEventHash(prev, "visit-1", types[i], payloads[i], createdAt, i+1)
		events = append(events, VisitEvent{
			VisitID:   "visit-1",
			VisitSeq:  i + 1,
			Type:      types[i],
			Payload:   payloads[i],
			CreatedAt: createdAt,
			PrevHash:  prev,
			Hash:      hash,
		})
		prev = hash
	}

	if seq := VerifyVisitChain(events); seq != -1 {
		t.Fatalf("intact chain reported broken at seq %d", seq)
	}

	tampered := make([]VisitEvent, len(events))
	copy(tampered, events)
	tampered[1].Payload = json.RawMessage(`{"status":"cancelled"}`)
	if seq := VerifyVisitChain(tampered); seq != 2 {
		t.Fatalf("tampered payload must break chain at seq 2, got %d", seq)
	}
}
