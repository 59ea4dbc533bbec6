package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// VisitEvent is one entry of a visit's append-only audit log. Events form a
// per-visit hash chain: each hash covers the previous hash, so any rewrite of
// history is detectable.
type VisitEvent struct {
	VisitID   string          `json:"visit_id"`
	VisitSeq  int             `json:"visit_seq"`
	Type      string          `json:"type"`
	ActorID   string          `json:"actor_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

func ComputeVisitEventHash(prevHash, visitID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, visitID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// VerifyVisitChain walks the events in order and reports the first sequence
// whose stored hash does not match the recomputed one, or -1 when the chain
// is intact.
func VerifyVisitChain(events []VisitEvent) int {
	prev := ""
	for _, event := range events {
		want := ComputeVisitEventHash(prev, event.VisitID, event.Type, event.Payload, event.CreatedAt, event.VisitSeq)
		if event.PrevHash != prev || event.Hash != want {
			return event.VisitSeq
		}
		prev = event.Hash
	}
	return -1
}
