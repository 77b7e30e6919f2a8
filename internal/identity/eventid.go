package identity

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// NewEventID returns an opaque unique token shared by every channel that
// reports the same real-world occurrence, so the receiving system can
// deduplicate. Prefers a v4 UUID from the crypto random source; on entropy
// failure falls back to a timestamp-plus-random-suffix composition.
func NewEventID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("evt_%d_%09d", time.Now().UnixMilli(), rand.Intn(1_000_000_000))
	}
	return id.String()
}
