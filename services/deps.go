package services

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// IDGenerator issues participant ids. Ids must be unguessable.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random (v4) UUIDs backed by crypto/rand.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// Clock is the time source for registration stamps and expiry.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// MapBounds is the playable map. Starting positions keep Margin away from
// every edge.
type MapBounds struct {
	Width  int
	Height int
	Margin int
}

// Contains reports whether (x, y) lies on the map, edges included.
func (b MapBounds) Contains(x, y int) bool {
	return x >= 0 && x <= b.Width && y >= 0 && y <= b.Height
}

// Positioner picks starting coordinates inside the map interior.
type Positioner interface {
	Position(b MapBounds) (x, y int)
}

// RandomPositioner samples uniformly from
// [Margin, Width-Margin] x [Margin, Height-Margin].
type RandomPositioner struct{}

func (RandomPositioner) Position(b MapBounds) (int, int) {
	return b.Margin + rand.IntN(b.Width-2*b.Margin+1),
		b.Margin + rand.IntN(b.Height-2*b.Margin+1)
}
