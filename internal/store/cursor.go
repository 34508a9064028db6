package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"routeplanner/internal/model"
)

// ErrInvalidCursor is returned when a page cursor cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// Tours page in (created_at, id) order in every backend. A cursor names the
// last tour of the previous page as "<RFC3339Nano created_at>_<id>".
type tourKey struct {
	at time.Time
	id string
}

func keyOf(t model.Tour) tourKey { return tourKey{at: t.CreatedAt.UTC(), id: t.ID} }

func (k tourKey) cursor() string { return k.at.Format(time.RFC3339Nano) + "_" + k.id }

func (k tourKey) less(o tourKey) bool {
	if !k.at.Equal(o.at) {
		return k.at.Before(o.at)
	}
	return k.id < o.id
}

func parseTourCursor(s string) (tourKey, error) {
	at, id, ok := strings.Cut(s, "_")
	if !ok || id == "" {
		return tourKey{}, fmt.Errorf("%w: %q", ErrInvalidCursor, s)
	}
	ts, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return tourKey{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return tourKey{at: ts.UTC(), id: id}, nil
}
