// Package feed abstracts the external real-time source of scale
// readings. Delivery is asynchronous and unordered; consumers must treat
// every callback as a potential duplicate or stale snapshot.
package feed

import "github.com/smartscale/kiosk/internal/models"

// Handler receives one reading per invocation.
type Handler func(models.Reading)

// Feed is a restartable subscription to the scale bridge.
//
// Subscribe never fails: when the source is unavailable it returns a
// no-op unsubscribe and the caller simply observes no readings. The
// degraded state is surfaced through Connected, not through the reading
// pipeline. The returned unsubscribe stops further delivery and is safe
// to call more than once.
type Feed interface {
	Subscribe(h Handler) (unsubscribe func())
	Connected() bool
}
