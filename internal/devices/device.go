// Package devices maintains a best-effort mirror of the currently
// available interface endpoints and reports add/remove deltas between
// successive enumerations.
package devices

import "fmt"

// Endpoint is one connectable interface as reported by an enumeration
// source: a positional index and a human-readable name.
type Endpoint struct {
	Index int
	Name  string
}

// Source lists the endpoints available right now. Implementations must
// be cheaply and repeatedly callable and must not keep an enumeration
// handle open between calls.
type Source interface {
	Endpoints() ([]Endpoint, error)
}

// Device is one enumerable interface endpoint. Instances are constructed
// fresh on every enumeration; the reconciler's last-known list is the
// only long-lived holder.
type Device struct {
	ID        string
	Name      string
	Connected bool
}

// DeviceID derives the identity key for an endpoint. It is a pure
// function of position and name: stable while the physical topology is
// unchanged, churning when enumeration order or the reported name
// changes. The reorder churn is a known limitation of index-based
// identity, not a bug.
func DeviceID(index int, name string) string {
	return fmt.Sprintf("%d:%s", index, name)
}
