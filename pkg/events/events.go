// Package events defines the lifecycle events raised when a package's
// identity, version, name or dependency set changes, and a dispatcher that
// delivers them synchronously to a fixed, ordered list of handlers.
//
// Handlers are fixed when the dispatcher is built:
//
//	d := events.NewDispatcher(placer, synchronizer)
//	err := d.Dispatch(ctx, events.IdentityChanged{Old: "foo", New: "bar"})
package events

import (
	"context"
	"fmt"

	"github.com/matzehuels/nativepkg/pkg/manifest"
)

// Kind names an event type.
type Kind string

const (
	KindIdentityChanged    Kind = "identity changed"
	KindVersionChanged     Kind = "version changed"
	KindNameChanged        Kind = "name changed"
	KindPackageCreated     Kind = "package created"
	KindDependencyResolved Kind = "dependency resolved"
	KindDependencyRemoved  Kind = "dependency removed"
)

// Event is one lifecycle transition.
type Event interface {
	Kind() Kind
}

// IdentityChanged is raised when the package id changes.
type IdentityChanged struct {
	Old, New string
}

// VersionChanged is raised when the package version changes.
type VersionChanged struct {
	Old, New string
}

// NameChanged is raised when the display name changes.
type NameChanged struct {
	Old, New string
}

// PackageCreated is raised once for a freshly created package.
type PackageCreated struct {
	Manifest *manifest.Manifest
}

// DependencyResolved is raised for every dependency bound to a version by a
// resolution pass. Own is the project's manifest, Resolved the dependency's
// manifest and Spec the declaration that requested it.
type DependencyResolved struct {
	Own      *manifest.Manifest
	Resolved *manifest.Manifest
	Spec     manifest.DependencySpec
}

// DependencyRemoved is raised when a dependency leaves the lock file.
type DependencyRemoved struct {
	Own *manifest.Manifest
	ID  string
}

func (IdentityChanged) Kind() Kind    { return KindIdentityChanged }
func (VersionChanged) Kind() Kind     { return KindVersionChanged }
func (NameChanged) Kind() Kind        { return KindNameChanged }
func (PackageCreated) Kind() Kind     { return KindPackageCreated }
func (DependencyResolved) Kind() Kind { return KindDependencyResolved }
func (DependencyRemoved) Kind() Kind  { return KindDependencyRemoved }

// Handler reacts to events. Handlers ignore kinds they do not care about.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to [Handler].
type HandlerFunc func(ctx context.Context, ev Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Dispatcher delivers events to its handlers in order.
type Dispatcher struct {
	handlers []Handler
}

// NewDispatcher returns a dispatcher for the given handlers. Nil handlers are
// dropped.
func NewDispatcher(handlers ...Handler) *Dispatcher {
	d := &Dispatcher{}
	for _, h := range handlers {
		if h != nil {
			d.handlers = append(d.handlers, h)
		}
	}
	return d
}

// Dispatch delivers each event to every handler, event by event. It stops at
// the first handler error or when ctx is done.
func (d *Dispatcher) Dispatch(ctx context.Context, evs ...Event) error {
	for _, ev := range evs {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, h := range d.handlers {
			if err := h.Handle(ctx, ev); err != nil {
				return fmt.Errorf("%s: %w", ev.Kind(), err)
			}
		}
	}
	return nil
}
