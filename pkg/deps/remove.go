package deps

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nativepkg/pkg/events"
	"github.com/matzehuels/nativepkg/pkg/manifest"
)

// Remover drops dependencies from the lock file.
type Remover struct {
	events Dispatcher
	logger *log.Logger
}

// NewRemover returns a remover. A nil dispatcher drops events.
func NewRemover(d Dispatcher, logger *log.Logger) *Remover {
	if d == nil {
		d = events.NewDispatcher()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Remover{events: d, logger: logger}
}

// Remove drops id from the lock file at lockPath together with every locked
// entry that was reachable from own only through id. A "dependency removed"
// event is dispatched for each dropped entry before the lock file is saved.
// Removing an id that is not locked is a no-op. It returns the dropped ids.
func (r *Remover) Remove(ctx context.Context, own *manifest.Manifest, lockPath, id string) ([]string, error) {
	lock, err := manifest.LoadLock(lockPath)
	if err != nil {
		return nil, err
	}
	rd, ok := lock.Get(id)
	if !ok {
		r.logger.Debug("not locked, nothing to remove", "id", id)
		return nil, nil
	}

	next := lock.Clone()
	removed := []string{rd.ID}
	next.Remove(id)

	keep := reachable(own, next, id)
	for _, other := range next.IDs() {
		if !keep[strings.ToLower(other)] {
			removed = append(removed, other)
		}
	}
	evs := make([]events.Event, 0, len(removed))
	for _, gone := range removed {
		next.Remove(gone)
		evs = append(evs, events.DependencyRemoved{Own: own, ID: gone})
	}

	if err := r.events.Dispatch(ctx, evs...); err != nil {
		return nil, err
	}
	if err := next.Save(lockPath); err != nil {
		return nil, err
	}
	r.logger.Info("removed", "ids", strings.Join(removed, ", "))
	return removed, nil
}

// reachable returns the lower-cased ids reachable from own's dependencies
// through the locked manifests, never passing through skip.
func reachable(own *manifest.Manifest, lock *manifest.LockFile, skip string) map[string]bool {
	seen := make(map[string]bool)
	var visit func(specs []manifest.DependencySpec)
	visit = func(specs []manifest.DependencySpec) {
		for _, spec := range specs {
			key := strings.ToLower(spec.ID)
			if seen[key] || strings.EqualFold(spec.ID, skip) {
				continue
			}
			seen[key] = true
			if rd, ok := lock.Get(spec.ID); ok {
				visit(rd.Manifest.Dependencies)
			}
		}
	}
	visit(own.Dependencies)
	return seen
}
