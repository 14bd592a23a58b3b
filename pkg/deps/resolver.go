package deps

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nativepkg/pkg/artifact"
	nperrors "github.com/matzehuels/nativepkg/pkg/errors"
	"github.com/matzehuels/nativepkg/pkg/events"
	"github.com/matzehuels/nativepkg/pkg/manifest"
	"github.com/matzehuels/nativepkg/pkg/observability"
	"github.com/matzehuels/nativepkg/pkg/registry"
	"github.com/matzehuels/nativepkg/pkg/version"
)

// maxPasses bounds how often a walk restarts after pinning a version.
const maxPasses = 32

// Registry is the part of the registry client the resolver uses.
type Registry interface {
	ListVersions(ctx context.Context, id string) ([]registry.Summary, error)
	Latest(ctx context.Context, id, rangeExpr string) (registry.Summary, error)
	FetchManifest(ctx context.Context, id, ver string) (*manifest.Manifest, error)
}

// Dispatcher delivers lifecycle events.
type Dispatcher interface {
	Dispatch(ctx context.Context, evs ...events.Event) error
}

// Result summarizes a resolution pass.
type Result struct {
	Lock        *manifest.LockFile
	Fetched     []string // ids looked up on the registry
	Removed     []string // ids pruned from the lock file
	LockChanged bool
}

// Resolver binds dependency specs to published versions.
type Resolver struct {
	registry Registry
	events   Dispatcher
	logger   *log.Logger
}

// NewResolver returns a resolver. A nil dispatcher drops events; a nil
// logger discards output.
func NewResolver(reg Registry, d Dispatcher, logger *log.Logger) *Resolver {
	if d == nil {
		d = events.NewDispatcher()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Resolver{registry: reg, events: d, logger: logger}
}

// Resolve brings the lock file at lockPath in line with own.
func (r *Resolver) Resolve(ctx context.Context, own *manifest.Manifest, lockPath string) (*Result, error) {
	lock, err := manifest.LoadLock(lockPath)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, own, lock, lock, lockPath)
}

// Update forgets the locked versions of ids (all when none are given) and
// resolves again, picking up newer versions within each range.
func (r *Resolver) Update(ctx context.Context, own *manifest.Manifest, lockPath string, ids ...string) (*Result, error) {
	lock, err := manifest.LoadLock(lockPath)
	if err != nil {
		return nil, err
	}
	base := lock.Clone()
	if len(ids) == 0 {
		base.Dependencies = nil
	}
	for _, id := range ids {
		if !base.Remove(id) {
			return nil, nperrors.New(nperrors.ErrCodeInvalidInput, "%s is not a locked dependency", id)
		}
	}
	return r.run(ctx, own, base, lock, lockPath)
}

// run walks own against prev, then commits against orig, the lock file as
// it is on disk.
func (r *Resolver) run(ctx context.Context, own *manifest.Manifest, prev, orig *manifest.LockFile, lockPath string) (res *Result, err error) {
	start := time.Now()
	hooks := observability.Resolve()
	hooks.OnResolveStart(ctx, own.ID)
	defer func() {
		n := 0
		if res != nil {
			n = len(res.Lock.Dependencies)
		}
		hooks.OnResolveComplete(ctx, own.ID, n, time.Since(start), err)
	}()

	res, evs, err := r.plan(ctx, own, prev, orig)
	if err != nil {
		return nil, err
	}
	if err := r.events.Dispatch(ctx, evs...); err != nil {
		return nil, err
	}

	before, err := orig.Encode()
	if err != nil {
		return nil, err
	}
	after, err := res.Lock.Encode()
	if err != nil {
		return nil, err
	}
	res.LockChanged = !bytes.Equal(before, after)
	if err := res.Lock.Save(lockPath); err != nil {
		return nil, err
	}

	r.logger.Debug("resolved", "package", own.ID, "dependencies", len(res.Lock.Dependencies),
		"fetched", len(res.Fetched), "removed", len(res.Removed), "duration", time.Since(start))
	return res, nil
}

// plan resolves without side effects and returns the events to dispatch.
func (r *Resolver) plan(ctx context.Context, own *manifest.Manifest, prev, orig *manifest.LockFile) (*Result, []events.Event, error) {
	w := &walker{
		r:         r,
		ctx:       ctx,
		own:       own,
		prev:      prev,
		pins:      make(map[string]string),
		pinRanges: make(map[string][]string),
		manifests: make(map[string]*manifest.Manifest),
		latest:    make(map[string]registry.Summary),
		versions:  make(map[string][]version.Version),
		fetched:   make(map[string]bool),
	}

	for pass := 0; ; pass++ {
		if pass == maxPasses {
			return nil, nil, nperrors.New(nperrors.ErrCodeDependencyConflict,
				"no consistent set of versions found after %d attempts", maxPasses)
		}
		w.reset()
		err := w.walkAll()
		if errors.Is(err, errRestart) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		break
	}

	res := &Result{Lock: w.next}
	for _, rd := range w.next.Dependencies {
		if w.fetched[strings.ToLower(rd.ID)] {
			res.Fetched = append(res.Fetched, rd.ID)
		}
	}

	var evs []events.Event
	for _, rd := range orig.Dependencies {
		if _, ok := w.next.Get(rd.ID); !ok {
			res.Removed = append(res.Removed, rd.ID)
			evs = append(evs, events.DependencyRemoved{Own: own, ID: rd.ID})
		}
	}
	return res, append(evs, w.events...), nil
}

var errRestart = errors.New("restart resolution")

type walker struct {
	r    *Resolver
	ctx  context.Context
	own  *manifest.Manifest
	prev *manifest.LockFile

	// Across passes.
	pins      map[string]string   // id -> forced version
	pinRanges map[string][]string // id -> ranges the pin must satisfy
	manifests map[string]*manifest.Manifest
	latest    map[string]registry.Summary
	versions  map[string][]version.Version
	fetched   map[string]bool

	// Per pass.
	next   *manifest.LockFile
	reqs   map[string][]nperrors.Requirement
	events []events.Event
}

func (w *walker) reset() {
	w.next = manifest.NewLockFile()
	w.reqs = make(map[string][]nperrors.Requirement)
	w.events = nil
}

func (w *walker) walkAll() error {
	for _, spec := range w.own.Dependencies {
		if err := w.walk(w.own, spec); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) walk(owner *manifest.Manifest, spec manifest.DependencySpec) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if strings.EqualFold(spec.ID, w.own.ID) {
		w.r.logger.Warn("ignoring dependency on the package itself", "requester", owner.ID, "id", spec.ID)
		return nil
	}

	rng, err := version.ParseRange(spec.Range())
	if err != nil {
		return nperrors.Wrap(nperrors.ErrCodeInvalidManifest, err, "%s: dependency %s", owner.ID, spec.ID)
	}
	key := strings.ToLower(spec.ID)
	req := nperrors.Requirement{Requester: owner.ID, Range: spec.Range()}

	if rd, ok := w.next.Get(spec.ID); ok {
		if satisfies(rng, rd.Version) {
			w.reqs[key] = append(w.reqs[key], req)
			return nil
		}
		return w.conflict(spec.ID, req)
	}
	w.reqs[key] = append(w.reqs[key], req)

	rd, err := w.choose(spec, rng)
	if err != nil {
		return err
	}
	if err := artifact.Check(&rd.Manifest, spec); err != nil {
		return err
	}

	w.next.Put(*rd)
	w.events = append(w.events, events.DependencyResolved{
		Own:      w.own,
		Resolved: rd.Manifest.Clone(),
		Spec:     spec.Clone(),
	})

	for _, child := range rd.Manifest.Dependencies {
		if err := w.walk(&rd.Manifest, child); err != nil {
			return err
		}
	}
	return nil
}

// choose binds spec to a version: a pin from an earlier pass, the locked
// version if it still satisfies the range, or the registry's latest match.
func (w *walker) choose(spec manifest.DependencySpec, rng version.Range) (*manifest.ResolvedDependency, error) {
	locked, isLocked := w.prev.Get(spec.ID)

	want := ""
	if pin, ok := w.pins[strings.ToLower(spec.ID)]; ok && satisfies(rng, pin) {
		want = pin
	}

	if isLocked && satisfies(rng, locked.Version) && (want == "" || sameVersion(want, locked.Version)) {
		w.r.logger.Debug("already satisfied", "id", locked.ID, "version", locked.Version)
		return &manifest.ResolvedDependency{
			ID:       locked.ID,
			Version:  locked.Version,
			Range:    spec.Range(),
			Manifest: *locked.Manifest.Clone(),
		}, nil
	}

	if want == "" {
		sum, err := w.latestMatch(spec.ID, spec.Range())
		if err != nil {
			return nil, err
		}
		want = sum.Version
	}
	m, err := w.fetch(spec.ID, want)
	if err != nil {
		return nil, err
	}
	id := m.ID
	if id == "" {
		id = spec.ID
	}
	return &manifest.ResolvedDependency{ID: id, Version: want, Range: spec.Range(), Manifest: *m}, nil
}

// conflict handles an id requested with a range its bound version does not
// satisfy. It pins the highest version satisfying every range and asks for
// a restart, or reports a conflict when there is none.
func (w *walker) conflict(id string, incoming nperrors.Requirement) error {
	key := strings.ToLower(id)
	existing := w.reqs[key]

	exprs := append([]string(nil), w.pinRanges[key]...)
	for _, req := range existing {
		exprs = appendUnique(exprs, req.Range)
	}
	exprs = appendUnique(exprs, incoming.Range)

	ranges := make([]version.Range, 0, len(exprs))
	for _, e := range exprs {
		rng, err := version.ParseRange(e)
		if err != nil {
			return nperrors.Wrap(nperrors.ErrCodeInvalidManifest, err, "dependency %s", id)
		}
		ranges = append(ranges, rng)
	}

	published, err := w.published(id)
	if err != nil {
		return err
	}
	best, ok := version.Highest(published, ranges...)
	if !ok || w.pins[key] == best.String() {
		return &nperrors.DependencyConflictError{
			ID:       id,
			Existing: culprit(existing, incoming, published),
			Incoming: incoming,
		}
	}

	w.r.logger.Debug("re-resolving", "id", id, "version", best.String(), "ranges", strings.Join(exprs, ", "))
	w.pins[key] = best.String()
	w.pinRanges[key] = exprs
	return errRestart
}

// culprit picks the existing requirement that cannot be combined with
// incoming, falling back to the first one.
func culprit(existing []nperrors.Requirement, incoming nperrors.Requirement, published []version.Version) nperrors.Requirement {
	in, err := version.ParseRange(incoming.Range)
	if err != nil {
		return existing[0]
	}
	for _, req := range existing {
		rng, err := version.ParseRange(req.Range)
		if err != nil {
			continue
		}
		if _, ok := version.Highest(published, rng, in); !ok {
			return req
		}
	}
	return existing[0]
}

func (w *walker) latestMatch(id, rangeExpr string) (registry.Summary, error) {
	key := strings.ToLower(id) + " " + rangeExpr
	if sum, ok := w.latest[key]; ok {
		return sum, nil
	}
	sum, err := w.r.registry.Latest(w.ctx, id, rangeExpr)
	if err != nil {
		return registry.Summary{}, err
	}
	w.latest[key] = sum
	return sum, nil
}

func (w *walker) fetch(id, ver string) (*manifest.Manifest, error) {
	key := strings.ToLower(id) + "@" + ver
	if m, ok := w.manifests[key]; ok {
		return m.Clone(), nil
	}
	w.r.logger.Info("fetching", "id", id, "version", ver)
	m, err := w.r.registry.FetchManifest(w.ctx, id, ver)
	if err != nil {
		return nil, err
	}
	w.manifests[key] = m
	w.fetched[strings.ToLower(id)] = true
	return m.Clone(), nil
}

func (w *walker) published(id string) ([]version.Version, error) {
	key := strings.ToLower(id)
	if vs, ok := w.versions[key]; ok {
		return vs, nil
	}
	list, err := w.r.registry.ListVersions(w.ctx, id)
	if err != nil {
		return nil, err
	}
	vs := make([]version.Version, 0, len(list))
	for _, s := range list {
		if v, err := version.Parse(s.Version); err == nil {
			vs = append(vs, v)
		}
	}
	w.versions[key] = vs
	return vs, nil
}

func satisfies(rng version.Range, v string) bool {
	parsed, err := version.Parse(v)
	return err == nil && rng.Match(parsed)
}

func sameVersion(a, b string) bool {
	va, errA := version.Parse(a)
	vb, errB := version.Parse(b)
	return errA == nil && errB == nil && va.Equal(vb)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
