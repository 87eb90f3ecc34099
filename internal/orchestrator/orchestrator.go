// Package orchestrator drives the session/identity reconciliation state
// machine.
//
// Purpose:
//
//	The Orchestrator listens for session changes, runs the resolution
//	sequence (profile, then memberships), applies timeout and fallback
//	policy, and publishes immutable {State, Identity} snapshots. It emits no
//	navigation of its own; route decisions belong to the routing package's
//	consumers.
//
// States:
//
//	Uninitialized -> Resolving -> Ready(identity != nil) | Ready(identity == nil)
//
//	A session-change event re-enters Resolving (sign-in, token refresh) or
//	moves straight to Ready with no identity (sign-out).
//
// Concurrency:
//   - Each resolution cycle takes a monotonically increasing cycle number
//     under the mutex. A cycle that finishes after a newer one has started,
//     or after Dispose, publishes nothing: the most recently started cycle
//     wins, stale results are discarded.
//   - In-flight backend calls are not cancelled on supersession; they run to
//     completion and their results are dropped.
//
// Error Handling:
//   - Any resolution error (including per-call timeouts) degrades to a
//     fallback identity built from session-level hints, never to a stuck
//     Resolving state or an unhandled error.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/YodHeVauHe/CallCenterX/internal/backend"
	"github.com/YodHeVauHe/CallCenterX/internal/identity"
	"github.com/YodHeVauHe/CallCenterX/internal/metrics"
	"github.com/YodHeVauHe/CallCenterX/internal/session"
)

// State is the orchestrator's lifecycle state.
type State int

const (
	// StateUninitialized is the state before Init.
	StateUninitialized State = iota
	// StateResolving means a resolution cycle is in flight.
	StateResolving
	// StateReady means the last cycle finished; Snapshot.Identity is nil
	// when no subject is signed in.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Snapshot is an immutable view of the orchestrator's state. Identity is
// only non-nil in StateReady.
type Snapshot struct {
	State    State
	Identity *identity.UserIdentity
}

// Subscriber receives every published snapshot.
type Subscriber func(Snapshot)

// DefaultCallTimeout bounds each external call within a resolution cycle.
const DefaultCallTimeout = 5 * time.Second

// Options configure an Orchestrator.
type Options struct {
	Sessions    *session.Store
	Profiles    *identity.ProfileResolver
	Memberships *identity.MembershipResolver
	Logger      zerolog.Logger
	// CallTimeout bounds each external call (session fetch, profile fetch,
	// membership fetch). Defaults to DefaultCallTimeout.
	CallTimeout time.Duration
}

// Orchestrator owns the identity value and is its only writer.
type Orchestrator struct {
	sessions    *session.Store
	profiles    *identity.ProfileResolver
	memberships *identity.MembershipResolver
	logger      zerolog.Logger
	callTimeout time.Duration

	mu          sync.Mutex
	snap        Snapshot
	cycle       uint64
	disposed    bool
	unsubscribe func()
	subscribers map[int]Subscriber
	nextSubID   int

	// notifyMu serializes snapshot deliveries: every subscriber observes
	// snapshots in install order, and a new subscriber's initial delivery
	// cannot be overtaken by a concurrent publish.
	notifyMu sync.Mutex
}

// New constructs an orchestrator. Call Init to start it.
func New(opts Options) *Orchestrator {
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Orchestrator{
		sessions:    opts.Sessions,
		profiles:    opts.Profiles,
		memberships: opts.Memberships,
		logger:      opts.Logger.With().Str("component", "orchestrator").Logger(),
		callTimeout: timeout,
		snap:        Snapshot{State: StateUninitialized},
		subscribers: map[int]Subscriber{},
	}
}

// Init subscribes to session changes and starts the first resolution cycle.
// The cycle runs asynchronously; observe completion through Subscribe.
func (o *Orchestrator) Init(ctx context.Context) {
	o.mu.Lock()
	if o.unsubscribe != nil || o.disposed {
		o.mu.Unlock()
		return
	}
	o.unsubscribe = o.sessions.Subscribe(func(sess *backend.Session) {
		o.onSessionChange(ctx, sess)
	})
	o.mu.Unlock()

	cycle := o.beginCycle()
	go o.runInitialCycle(ctx, cycle)
}

// Dispose unsubscribes from the session store and marks the orchestrator
// torn down. In-flight resolutions run to completion but publish nothing.
// Idempotent.
func (o *Orchestrator) Dispose() {
	o.mu.Lock()
	unsub := o.unsubscribe
	o.unsubscribe = nil
	o.disposed = true
	o.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

// Subscribe registers a subscriber and immediately delivers the current
// snapshot to it, ordered with concurrent publishes so the subscriber never
// receives an older snapshot after a newer one. Returns the unsubscribe
// func. Subscriber callbacks must not call Subscribe or mutate the session
// store synchronously.
func (o *Orchestrator) Subscribe(fn Subscriber) func() {
	o.notifyMu.Lock()
	o.mu.Lock()
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = fn
	snap := o.snap
	o.mu.Unlock()

	fn(snap)
	o.notifyMu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subscribers, id)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) onSessionChange(ctx context.Context, sess *backend.Session) {
	if sess == nil {
		// Sign-out: discard the identity without a resolution cycle.
		o.mu.Lock()
		o.cycle++ // invalidate any in-flight resolution
		cycle := o.cycle
		o.mu.Unlock()
		if o.publish(cycle, Snapshot{State: StateReady}) {
			metrics.RecordResolution("none", 0)
		}
		return
	}
	cycle := o.beginCycle()
	go o.resolve(ctx, cycle, sess)
}

// beginCycle claims a new cycle number and publishes the Resolving state.
func (o *Orchestrator) beginCycle() uint64 {
	o.mu.Lock()
	o.cycle++
	cycle := o.cycle
	o.mu.Unlock()
	o.publish(cycle, Snapshot{State: StateResolving})
	return cycle
}

// runInitialCycle fetches the persisted session and resolves it. A session
// fetch failure with a locally held (possibly stale) session degrades to the
// fallback identity; with nothing held there is nothing to resolve.
func (o *Orchestrator) runInitialCycle(ctx context.Context, cycle uint64) {
	started := time.Now()
	sess, err := call(ctx, o.callTimeout, "session fetch", func(ctx context.Context) (*backend.Session, error) {
		return o.sessions.Current(ctx)
	})
	if err != nil {
		o.logger.Warn().Err(err).Msg("session fetch failed")
		if held := o.sessions.Held(); held != nil {
			fb := identity.Fallback(held)
			if o.publish(cycle, Snapshot{State: StateReady, Identity: &fb}) {
				metrics.RecordResolution("fallback", time.Since(started))
			}
			return
		}
		if o.publish(cycle, Snapshot{State: StateReady}) {
			metrics.RecordResolution("none", time.Since(started))
		}
		return
	}
	if sess == nil {
		if o.publish(cycle, Snapshot{State: StateReady}) {
			metrics.RecordResolution("none", time.Since(started))
		}
		return
	}
	o.resolveFrom(ctx, cycle, sess, started)
}

func (o *Orchestrator) resolve(ctx context.Context, cycle uint64, sess *backend.Session) {
	o.resolveFrom(ctx, cycle, sess, time.Now())
}

// resolveFrom runs the resolution sequence: profile first, memberships
// second. Profile failure applies the fallback identity policy; membership
// failure already degrades inside its resolver.
func (o *Orchestrator) resolveFrom(ctx context.Context, cycle uint64, sess *backend.Session, started time.Time) {
	profile, err := call(ctx, o.callTimeout, "profile fetch", func(ctx context.Context) (*backend.ProfileRow, error) {
		return o.profiles.Resolve(ctx, sess)
	})
	if err != nil {
		o.logger.Warn().Err(err).Str("subject", sess.Subject).Msg("profile resolution failed, applying fallback identity")
		fb := identity.Fallback(sess)
		if o.publish(cycle, Snapshot{State: StateReady, Identity: &fb}) {
			metrics.RecordResolution("fallback", time.Since(started))
		}
		return
	}

	orgs, _ := call(ctx, o.callTimeout, "membership fetch", func(ctx context.Context) ([]identity.Organization, error) {
		return o.memberships.Resolve(ctx, sess.Subject), nil
	})
	if orgs == nil {
		// Timed out before the resolver's own degradation could apply.
		orgs = []identity.Organization{}
	}

	assembled := identity.Assemble(sess, profile, orgs)
	if o.publish(cycle, Snapshot{State: StateReady, Identity: &assembled}) {
		metrics.RecordResolution("ok", time.Since(started))
	}
}

// publish installs the snapshot and notifies subscribers, unless the cycle
// has been superseded or the orchestrator disposed. Reports whether the
// snapshot was accepted. notifyMu keeps installation and delivery atomic
// with respect to other publishes and to Subscribe's initial delivery.
func (o *Orchestrator) publish(cycle uint64, snap Snapshot) bool {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	if o.disposed || cycle != o.cycle {
		disposed := o.disposed
		o.mu.Unlock()
		if !disposed {
			metrics.RecordStaleResolution()
		}
		return false
	}
	o.snap = snap
	subs := make([]Subscriber, 0, len(o.subscribers))
	for _, fn := range o.subscribers {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return true
}
