package store

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/Sh00ty/dataflow-cp/internal/models"
)

// Store is the single authoritative state container. All mutations go
// through Dispatch; the store is single-writer by construction — one
// mutex serializes every dispatch, and actions dispatched by listeners
// are queued and applied by the draining outer call in order. That
// drain loop is the Go rendition of the cooperative yields the
// lifecycle rules rely on.
type Store struct {
	mu    sync.Mutex
	state *models.ControlPlaneState

	idGen atomic.Uint64

	listeners   []Listener
	snapshotFns map[uint64]SnapshotFn
	snapSubGen  uint64

	draining bool
	queue    []Action
}

func New() *Store {
	return &Store{
		state:       models.NewControlPlaneState(),
		snapshotFns: make(map[uint64]SnapshotFn, 16),
	}
}

// NextID returns a fresh process-unique id. Ids are never reused.
func (s *Store) NextID() models.ID {
	return models.ID(s.idGen.Add(1))
}

// Subscribe registers a listener called once per committed action.
// Must be called before the store starts taking dispatches.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// SubscribeSnapshots registers a fan-out subscriber invoked once per
// drained dispatch with a deep clone of the settled state. Returns an
// unsubscribe func.
func (s *Store) SubscribeSnapshots(fn SnapshotFn) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapSubGen++
	key := s.snapSubGen
	s.snapshotFns[key] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.snapshotFns, key)
	}
}

// GetState returns a deep clone of the current state.
func (s *Store) GetState() *models.ControlPlaneState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Dispatch applies the action, runs listeners, then drains every
// action they (or cascades) produced. The returned error is the
// outcome of the given action only; deferred actions that fail are
// logged and counted against no caller.
func (s *Store) Dispatch(a Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draining {
		// s.mu is held for the whole drain and is not reentrant, so a
		// listener calling Dispatch directly blocks on the lock above
		// and never gets here; listeners queue follow-ups through the
		// deferral func instead.
		s.queue = append(s.queue, a)
		return nil
	}

	s.draining = true
	defer func() {
		s.draining = false
		s.queue = s.queue[:0]
	}()

	err := s.commitOne(a)

	for i := 0; i < len(s.queue); i++ {
		deferred := s.queue[i]
		if derr := s.commitOne(deferred); derr != nil {
			log.Error().Err(derr).Msgf("deferred action %s failed", deferred.Name())
		}
	}

	if err == nil || len(s.queue) > 0 {
		s.fanOut()
	}
	return err
}

// commitOne applies a single action and notifies listeners. Listener
// dispatches land on s.queue.
func (s *Store) commitOne(a Action) error {
	commit := Commit{Action: a, State: s.state}
	ac := &applyCtx{
		st:     s.state,
		commit: &commit,
		cascade: func(child Action) {
			s.queue = append(s.queue, child)
		},
	}
	if err := a.apply(ac); err != nil {
		return err
	}
	s.state.Nonce++
	commit.Nonce = s.state.Nonce

	if !s.state.System.RequestRunning {
		if _, system := a.(systemAction); !system {
			log.Warn().Msgf("action %s committed outside a request span", a.Name())
		}
	}

	dispatch := func(child Action) {
		s.queue = append(s.queue, child)
	}
	for _, l := range s.listeners {
		l(commit, dispatch)
	}
	return nil
}

func (s *Store) fanOut() {
	if len(s.snapshotFns) == 0 {
		return
	}
	snap := s.state.Clone()
	for _, fn := range s.snapshotFns {
		fn(snap)
	}
}

// systemAction marks actions exempt from the request-span warning.
type systemAction interface {
	isSystem()
}
