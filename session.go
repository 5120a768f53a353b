// Package session implements Crucible's event-sourced conversation
// kernel: a bounded in-memory event ring, an append-only on-disk markdown
// log, a pluggable reactor, and the single-reader event loop that ties
// them together with compaction and cancellable streaming ingestion
// layered on top.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cruciblehq/sessionkernel/errs"
	"github.com/cruciblehq/sessionkernel/event"
	"github.com/cruciblehq/sessionkernel/internal/logging"
	"github.com/cruciblehq/sessionkernel/kiln"
	"github.com/cruciblehq/sessionkernel/reactor"
	"github.com/cruciblehq/sessionkernel/ring"
)

// Session is the conversation kernel: it owns the event ring, the on-disk
// kiln writer, the reactor, and the single-reader event loop. A Session
// must be started with Start and then driven with Run (typically from its
// own goroutine); producers talk to it exclusively through Handle values.
type Session struct {
	cfg Config
	log logging.Logger

	ring        *ring.EventRing
	kilnWriter  *kiln.Writer
	reactorImpl reactor.Reactor

	reactorMu  sync.RWMutex
	reactorCtx *reactor.Context

	state *atomicState

	events chan event.Event
	done   chan struct{}

	startGuard atomic.Bool
	runGuard   atomic.Bool
	endOnce    sync.Once

	fileIndexMu sync.RWMutex
	fileIndex   int
}

// New constructs a Session rooted at folder. It creates the folder (and
// any missing parents) eagerly so the ring's overflow callback has
// somewhere to flush to even before Start is called.
func New(folder string, opts ...Option) (*Session, error) {
	cfg := resolveConfig(folder, opts)
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	r, err := ring.New(cfg.ringCapacity, ring.WithLogger(cfg.logger))
	if err != nil {
		return nil, errs.NewInitFailedError("session: failed to construct event ring", err)
	}

	kilnWriter := kiln.New(cfg.Folder, kiln.WithLogger(cfg.logger))
	if err := kilnWriter.EnsureFolder(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:         cfg,
		log:         cfg.logger,
		ring:        r,
		kilnWriter:  kilnWriter,
		reactorImpl: cfg.reactorImpl,
		reactorCtx:  reactor.NewContext(cfg.reactorConfig()),
		state:       newAtomicState(StateInitializing),
		events:      make(chan event.Event, cfg.channelCapacity),
		done:        make(chan struct{}),
	}

	r.SetOverflowCallback(func(evicted []event.Event) {
		index, ok := s.tryCurrentFileIndex()
		if !ok {
			s.log.Warning().Int("events_dropped", len(evicted)).
				Log("ring: overflow flush skipped, file index locked")
			return
		}
		if err := kiln.FlushOnOverflow(s.cfg.Folder, index, evicted, time.Now()); err != nil {
			s.log.Warning().Err(err).Log("ring: overflow flush failed")
		}
	})

	return s, nil
}

// SessionID returns the session's identifier.
func (s *Session) SessionID() string { return s.cfg.SessionID }

// Folder returns the session's context-file folder.
func (s *Session) Folder() string { return s.cfg.Folder }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state.Load() }

// Start pushes the SessionStarted event, persists it to file 000, invokes
// the reactor's start hook, and transitions the session to Active. It
// fails with an InitFailedError if called more than once.
func (s *Session) Start() error {
	if !s.startGuard.CompareAndSwap(false, true) {
		return errs.NewInitFailedError("session: already started", nil)
	}

	started := event.SessionStarted{
		SessionID:        s.cfg.SessionID,
		Folder:           s.cfg.Folder,
		MaxContextTokens: s.cfg.MaxContextTokens,
		SystemPrompt:     s.cfg.SystemPrompt,
	}
	s.ring.Push(started)
	if _, err := s.kilnWriter.Append(s.currentFileIndex(), started, time.Now()); err != nil {
		return err
	}

	if err := s.reactorImpl.OnSessionStart(s.cfg.reactorConfig()); err != nil {
		return errs.NewInitFailedError("session: reactor on_session_start failed", err)
	}

	s.state.Store(StateActive)
	s.log.Info().
		Str("session_id", s.cfg.SessionID).
		Str("folder", s.cfg.Folder).
		Log("session started")
	return nil
}

// Run drives the event loop until the channel closes or a SessionEnded
// event is processed, returning any fatal storage error encountered along
// the way. It fails with an InitFailedError if already running. On every
// exit path it calls the idempotent internal end, notifying the reactor
// exactly once regardless of how the loop stopped.
func (s *Session) Run() error {
	if !s.runGuard.CompareAndSwap(false, true) {
		return errs.NewInitFailedError("session: event loop already running", nil)
	}
	defer close(s.done)

	var loopErr error
runLoop:
	for evt := range s.events {
		_, isEnded := evt.(event.SessionEnded)
		if !isEnded {
			switch s.state.Load() {
			case StateEnded:
				break runLoop
			case StatePaused:
				continue runLoop
			}
		}

		if err := s.processEvent(evt); err != nil {
			loopErr = err
			break runLoop
		}
		if isEnded {
			break runLoop
		}
	}

	s.endInternal("event loop completed")
	return loopErr
}

// processEvent pushes evt into the ring, persists it, dispatches it to
// the reactor, drains any follow-up events the reactor emitted, and
// triggers compaction if the token budget has been reached.
func (s *Session) processEvent(evt event.Event) error {
	seq := s.ring.Push(evt)
	if _, err := s.kilnWriter.Append(s.currentFileIndex(), evt, time.Now()); err != nil {
		return err
	}

	s.reactorMu.Lock()
	s.reactorCtx.ResetForEvent(seq)
	processed, herr := s.reactorImpl.HandleEvent(s.reactorCtx, evt)
	if herr != nil {
		processed = evt
		s.log.Warning().Err(herr).Str("event_type", evt.Type()).Log("reactor: handle_event failed, event still persisted")
	}

	// Two distinct drain passes, matching the bridging step the original
	// implementation performs between its event-bus and reactor contexts.
	follow := s.reactorCtx.TakeEmitted()
	s.reactorCtx.BridgeEventContext()
	follow = append(follow, s.reactorCtx.TakeEmitted()...)

	s.reactorCtx.AddTokens(processed.EstimateTokens())
	compactionRequested := s.reactorCtx.CompactionRequested()
	s.reactorMu.Unlock()

	for _, fe := range follow {
		s.ring.Push(fe)
		if _, err := s.kilnWriter.Append(s.currentFileIndex(), fe, time.Now()); err != nil {
			return err
		}
	}

	if compactionRequested {
		if err := s.compact(); err != nil {
			s.log.Err().Err(err).Log("compaction failed")
		}
	}
	return nil
}

// compact snapshots the ring, asks the reactor for a summary, rolls the
// kiln writer over to a new file, and resets the token counter. The ring
// itself is never truncated; historical files remain authoritative.
func (s *Session) compact() error {
	if !s.state.tryTransition(StateActive, StateCompacting) {
		return nil
	}

	snapshot := s.ring.Snapshot()
	summary, err := s.reactorImpl.OnBeforeCompact(snapshot)
	if err != nil {
		s.state.Store(StateActive)
		return errs.NewReactorError("session: on_before_compact failed", err)
	}

	s.fileIndexMu.Lock()
	prevIndex := s.fileIndex
	newIndex := prevIndex + 1
	s.fileIndex = newIndex
	s.fileIndexMu.Unlock()

	if err := s.kilnWriter.WriteHeader(newIndex, kiln.CompactionHeader(prevIndex, summary)); err != nil {
		return err
	}

	compacted := event.SessionCompacted{Summary: summary, NewFile: kiln.FileStem(newIndex)}
	s.ring.Push(compacted)
	if _, err := s.kilnWriter.Append(newIndex, compacted, time.Now()); err != nil {
		return err
	}

	s.reactorMu.Lock()
	s.reactorCtx.ResetTokenCount()
	s.reactorMu.Unlock()

	s.state.Store(StateActive)
	s.log.Info().Int("new_file_index", newIndex).Log("compaction complete")
	return nil
}

// Pause transitions an Active session to Paused; inbound events are
// dropped, not queued, while paused.
func (s *Session) Pause() {
	s.state.tryTransition(StateActive, StatePaused)
}

// Resume transitions a Paused session back to Active.
func (s *Session) Resume() {
	s.state.tryTransition(StatePaused, StateActive)
}

// End idempotently transitions the session to Ended and notifies the
// reactor's end hook, without persisting a SessionEnded event. Callers
// that need the event persisted should send one through a Handle instead;
// the loop's own exit path calls this internally, so both are safe to
// call in either order.
func (s *Session) End(reason string) {
	s.endInternal(reason)
}

func (s *Session) endInternal(reason string) {
	s.endOnce.Do(func() {
		s.state.Store(StateEnded)
		if err := s.reactorImpl.OnSessionEnd(reason); err != nil {
			s.log.Warning().Err(err).Log("reactor: on_session_end failed")
		}
		s.log.Info().Str("reason", reason).Log("session ended")
	})
}

// Handle returns a cheap, clonable producer-side handle onto this
// session.
func (s *Session) Handle() Handle {
	return Handle{
		sessionID: s.cfg.SessionID,
		folder:    s.cfg.Folder,
		state:     s.state,
		events:    s.events,
		done:      s.done,
	}
}

func (s *Session) currentFileIndex() int {
	s.fileIndexMu.RLock()
	defer s.fileIndexMu.RUnlock()
	return s.fileIndex
}

// tryCurrentFileIndex is the non-blocking variant used by the ring's
// overflow callback, which runs synchronously while the ring's write
// lock is held (see ring.OverflowFunc): blocking here would stall every
// other Push call for as long as compact holds fileIndexMu, so a failed
// acquisition skips the flush rather than waiting for it.
func (s *Session) tryCurrentFileIndex() (int, bool) {
	if !s.fileIndexMu.TryRLock() {
		return 0, false
	}
	defer s.fileIndexMu.RUnlock()
	return s.fileIndex, true
}
