package gate

import (
	"context"
	"sync"

	"engame/services/session"

	"github.com/rs/zerolog/log"
)

// Watch follows one signed in identity. It yields the launch decision first,
// then a fresh decision for every auth event of that identity and every
// Recheck. Sign out yields Unauthenticated and closes the watch.
//
// Events are drained by one goroutine and evaluated by another, so a slow
// record lookup never holds up a sign out. Every evaluation takes a sequence
// number when it starts and a result older than the last delivered one is
// dropped.
type Watch struct {
	gate     *Gate
	identity session.Identity
	sub      *session.Subscription
	out      chan Decision
	pending  chan *session.Session
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	current State
	started uint64
	applied uint64
	closed  bool
	once    sync.Once
}

// Watch opens a watch for the session. The caller must Close it when the
// client goes away.
func (g *Gate) Watch(ctx context.Context, s *session.Session) (*Watch, error) {
	if s == nil {
		return nil, session.ErrNoSession
	}
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w := &Watch{
		gate:     g,
		identity: s.Identity,
		sub:      g.bus.Subscribe(s.Identity),
		out:      make(chan Decision, 1),
		pending:  make(chan *session.Session, 1),
		ctx:      wctx,
		cancel:   cancel,
	}
	g.register(w)
	seq := w.begin()
	w.deliver(g.Evaluate(ctx, s), seq)
	go w.listen()
	go w.evaluate()
	return w, nil
}

// C delivers decisions, latest wins. It is closed when the watch ends.
func (w *Watch) C() <-chan Decision {
	return w.out
}

func (w *Watch) Current() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *Watch) Close() {
	w.once.Do(func() {
		w.cancel()
		w.gate.unregister(w)
		w.sub.Close()
		w.mu.Lock()
		w.closed = true
		close(w.out)
		w.mu.Unlock()
	})
}

func (w *Watch) listen() {
	for e := range w.sub.C {
		if e.Kind == session.SignedOut || e.Session == nil {
			w.deliver(Decide(nil, nil, nil), w.begin())
			w.Close()
			return
		}
		w.schedule(e.Session)
	}
}

// schedule replaces any session still waiting for evaluation. listen is the
// only sender, so the send cannot block.
func (w *Watch) schedule(s *session.Session) {
	select {
	case <-w.pending:
	default:
	}
	w.pending <- s
}

func (w *Watch) evaluate() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case s := <-w.pending:
			seq := w.begin()
			w.deliver(w.gate.Evaluate(w.ctx, s), seq)
		}
	}
}

// begin reserves the sequence number for an evaluation about to start.
func (w *Watch) begin() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started++
	return w.started
}

func (w *Watch) deliver(d Decision, seq uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if seq <= w.applied {
		log.Debug().
			Str("identity", string(w.identity)).
			Str("state", string(d.State)).
			Msg("dropping stale gate decision")
		return
	}
	w.applied = seq
	if !ValidTransition(w.current, d.State) {
		log.Warn().
			Str("identity", string(w.identity)).
			Str("from", string(w.current)).
			Str("to", string(d.State)).
			Msg("unexpected gate transition, applying fresh state")
	}
	w.current = d.State
	select {
	case <-w.out:
	default:
	}
	w.out <- d
}
