package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/disk-defender-backend/internal/broadcast"
	"github.com/DoyleJ11/disk-defender-backend/internal/engine"
	"github.com/DoyleJ11/disk-defender-backend/internal/protocol"
	"github.com/DoyleJ11/disk-defender-backend/internal/session"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("lobby closed")

type Msg interface{ isLobbyMsg() }

type Connect struct {
	ConnID       string
	PersistentID string
	Conn         broadcast.Conn
}

func (Connect) isLobbyMsg() {}

type Disconnect struct{ ConnID string }

func (Disconnect) isLobbyMsg() {}

type FromClient struct {
	ConnID string
	Action protocol.Action
	// Reply, when set, receives the outcome of the action.
	Reply chan error
}

func (FromClient) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	Code        string        `json:"code"`
	Status      engine.Status `json:"status"`
	Players     int           `json:"players"`
	Connections int           `json:"connections"`
	FillBots    bool          `json:"fillBots"`
	TimeLeft    int           `json:"timeLeft"`
}

type Config struct {
	Session session.Options

	// Clock reads the wall clock. Defaults to time.Now.
	Clock func() time.Time
	// TickEvery is how often the session clock is advanced.
	TickEvery time.Duration
	// OnIdle runs once on its own goroutine after the lobby has had no
	// connections and no seated players for IdleAfter.
	OnIdle    func(code string)
	IdleAfter time.Duration
}

const defaultIdleAfter = 2 * time.Minute

type Lobby struct {
	code   string
	inbox  chan Msg
	sess   *session.Session
	clock  func() time.Time
	every  time.Duration
	onIdle func(string)
	log    *zap.Logger

	idleAfter time.Duration
	idleSince time.Time
	idleFired bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLobby(parent context.Context, cfg Config) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	every := cfg.TickEvery
	if every <= 0 {
		every = engine.TickInterval
	}
	idleAfter := cfg.IdleAfter
	if idleAfter <= 0 {
		idleAfter = defaultIdleAfter
	}
	log := cfg.Session.Log
	if log == nil {
		log = zap.NewNop()
	}

	l := &Lobby{
		code:   cfg.Session.Code,
		inbox:  make(chan Msg, 256),
		sess:   session.New(clock(), cfg.Session),
		clock:  clock,
		every:  every,
		onIdle: cfg.OnIdle,
		log:    log.With(zap.String("lobby", cfg.Session.Code)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),

		idleAfter: idleAfter,
	}

	go l.loop()
	return l
}

func (l *Lobby) Code() string { return l.code }

// Expose the inbox so the ws layer can post messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the lobby goroutine has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Send posts m unless ctx ends or the lobby has shut down first.
func (l *Lobby) Send(ctx context.Context, m Msg) error {
	select {
	case l.inbox <- m:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State asks the lobby goroutine for a summary.
func (l *Lobby) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.Send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (l *Lobby) loop() {
	defer close(l.done)
	ticker := time.NewTicker(l.every)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case <-ticker.C:
			now := l.clock()
			l.sess.Advance(now)
			l.checkIdle(now)

		case m := <-l.inbox:
			// Bring timers up to date so the action sees the current clock.
			now := l.clock()
			l.sess.Advance(now)

			switch msg := m.(type) {
			case Connect:
				l.sess.Connect(msg.ConnID, msg.PersistentID, msg.Conn)

			case Disconnect:
				l.sess.Disconnect(msg.ConnID)
				l.checkIdle(now)

			case FromClient:
				err := l.sess.Handle(msg.ConnID, msg.Action)
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case GetState:
				st := l.sess.State()
				msg.Reply <- View{
					Code:        l.code,
					Status:      st.Status,
					Players:     len(st.Players),
					Connections: l.sess.Connections(),
					FillBots:    st.FillBots,
					TimeLeft:    st.TimeLeft,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) checkIdle(now time.Time) {
	if l.onIdle == nil {
		return
	}
	if !l.sess.Idle() {
		l.idleSince = time.Time{}
		l.idleFired = false
		return
	}
	if l.idleSince.IsZero() {
		l.idleSince = now
	}
	if !l.idleFired && now.Sub(l.idleSince) >= l.idleAfter {
		l.idleFired = true
		go l.onIdle(l.code)
	}
}

func (l *Lobby) shutdown() {
	l.sess.Close()
	l.cancel()
	l.log.Info("lobby shut down")
}
