package hub

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/DoyleJ11/disk-defender-backend/internal/lobby"
	"github.com/DoyleJ11/disk-defender-backend/internal/session"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrStopped = errors.New("hub stopped")

const reapCheckTimeout = time.Second

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Code  string
	Reply chan *lobby.Lobby // nil when the code is taken
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type ListLobbies struct {
	Reply chan []*lobby.Lobby
}

type ShutdownHub struct {
	Reply chan []*lobby.Lobby // the lobbies that were told to stop
}

type lobbyIdle struct {
	code string
}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (ListLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}
func (lobbyIdle) isHubMsg()   {}

type Config struct {
	// DefaultCode names the lobby that always exists and is never reaped.
	DefaultCode string
	// Session seeds every new lobby's session. Code is filled in per lobby.
	Session   session.Options
	TickEvery time.Duration
	IdleAfter time.Duration
	Log       *zap.Logger
}

type Hub struct {
	cfg     Config
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		cfg:     cfg,
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if cfg.DefaultCode != "" {
		h.lobbies[cfg.DefaultCode] = h.newLobby(cfg.DefaultCode)
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) DefaultCode() string { return h.cfg.DefaultCode }

func (h *Hub) newLobby(code string) *lobby.Lobby {
	opts := h.cfg.Session
	opts.Code = code
	opts.Log = h.log
	cfg := lobby.Config{
		Session:   opts,
		TickEvery: h.cfg.TickEvery,
		IdleAfter: h.cfg.IdleAfter,
	}
	if code != h.cfg.DefaultCode {
		cfg.OnIdle = h.reportIdle
	}
	h.log.Info("lobby created", zap.String("lobby", code))
	return lobby.NewLobby(h.ctx, cfg)
}

func (h *Hub) reportIdle(code string) {
	select {
	case h.inbox <- lobbyIdle{code: code}:
	case <-h.done:
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				if h.lobbies[msg.Code] != nil {
					msg.Reply <- nil
					break
				}
				lb := h.newLobby(msg.Code)
				h.lobbies[msg.Code] = lb
				msg.Reply <- lb

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case lobbyIdle:
				h.reap(msg.code)

			case ListLobbies:
				out := make([]*lobby.Lobby, 0, len(h.lobbies))
				for _, lb := range h.lobbies {
					out = append(out, lb)
				}
				slices.SortFunc(out, func(a, b *lobby.Lobby) int {
					return cmp.Compare(a.Code(), b.Code())
				})
				msg.Reply <- out

			case ShutdownHub:
				stopped := make([]*lobby.Lobby, 0, len(h.lobbies))
				for _, lb := range h.lobbies {
					stopLobby(lb)
					stopped = append(stopped, lb)
				}
				clear(h.lobbies)
				msg.Reply <- stopped
				h.cancel()
				return
			}
		}
	}
}

// reap removes an idle lobby. The report was sent asynchronously, so the
// lobby is asked again in case a client arrived in the meantime.
func (h *Hub) reap(code string) {
	lb, ok := h.lobbies[code]
	if !ok || code == h.cfg.DefaultCode {
		return
	}
	ctx, cancel := context.WithTimeout(h.ctx, reapCheckTimeout)
	v, err := lb.State(ctx)
	cancel()
	if err == nil && (v.Connections > 0 || v.Players > 0) {
		h.log.Debug("idle lobby is busy again", zap.String("lobby", code))
		return
	}
	h.log.Info("reaping idle lobby", zap.String("lobby", code))
	delete(h.lobbies, code)
	stopLobby(lb)
}

// stopLobby asks lb to shut down without blocking the hub on a full inbox.
func stopLobby(lb *lobby.Lobby) {
	select {
	case lb.Inbox() <- lobby.Shutdown{}:
	case <-lb.Done():
	default:
		go func() {
			select {
			case lb.Inbox() <- lobby.Shutdown{}:
			case <-lb.Done():
			}
		}()
	}
}

func (h *Hub) ask(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, h *Hub, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		// The hub may have replied just before exiting.
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrStopped
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Get returns the lobby for code, or nil.
func (h *Hub) Get(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.ask(ctx, GetLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h, reply)
}

// Create makes a lobby under code. It returns nil if the code is taken.
func (h *Hub) Create(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.ask(ctx, CreateLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h, reply)
}

// List returns every lobby ordered by code.
func (h *Hub) List(ctx context.Context) ([]*lobby.Lobby, error) {
	reply := make(chan []*lobby.Lobby, 1)
	if err := h.ask(ctx, ListLobbies{Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h, reply)
}

// Views collects a summary of every lobby. Lobbies that stop while being
// asked are skipped.
func (h *Hub) Views(ctx context.Context) ([]lobby.View, error) {
	lobbies, err := h.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]lobby.View, 0, len(lobbies))
	for _, lb := range lobbies {
		v, err := lb.State(ctx)
		if errors.Is(err, lobby.ErrClosed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Shutdown stops every lobby and the hub, waiting for lobbies to exit until
// ctx ends.
func (h *Hub) Shutdown(ctx context.Context) error {
	reply := make(chan []*lobby.Lobby, 1)
	if err := h.ask(ctx, ShutdownHub{Reply: reply}); err != nil {
		if errors.Is(err, ErrStopped) {
			return nil
		}
		return err
	}
	stopped, err := await(ctx, h, reply)
	if err != nil {
		if errors.Is(err, ErrStopped) {
			return nil
		}
		return err
	}

	var errs error
	for _, lb := range stopped {
		select {
		case <-lb.Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("lobby %s: %w", lb.Code(), ctx.Err()))
		}
	}
	h.log.Info("hub stopped", zap.Int("lobbies", len(stopped)))
	return errs
}
