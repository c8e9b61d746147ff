package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DoyleJ11/disk-defender-backend/internal/hub"
	"github.com/DoyleJ11/disk-defender-backend/internal/lobby"
	"github.com/DoyleJ11/disk-defender-backend/internal/logger"
	"github.com/DoyleJ11/disk-defender-backend/internal/protocol"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Config struct {
	// OriginPatterns are passed to websocket.Accept. Empty means same-origin only.
	OriginPatterns []string
	ActionRate     rate.Limit
	ActionBurst    int
	WriteTimeout   time.Duration
	OutboxSize     int
	Log            *zap.Logger

	// PingInterval is how often the server pings. A ping unanswered within
	// PingTimeout ends the connection; client silence alone never does.
	PingInterval time.Duration
	PingTimeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.ActionRate <= 0 {
		c.ActionRate = 30
	}
	if c.ActionBurst <= 0 {
		c.ActionBurst = 60
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 10 * time.Second
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = 64
	}
	if c.Log == nil {
		c.Log = zap.NewNop()
	}
}

// Handler upgrades /ws?code=XXXX&pid=YYYY. An empty code joins the default
// lobby; an empty pid gets a fresh one, returned in the welcome message.
func Handler(h *hub.Hub, cfg Config) http.HandlerFunc {
	cfg.applyDefaults()

	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			code = h.DefaultCode()
		}

		lb, err := h.Get(r.Context(), code)
		if err != nil {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		if lb == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: cfg.OriginPatterns,
		})
		if err != nil {
			cfg.Log.Warn("websocket accept failed", zap.String("lobby", code), zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		pid := r.URL.Query().Get("pid")
		if pid == "" {
			pid = uuid.NewString()
		}
		log := logger.ForConn(cfg.Log, code, connID, pid)

		c := newClient(cfg.OutboxSize)
		defer c.Close()

		if err := lb.Send(r.Context(), lobby.Connect{ConnID: connID, PersistentID: pid, Conn: c}); err != nil {
			conn.Close(websocket.StatusGoingAway, "lobby closed")
			return
		}
		log.Info("client connected")
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = lb.Send(ctx, lobby.Disconnect{ConnID: connID})
			log.Info("client disconnected")
		}()

		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			return c.writeLoop(ctx, conn, cfg.WriteTimeout)
		})
		g.Go(func() error {
			defer c.Close()
			return readLoop(ctx, conn, lb, c, connID, cfg, log)
		})
		g.Go(func() error {
			return pingLoop(ctx, conn, cfg.PingInterval, cfg.PingTimeout)
		})

		if err := g.Wait(); err != nil && !isNormalClose(err) {
			log.Warn("connection ended", zap.Error(err))
		}
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, lb *lobby.Lobby, c *client, connID string, cfg Config, log *zap.Logger) error {
	limiter := rate.NewLimiter(cfg.ActionRate, cfg.ActionBurst)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.Allow() {
			log.Debug("action rate limited")
			sendError(c, "rate limit exceeded")
			continue
		}

		action, err := protocol.DecodeAction(data)
		if err != nil {
			log.Debug("bad client message", zap.Error(err))
			sendError(c, err.Error())
			continue
		}

		if err := lb.Send(ctx, lobby.FromClient{ConnID: connID, Action: action}); err != nil {
			if errors.Is(err, lobby.ErrClosed) {
				conn.Close(websocket.StatusGoingAway, "lobby closed")
			}
			return err
		}
	}
}

// pingLoop keeps the connection alive while the client is quiet. Pongs are
// read by readLoop, which is always blocked in Read.
func pingLoop(ctx context.Context, conn *websocket.Conn, every, timeout time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, timeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func sendError(c *client, msg string) {
	b, err := protocol.Encode(protocol.MsgError, protocol.Error{Message: msg})
	if err != nil {
		return
	}
	_ = c.Send(b)
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, lobby.ErrClosed)
}
