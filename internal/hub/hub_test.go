package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DoyleJ11/disk-defender-backend/internal/lobby"
)

type nopConn struct{}

func (nopConn) Send([]byte) error { return nil }
func (nopConn) Close() error      { return nil }

func newTestHub(t *testing.T, cfg Config) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if cfg.TickEvery == 0 {
		cfg.TickEvery = 2 * time.Millisecond
	}
	return NewHub(ctx, cfg)
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	h := newTestHub(t, Config{})
	reply := make(chan *lobby.Lobby, 1)

	h.Inbox() <- CreateLobby{Code: "ZED123", Reply: reply}
	lb1 := <-reply

	h.Inbox() <- GetLobby{Code: "ZED123", Reply: reply}
	lb2 := <-reply

	if lb1 == nil || lb2 == nil || lb1 != lb2 {
		t.Fatalf("expected same lobby pointer")
	}
}

func TestHub_CreateRefusesTakenCode(t *testing.T) {
	h := newTestHub(t, Config{})
	ctx := context.Background()

	if lb, err := h.Create(ctx, "ABC"); err != nil || lb == nil {
		t.Fatalf("first create: lb=%v err=%v", lb, err)
	}
	lb, err := h.Create(ctx, "ABC")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if lb != nil {
		t.Fatalf("expected nil lobby for a taken code")
	}
}

func TestHub_DefaultLobbyExists(t *testing.T) {
	h := newTestHub(t, Config{DefaultCode: "MAIN"})
	ctx := context.Background()

	mainLobby, err := h.Get(ctx, "MAIN")
	if err != nil || mainLobby == nil {
		t.Fatalf("default lobby missing: %v", err)
	}
	if dup, err := h.Create(ctx, "MAIN"); err != nil || dup != nil {
		t.Fatalf("default code must count as taken, got %v (%v)", dup, err)
	}

	missing, err := h.Get(ctx, "NOPE")
	if err != nil || missing != nil {
		t.Fatalf("expected no lobby, got %v (%v)", missing, err)
	}
}

func TestHub_ViewsListsLobbiesInOrder(t *testing.T) {
	h := newTestHub(t, Config{DefaultCode: "MAIN"})
	ctx := context.Background()
	_, _ = h.Create(ctx, "ZZZ")
	_, _ = h.Create(ctx, "AAA")

	views, err := h.Views(ctx)
	if err != nil {
		t.Fatalf("views: %v", err)
	}
	var codes []string
	for _, v := range views {
		codes = append(codes, v.Code)
	}
	want := []string{"AAA", "MAIN", "ZZZ"}
	if len(codes) != len(want) {
		t.Fatalf("want %v, got %v", want, codes)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("want %v, got %v", want, codes)
		}
	}
}

func TestHub_ReapsIdleLobbyButKeepsDefault(t *testing.T) {
	h := newTestHub(t, Config{DefaultCode: "MAIN", IdleAfter: 10 * time.Millisecond})
	ctx := context.Background()

	lb, _ := h.Create(ctx, "TEMP")
	if err := lb.Send(ctx, lobby.Connect{ConnID: "c1", Conn: nopConn{}}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := lb.Send(ctx, lobby.Disconnect{ConnID: "c1"}); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	select {
	case <-lb.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("idle lobby was not reaped")
	}
	if got, _ := h.Get(ctx, "TEMP"); got != nil {
		t.Fatalf("reaped lobby still registered")
	}

	time.Sleep(50 * time.Millisecond)
	if got, _ := h.Get(ctx, "MAIN"); got == nil {
		t.Fatalf("default lobby must never be reaped")
	}
}

func TestHub_KeepsLobbyThatIsBusyAgainWhenReaped(t *testing.T) {
	h := newTestHub(t, Config{DefaultCode: "MAIN"})
	ctx := context.Background()

	lb, _ := h.Create(ctx, "BUSY")
	if err := lb.Send(ctx, lobby.Connect{ConnID: "late", Conn: nopConn{}}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	// An idle report that raced with the connect above.
	h.Inbox() <- lobbyIdle{code: "BUSY"}

	if got, _ := h.Get(ctx, "BUSY"); got != lb {
		t.Fatalf("busy lobby was reaped")
	}
	select {
	case <-lb.Done():
		t.Fatalf("busy lobby was stopped")
	default:
	}
}

func TestHub_ShutdownStopsEverything(t *testing.T) {
	h := newTestHub(t, Config{DefaultCode: "MAIN"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	extra, _ := h.Create(ctx, "X1")
	mainLobby, _ := h.Get(ctx, "MAIN")

	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	for _, lb := range []*lobby.Lobby{extra, mainLobby} {
		select {
		case <-lb.Done():
		default:
			t.Fatalf("lobby %s still running", lb.Code())
		}
	}

	if _, err := h.Get(ctx, "MAIN"); !errors.Is(err, ErrStopped) {
		t.Fatalf("want ErrStopped after shutdown, got %v", err)
	}
	// A second shutdown is harmless.
	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
