package session

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/DoyleJ11/disk-defender-backend/internal/engine"
	"github.com/DoyleJ11/disk-defender-backend/internal/protocol"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// constSource makes every random draw the same value.
type constSource uint64

func (c constSource) Uint64() uint64 { return uint64(c) }

// quietRand never clears any probability threshold: no spawns, no bot dice.
func quietRand() *rand.Rand { return rand.New(constSource(math.MaxUint64)) }

// eagerRand clears every threshold and always picks the first option.
func eagerRand() *rand.Rand { return rand.New(constSource(1 << 11)) }

type fakeConn struct {
	msgs []protocol.Envelope
}

func (f *fakeConn) Send(b []byte) error {
	env, err := protocol.DecodeEnvelope(b)
	if err != nil {
		return err
	}
	f.msgs = append(f.msgs, env)
	return nil
}

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) count(typ string) int {
	n := 0
	for _, m := range f.msgs {
		if m.Type == typ {
			n++
		}
	}
	return n
}

func (f *fakeConn) last(typ string) (protocol.Envelope, bool) {
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if f.msgs[i].Type == typ {
			return f.msgs[i], true
		}
	}
	return protocol.Envelope{}, false
}

func (f *fakeConn) logs(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, m := range f.msgs {
		if m.Type == protocol.MsgLog {
			out = append(out, decode[protocol.Log](t, m).Text)
		}
	}
	return out
}

func (f *fakeConn) clear() { f.msgs = nil }

func decode[T any](t *testing.T, env protocol.Envelope) T {
	t.Helper()
	v, err := protocol.DecodePayload[T](env)
	require.NoError(t, err)
	return v
}

func lastOf[T any](t *testing.T, c *fakeConn, typ string) T {
	t.Helper()
	env, ok := c.last(typ)
	require.True(t, ok, "no %s message", typ)
	return decode[T](t, env)
}

type harness struct {
	t     *testing.T
	s     *Session
	conns map[string]*fakeConn
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	if opts.Rand == nil {
		opts.Rand = quietRand()
	}
	if opts.Code == "" {
		opts.Code = "TEST"
	}
	return &harness{t: t, s: New(t0, opts), conns: map[string]*fakeConn{}}
}

func (h *harness) connect(id string) *fakeConn {
	c := &fakeConn{}
	h.conns[id] = c
	h.s.Connect(id, "pid-"+id, c)
	return c
}

func (h *harness) join(id string, team engine.TeamID, role engine.Role) error {
	if _, ok := h.conns[id]; !ok {
		h.connect(id)
	}
	return h.s.Handle(id, protocol.JoinLobby{Team: team, Role: role, Name: id})
}

// seatTeam fills team with one connection per role: <team>0 drives,
// <team>1 schedules and <team>2 hacks.
func (h *harness) seatTeam(team engine.TeamID) {
	for i, role := range engine.Roles {
		require.NoError(h.t, h.join(seatID(team, i), team, role))
	}
}

func seatID(team engine.TeamID, i int) string {
	return string(team) + string(rune('0'+i))
}

func (h *harness) readyAll() {
	for id := range h.s.state.Players {
		if !h.s.state.Players[id].Ready {
			require.NoError(h.t, h.s.Handle(id, protocol.ToggleReady{}))
		}
	}
}

func (h *harness) advance(d time.Duration) {
	h.s.Advance(h.s.Now().Add(d))
}

// startFullMatch seats nine players and runs the countdown out.
func (h *harness) startFullMatch() {
	for _, t := range engine.Teams {
		h.seatTeam(t)
	}
	h.readyAll()
	require.Equal(h.t, engine.StatusCountdown, h.s.state.Status)
	h.advance(engine.CountdownStep * engine.CountdownFrom)
	require.Equal(h.t, engine.StatusPlaying, h.s.state.Status)
}

// addJob puts a job on team's queue born age ago.
func (h *harness) addJob(id string, team engine.TeamID, sector int, age time.Duration) *engine.Job {
	j := &engine.Job{
		ID:     id,
		Team:   team,
		Sector: sector,
		Birth:  h.s.Now().Add(-age),
		Status: engine.JobStatusForAge(age),
	}
	h.s.state.Jobs = append(h.s.state.Jobs, j)
	return j
}

func (h *harness) team(t engine.TeamID) *engine.TeamRecord {
	return h.s.state.Teams[t]
}

func (h *harness) clearAll() {
	for _, c := range h.conns {
		c.clear()
	}
}
