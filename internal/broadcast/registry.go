// Package broadcast routes encoded messages to connections: one recipient,
// one team group, or everyone.
package broadcast

import (
	"slices"

	"github.com/DoyleJ11/disk-defender-backend/internal/engine"
	"github.com/DoyleJ11/disk-defender-backend/internal/protocol"
	"go.uber.org/zap"
)

// Conn is one live client connection. Send must not block.
type Conn interface {
	Send([]byte) error
	Close() error
}

// Registry maps connection ids to handles and team ids to subscriber sets.
// It is owned by a single session goroutine and is not safe for concurrent use.
type Registry struct {
	conns  map[string]Conn
	groups map[engine.TeamID]map[string]struct{}
	member map[string]engine.TeamID
	log    *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]Conn),
		groups: make(map[engine.TeamID]map[string]struct{}),
		member: make(map[string]engine.TeamID),
		log:    log,
	}
}

func (r *Registry) Add(id string, c Conn) {
	r.conns[id] = c
}

// Remove forgets the connection and its group membership.
func (r *Registry) Remove(id string) {
	r.Unsubscribe(id)
	delete(r.conns, id)
}

func (r *Registry) Has(id string) bool {
	_, ok := r.conns[id]
	return ok
}

func (r *Registry) Len() int { return len(r.conns) }

// Subscribe puts id in team's group, leaving any previous group first.
func (r *Registry) Subscribe(id string, team engine.TeamID) {
	r.Unsubscribe(id)
	g, ok := r.groups[team]
	if !ok {
		g = make(map[string]struct{})
		r.groups[team] = g
	}
	g[id] = struct{}{}
	r.member[id] = team
}

func (r *Registry) Unsubscribe(id string) {
	team, ok := r.member[id]
	if !ok {
		return
	}
	delete(r.groups[team], id)
	delete(r.member, id)
}

// Group returns the team id subscribes to, if any.
func (r *Registry) Group(id string) (engine.TeamID, bool) {
	team, ok := r.member[id]
	return team, ok
}

// Members returns the sorted connection ids subscribed to team.
func (r *Registry) Members(team engine.TeamID) []string {
	out := make([]string, 0, len(r.groups[team]))
	for id := range r.groups[team] {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// SendTo delivers to one connection.
func (r *Registry) SendTo(id, msgType string, payload any) {
	b, ok := r.encode(msgType, payload)
	if !ok {
		return
	}
	r.deliver(id, b)
}

// SendTeam delivers to every subscriber of team except the listed ids.
func (r *Registry) SendTeam(team engine.TeamID, msgType string, payload any, except ...string) {
	if len(r.groups[team]) == 0 {
		return
	}
	b, ok := r.encode(msgType, payload)
	if !ok {
		return
	}
	for id := range r.groups[team] {
		if slices.Contains(except, id) {
			continue
		}
		r.deliver(id, b)
	}
}

// SendUngrouped delivers to connections that belong to no team.
func (r *Registry) SendUngrouped(msgType string, payload any) {
	b, ok := r.encode(msgType, payload)
	if !ok {
		return
	}
	for id := range r.conns {
		if _, grouped := r.member[id]; !grouped {
			r.deliver(id, b)
		}
	}
}

// Broadcast delivers to every connection.
func (r *Registry) Broadcast(msgType string, payload any) {
	if len(r.conns) == 0 {
		return
	}
	b, ok := r.encode(msgType, payload)
	if !ok {
		return
	}
	for id := range r.conns {
		r.deliver(id, b)
	}
}

func (r *Registry) encode(msgType string, payload any) ([]byte, bool) {
	b, err := protocol.Encode(msgType, payload)
	if err != nil {
		r.log.Error("encode message", zap.String("type", msgType), zap.Error(err))
		return nil, false
	}
	return b, true
}

func (r *Registry) deliver(id string, b []byte) {
	c, ok := r.conns[id]
	if !ok {
		return
	}
	if err := c.Send(b); err != nil {
		// The transport closes slow or dead connections itself and reports
		// the disconnect back through the session.
		r.log.Debug("send failed", zap.String("conn_id", id), zap.Error(err))
	}
}
