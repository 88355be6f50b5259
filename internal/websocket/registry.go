// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package websocket

import (
	"sort"
	"sync"
	"time"
)

// AuthState is either Unauthenticated or Authenticated.
type AuthState interface {
	authState()
}

// Unauthenticated is the state of every connection until AUTHENTICATE succeeds.
type Unauthenticated struct{}

// Authenticated carries the identity and role established by AUTHENTICATE.
type Authenticated struct {
	UserID string
	Role   string
}

func (Unauthenticated) authState() {}
func (Authenticated) authState()   {}

// ChannelFilter decides which channels a role may keep. The registry uses it
// to prune subscriptions when a connection re-authenticates with a new role.
type ChannelFilter func(role, channel string) bool

// ConnInfo is a point-in-time copy of one connection's state.
type ConnInfo struct {
	ID            string
	ConnectedAt   time.Time
	LastLiveness  time.Time
	Liveness      Liveness
	Auth          AuthState
	Subscriptions []string
	Rooms         []string
}

// Stats summarizes registry contents.
type Stats struct {
	TotalConnections         int            `json:"totalConnections"`
	AuthenticatedConnections int            `json:"authenticatedConnections"`
	SubscriptionCounts       map[string]int `json:"subscriptionCounts"`
	RoomCounts               map[string]int `json:"roomCounts"`
}

// Registry is the single source of truth for live connections, their
// authentication state, channel subscriptions and room membership. All of it
// is guarded by one lock so a removed connection can never be observed in a
// subscription or room lookup.
type Registry struct {
	mu             sync.RWMutex
	maxConnections int
	conns          map[string]*Conn
	rooms          map[string]map[string]*Conn
}

// NewRegistry creates a registry that admits at most maxConnections.
// A non-positive limit means unlimited.
func NewRegistry(maxConnections int) *Registry {
	return &Registry{
		maxConnections: maxConnections,
		conns:          make(map[string]*Conn),
		rooms:          make(map[string]map[string]*Conn),
	}
}

// Register adds a connection in the Unauthenticated state.
func (r *Registry) Register(c *Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[c.id]; exists {
		return ErrDuplicateConnection
	}
	if r.maxConnections > 0 && len(r.conns) >= r.maxConnections {
		return ErrCapacityExceeded
	}
	r.conns[c.id] = c
	return nil
}

// Remove deletes a connection along with its subscriptions and room
// memberships. Rooms left empty are deleted. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	for room := range c.rooms {
		r.leaveRoomLocked(c, room)
	}
	c.subscriptions = make(map[string]struct{})
	return c, true
}

// Get returns the live connection with the given id.
func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// All returns every live connection in accept order.
func (r *Registry) All() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	sortBySeq(out)
	return out
}

// Lookup returns the connections subscribed to channel, in accept order.
func (r *Registry) Lookup(channel string) []*Conn {
	return r.collect(func(c *Conn) bool {
		_, ok := c.subscriptions[channel]
		return ok
	})
}

// LookupAuthenticated returns the authenticated connections subscribed to
// channel, in accept order.
func (r *Registry) LookupAuthenticated(channel string) []*Conn {
	return r.collect(func(c *Conn) bool {
		if _, ok := c.auth.(Authenticated); !ok {
			return false
		}
		_, ok := c.subscriptions[channel]
		return ok
	})
}

func (r *Registry) collect(match func(*Conn) bool) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0)
	for _, c := range r.conns {
		if match(c) {
			out = append(out, c)
		}
	}
	sortBySeq(out)
	return out
}

// RoomMembers returns the members of room in accept order.
func (r *Registry) RoomMembers(room string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[room]
	out := make([]*Conn, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	sortBySeq(out)
	return out
}

// UpdateLiveness records evidence of life for id.
func (r *Registry) UpdateLiveness(id string, now time.Time) bool {
	c, ok := r.Get(id)
	if !ok {
		return false
	}
	c.touch(now)
	return true
}

// Authenticate moves a connection to the Authenticated state. A connection
// may re-authenticate; subscriptions the new role may not hold are dropped and
// returned.
func (r *Registry) Authenticate(id string, state Authenticated, allowed ChannelFilter) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	c.auth = state

	var pruned []string
	if allowed != nil {
		for ch := range c.subscriptions {
			if !allowed(state.Role, ch) {
				delete(c.subscriptions, ch)
				pruned = append(pruned, ch)
			}
		}
	}
	sort.Strings(pruned)
	return pruned, nil
}

// AuthOf returns the authentication state of id.
func (r *Registry) AuthOf(id string) (AuthState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	if !ok {
		return Unauthenticated{}, false
	}
	return c.auth, true
}

// Subscribe adds channels to the subscription set of id.
func (r *Registry) Subscribe(id string, channels []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return ErrConnectionNotFound
	}
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	return nil
}

// Unsubscribe removes channels from the subscription set of id and returns
// the channels that remain.
func (r *Registry) Unsubscribe(id string, channels []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
	return setToSorted(c.subscriptions), nil
}

// JoinRoom adds id to room, creating it on first join, and returns the
// resulting member count.
func (r *Registry) JoinRoom(id, room string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return 0, ErrConnectionNotFound
	}
	members, exists := r.rooms[room]
	if !exists {
		members = make(map[string]*Conn)
		r.rooms[room] = members
	}
	members[id] = c
	c.rooms[room] = struct{}{}
	return len(members), nil
}

// LeaveRoom removes id from room and returns the remaining member count,
// which is 0 once the room has been deleted.
func (r *Registry) LeaveRoom(id, room string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return 0, ErrConnectionNotFound
	}
	return r.leaveRoomLocked(c, room), nil
}

func (r *Registry) leaveRoomLocked(c *Conn, room string) int {
	delete(c.rooms, room)
	members, ok := r.rooms[room]
	if !ok {
		return 0
	}
	delete(members, c.id)
	if len(members) == 0 {
		delete(r.rooms, room)
		return 0
	}
	return len(members)
}

// Describe returns a copy of the state of id.
func (r *Registry) Describe(id string) (ConnInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	if !ok {
		return ConnInfo{}, false
	}
	return ConnInfo{
		ID:            c.id,
		ConnectedAt:   c.connectedAt,
		LastLiveness:  c.LastLiveness(),
		Liveness:      c.Liveness(),
		Auth:          c.auth,
		Subscriptions: setToSorted(c.subscriptions),
		Rooms:         setToSorted(c.rooms),
	}, true
}

// Stats returns connection, subscription and room counts.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalConnections:   len(r.conns),
		SubscriptionCounts: make(map[string]int),
		RoomCounts:         make(map[string]int, len(r.rooms)),
	}
	for _, c := range r.conns {
		if _, ok := c.auth.(Authenticated); ok {
			stats.AuthenticatedConnections++
		}
		for ch := range c.subscriptions {
			stats.SubscriptionCounts[ch]++
		}
	}
	for room, members := range r.rooms {
		stats.RoomCounts[room] = len(members)
	}
	return stats
}

func sortBySeq(conns []*Conn) {
	sort.Slice(conns, func(i, j int) bool {
		return conns[i].seq < conns[j].seq
	})
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
