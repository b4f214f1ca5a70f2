package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionConflict = errors.New("account already in use")
	ErrNoSession       = errors.New("session is no longer active")
)

// Identity is what a channel connection announces about its staff member.
type Identity struct {
	DisplayName string
	RoleName    string
}

type session struct {
	id           string
	identity     Identity
	connections  map[string]struct{}
	lastActivity time.Time
}

// OnlineUser is one entry of the users:online broadcast.
type OnlineUser struct {
	StaffID      uint      `json:"staffId"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Connections  int       `json:"connections"`
	LastActivity time.Time `json:"lastActivity"`
}

// Presence tracks one active session per staff id and the live channel
// connections bound to it. A session outlives its connections; only Logout
// or Revoke clears it.
type Presence struct {
	mu       sync.Mutex
	sessions map[uint]*session
	now      func() time.Time
}

func NewPresence() *Presence {
	return &Presence{
		sessions: make(map[uint]*session),
		now:      time.Now,
	}
}

// Login -> buat sesi baru; gagal jika akun masih punya sesi aktif
func (p *Presence) Login(staffID uint) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.sessions[staffID]; ok {
		return "", ErrSessionConflict
	}
	s := &session{
		id:           uuid.NewString(),
		connections:  make(map[string]struct{}),
		lastActivity: p.now(),
	}
	p.sessions[staffID] = s
	return s.id, nil
}

func (p *Presence) Validate(staffID uint, sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[staffID]
	return ok && sessionID != "" && s.id == sessionID
}

// Logout clears the session only when sessionID is the current one, so a
// stale logout cannot clobber a newer session.
func (p *Presence) Logout(staffID uint, sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[staffID]
	if !ok || s.id != sessionID {
		return false
	}
	delete(p.sessions, staffID)
	return true
}

// Revoke clears whatever session the staff member holds.
func (p *Presence) Revoke(staffID uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.sessions[staffID]; !ok {
		return false
	}
	delete(p.sessions, staffID)
	return true
}

// Attach registers a live connection on the given session. It reports
// whether the staff member just came online (first connection); a logged out
// or replaced session yields ErrNoSession.
func (p *Presence) Attach(staffID uint, sessionID, connID string, identity Identity) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[staffID]
	if !ok || s.id != sessionID {
		return false, ErrNoSession
	}
	first := len(s.connections) == 0
	s.connections[connID] = struct{}{}
	if identity.DisplayName != "" {
		s.identity.DisplayName = identity.DisplayName
	}
	if identity.RoleName != "" {
		s.identity.RoleName = identity.RoleName
	}
	s.lastActivity = p.now()
	return first, nil
}

// Detach reports whether the staff member went offline (last connection gone).
func (p *Presence) Detach(staffID uint, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[staffID]
	if !ok {
		return false
	}
	if _, ok := s.connections[connID]; !ok {
		return false
	}
	delete(s.connections, connID)
	return len(s.connections) == 0
}

func (p *Presence) Touch(staffID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.sessions[staffID]; ok {
		s.lastActivity = p.now()
	}
}

// Online lists staff with at least one live connection, ordered by staff id.
func (p *Presence) Online() []OnlineUser {
	p.mu.Lock()
	defer p.mu.Unlock()

	list := make([]OnlineUser, 0, len(p.sessions))
	for staffID, s := range p.sessions {
		if len(s.connections) == 0 {
			continue
		}
		list = append(list, OnlineUser{
			StaffID:      staffID,
			Name:         s.identity.DisplayName,
			Role:         s.identity.RoleName,
			Connections:  len(s.connections),
			LastActivity: s.lastActivity,
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StaffID < list[j].StaffID })
	return list
}
