package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Presence tracks which accounts currently hold live connections. It is an
// injected handle, not package state; everything that needs presence gets
// the same *Presence passed in.
type Presence struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]map[string]struct{}
}

func NewPresence() *Presence {
	return &Presence{sessions: make(map[uuid.UUID]map[string]struct{})}
}

// AddSession records a connection for an account. Idempotent. Returns true
// when the account transitioned from offline to online.
func (p *Presence) AddSession(account uuid.UUID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.sessions[account]
	if !ok {
		set = make(map[string]struct{})
		p.sessions[account] = set
	}
	wasEmpty := len(set) == 0
	set[connID] = struct{}{}
	return wasEmpty
}

// RemoveSession drops a connection for an account. Idempotent. Returns true
// when the account transitioned from online to offline.
func (p *Presence) RemoveSession(account uuid.UUID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.sessions[account]
	if !ok {
		return false
	}
	if _, ok := set[connID]; !ok {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(p.sessions, account)
		return true
	}
	return false
}

func (p *Presence) IsOnline(account uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions[account]) > 0
}

// SessionCount returns the number of live connections for an account.
func (p *Presence) SessionCount(account uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions[account])
}
