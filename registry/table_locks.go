// Package registry holds the process-local, in-memory state shared by every
// staff connection: advisory table locks and presence sessions. Nothing here
// is persisted; a restart clears it.
package registry

import (
	"errors"
	"sync"

	"github.com/yeremiapane/cafe-pos/utils"
)

var (
	ErrLockedByAnother = errors.New("locked by another user")
	ErrNotLockHolder   = errors.New("not authorized")
)

// LockHolder identifies the staff member handling a table's occupy workflow.
type LockHolder struct {
	StaffID uint   `json:"staffId"`
	Name    string `json:"name,omitempty"`
}

// TableLocks maps table id -> holder. At most one holder per table; the
// holder may re-acquire its own lock.
type TableLocks struct {
	mu      sync.Mutex
	holders map[uint]LockHolder
}

func NewTableLocks() *TableLocks {
	return &TableLocks{holders: make(map[uint]LockHolder)}
}

// Acquire -> sukses jika kosong atau sudah dipegang holder yang sama
func (l *TableLocks) Acquire(tableID uint, holder LockHolder) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current, ok := l.holders[tableID]; ok && current.StaffID != holder.StaffID {
		return ErrLockedByAnother
	}
	l.holders[tableID] = holder
	utils.TableLocksHeld.Set(float64(len(l.holders)))
	return nil
}

// Release is a no-op success when the table is not locked.
func (l *TableLocks) Release(tableID, requesterID uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.holders[tableID]
	if !ok {
		return nil
	}
	if current.StaffID != requesterID {
		return ErrNotLockHolder
	}
	delete(l.holders, tableID)
	utils.TableLocksHeld.Set(float64(len(l.holders)))
	return nil
}

// ForceRelease drops the lock regardless of holder. It reports whether a lock existed.
func (l *TableLocks) ForceRelease(tableID uint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.holders[tableID]; !ok {
		return false
	}
	delete(l.holders, tableID)
	utils.TableLocksHeld.Set(float64(len(l.holders)))
	return true
}

func (l *TableLocks) Holder(tableID uint) (LockHolder, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holders[tableID]
	return h, ok
}

func (l *TableLocks) Snapshot() map[uint]LockHolder {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[uint]LockHolder, len(l.holders))
	for id, h := range l.holders {
		out[id] = h
	}
	return out
}
