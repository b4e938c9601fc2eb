package registry

import (
	"log"
	"sync"
)

// SlotDefault is the only channel slot in the single-user deployment. The
// registry stays keyed by slot so a multi-tenant extension only has to
// change the key, not the shape.
const SlotDefault = "default"

// Channel is the handle the registry keeps for a live sketchpad
// connection. Implementations must tolerate concurrent WriteJSON calls.
type Channel interface {
	WriteJSON(v any) error
	Close() error
}

// Registry correlates the three independently-created connections of one
// logical user: the most recently started chat session and the live
// sketchpad push-channels. It owns both pieces of state exclusively;
// everything else reads and mutates them through these accessors.
//
// Each operation is atomic, but sequences of operations are not: a caller
// that reads the active session and uses it later may observe a newer
// session activated in between. That is accepted in the single-slot
// design.
type Registry struct {
	mu              sync.RWMutex
	activeSessionID string
	channels        map[string]Channel
}

// New returns an empty registry. One instance per process, injected into
// the gateway, the upload router and the session hook.
func New() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// SetActiveSession unconditionally records id as the active chat session.
// Last write wins; liveness is never validated here.
func (r *Registry) SetActiveSession(id string) {
	r.mu.Lock()
	r.activeSessionID = id
	r.mu.Unlock()
	log.Printf("[registry] active session set: %s", id)
}

// ActiveSession returns the most recently activated session id, if any.
func (r *Registry) ActiveSession() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeSessionID, r.activeSessionID != ""
}

// RegisterChannel installs ch at slot, displacing any previous handle.
// The displaced handle is closed so an abandoned connection does not
// linger.
func (r *Registry) RegisterChannel(slot string, ch Channel) {
	r.mu.Lock()
	prev := r.channels[slot]
	r.channels[slot] = ch
	r.mu.Unlock()

	if prev != nil && prev != ch {
		log.Printf("[registry] slot %q displaced, closing previous channel", slot)
		_ = prev.Close()
	}
	log.Printf("[registry] channel registered: slot=%s", slot)
}

// UnregisterChannel removes ch from slot. A no-op when the slot is empty
// or holds a different handle, so the deferred cleanup of a displaced
// connection cannot evict its replacement.
func (r *Registry) UnregisterChannel(slot string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channels[slot] == ch {
		delete(r.channels, slot)
		log.Printf("[registry] channel unregistered: slot=%s", slot)
	}
}

// Channel returns the handle registered at slot, if any.
func (r *Registry) Channel(slot string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[slot]
	return ch, ok
}

// Channels returns a snapshot of the live channels; safe to iterate while
// connections come and go.
func (r *Registry) Channels() map[string]Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string]Channel, len(r.channels))
	for slot, ch := range r.channels {
		snapshot[slot] = ch
	}
	return snapshot
}
