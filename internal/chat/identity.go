package chat

import (
	"log/slog"
	"strings"
	"sync"
)

// Identity tracks the local player's token. Until it is resolved, IsSelf
// answers false for everything, so nothing can be narrated on a guessed
// identity.
type Identity struct {
	mu        sync.RWMutex
	token     string
	listeners []func(string)
}

// NewIdentity returns an unresolved Identity.
func NewIdentity() *Identity {
	return &Identity{}
}

// Set records the local player token. Setting the same token again (any
// case) is a no-op; a genuinely different token replaces the old one and
// notifies listeners. Empty tokens are ignored.
func (id *Identity) Set(token string) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return
	}
	id.mu.Lock()
	if id.token == token {
		id.mu.Unlock()
		return
	}
	if id.token != "" {
		slog.Warn("local identity changed", "old", id.token, "new", token)
	}
	id.token = token
	listeners := make([]func(string), len(id.listeners))
	copy(listeners, id.listeners)
	id.mu.Unlock()

	for _, fn := range listeners {
		notify(fn, token)
	}
}

// Resolved reports whether an identity has been set.
func (id *Identity) Resolved() bool {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.token != ""
}

// Current returns the resolved token, empty when unresolved.
func (id *Identity) Current() string {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.token
}

// IsSelf reports whether token names the local player. It is false when
// the identity is unresolved or token is empty.
func (id *Identity) IsSelf(token string) bool {
	if token == "" {
		return false
	}
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.token != "" && strings.EqualFold(id.token, token)
}

// OnChange registers fn to run whenever the identity changes. When
// invokeNow is set and an identity is already resolved, fn runs once
// immediately with the current token.
func (id *Identity) OnChange(fn func(string), invokeNow bool) {
	id.mu.Lock()
	id.listeners = append(id.listeners, fn)
	cur := id.token
	id.mu.Unlock()
	if invokeNow && cur != "" {
		notify(fn, cur)
	}
}

// notify shields the registry from a panicking listener.
func notify(fn func(string), token string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("identity listener panicked", "panic", r)
		}
	}()
	fn(token)
}
