// Package registry maps logical service names to network addresses. The
// registry is built once at startup from configuration and never mutated, so
// it can be shared by every forwarding component without locking.
package registry

import (
	"fmt"

	"lexgate/internal/platform/config"
	"lexgate/pkg/platform/sentinel"
)

// Entry describes one downstream service.
type Entry struct {
	Name    string
	BaseURL string
	RPCAddr string
}

// Registry is the immutable name → address mapping.
type Registry struct {
	entries map[string]Entry
}

// New builds a registry from configuration. Services without a base URL are
// left unregistered (the auth service is optional; the gateway then falls
// back to its local credential store).
func New(cfg config.Gateway) *Registry {
	entries := make(map[string]Entry, len(cfg.Services))
	for name, ep := range cfg.Services {
		if ep.BaseURL == "" {
			continue
		}
		entries[name] = Entry{Name: name, BaseURL: ep.BaseURL, RPCAddr: ep.RPCAddr}
	}
	return &Registry{entries: entries}
}

// FromEntries builds a registry directly; used by tests pointing at httptest
// servers.
func FromEntries(entries ...Entry) *Registry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return &Registry{entries: m}
}

// Lookup resolves a logical service name.
func (r *Registry) Lookup(name string) (Entry, error) {
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%q: %w", name, sentinel.ErrUnregistered)
	}
	return e, nil
}

// Has reports whether the name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Names returns all registered service names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	return out
}

// MustResolve verifies at startup that every name the handlers reference is
// registered; a missing one is a configuration error worth failing fast on.
func (r *Registry) MustResolve(names ...string) error {
	for _, name := range names {
		if !r.Has(name) {
			return fmt.Errorf("registry missing required service %q: %w", name, sentinel.ErrUnregistered)
		}
	}
	return nil
}
