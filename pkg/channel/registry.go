// Package channel classifies changed paths into named channels.
package channel

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/grovetools/basin/errors"
)

const (
	// DefaultName is the channel registered when no channels are configured.
	DefaultName = "@default"

	// DefaultPattern matches every file below the root.
	DefaultPattern = "**/*"

	// ReservedPrefix marks engine-owned event names.
	ReservedPrefix = "@"
)

var errEmptyPattern = stderrors.New("pattern cannot be empty")

// Spec declares a channel before registration.
type Spec struct {
	Name     string
	Patterns []string
}

// Channel is a registered channel. It is immutable once registered.
type Channel struct {
	Name     string
	Patterns []string

	matcher *Matcher
}

// Matches reports whether the root-relative path belongs to the channel.
func (c *Channel) Matches(path string) bool {
	return c.matcher.Match(path)
}

// Registry holds channels in registration order.
type Registry struct {
	mu       sync.RWMutex
	channels []*Channel
	byName   map[string]*Channel
}

// New builds a registry from specs. With no specs the registry holds only the
// default channel, which matches every file.
func New(specs []Spec) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Channel)}

	if len(specs) == 0 {
		if err := r.add(DefaultName, []string{DefaultPattern}); err != nil {
			return nil, err
		}
		return r, nil
	}

	for _, spec := range specs {
		if err := r.Register(spec.Name, spec.Patterns...); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ValidateName checks that name can be used for a user channel.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.InvalidChannel(name, "name cannot be empty")
	}
	if strings.HasPrefix(name, ReservedPrefix) {
		return errors.InvalidChannel(name, fmt.Sprintf("names starting with '%s' are reserved", ReservedPrefix))
	}
	return nil
}

// ValidatePattern checks that pattern compiles for the named channel.
func ValidatePattern(name, pattern string) error {
	if _, err := Compile(pattern); err != nil {
		return errors.InvalidChannel(name, fmt.Sprintf("bad pattern '%s': %v", pattern, err)).
			WithDetail("pattern", pattern)
	}
	return nil
}

// Register compiles patterns and adds a channel. It fails if the name is
// empty, reserved or already registered, or if a pattern is empty or invalid.
func (r *Registry) Register(name string, patterns ...string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return r.add(name, patterns)
}

func (r *Registry) add(name string, patterns []string) error {
	if len(patterns) == 0 {
		return errors.InvalidChannel(name, "at least one pattern is required")
	}
	for _, p := range patterns {
		if err := ValidatePattern(name, p); err != nil {
			return err
		}
	}

	matcher, err := Compile(patterns...)
	if err != nil {
		return errors.InvalidChannel(name, err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return errors.InvalidChannel(name, "already registered")
	}

	ch := &Channel{
		Name:     name,
		Patterns: matcher.Patterns(),
		matcher:  matcher,
	}
	r.channels = append(r.channels, ch)
	r.byName[name] = ch
	return nil
}

// AllPatterns returns the inclusion patterns of every channel in registration
// order, without duplicates. Exclusions only apply within their own channel
// and are left out.
func (r *Registry) AllPatterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var patterns []string
	for _, ch := range r.channels {
		for _, p := range ch.Patterns {
			if strings.HasPrefix(p, "!") || seen[p] {
				continue
			}
			seen[p] = true
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// ChannelsMatching returns the names of channels that accept path, in
// registration order.
func (r *Registry) ChannelsMatching(path string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for _, ch := range r.channels {
		if ch.Matches(path) {
			names = append(names, ch.Name)
		}
	}
	return names
}

// Names returns every channel name in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.channels))
	for _, ch := range r.channels {
		names = append(names, ch.Name)
	}
	return names
}

// Lookup returns the channel registered under name.
func (r *Registry) Lookup(name string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.byName[name]
	return ch, ok
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
