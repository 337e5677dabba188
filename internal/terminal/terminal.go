package terminal

import (
	"context"
	"errors"
	"fmt"
)

// Handle is one terminal that can receive text.
type Handle interface {
	// ID is unique across providers and stable for the terminal's lifetime.
	ID() string
	Name() string
	// SendText types text into the terminal, followed by Enter when
	// execute is set.
	SendText(ctx context.Context, text string, execute bool) error
	// Show brings the terminal to the user's attention.
	Show(ctx context.Context) error
}

// Provider discovers terminals of one kind.
type Provider interface {
	Kind() string
	List(ctx context.Context) ([]Handle, error)
	// Focused returns the terminal the user is looking at, or nil.
	Focused(ctx context.Context) (Handle, error)
}

// Set aggregates providers in priority order.
type Set struct {
	providers []Provider
}

func NewSet(providers ...Provider) *Set {
	return &Set{providers: providers}
}

func (s *Set) Providers() []Provider {
	return s.providers
}

// All lists every terminal. A failing provider does not hide the terminals
// of the others; its error is returned alongside them.
func (s *Set) All(ctx context.Context) ([]Handle, error) {
	var (
		all  []Handle
		errs []error
	)
	for _, p := range s.providers {
		handles, err := p.List(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Kind(), err))
			continue
		}
		all = append(all, handles...)
	}
	return all, errors.Join(errs...)
}

// Active returns the first focused terminal reported by a provider.
func (s *Set) Active(ctx context.Context) (Handle, error) {
	var errs []error
	for _, p := range s.providers {
		h, err := p.Focused(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Kind(), err))
			continue
		}
		if h != nil {
			return h, nil
		}
	}
	return nil, errors.Join(errs...)
}

// Find looks a terminal up by ID.
func (s *Set) Find(ctx context.Context, id string) (Handle, error) {
	all, err := s.All(ctx)
	for _, h := range all {
		if h.ID() == id {
			return h, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}
