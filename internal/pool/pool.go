// Package pool holds the validated upstream credentials and rotates
// through them.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrPoolEmpty is returned by Select when no token has ever been
	// admitted.
	ErrPoolEmpty = errors.New("credential pool is empty")

	// ErrDuplicate is returned by Admit for a token already in rotation.
	ErrDuplicate = errors.New("token already admitted")
)

// Prober validates a candidate credential against the upstream provider.
type Prober interface {
	Probe(ctx context.Context, token string) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, token string) error

func (f ProberFunc) Probe(ctx context.Context, token string) error { return f(ctx, token) }

// Pool is the process-wide registry of admitted tokens. Admission and
// selection are serialized by a single mutex; the rotation is an index
// over a slice that only grows, so a reader never observes a torn list.
//
// There is no health-based eviction: a token that starts failing after
// admission stays in rotation until restart.
type Pool struct {
	prober Prober

	mu       sync.Mutex
	tokens   []string // in admission order
	admitted map[string]struct{}
	next     int
}

// New builds an empty pool using the given prober for admission.
func New(prober Prober) *Pool {
	return &Pool{
		prober:   prober,
		admitted: make(map[string]struct{}),
	}
}

// Admit probes a candidate token and, on success, appends it to the
// rotation so the next Select can return it. Empty tokens are rejected
// without probing; known tokens return ErrDuplicate without probing.
// A failed or wrong-reply probe leaves the pool unchanged, and the
// probe's cause is preserved in the returned error.
func (p *Pool) Admit(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("empty token")
	}

	p.mu.Lock()
	_, exists := p.admitted[token]
	p.mu.Unlock()
	if exists {
		return ErrDuplicate
	}

	// The probe is a network call; it runs outside the lock.
	if err := p.prober.Probe(ctx, token); err != nil {
		return fmt.Errorf("token rejected: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.admitted[token]; exists {
		// Lost a race with a concurrent Admit of the same token.
		return ErrDuplicate
	}
	p.admitted[token] = struct{}{}
	p.tokens = append(p.tokens, token)
	return nil
}

// Select returns the next token in fair round-robin over the admission
// order.
func (p *Pool) Select() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tokens) == 0 {
		return "", ErrPoolEmpty
	}
	token := p.tokens[p.next%len(p.tokens)]
	p.next++
	return token, nil
}

// Len reports how many tokens are in rotation.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tokens)
}
