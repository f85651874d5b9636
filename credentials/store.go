// Package credentials provides CredentialProvider implementations.
//
// Store holds the one active credential set in memory and lets the host
// application replace it at any time. SecretsManager reads a JSON credential
// document from AWS Secrets Manager on every call, so a rotated secret is
// picked up without a restart.
package credentials

import (
	"context"
	"fmt"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

// Store is an in-memory, mutable credential set.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	creds s3types.Credentials
	mu    sync.RWMutex
}

// NewStore returns a Store holding creds.
func NewStore(creds s3types.Credentials) *Store {
	return &Store{creds: creds}
}

// Set replaces the active credential set.
func (s *Store) Set(creds s3types.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
}

// Get returns a copy of the active credential set, complete or not.
func (s *Store) Get() s3types.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Clear forgets the active credential set.
func (s *Store) Clear() {
	s.Set(s3types.Credentials{})
}

// GetCompleteCredentials returns a copy of the active set, or (nil, nil)
// when it is incomplete.
func (s *Store) GetCompleteCredentials(ctx context.Context) (*s3types.Credentials, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get credentials cancelled: %w", ctx.Err())
	default:
	}

	creds := s.Get()
	if !creds.Complete() {
		return nil, nil
	}
	return &creds, nil
}

// Complete asks p for credentials and reports whether a complete set is
// available. Errors count as incomplete.
func Complete(ctx context.Context, p s3types.CredentialProvider) bool {
	if p == nil {
		return false
	}
	creds, err := p.GetCompleteCredentials(ctx)
	return err == nil && creds.Complete()
}
