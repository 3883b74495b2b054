// Package session holds the per-request view of the current account.
//
// Engines never read account state from globals: every call receives an
// AccountSession built by the identity resolver.
package session

import (
	"sync"

	"github.com/and161185/lookup-credits/internal/model"
)

// AccountSession is the cached account of one device/identity pair.
// It is safe for concurrent use.
type AccountSession struct {
	mu       sync.Mutex
	account  model.Account
	deviceID string
	identity *model.Identity
	remoteIP string
	gen      uint64 // bumped on every Stage and Replace
}

// New builds a session around an account loaded from the store.
func New(acc model.Account, deviceID string, id *model.Identity) *AccountSession {
	s := &AccountSession{account: acc.Clone(), deviceID: deviceID}
	if id != nil {
		v := *id
		s.identity = &v
	}
	return s
}

// Account returns a copy of the cached account.
func (s *AccountSession) Account() model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.Clone()
}

// DeviceID returns the device the session was resolved for.
func (s *AccountSession) DeviceID() string { return s.deviceID }

// Identity returns the signed-in identity or nil for guests.
func (s *AccountSession) Identity() *model.Identity {
	if s.identity == nil {
		return nil
	}
	v := *s.identity
	return &v
}

// Authenticated reports whether the cached account is linked to an identity.
func (s *AccountSession) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.Authenticated()
}

// RemoteIP returns the client address attached by the transport, if any.
func (s *AccountSession) RemoteIP() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteIP
}

// WithRemoteIP records the client address and returns s.
func (s *AccountSession) WithRemoteIP(ip string) *AccountSession {
	s.mu.Lock()
	s.remoteIP = ip
	s.mu.Unlock()
	return s
}

// Replace installs the store's view of the account.
func (s *AccountSession) Replace(acc model.Account) {
	s.mu.Lock()
	s.account = acc.Clone()
	s.gen++
	s.mu.Unlock()
}

// Stage applies mutate to the cached account before the store write lands.
// The returned restore puts back the snapshot taken before mutate; it is a
// no-op once the account has been replaced or staged again.
func (s *AccountSession) Stage(mutate func(*model.Account)) (restore func()) {
	s.mu.Lock()
	prev := s.account.Clone()
	mutate(&s.account)
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen == gen {
			s.account = prev
			s.gen++
		}
	}
}
