package control

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// tokenTTL is how long a minted one-time token stays redeemable.
const tokenTTL = 5 * time.Minute

// Vault manages control-surface authentication: one-time login tokens minted
// via the owner's !control command, exchanged for long-lived session IDs.
type Vault struct {
	mu       sync.Mutex
	tokens   map[string]time.Time // token -> expiry
	sessions map[string]bool
}

// NewVault creates an empty vault.
func NewVault() *Vault {
	return &Vault{
		tokens:   make(map[string]time.Time),
		sessions: make(map[string]bool),
	}
}

// Issue mints a fresh one-time token. Any previously issued unredeemed
// tokens stay valid until they expire.
func (v *Vault) Issue() string {
	token := uuid.NewString()
	v.mu.Lock()
	v.pruneLocked()
	v.tokens[token] = time.Now().Add(tokenTTL)
	v.mu.Unlock()
	return token
}

// Redeem consumes a one-time token and returns a session ID. A token can be
// redeemed exactly once.
func (v *Vault) Redeem(token string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	expiry, ok := v.tokens[token]
	if !ok {
		return "", false
	}
	delete(v.tokens, token)
	if time.Now().After(expiry) {
		return "", false
	}

	session := uuid.NewString()
	v.sessions[session] = true
	return session, true
}

// Valid reports whether a session ID was issued by this vault.
func (v *Vault) Valid(session string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sessions[session]
}

func (v *Vault) pruneLocked() {
	now := time.Now()
	for t, expiry := range v.tokens {
		if now.After(expiry) {
			delete(v.tokens, t)
		}
	}
}
