package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"applysharp/internal/errors"
)

// PasswordHeader carries the shared app password when the body does not.
const PasswordHeader = "X-App-Password"

// PasswordGate checks the shared app password. The password can be swapped
// at runtime when it is rotated in Vault. An empty password disables the gate.
type PasswordGate struct {
	mu       sync.RWMutex
	password string
}

// NewPasswordGate creates a gate for password
func NewPasswordGate(password string) *PasswordGate {
	return &PasswordGate{password: strings.TrimSpace(password)}
}

// Enabled reports whether a password is configured
func (g *PasswordGate) Enabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.password != ""
}

// Set replaces the password
func (g *PasswordGate) Set(password string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.password = strings.TrimSpace(password)
}

// Check compares candidate against the password in constant time
func (g *PasswordGate) Check(candidate string) bool {
	g.mu.RLock()
	password := g.password
	g.mu.RUnlock()

	if password == "" {
		return true
	}
	want := sha256.Sum256([]byte(password))
	got := sha256.Sum256([]byte(strings.TrimSpace(candidate)))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

// authorize checks the password sent in the body, falling back to the header.
func (s *Server) authorize(r *http.Request, fromBody string) error {
	candidate := fromBody
	if strings.TrimSpace(candidate) == "" {
		candidate = r.Header.Get(PasswordHeader)
	}
	if !s.Password.Check(candidate) {
		s.Logger.Info("Authentication failed: wrong password",
			"endpoint", r.URL.Path,
			"client_ip", getClientIP(r))
		return errors.NewUnauthorizedError(errors.ErrCodeWrongPassword, "Wrong password. Access denied.")
	}
	return nil
}
