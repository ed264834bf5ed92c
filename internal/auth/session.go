package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tgienger/cronocelda/internal/models"
)

// ErrNotAllowed is returned when a signed-in user is not on the allowlist
var ErrNotAllowed = errors.New("user is not allowed to edit")

// Allowlist holds the emails permitted to edit
type Allowlist struct {
	emails map[string]struct{}
}

// NewAllowlist builds an allowlist; matching ignores case and surrounding space
func NewAllowlist(emails []string) Allowlist {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if e = normalizeEmail(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return Allowlist{emails: set}
}

// Allowed reports whether email may edit
func (a Allowlist) Allowed(email string) bool {
	_, ok := a.emails[normalizeEmail(email)]
	return ok
}

// Len is the number of entries
func (a Allowlist) Len() int {
	return len(a.emails)
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Session is the current sign-in state. The zero value is signed out.
type Session struct {
	mu      sync.RWMutex
	user    *models.User
	token   string
	allowed Allowlist
}

// NewSession creates a signed-out session checked against allowed
func NewSession(allowed Allowlist) *Session {
	return &Session{allowed: allowed}
}

// SignIn records the user and their ID token
func (s *Session) SignIn(user models.User, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &user
	s.token = token
}

// SignOut clears the session
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.token = ""
}

// User returns the signed-in user, if any
func (s *Session) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// Token is the current ID token
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// CanWrite is true only for a signed-in, allow-listed user
func (s *Session) CanWrite() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.allowed.Allowed(s.user.Email)
}

// Service ties sign-in, token verification and the allowlist together
type Service struct {
	firebase *FirebaseClient
	verifier *Verifier
	allowed  Allowlist
}

// NewService creates the auth service. firebase or verifier may be nil when
// the matching config is absent.
func NewService(firebase *FirebaseClient, verifier *Verifier, allowed Allowlist) *Service {
	return &Service{firebase: firebase, verifier: verifier, allowed: allowed}
}

// NewSession returns a signed-out session using this service's allowlist
func (s *Service) NewSession() *Session {
	return NewSession(s.allowed)
}

// Login signs in with a password and fills session. A user who signs in but
// is not allow-listed gets a read-only session and ErrNotAllowed.
func (s *Service) Login(ctx context.Context, session *Session, email, password string) error {
	if s.firebase == nil {
		return ErrNotConfigured
	}
	result, err := s.firebase.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	session.SignIn(result.User, result.IDToken)
	if !s.allowed.Allowed(result.User.Email) {
		return ErrNotAllowed
	}
	return nil
}

// Resume restores a session from a previously issued ID token
func (s *Service) Resume(ctx context.Context, session *Session, token string) error {
	user, err := s.Authorize(ctx, token)
	if err != nil && !errors.Is(err, ErrNotAllowed) {
		return err
	}
	session.SignIn(user, token)
	return err
}

// Authorize verifies token and checks the allowlist. The user is returned
// alongside ErrNotAllowed so callers can report who was refused.
func (s *Service) Authorize(ctx context.Context, token string) (models.User, error) {
	if s.verifier == nil {
		return models.User{}, ErrNotConfigured
	}
	user, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return models.User{}, err
	}
	if !s.allowed.Allowed(user.Email) {
		return user, ErrNotAllowed
	}
	return user, nil
}
