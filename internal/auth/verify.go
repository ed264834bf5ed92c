package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/tgienger/cronocelda/internal/models"
)

// ErrInvalidToken is returned for any ID token that fails verification
var ErrInvalidToken = errors.New("invalid ID token")

// KeySource supplies the RSA keys ID tokens are signed with, by key id
type KeySource interface {
	Keys(ctx context.Context) (map[string]*rsa.PublicKey, error)
}

// Claims are the Firebase ID token claims we use
type Claims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// Verifier checks Firebase ID tokens for one project
type Verifier struct {
	projectID string
	keys      KeySource
}

// NewVerifier creates a verifier for projectID
func NewVerifier(projectID string, keys KeySource) *Verifier {
	return &Verifier{projectID: projectID, keys: keys}
}

// Issuer is the expected iss claim for projectID
func Issuer(projectID string) string {
	return "https://securetoken.google.com/" + projectID
}

// Verify parses and validates raw, returning the signed-in user
func (v *Verifier) Verify(ctx context.Context, raw string) (models.User, error) {
	if v.projectID == "" {
		return models.User{}, ErrNotConfigured
	}
	keys, err := v.keys.Keys(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("load signing keys: %w", err)
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	token, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		key, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return key, nil
	})
	if err != nil || !token.Valid {
		return models.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !claims.VerifyAudience(v.projectID, true) {
		return models.User{}, fmt.Errorf("%w: wrong audience", ErrInvalidToken)
	}
	if !claims.VerifyIssuer(Issuer(v.projectID), true) {
		return models.User{}, fmt.Errorf("%w: wrong issuer", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return models.User{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return models.User{UID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// CertSource fetches Google's x509 certificates and caches them
type CertSource struct {
	url    string
	client *http.Client
	ttl    time.Duration

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

// NewCertSource creates a source reading PEM certificates keyed by kid from url
func NewCertSource(url string) *CertSource {
	return &CertSource{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		ttl:    time.Hour,
	}
}

// Keys returns the cached keys, refetching after the TTL
func (s *CertSource) Keys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys != nil && time.Since(s.fetched) < s.ttl {
		return s.keys, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch certs: status %d", resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return nil, fmt.Errorf("decode certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("parse cert %s: %w", kid, err)
		}
		keys[kid] = key
	}

	s.keys = keys
	s.fetched = time.Now()
	return keys, nil
}

// StaticKeys is a fixed KeySource
type StaticKeys map[string]*rsa.PublicKey

func (k StaticKeys) Keys(context.Context) (map[string]*rsa.PublicKey, error) {
	return k, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
