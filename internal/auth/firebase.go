// Package auth signs users in with Firebase email/password, verifies the
// resulting ID tokens and decides who may edit the timeline.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tgienger/cronocelda/internal/models"
	"github.com/tgienger/cronocelda/internal/timeline"
)

var (
	// ErrNotConfigured is returned when no Firebase API key is set
	ErrNotConfigured = errors.New("firebase is not configured")
	// ErrInvalidCredentials is returned for a wrong email or password
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// SignInResult is what a successful password sign-in returns
type SignInResult struct {
	User      models.User
	IDToken   string
	ExpiresAt time.Time
}

// FirebaseClient talks to the Identity Toolkit REST API
type FirebaseClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	now     func() time.Time
	log     zerolog.Logger
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
	ExpiresIn   string `json:"expiresIn"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewFirebaseClient creates a client for baseURL (e.g.
// https://identitytoolkit.googleapis.com/v1)
func NewFirebaseClient(baseURL, apiKey string, log zerolog.Logger) *FirebaseClient {
	return &FirebaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		now:     time.Now,
		log:     log.With().Str("component", "firebase").Logger(),
	}
}

// ValidateEmail checks the address format before any network call
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &timeline.ValidationError{Field: "email", Reason: "required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &timeline.ValidationError{Field: "email", Reason: "not a valid address"}
	}
	return nil
}

// SignIn exchanges an email and password for an ID token
func (c *FirebaseClient) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, &timeline.ValidationError{Field: "password", Reason: "required"}
	}

	body, err := json.Marshal(signInRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/accounts:signInWithPassword?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorBody
		_ = json.Unmarshal(data, &apiErr)
		c.log.Warn().Int("status", resp.StatusCode).Str("reason", apiErr.Error.Message).Msg("sign-in rejected")
		if resp.StatusCode == http.StatusBadRequest {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("sign-in failed (status %d): %s", resp.StatusCode, apiErr.Error.Message)
	}

	var out signInResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	result := &SignInResult{
		User:    models.User{UID: out.LocalID, Email: out.Email, Name: out.DisplayName},
		IDToken: out.IDToken,
	}
	if secs, err := time.ParseDuration(out.ExpiresIn + "s"); err == nil {
		result.ExpiresAt = c.now().Add(secs)
	}
	return result, nil
}
