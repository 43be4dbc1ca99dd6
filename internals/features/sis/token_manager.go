// file: internals/features/sis/token_manager.go
package sis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"sekolahsync_backend/internals/configs"
)

/* =========================================================
   TOKEN MANAGER
   NoToken → Authenticating → Cached → (ShouldRefresh) → ...
   Refresh dijaga satu mutex supaya caller paralel coalesce
   jadi satu refresh. Kredensial statis (non-expiring) dari
   secret store selalu diprioritaskan.
========================================================= */

const (
	secretStaticToken  = "SIS_API_TOKEN"
	secretClientID     = "SIS_CLIENT_ID"
	secretClientSecret = "SIS_CLIENT_SECRET"

	defaultRefreshThresholdPct = 75
)

type cachedToken struct {
	Value     string
	IssuedAt  time.Time
	Lifetime  time.Duration
	LongLived bool
}

// ShouldRefresh: true kalau umur token sudah melewati threshold persen
// dari lifetime. Token long-lived (lifetime 0) tidak pernah refresh proaktif.
func (t *cachedToken) ShouldRefresh(thresholdPct int) bool {
	if t == nil {
		return true
	}
	if t.LongLived || t.Lifetime <= 0 {
		return false
	}
	elapsed := time.Since(t.IssuedAt)
	return elapsed >= t.Lifetime*time.Duration(thresholdPct)/100
}

type TokenManager struct {
	mu      sync.Mutex
	secrets configs.SecretStore
	httpc   *http.Client
	tokenURL string

	cached *cachedToken

	lastErr   error
	lastErrAt time.Time
}

func NewTokenManager(secrets configs.SecretStore, tokenURL string) *TokenManager {
	return &TokenManager{
		secrets:  secrets,
		httpc:    &http.Client{Timeout: configs.SISRequestTimeout},
		tokenURL: tokenURL,
	}
}

// Token mengembalikan bearer token yang valid, refresh proaktif di 75% lifetime.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && !m.cached.ShouldRefresh(defaultRefreshThresholdPct) {
		return m.cached.Value, nil
	}

	tok, err := m.authenticate(ctx)
	if err != nil {
		m.lastErr = err
		m.lastErrAt = time.Now().UTC()
		return "", err
	}
	m.cached = tok
	return tok.Value, nil
}

// Invalidate membuang token cache (dipanggil client saat 401).
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
}

// LastAuthError untuk health reporting eksternal.
func (m *TokenManager) LastAuthError() (error, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr, m.lastErrAt
}

func (m *TokenManager) authenticate(ctx context.Context) (*cachedToken, error) {
	// 1) kredensial pre-generated: skip auth flow interaktif
	if static, err := m.secrets.GetGlobalSecret(secretStaticToken); err == nil && static != "" {
		log.Println("[INFO] SIS token: pakai kredensial statis dari secret store")
		return &cachedToken{
			Value:     static,
			IssuedAt:  time.Now().UTC(),
			LongLived: true,
		}, nil
	}

	// 2) client credentials flow
	clientID, err := m.secrets.GetGlobalSecret(secretClientID)
	if err != nil {
		return nil, fmt.Errorf("SIS client id: %w", err)
	}
	clientSecret, err := m.secrets.GetGlobalSecret(secretClientSecret)
	if err != nil {
		return nil, fmt.Errorf("SIS client secret: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(clientID, clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SIS auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SIS auth gagal: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("SIS auth decode: %w", err)
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("SIS auth: access_token kosong")
	}

	return &cachedToken{
		Value:    body.AccessToken,
		IssuedAt: time.Now().UTC(),
		Lifetime: time.Duration(body.ExpiresIn) * time.Second,
	}, nil
}
