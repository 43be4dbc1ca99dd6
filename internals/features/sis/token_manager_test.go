// file: internals/features/sis/token_manager_test.go
package sis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenPrefersStaticCredential(t *testing.T) {
	m := NewTokenManager(&mapSecretStore{global: map[string]string{
		secretStaticToken:  "tok-statis",
		secretClientID:     "id-1",
		secretClientSecret: "rahasia",
	}}, "http://invalid.test/token")

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-statis", tok)

	// statis = long-lived, tidak pernah refresh proaktif
	tok2, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tok, tok2)
}

func TestTokenClientCredentialsFlow(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		id, secret, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "id-1", id)
		assert.Equal(t, "rahasia", secret)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		fmt.Fprint(w, `{"access_token":"tok-oauth","expires_in":3600}`)
	}))
	defer srv.Close()

	m := NewTokenManager(&mapSecretStore{global: map[string]string{
		secretClientID:     "id-1",
		secretClientSecret: "rahasia",
	}}, srv.URL)

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-oauth", tok)

	// masih jauh dari threshold 75% — cache dipakai, tidak hit server lagi
	_, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestTokenMissingCredentials(t *testing.T) {
	m := NewTokenManager(&mapSecretStore{}, "http://invalid.test/token")

	_, err := m.Token(context.Background())
	require.Error(t, err)

	lastErr, at := m.LastAuthError()
	assert.Error(t, lastErr)
	assert.False(t, at.IsZero())
}

func TestInvalidateForcesReauthentication(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":3600}`, atomic.AddInt32(&hits, 1))
	}))
	defer srv.Close()

	m := NewTokenManager(&mapSecretStore{global: map[string]string{
		secretClientID:     "id-1",
		secretClientSecret: "rahasia",
	}}, srv.URL)

	tok1, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok1)

	m.Invalidate()

	tok2, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok2)
}

func TestShouldRefreshThreshold(t *testing.T) {
	t.Run("nil selalu refresh", func(t *testing.T) {
		var tok *cachedToken
		assert.True(t, tok.ShouldRefresh(75))
	})

	t.Run("long-lived tidak pernah refresh", func(t *testing.T) {
		tok := &cachedToken{Value: "x", IssuedAt: time.Now().Add(-24 * time.Hour), LongLived: true}
		assert.False(t, tok.ShouldRefresh(75))
	})

	t.Run("lifetime nol dianggap long-lived", func(t *testing.T) {
		tok := &cachedToken{Value: "x", IssuedAt: time.Now().Add(-24 * time.Hour)}
		assert.False(t, tok.ShouldRefresh(75))
	})

	t.Run("di bawah threshold", func(t *testing.T) {
		tok := &cachedToken{Value: "x", IssuedAt: time.Now().Add(-30 * time.Minute), Lifetime: time.Hour}
		assert.False(t, tok.ShouldRefresh(75))
	})

	t.Run("lewat threshold", func(t *testing.T) {
		tok := &cachedToken{Value: "x", IssuedAt: time.Now().Add(-50 * time.Minute), Lifetime: time.Hour}
		assert.True(t, tok.ShouldRefresh(75))
	})
}
