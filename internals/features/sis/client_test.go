// file: internals/features/sis/client_test.go
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

type mapSecretStore struct {
	global map[string]string
	tenant map[string]string
}

func (s *mapSecretStore) GetGlobalSecret(name string) (string, error) {
	if v, ok := s.global[name]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("secret %s tidak ditemukan", name)
}

func (s *mapSecretStore) GetTenantSecret(prefix, name string) (string, error) {
	if v, ok := s.tenant[prefix+"_"+name]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("secret %s/%s tidak ditemukan", prefix, name)
}

func staticTokens() *TokenManager {
	return NewTokenManager(&mapSecretStore{
		global: map[string]string{secretStaticToken: "tok-statis"},
	}, "")
}

func testClient(baseURL string) *Client {
	return NewClientWith(baseURL, staticTokens(), 2, 3, time.Millisecond, 5*time.Millisecond)
}

func TestListStudentsFollowsPagination(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok-statis", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			fmt.Fprint(w, `{"data":[{"id":"stu-1"},{"id":"stu-2"}],"links":{"next":"/schools/sch-1/students?starting_after=stu-2"}}`)
		case 2:
			fmt.Fprint(w, `{"data":[{"id":"stu-3"}],"links":{"next":"/schools/sch-1/students?starting_after=stu-3"}}`)
		default:
			fmt.Fprint(w, `{"data":[],"links":{}}`)
		}
	}))
	defer srv.Close()

	students, err := testClient(srv.URL).ListStudents(context.Background(), "sch-1")
	require.NoError(t, err)
	require.Len(t, students, 3)
	assert.Equal(t, "stu-1", students[0].ID)
	assert.Equal(t, "stu-3", students[2].ID)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestListSinglePageNoNextLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"term-1","name":"Semester Ganjil"}],"links":{}}`)
	}))
	defer srv.Close()

	terms, err := testClient(srv.URL).ListTerms(context.Background(), "sch-1")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "Semester Ganjil", terms[0].Name)
}

func TestRateLimitHonorsRetryAfter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"sec-1"}],"links":{}}`)
	}))
	defer srv.Close()

	start := time.Now()
	sections, err := testClient(srv.URL).ListSections(context.Background(), "sch-1")
	require.NoError(t, err)
	require.Len(t, sections, 1)
	// page yang sama diulang setelah tunggu Retry-After
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestTransientServerErrorRetriedWithBackoff(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"tch-1"}],"links":{}}`)
	}))
	defer srv.Close()

	teachers, err := testClient(srv.URL).ListTeachers(context.Background(), "sch-1")
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestRetriesExhaustedReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ListStudents(context.Background(), "sch-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries habis")
}

func TestForbiddenEventsReturnsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ListEvents(context.Background(), "", "sch-1", 100)
	require.ErrorIs(t, err, ErrEventsForbidden)
}

func TestTerminalClientErrorNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ListStudents(context.Background(), "sch-404")
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestUnauthorizedRefreshesTokenOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":[],"links":{}}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ListStudents(context.Background(), "sch-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestLatestEventID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sch-1", r.URL.Query().Get("school"))
		fmt.Fprint(w, `{"data":{"id":"evt-99","type":"users.updated"}}`)
	}))
	defer srv.Close()

	id, err := testClient(srv.URL).LatestEventID(context.Background(), "sch-1")
	require.NoError(t, err)
	assert.Equal(t, "evt-99", id)
}

func TestLatestEventIDEmptyStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":null}`)
	}))
	defer srv.Close()

	id, err := testClient(srv.URL).LatestEventID(context.Background(), "sch-1")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestListEventsPassesCursorAndLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "evt-50", q.Get("starting_after"))
		assert.Equal(t, "sch-1", q.Get("school"))
		assert.Equal(t, "500", q.Get("limit"))
		fmt.Fprint(w, `{"data":[{"id":"evt-51","type":"users.created"}],"links":{}}`)
	}))
	defer srv.Close()

	events, err := testClient(srv.URL).ListEvents(context.Background(), "evt-50", "sch-1", 500)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-51", events[0].ID)
}
