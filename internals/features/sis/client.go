// file: internals/features/sis/client.go
package sis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sekolahsync_backend/internals/configs"
)

/* =========================================================
   UPSTREAM API CLIENT
   - pagination cursor-based: ikuti links.next sampai habis
   - 429: tunggu Retry-After (atau default), ulang page yang
     sama — cursor belum maju jadi tidak ada data hilang/dobel
   - transient (network/5xx): backoff base*2^attempt, ceiling
     per page-fetch, bukan per cursor-loop
========================================================= */

// ErrEventsForbidden: akses event stream ditolak (permission).
// Dipakai health probe untuk kasih remediation hint.
var ErrEventsForbidden = errors.New("sis: events endpoint forbidden")

// RosterAPI adalah kontrak yang dipakai sync engine; test pakai fake.
type RosterAPI interface {
	ListStudents(ctx context.Context, schoolID string) ([]Student, error)
	ListTeachers(ctx context.Context, schoolID string) ([]Teacher, error)
	ListSections(ctx context.Context, schoolID string) ([]Section, error)
	ListTerms(ctx context.Context, schoolID string) ([]Term, error)
	ListAdmins(ctx context.Context, schoolID string) ([]Admin, error)
	ListEvents(ctx context.Context, cursor, schoolID string, limit int) ([]Event, error)
	LatestEventID(ctx context.Context, schoolID string) (string, error)
}

type Client struct {
	BaseURL       string
	PageLimit     int
	MaxRetries    int
	RetryBase     time.Duration
	RateLimitWait time.Duration

	httpc  *http.Client
	tokens *TokenManager
}

func NewClient(tokens *TokenManager) *Client {
	return &Client{
		BaseURL:       configs.SISBaseURL,
		PageLimit:     configs.SISPageLimit,
		MaxRetries:    configs.SISMaxRetries,
		RetryBase:     time.Duration(configs.SISRetryBaseMs) * time.Millisecond,
		RateLimitWait: configs.SISRateLimitWait,
		httpc:         &http.Client{Timeout: configs.SISRequestTimeout},
		tokens:        tokens,
	}
}

// NewClientWith dipakai test: base URL httptest + delay kecil.
func NewClientWith(baseURL string, tokens *TokenManager, pageLimit, maxRetries int, retryBase, rateLimitWait time.Duration) *Client {
	return &Client{
		BaseURL:       baseURL,
		PageLimit:     pageLimit,
		MaxRetries:    maxRetries,
		RetryBase:     retryBase,
		RateLimitWait: rateLimitWait,
		httpc:         &http.Client{Timeout: configs.SISRequestTimeout},
		tokens:        tokens,
	}
}

/* =========================================================
   LIST ENDPOINTS
========================================================= */

func (c *Client) ListStudents(ctx context.Context, schoolID string) ([]Student, error) {
	return listAll[Student](ctx, c, "/schools/"+schoolID+"/students", nil)
}

func (c *Client) ListTeachers(ctx context.Context, schoolID string) ([]Teacher, error) {
	return listAll[Teacher](ctx, c, "/schools/"+schoolID+"/teachers", nil)
}

func (c *Client) ListSections(ctx context.Context, schoolID string) ([]Section, error) {
	return listAll[Section](ctx, c, "/schools/"+schoolID+"/sections", nil)
}

func (c *Client) ListTerms(ctx context.Context, schoolID string) ([]Term, error) {
	return listAll[Term](ctx, c, "/schools/"+schoolID+"/terms", nil)
}

func (c *Client) ListAdmins(ctx context.Context, schoolID string) ([]Admin, error) {
	return listAll[Admin](ctx, c, "/schools/"+schoolID+"/admins", nil)
}

// ListEvents: starting_after cursor, filter tenant, limit ≤ 1000.
func (c *Client) ListEvents(ctx context.Context, cursor, schoolID string, limit int) ([]Event, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("starting_after", cursor)
	}
	if schoolID != "" {
		q.Set("school", schoolID)
	}
	if limit > 0 && limit <= 1000 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return listAll[Event](ctx, c, "/events", q)
}

// LatestEventID: baseline cursor untuk full sync. "" = stream kosong.
func (c *Client) LatestEventID(ctx context.Context, schoolID string) (string, error) {
	q := url.Values{}
	if schoolID != "" {
		q.Set("school", schoolID)
	}
	body, err := c.fetchPage(ctx, c.buildURL("/events/latest", q))
	if err != nil {
		return "", err
	}
	var env struct {
		Data *Event `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("decode latest event: %w", err)
	}
	if env.Data == nil {
		return "", nil
	}
	return env.Data.ID, nil
}

/* =========================================================
   PAGINATION + RETRY CORE
========================================================= */

func (c *Client) buildURL(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	if q.Get("limit") == "" {
		q.Set("limit", strconv.Itoa(c.PageLimit))
	}
	return c.BaseURL + path + "?" + q.Encode()
}

// listAll mengikuti links.next sampai habis dan mengembalikan satu koleksi
// utuh di memory (batas per-school ribuan record, masih aman).
func listAll[T any](ctx context.Context, c *Client, path string, q url.Values) ([]T, error) {
	var out []T

	next := c.buildURL(path, q)
	for next != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := c.fetchPage(ctx, next)
		if err != nil {
			if len(out) > 0 {
				// sebagian page sudah masuk; biarkan caller yang putuskan
				return out, err
			}
			return nil, err
		}

		var env listEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode page %s: %w", path, err)
		}

		var items []T
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &items); err != nil {
				return nil, fmt.Errorf("decode items %s: %w", path, err)
			}
		}
		out = append(out, items...)

		next = c.resolveNext(env.Links.Next)
	}

	return out, nil
}

func (c *Client) resolveNext(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		log.Printf("[WARN] SIS next link tidak valid, stop paging")
		return ""
	}
	if u.IsAbs() {
		return next
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// fetchPage: satu page dengan retry. Attempt counter lokal per page —
// page yang sudah ter-fetch tidak pernah di-refetch.
func (c *Client) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	attempt := 0
	authRetried := false

	// log path saja, jangan query string (cursor bisa sensitif)
	logPath := pageURL
	if u, err := url.Parse(pageURL); err == nil {
		logPath = u.Path
	}

	for {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("sis auth: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			if err := c.backoff(ctx, logPath, attempt, err); err != nil {
				return nil, err
			}
			attempt++
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read body %s: %w", logPath, err)
			}
			return body, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			wait := c.RateLimitWait
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if sec, err := strconv.Atoi(ra); err == nil && sec > 0 {
					wait = time.Duration(sec) * time.Second
				}
			}
			log.Printf("[WARN] SIS rate limited di %s, tunggu %s", logPath, wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			// page sama diulang, cursor belum maju — tidak dihitung attempt
			continue

		case resp.StatusCode == http.StatusUnauthorized && !authRetried:
			resp.Body.Close()
			log.Printf("[WARN] SIS 401 di %s, refresh token lalu ulang", logPath)
			c.tokens.Invalidate()
			authRetried = true
			continue

		case resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %s", ErrEventsForbidden, logPath)

		case resp.StatusCode >= 500:
			resp.Body.Close()
			if err := c.backoff(ctx, logPath, attempt, fmt.Errorf("status %d", resp.StatusCode)); err != nil {
				return nil, err
			}
			attempt++
			continue

		default:
			resp.Body.Close()
			return nil, fmt.Errorf("sis %s: status %d", logPath, resp.StatusCode)
		}
	}
}

func (c *Client) backoff(ctx context.Context, logPath string, attempt int, cause error) error {
	if attempt >= c.MaxRetries {
		return fmt.Errorf("sis %s: retries habis (%d): %w", logPath, c.MaxRetries, cause)
	}
	wait := c.RetryBase * (1 << attempt)
	log.Printf("[WARN] SIS transient di %s (attempt %d): %v — retry dalam %s", logPath, attempt+1, cause, wait)
	return sleepCtx(ctx, wait)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
