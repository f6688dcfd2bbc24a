//go:build !integration

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"channelcast/internal/domain"
	"channelcast/internal/domain/model"
	"channelcast/internal/domain/ports/repository"
	"channelcast/internal/infra/metrics"
)

func newLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type stubChannels struct {
	mu   sync.Mutex
	rows []*model.ChannelBinding
	err  error
}

var _ repository.ChannelRepository = (*stubChannels)(nil)

func (s *stubChannels) Upsert(_ context.Context, _ repository.Tx, b *model.ChannelBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, b)
	return s.err
}

func (s *stubChannels) ListByOwner(_ context.Context, _ repository.Tx, ownerID int64) ([]*model.ChannelBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []*model.ChannelBinding
	for _, b := range s.rows {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubChannels) Remove(_ context.Context, _ repository.Tx, ownerID, channelID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	for i, b := range s.rows {
		if b.OwnerID == ownerID && b.ChannelID == channelID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *stubChannels) RemoveChannel(context.Context, repository.Tx, int64) (int64, error) {
	return 0, s.err
}

func (s *stubChannels) RefreshChannel(context.Context, repository.Tx, int64, string, string) (int64, error) {
	return 0, s.err
}

func (s *stubChannels) CountByOwner(ctx context.Context, tx repository.Tx, ownerID int64) (int, error) {
	l, err := s.ListByOwner(ctx, tx, ownerID)
	return len(l), err
}

func (s *stubChannels) CountAll(context.Context, repository.Tx) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows), s.err
}

// recordingUnlinker stands in for the channel use case.
type recordingUnlinker struct {
	repo  *stubChannels
	calls [][2]int64
}

func (u *recordingUnlinker) Unlink(ctx context.Context, ownerID, channelID int64) (bool, error) {
	u.calls = append(u.calls, [2]int64{ownerID, channelID})
	return u.repo.Remove(ctx, repository.NoTX, ownerID, channelID)
}

type fixedLen int

func (f fixedLen) Len() int { return int(f) }

func newTestServer(repo *stubChannels, secret string) (*Server, *AuthManager) {
	s, auth, _ := newTestServerWithUnlinker(repo, secret)
	return s, auth
}

func newTestServerWithUnlinker(repo *stubChannels, secret string) (*Server, *AuthManager, *recordingUnlinker) {
	auth := NewAuthManager(secret, time.Minute)
	u := &recordingUnlinker{repo: repo}
	return NewServer(repo, u, fixedLen(3), auth, time.Second, newLogger()), auth, u
}

func do(t *testing.T, h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRootAndHealth(t *testing.T) {
	s, _ := newTestServer(&stubChannels{}, "")
	h := s.Handler()

	rr := do(t, h, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Bot is running") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
	var body struct {
		OK   bool   `json:"ok"`
		Time string `json:"time"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Time == "" {
		t.Fatalf("unexpected health body %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(&stubChannels{}, "")
	rr := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
}

func TestOperatorAPI_Auth(t *testing.T) {
	t.Run("disabled without secret", func(t *testing.T) {
		s, _ := newTestServer(&stubChannels{}, "")
		if rr := do(t, s.Handler(), http.MethodGet, "/api/v1/stats", "x"); rr.Code != http.StatusForbidden {
			t.Fatalf("want 403, got %d", rr.Code)
		}
	})
	t.Run("missing token", func(t *testing.T) {
		s, _ := newTestServer(&stubChannels{}, "secret")
		if rr := do(t, s.Handler(), http.MethodGet, "/api/v1/stats", ""); rr.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rr.Code)
		}
	})
	t.Run("foreign signature", func(t *testing.T) {
		s, _ := newTestServer(&stubChannels{}, "secret")
		other := NewAuthManager("other", time.Minute)
		tok, err := other.Mint("ops")
		if err != nil {
			t.Fatalf("Mint: %v", err)
		}
		if rr := do(t, s.Handler(), http.MethodGet, "/api/v1/stats", tok); rr.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rr.Code)
		}
	})
	t.Run("expired", func(t *testing.T) {
		s, auth := newTestServer(&stubChannels{}, "secret")
		auth.now = func() time.Time { return time.Now().Add(-time.Hour) }
		tok, err := auth.Mint("ops")
		if err != nil {
			t.Fatalf("Mint: %v", err)
		}
		auth.now = time.Now
		if rr := do(t, s.Handler(), http.MethodGet, "/api/v1/stats", tok); rr.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rr.Code)
		}
	})
}

func TestOperatorAPI_Stats(t *testing.T) {
	repo := &stubChannels{rows: []*model.ChannelBinding{
		{OwnerID: 1, ChannelID: -1001, Title: "Alpha"},
		{OwnerID: 2, ChannelID: -1002, Title: "Beta"},
	}}
	s, auth := newTestServer(repo, "secret")
	tok, _ := auth.Mint("ops")

	rr := do(t, s.Handler(), http.MethodGet, "/api/v1/stats", tok)
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
	var body statsBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Bindings != 2 || body.Sessions != 3 {
		t.Fatalf("unexpected stats %+v", body)
	}
}

func TestOperatorAPI_Channels(t *testing.T) {
	repo := &stubChannels{rows: []*model.ChannelBinding{
		{OwnerID: 1, ChannelID: -1001, Title: "Alpha", Username: "@alpha"},
		{OwnerID: 1, ChannelID: -1002, Title: "Beta"},
		{OwnerID: 2, ChannelID: -1001, Title: "Alpha"},
	}}
	s, auth, unlinker := newTestServerWithUnlinker(repo, "secret")
	tok, _ := auth.Mint("ops")
	h := s.Handler()

	rr := do(t, h, http.MethodGet, "/api/v1/channels/1", tok)
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
	var list []channelBody
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || list[0].Username != "@alpha" {
		t.Fatalf("unexpected list %+v", list)
	}

	if rr := do(t, h, http.MethodDelete, "/api/v1/channels/1/-1001", tok); rr.Code != http.StatusNoContent {
		t.Fatalf("want 204, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodDelete, "/api/v1/channels/1/-1001", tok); rr.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rr.Code)
	}
	if n, _ := repo.CountByOwner(context.Background(), repository.NoTX, 2); n != 1 {
		t.Fatalf("other owner's binding must survive, got %d", n)
	}
	if len(unlinker.calls) != 2 || unlinker.calls[0] != [2]int64{1, -1001} {
		t.Fatalf("deletes must go through the unlinker, got %v", unlinker.calls)
	}
	if rr := do(t, h, http.MethodGet, "/api/v1/channels/abc", tok); rr.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rr.Code)
	}
}

func TestOperatorAPI_StoreDown(t *testing.T) {
	repo := &stubChannels{err: errors.Join(domain.ErrStoreUnavailable, errors.New("db down"))}
	s, auth := newTestServer(repo, "secret")
	tok, _ := auth.Mint("ops")
	if rr := do(t, s.Handler(), http.MethodGet, "/api/v1/channels/1", tok); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rr.Code)
	}
}

func TestRecover_WritesJSONError(t *testing.T) {
	h := Recover(newLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("want json content type, got %q", ct)
	}
	var body errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Error != "internal error" {
		t.Fatalf("unexpected body %q (%v)", rr.Body.String(), err)
	}
}

func TestTraceID_RequestIDHeader(t *testing.T) {
	s, _ := newTestServer(&stubChannels{}, "")
	h := s.Handler()

	t.Run("echoes the caller's id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if got := rr.Header().Get(RequestIDHeader); got != "req-42" {
			t.Fatalf("want req-42, got %q", got)
		}
	})
	t.Run("mints one when absent", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/health", "")
		if rr.Header().Get(RequestIDHeader) == "" {
			t.Fatal("expected a generated request id")
		}
	})
	t.Run("replaces an oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if got := rr.Header().Get(RequestIDHeader); len(got) > maxRequestIDLen || got == "" {
			t.Fatalf("unexpected id %q", got)
		}
	})
}

func TestRequestLog_RecordsRoutePattern(t *testing.T) {
	metrics.MustRegister()
	repo := &stubChannels{rows: []*model.ChannelBinding{{OwnerID: 7, ChannelID: -1001, Title: "Alpha"}}}
	s, auth := newTestServer(repo, "secret")
	tok, _ := auth.Mint("ops")
	h := s.Handler()

	if rr := do(t, h, http.MethodGet, "/api/v1/channels/7", tok); rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
	body := do(t, h, http.MethodGet, "/metrics", "").Body.String()
	want := `http_requests_total{method="GET",route="/api/v1/channels/{ownerID}",status="200"}`
	if !strings.Contains(body, want) {
		t.Fatalf("metrics output lacks %s", want)
	}
	if strings.Contains(body, `route="/api/v1/channels/7"`) {
		t.Fatal("raw paths must not become label values")
	}
}
