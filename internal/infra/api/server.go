package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"channelcast/internal/domain"
	"channelcast/internal/domain/model"
	"channelcast/internal/domain/ports/repository"
	"channelcast/internal/infra/logging"
)

// ChannelUnlinker removes one binding with the same bookkeeping as the bot's
// own removals.
type ChannelUnlinker interface {
	Unlink(ctx context.Context, ownerID, channelID int64) (bool, error)
}

// Server exposes the keep-alive endpoints, Prometheus metrics and the
// operator API over the channel directory.
type Server struct {
	channels repository.ChannelRepository
	unlinker ChannelUnlinker
	sessions interface{ Len() int }
	auth     *AuthManager
	timeout  time.Duration
	log      *zerolog.Logger
	now      func() time.Time
}

// NewServer builds the HTTP surface. sessions may be nil when the session
// store cannot report its size.
func NewServer(
	channels repository.ChannelRepository,
	unlinker ChannelUnlinker,
	sessions interface{ Len() int },
	auth *AuthManager,
	timeout time.Duration,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		channels: channels,
		unlinker: unlinker,
		sessions: sessions,
		auth:     auth,
		timeout:  timeout,
		log:      logger,
		now:      time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(s.timeout))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.RequireOperator)
		r.Get("/stats", s.handleStats)
		r.Get("/channels/{ownerID}", s.handleListChannels)
		r.Delete("/channels/{ownerID}/{channelID}", s.handleRemoveChannel)
	})

	return r
}

// ListenAndServe serves until ctx is canceled, then drains for up to five seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Bot is running! ✅"))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": s.now().UTC().Format(time.RFC3339),
	})
}

type statsBody struct {
	Bindings int `json:"bindings"`
	Sessions int `json:"sessions"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	n, err := s.channels.CountAll(r.Context(), repository.NoTX)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	body := statsBody{Bindings: n}
	if s.sessions != nil {
		body.Sessions = s.sessions.Len()
	}
	writeJSON(w, http.StatusOK, body)
}

type channelBody struct {
	OwnerID   int64     `json:"owner_id"`
	ChannelID int64     `json:"channel_id"`
	Title     string    `json:"title"`
	Username  string    `json:"username,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

func toChannelBody(b *model.ChannelBinding) channelBody {
	return channelBody{
		OwnerID:   b.OwnerID,
		ChannelID: b.ChannelID,
		Title:     b.Title,
		Username:  b.Username,
		AddedAt:   b.AddedAt,
	}
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathInt(w, r, "ownerID")
	if !ok {
		return
	}
	list, err := s.channels.ListByOwner(r.Context(), repository.NoTX, ownerID)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	out := make([]channelBody, 0, len(list))
	for _, b := range list {
		out = append(out, toChannelBody(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRemoveChannel(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathInt(w, r, "ownerID")
	if !ok {
		return
	}
	channelID, ok := pathInt(w, r, "channelID")
	if !ok {
		return
	}
	removed, err := s.unlinker.Unlink(r.Context(), ownerID, channelID)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "binding not found"})
		return
	}
	logging.With(r.Context(), s.log).Info().
		Int64("owner_id", ownerID).Int64("channel_id", channelID).
		Msg("binding removed via api")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("store failure")
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrStoreUnavailable) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorBody{Error: "store unavailable"})
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid " + name})
		return 0, false
	}
	return v, true
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
