package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/dustin/go-humanize"

	"pa-alarm/internal/domain"
	"pa-alarm/internal/logging"
	"pa-alarm/internal/transfer"
	"pa-alarm/internal/usecase"
)

const maxImportSize = 1 << 20

// Server is a primary adapter that exposes HTTP API + UI.
// It depends on the use case (primary port).
type Server struct {
	usecase usecase.AlarmUseCase
	server  *http.Server
}

// NewServer creates the HTTP server bound to addr.
func NewServer(uc usecase.AlarmUseCase, addr string) *Server {
	srv := &Server{usecase: uc}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", srv.handleRoot)
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/schedules", srv.handleListSchedules)
	mux.HandleFunc("POST /api/schedules", srv.handleAddSchedule)
	mux.HandleFunc("PATCH /api/schedules/{id}", srv.handleUpdateSchedule)
	mux.HandleFunc("DELETE /api/schedules/{id}", srv.handleDeleteSchedule)
	mux.HandleFunc("POST /api/schedules/{id}/toggle", srv.handleToggleSchedule)
	mux.HandleFunc("POST /api/schedules/{id}/days/{day}", srv.handleToggleDay)
	mux.HandleFunc("POST /api/arm", srv.handleArm)
	mux.HandleFunc("POST /api/disarm", srv.handleDisarm)
	mux.HandleFunc("POST /api/play", srv.handlePlay)
	mux.HandleFunc("POST /api/stop", srv.handleStop)
	mux.HandleFunc("PUT /api/volume", srv.handleVolume)
	mux.HandleFunc("GET /api/export", srv.handleExport)
	mux.HandleFunc("POST /api/import", srv.handleImport)
	mux.HandleFunc("GET /api/ws", srv.handleWS)

	srv.server = &http.Server{
		Addr:              addr,
		Handler:           loggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks and serves HTTP traffic. It returns nil after Shutdown.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view := snapshotToView(s.usecase.Snapshot())
	view.Sounds = catalogToView(s.usecase.Catalog())
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, schedulesToView(s.usecase.Schedules()))
}

func (s *Server) handleAddSchedule(w http.ResponseWriter, r *http.Request) {
	var req schedulePayload
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, err)
		return
	}
	sch, err := s.usecase.CreateSchedule(req.patch())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transfer.FromSchedule(sch))
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req schedulePayload
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, err)
		return
	}
	sch, err := s.usecase.UpdateSchedule(r.PathValue("id"), req.patch())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transfer.FromSchedule(sch))
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.usecase.DeleteSchedule(r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleSchedule(w http.ResponseWriter, r *http.Request) {
	sch, err := s.usecase.ToggleSchedule(r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transfer.FromSchedule(sch))
}

func (s *Server) handleToggleDay(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(r.PathValue("day"))
	if err != nil {
		respondError(w, &domain.ValidationError{Field: "days", Reason: "weekday must be a number 0-6"})
		return
	}
	sch, err := s.usecase.ToggleDay(r.PathValue("id"), time.Weekday(day))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transfer.FromSchedule(sch))
}

func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	if err := s.usecase.Arm(); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshotToView(s.usecase.Snapshot()))
}

func (s *Server) handleDisarm(w http.ResponseWriter, r *http.Request) {
	if err := s.usecase.Disarm(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshotToView(s.usecase.Snapshot()))
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playPayload
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, err)
		return
	}
	sound := domain.SoundID(req.SoundID)
	if sound == "" {
		sound = s.usecase.Catalog().First().ID
	}
	loops := 1
	if req.Loops != nil {
		loops = domain.ClampLoop(*req.Loops)
	}
	if err := s.usecase.Play(r.Context(), sound, loops); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshotToView(s.usecase.Snapshot()))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.usecase.Stop(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshotToView(s.usecase.Snapshot()))
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume *float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
		respondError(w, &domain.ValidationError{Field: "volume", Reason: "body must be {\"volume\": 0-1}"})
		return
	}
	if err := s.usecase.SetVolume(*req.Volume); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshotToView(s.usecase.Snapshot()))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.usecase.Export()
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="pa-alarm-backup.json"`)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		respondError(w, &domain.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	res, err := s.usecase.Import(data)
	if err != nil {
		respondError(w, err)
		return
	}
	view := importView{
		Imported:  len(res.Schedules),
		Repaired:  res.Repaired,
		Discarded: res.Discarded,
		Problems:  []string{},
	}
	if res.Problems != nil {
		for _, p := range res.Problems.Errors {
			view.Problems = append(view.Problems, p.Error())
		}
	}
	respondJSON(w, http.StatusOK, view)
}

// handleWS streams the status once, then every event until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logging.Warnf("ws accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	events, unsubscribe := s.usecase.Subscribe()
	defer unsubscribe()

	if err := wsjson.Write(ctx, conn, wsMessage{Kind: "status", Status: ptr(snapshotToView(s.usecase.Snapshot()))}); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "")
				return
			}
			if err := wsjson.Write(ctx, conn, eventToMessage(ev)); err != nil {
				logging.Debugf("ws write: %v", err)
				return
			}
		}
	}
}

// decodeOptional decodes a JSON body into v; an empty body leaves v untouched.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return &domain.ValidationError{Field: "body", Reason: "invalid JSON"}
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPlaybackDenied), errors.Is(err, domain.ErrNotArmed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPlaybackUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrImportMalformed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStorageFull):
		return http.StatusInsufficientStorage
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		logging.Errorf("request failed: %v", err)
	}
	respondJSON(w, code, map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Warnf("encode JSON: %v", err)
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Debugf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func ptr[T any](v T) *T { return &v }

// countdown returns the short countdown and a relative time such as "2 hours from now".
func countdown(next domain.NextEvent) (string, string) {
	return domain.FormatCountdown(next.SecondsUntil), humanize.Time(next.At)
}
