package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	assembler "github.com/final221/Prompt-Assembler"
	"github.com/final221/Prompt-Assembler/internal/logging"
	"github.com/final221/Prompt-Assembler/pkg/compose"
	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/final221/Prompt-Assembler/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxImportSize caps the loadout body accepted by POST /import.
const maxImportSize = 4 << 20

// Session is the subset of *assembler.Assembler served over HTTP.
type Session interface {
	Parts() []domain.Part
	Part(id string) (domain.Part, bool)
	AddPart(ctx context.Context) (domain.Part, error)
	SetContent(id, content string) bool
	SetName(id, name string) bool
	ToggleCollapse(ctx context.Context, id string) (bool, error)
	RemovePart(ctx context.Context, id string) error
	Reorder(order []string) error
	MovePart(id string, to int) error
	Flush(ctx context.Context) error
	ClearAll(ctx context.Context) domain.Outcome

	Compose() compose.Composition
	Preview(values map[string]string) string
	RunWith(ctx context.Context, collector ports.ValueCollector, sink ports.TextSink) domain.Outcome
	Executing() bool

	Mode() domain.ExecutionMode
	SetMode(ctx context.Context, mode domain.ExecutionMode) error

	Slots() []domain.SlotInfo
	SaveSlot(ctx context.Context, name string) (string, domain.Outcome)
	LoadSlot(ctx context.Context, key string) domain.Outcome
	DeleteSlot(ctx context.Context, key string) domain.Outcome
	RenameSlot(ctx context.Context, key, name string) error
	ExportSlot(ctx context.Context, key string) (assembler.Export, domain.Outcome)
	ImportLoadout(ctx context.Context, fileName, text string) domain.Outcome
}

var _ Session = (*assembler.Assembler)(nil)

// Server exposes a Session as a JSON API.
type Server struct {
	Session Session
	Sink    ports.TextSink
	Streams *StreamManager

	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSink sets the sink used by POST /run.
func WithSink(sink ports.TextSink) Option {
	return func(s *Server) {
		s.Sink = sink
	}
}

// WithMetrics serves the gatherer on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates the HTTP handler for session.
func NewHandler(session Session, opts ...Option) http.Handler {
	s := &Server{
		Session: session,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.SubscribeEvents)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/parts", func(r chi.Router) {
		r.Get("/", s.ListParts)
		r.Post("/", s.AddPart)
		r.Delete("/", s.ClearParts)
		r.Put("/order", s.Reorder)
		r.Post("/flush", s.Flush)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetPart)
			r.Patch("/", s.UpdatePart)
			r.Delete("/", s.RemovePart)
			r.Post("/collapse", s.ToggleCollapse)
			r.Post("/move", s.MovePart)
		})
	})

	r.Get("/compose", s.GetComposition)
	r.Post("/preview", s.Preview)
	r.Post("/run", s.Run)
	r.Get("/mode", s.GetMode)
	r.Put("/mode", s.SetMode)

	r.Route("/slots", func(r chi.Router) {
		r.Get("/", s.ListSlots)
		r.Post("/", s.SaveSlot)
		r.Route("/{key}", func(r chi.Router) {
			r.Put("/", s.RenameSlot)
			r.Delete("/", s.DeleteSlot)
			r.Post("/load", s.LoadSlot)
			r.Get("/export", s.ExportSlot)
		})
	})
	r.Post("/import", s.Import)

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OutcomeResponse is the JSON form of a domain.Outcome.
type OutcomeResponse struct {
	Kind   domain.OutcomeKind `json:"kind"`
	Reason domain.Reason      `json:"reason"`
	Error  string             `json:"error,omitempty"`
	Key    string             `json:"key,omitempty"`
}

func outcomeResponse(out domain.Outcome) OutcomeResponse {
	resp := OutcomeResponse{Kind: out.Kind, Reason: out.Reason}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	return resp
}

// statusFor maps an outcome to the HTTP status it is served with.
func statusFor(out domain.Outcome) int {
	switch out.Reason {
	case domain.ReasonNotFound:
		return http.StatusNotFound
	case domain.ReasonBusy:
		return http.StatusConflict
	}
	switch out.Kind {
	case domain.OutcomeFailure:
		if out.Reason == domain.ReasonInvalid {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// --- Health ---

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":       "promptasm-http",
		"version":   strings.TrimSpace(assembler.Version),
		"executing": s.Session.Executing(),
	})
}

// --- Parts ---

type updatePartRequest struct {
	Name    *string `json:"name"`
	Content *string `json:"content"`
}

type orderRequest struct {
	Order []string `json:"order"`
}

type moveRequest struct {
	To int `json:"to"`
}

// ListParts handles GET /parts.
func (s *Server) ListParts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Session.Parts())
}

// AddPart handles POST /parts.
func (s *Server) AddPart(w http.ResponseWriter, r *http.Request) {
	p, err := s.Session.AddPart(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "add part", err)
		return
	}
	s.Streams.Broadcast(Event{Type: "parts"})
	s.writeJSON(w, http.StatusCreated, p)
}

// ClearParts handles DELETE /parts.
func (s *Server) ClearParts(w http.ResponseWriter, r *http.Request) {
	s.writeOutcome(w, "parts", s.Session.ClearAll(r.Context()))
}

// GetPart handles GET /parts/{id}.
func (s *Server) GetPart(w http.ResponseWriter, r *http.Request) {
	p, ok := s.Session.Part(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "part not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// UpdatePart handles PATCH /parts/{id}.
func (s *Server) UpdatePart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body updatePartRequest
	if !s.decode(w, r, &body) {
		return
	}
	if _, ok := s.Session.Part(id); !ok {
		http.Error(w, "part not found", http.StatusNotFound)
		return
	}
	if body.Name != nil {
		s.Session.SetName(id, *body.Name)
	}
	if body.Content != nil {
		s.Session.SetContent(id, *body.Content)
	}
	p, _ := s.Session.Part(id)
	s.Streams.Broadcast(Event{Type: "parts"})
	s.writeJSON(w, http.StatusOK, p)
}

// RemovePart handles DELETE /parts/{id}.
func (s *Server) RemovePart(w http.ResponseWriter, r *http.Request) {
	if err := s.Session.RemovePart(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, "remove part", err)
		return
	}
	s.Streams.Broadcast(Event{Type: "parts"})
	w.WriteHeader(http.StatusNoContent)
}

// ToggleCollapse handles POST /parts/{id}/collapse.
func (s *Server) ToggleCollapse(w http.ResponseWriter, r *http.Request) {
	collapsed, err := s.Session.ToggleCollapse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, "toggle collapse", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"collapsed": collapsed})
}

// MovePart handles POST /parts/{id}/move.
func (s *Server) MovePart(w http.ResponseWriter, r *http.Request) {
	var body moveRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.Session.MovePart(chi.URLParam(r, "id"), body.To); err != nil {
		s.writeDomainError(w, "move part", err)
		return
	}
	s.Streams.Broadcast(Event{Type: "parts"})
	s.writeJSON(w, http.StatusOK, s.Session.Parts())
}

// Reorder handles PUT /parts/order.
func (s *Server) Reorder(w http.ResponseWriter, r *http.Request) {
	var body orderRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.Session.Reorder(body.Order); err != nil {
		s.writeDomainError(w, "reorder", err)
		return
	}
	s.Streams.Broadcast(Event{Type: "parts"})
	s.writeJSON(w, http.StatusOK, s.Session.Parts())
}

// Flush handles POST /parts/flush.
func (s *Server) Flush(w http.ResponseWriter, r *http.Request) {
	if err := s.Session.Flush(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, "flush", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Composition ---

type compositionResponse struct {
	Raw       string   `json:"raw"`
	Variables []string `json:"variables"`
}

type valuesRequest struct {
	Values map[string]string `json:"values"`
}

// GetComposition handles GET /compose.
func (s *Server) GetComposition(w http.ResponseWriter, r *http.Request) {
	c := s.Session.Compose()
	vars := c.Variables
	if vars == nil {
		vars = []string{}
	}
	s.writeJSON(w, http.StatusOK, compositionResponse{Raw: c.Raw, Variables: vars})
}

// Preview handles POST /preview.
func (s *Server) Preview(w http.ResponseWriter, r *http.Request) {
	var body valuesRequest
	if !s.decodeOptional(w, r, &body) {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"text": s.Session.Preview(body.Values)})
}

// Run handles POST /run. Variable values come from the request body.
func (s *Server) Run(w http.ResponseWriter, r *http.Request) {
	var body valuesRequest
	if !s.decodeOptional(w, r, &body) {
		return
	}
	out := s.Session.RunWith(r.Context(), ports.StaticValues(body.Values), s.Sink)
	s.writeOutcome(w, "run", out)
}

type modeRequest struct {
	Mode domain.ExecutionMode `json:"mode"`
}

// GetMode handles GET /mode.
func (s *Server) GetMode(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, modeRequest{Mode: s.Session.Mode()})
}

// SetMode handles PUT /mode.
func (s *Server) SetMode(w http.ResponseWriter, r *http.Request) {
	var body modeRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.Session.SetMode(r.Context(), body.Mode); err != nil {
		s.writeError(w, http.StatusInternalServerError, "set mode", err)
		return
	}
	s.Streams.Broadcast(Event{Type: "mode"})
	s.writeJSON(w, http.StatusOK, modeRequest{Mode: s.Session.Mode()})
}

// --- Slots ---

type slotRequest struct {
	Name string `json:"name"`
}

// ListSlots handles GET /slots.
func (s *Server) ListSlots(w http.ResponseWriter, r *http.Request) {
	slots := s.Session.Slots()
	if slots == nil {
		slots = []domain.SlotInfo{}
	}
	s.writeJSON(w, http.StatusOK, slots)
}

// SaveSlot handles POST /slots.
func (s *Server) SaveSlot(w http.ResponseWriter, r *http.Request) {
	var body slotRequest
	if !s.decode(w, r, &body) {
		return
	}
	key, out := s.Session.SaveSlot(r.Context(), body.Name)
	resp := outcomeResponse(out)
	resp.Key = key
	status := statusFor(out)
	if out.OK() {
		status = http.StatusCreated
		s.Streams.Broadcast(Event{Type: "slots", Outcome: &resp})
	}
	s.writeJSON(w, status, resp)
}

// RenameSlot handles PUT /slots/{key}.
func (s *Server) RenameSlot(w http.ResponseWriter, r *http.Request) {
	var body slotRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.Session.RenameSlot(r.Context(), chi.URLParam(r, "key"), body.Name); err != nil {
		s.writeDomainError(w, "rename slot", err)
		return
	}
	s.Streams.Broadcast(Event{Type: "slots"})
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSlot handles DELETE /slots/{key}.
func (s *Server) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	s.writeOutcome(w, "slots", s.Session.DeleteSlot(r.Context(), chi.URLParam(r, "key")))
}

// LoadSlot handles POST /slots/{key}/load.
func (s *Server) LoadSlot(w http.ResponseWriter, r *http.Request) {
	s.writeOutcome(w, "parts", s.Session.LoadSlot(r.Context(), chi.URLParam(r, "key")))
}

// ExportSlot handles GET /slots/{key}/export. The loadout is sent as a text attachment.
func (s *Server) ExportSlot(w http.ResponseWriter, r *http.Request) {
	exp, out := s.Session.ExportSlot(r.Context(), chi.URLParam(r, "key"))
	if !out.OK() {
		s.writeJSON(w, statusFor(out), outcomeResponse(out))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.FileName))
	if _, err := io.WriteString(w, exp.Text); err != nil {
		s.logger.Error("export write failed", "err", err)
	}
}

// Import handles POST /import?file=<name>. The body is the loadout text.
func (s *Server) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Import: invalid request body", "error", err)
		return
	}
	fileName := r.URL.Query().Get("file")
	out := s.Session.ImportLoadout(r.Context(), fileName, string(data))
	if out.OK() || out.Reason == domain.ReasonImportSaveFailed {
		s.Streams.Broadcast(Event{Type: "slots"})
	}
	s.writeOutcome(w, "parts", out)
}

// --- Events ---

// Event is pushed to /events subscribers after a mutation.
type Event struct {
	Type    string           `json:"type"`
	Outcome *OutcomeResponse `json:"outcome,omitempty"`
}

// StreamManager fans events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan string]struct{}
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager() *StreamManager {
	return &StreamManager{subscribers: make(map[chan string]struct{})}
}

// Subscribe registers a subscriber. The returned func unregisters it.
func (sm *StreamManager) Subscribe() (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	sm.subscribers[ch] = struct{}{}
	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (sm *StreamManager) Subscribers() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// Broadcast sends ev to every subscriber, dropping it for slow ones.
func (sm *StreamManager) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.subscribers {
		select {
		case ch <- string(data):
		default:
			slog.Warn("SSE: client buffer full, dropping event", "type", ev.Type)
		}
	}
}

// SubscribeEvents handles GET /events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// --- helpers ---

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeOutcome(w http.ResponseWriter, topic string, out domain.Outcome) {
	resp := outcomeResponse(out)
	if out.OK() {
		s.Streams.Broadcast(Event{Type: topic, Outcome: &resp})
	}
	s.writeJSON(w, statusFor(out), resp)
}

func (s *Server) writeError(w http.ResponseWriter, status int, op string, err error) {
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), status)
	s.logger.Error(op+" failed", "error", err)
}

func (s *Server) writeDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrPartNotFound), errors.Is(err, domain.ErrSlotNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidOrder), errors.Is(err, domain.ErrEmptyName):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.writeError(w, http.StatusInternalServerError, op, err)
	}
}
