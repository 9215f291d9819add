package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/logic/booth"
	"github.com/cjeanneret/photobooth/internal/logic/capture"
	"github.com/cjeanneret/photobooth/internal/logic/filter"
	"github.com/cjeanneret/photobooth/internal/logic/snapshot"
	"github.com/cjeanneret/photobooth/internal/logic/strip"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// Booth is the controller surface the handlers drive (booth.Controller).
type Booth interface {
	Activate(ctx context.Context) error
	StartSession(ctx context.Context, rows, seconds int) (capture.Session, error)
	Session() (capture.Session, bool)
	Shot(i int) (snapshot.Encoded, error)
	Settings() booth.Settings
	SetFilter(name string) error
	SetStyle(ctx context.Context, style strip.Style) error
	StripPNG(ctx context.Context) ([]byte, error)
	Preview() (*image.RGBA, error)
	Reset() error
	Subscribe(o capture.Observer)
}

// Options tunes the handlers.
type Options struct {
	MinStartInterval time.Duration // minimum delay between two session starts
	PreviewInterval  time.Duration // delay between preview frames
	PreviewQuality   int           // preview JPEG quality
}

// SessionRequest is the POST /session body.
type SessionRequest struct {
	Rows    int `json:"rows"`
	Seconds int `json:"seconds"`
}

// FilterRequest is the PUT /filter body.
type FilterRequest struct {
	Filter string `json:"filter"`
}

// SessionResponse describes the current session.
type SessionResponse struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Target    int    `json:"target"`
	Seconds   int    `json:"seconds"`
	Count     int    `json:"count"`
	Remaining int    `json:"remaining"`
	Dropped   int    `json:"dropped"`
	Active    bool   `json:"active"`
	Complete  bool   `json:"complete"`
}

// ConfigResponse lists every selectable option and the current choices.
type ConfigResponse struct {
	Rows     []int          `json:"rows"`
	Seconds  []int          `json:"seconds"`
	Colors   []strip.Preset `json:"colors"`
	Stickers []string       `json:"stickers"`
	Filters  []string       `json:"filters"`
	Current  booth.Settings `json:"current"`
}

// ValidateSessionRequest checks the requested shot count and countdown.
func ValidateSessionRequest(req SessionRequest) error {
	if !capture.ValidParams(req.Rows, req.Seconds) {
		return fmt.Errorf("%w: rows must be one of %v and seconds one of %v",
			capture.ErrInvalidSession, capture.ValidShotCounts, capture.ValidSeconds)
	}
	return nil
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Booth       Booth
	opts        Options
	staticFS    fs.FS
	upgrader    websocket.Upgrader

	startMu   sync.Mutex
	lastStart time.Time
}

// NewHandlers creates handlers with the given dependencies.
// If b is nil, booth routes return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, b Booth, opts Options, staticFS fs.FS) *Handlers {
	if opts.PreviewInterval <= 0 {
		opts.PreviewInterval = time.Second / 15
	}
	if opts.PreviewQuality <= 0 || opts.PreviewQuality > 100 {
		opts.PreviewQuality = 75
	}
	return &Handlers{
		Broadcaster: broadcaster,
		Booth:       b,
		opts:        opts,
		staticFS:    staticFS,
		// Default CheckOrigin: the live camera feed is same-origin only.
		upgrader:    websocket.Upgrader{},
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleConfig returns the selectable options and current choices as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	stickers := make([]string, 0, len(strip.Stickers()))
	for _, s := range strip.Stickers() {
		stickers = append(stickers, string(s))
	}
	writeJSON(w, http.StatusOK, ConfigResponse{
		Rows:     capture.ValidShotCounts,
		Seconds:  capture.ValidSeconds,
		Colors:   strip.Presets,
		Stickers: stickers,
		Filters:  filter.Names(),
		Current:  h.Booth.Settings(),
	})
}

// HandleOpen handles POST /booth/open: acquire the camera.
func (h *Handlers) HandleOpen(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.Booth.Activate(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "camera ready"})
}

// HandleStartSession handles POST /session to start a capture session.
func (h *Handlers) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidateSessionRequest(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.ready(w) {
		return
	}

	h.startMu.Lock()
	if h.opts.MinStartInterval > 0 && !h.lastStart.IsZero() && time.Since(h.lastStart) < h.opts.MinStartInterval {
		h.startMu.Unlock()
		http.Error(w, "session started too recently", http.StatusTooManyRequests)
		return
	}
	sess, err := h.Booth.StartSession(r.Context(), req.Rows, req.Seconds)
	if err == nil {
		h.lastStart = time.Now()
	}
	h.startMu.Unlock()

	if err != nil {
		h.writeError(w, err)
		return
	}
	h.Broadcaster.BroadcastMsg(fmt.Sprintf("Session started: %d photos, %ds countdown", req.Rows, req.Seconds))
	writeJSON(w, http.StatusAccepted, sessionResponse(sess))
}

// HandleSession handles GET /session.
func (h *Handlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	sess, ok := h.Booth.Session()
	if !ok {
		http.Error(w, "no session", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// HandleShot handles GET /session/shots/{index}.
func (h *Handlers) HandleShot(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "index must be a number", http.StatusBadRequest)
		return
	}
	shot, err := h.Booth.Shot(i)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(shot.Data)
}

// HandleFilter handles PUT /filter.
func (h *Handlers) HandleFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !h.ready(w) {
		return
	}
	if err := h.Booth.SetFilter(req.Filter); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Booth.Settings())
}

// HandleStyle handles PUT /style.
func (h *Handlers) HandleStyle(w http.ResponseWriter, r *http.Request) {
	var req strip.Style
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !h.ready(w) {
		return
	}
	if err := h.Booth.SetStyle(r.Context(), req); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Booth.Settings())
}

// HandleStrip handles GET /strip.png (inline).
func (h *Handlers) HandleStrip(w http.ResponseWriter, r *http.Request) {
	h.serveStrip(w, r, "inline")
}

// HandleDownload handles GET /strip/download (attachment).
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	h.serveStrip(w, r, "attachment")
}

func (h *Handlers) serveStrip(w http.ResponseWriter, r *http.Request, disposition string) {
	if !h.ready(w) {
		return
	}
	data, err := h.Booth.StripPNG(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, strip.Filename))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// HandleReset handles POST /reset.
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.Booth.Reset(); err != nil {
		h.writeError(w, err)
		return
	}
	h.Broadcaster.BroadcastMsg("Booth reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// HandlePreview handles GET /preview/ws: binary JPEG frames of the mirrored,
// filtered live view until the client disconnects.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Verbose("Preview: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()
	debug.Verbose("Preview viewer connected")

	// The reader only watches for the close frame.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					debug.Trace("Preview viewer disconnected: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(h.opts.PreviewInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		img, err := h.Booth.Preview()
		if err != nil {
			// No frame yet or camera released: keep the socket open.
			continue
		}
		data, err := snapshot.EncodeJPEG(img, h.opts.PreviewQuality)
		if err != nil {
			debug.Error(err)
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return
		}
	}
}

func (h *Handlers) ready(w http.ResponseWriter) bool {
	if h.Booth == nil {
		http.Error(w, "booth not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// writeError maps domain errors to HTTP status codes.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, capture.ErrInvalidSession),
		errors.Is(err, filter.ErrUnknown),
		errors.Is(err, strip.ErrUnknownColor),
		errors.Is(err, strip.ErrUnknownSticker):
		status = http.StatusBadRequest
	case errors.Is(err, capture.ErrSessionActive),
		errors.Is(err, booth.ErrIncomplete),
		errors.Is(err, strip.ErrStale):
		status = http.StatusConflict
	case errors.Is(err, booth.ErrNoShot):
		status = http.StatusNotFound
	case errors.Is(err, camera.ErrUnavailable):
		status = http.StatusServiceUnavailable
		h.Broadcaster.Broadcast(LevelAlert, "Camera unavailable: "+err.Error())
	case errors.Is(err, camera.ErrNoFrame):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		debug.Error(err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sessionResponse(s capture.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		State:     s.State.String(),
		Target:    s.TargetCount,
		Seconds:   s.SecondsPerShot,
		Count:     len(s.Images),
		Remaining: s.Remaining,
		Dropped:   s.Dropped,
		Active:    s.Active,
		Complete:  s.Complete(),
	}
}
