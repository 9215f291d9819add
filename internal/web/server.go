package web

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server configured for the given address and
// dependencies. Sequencer events from b are forwarded to SSE clients.
func NewServer(addr string, broadcaster *StatusBroadcaster, b Booth, opts Options) *Server {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("web: failed to sub static fs: %v", err)
	}

	if b != nil {
		b.Subscribe(broadcaster.BroadcastEvent)
	}
	handlers := NewHandlers(broadcaster, b, opts, subFS)

	return &Server{
		addr:     addr,
		handlers: handlers,
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	h := s.handlers
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestTrace)

	r.Get("/", h.ServeIndex)
	r.Get("/config", h.HandleConfig)
	r.Post("/booth/open", h.HandleOpen)
	r.Post("/session", h.HandleStartSession)
	r.Get("/session", h.HandleSession)
	r.Get("/session/shots/{index}", h.HandleShot)
	r.Put("/filter", h.HandleFilter)
	r.Put("/style", h.HandleStyle)
	r.Get("/strip.png", h.HandleStrip)
	r.Get("/strip/download", h.HandleDownload)
	r.Post("/reset", h.HandleReset)
	r.Get("/status/stream", h.HandleStatusStream)
	r.Get("/preview/ws", h.HandlePreview)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(h.staticFS))))

	return r
}

// requestTrace logs every request at trace level.
func requestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		debug.Trace("HTTP %s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("Web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
