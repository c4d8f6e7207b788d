// package server contains middleware & handlers for the local status API
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, panic recovery, CORS, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers in the status API.
// Implementations handle specific endpoints (health, downloads, event stream).
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the "METHOD /path" patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Downloads is the download coordinator surface exposed over HTTP.
type Downloads interface {
	RequestDownload(ctx context.Context, ref models.ResourceRef, meta models.DownloadMetadata) error
	Record(identifier string) (models.DownloadRecord, bool)
	Records() []models.DownloadRecord
	Abandon(identifier string) error
	Subscribe(buffer int) (<-chan models.DownloadRecord, func())
}

// NewRouter builds the status API router with logging and recovery middleware.
func NewRouter(downloads Downloads, logger *log.Logger) *BasicRouter {
	logger = shared.WithLogger(logger, "component", "server")

	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))
	router.Handler(NewHealthHandler())
	router.Handler(NewDownloadsHandler(downloads, logger))
	router.Handler(NewEventsHandler(downloads))
	return router
}

// New creates an [http.Server] serving the status API on addr.
//
// WriteTimeout is left unset so the event stream can stay open.
func New(addr string, downloads Downloads, logger *log.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(downloads, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
