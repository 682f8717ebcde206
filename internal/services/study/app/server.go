// Package app exposes the study service over HTTP and websockets.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	apperrors "github.com/louisbranch/study.space/internal/platform/errors"
	"github.com/louisbranch/study.space/internal/platform/timeouts"
	"github.com/louisbranch/study.space/internal/services/study/domain"
	"github.com/louisbranch/study.space/internal/services/study/realtime"
)

const defaultMaxImageBytes = 4 << 20

var errAdminRequired = apperrors.New(apperrors.CodePermissionDenied, "admin role required")

// StudyService is the domain surface the handlers call.
type StudyService interface {
	Start(ctx context.Context, userID string) (domain.Session, error)
	Stop(ctx context.Context, userID string) (domain.Session, error)
	StartBreak(ctx context.Context, userID, breakType string) (domain.Session, error)
	Resume(ctx context.Context, userID string) (domain.Session, error)
	GetCurrent(ctx context.Context, userID string) (*domain.Session, error)
	Analyze(ctx context.Context, userID string, image domain.Image) (domain.AnalysisResult, error)
	ListSessions(ctx context.Context, userID string, from, to time.Time) ([]domain.Session, error)
	Budget(ctx context.Context, userID string) (domain.BudgetStatus, error)
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	UpdateProfile(ctx context.Context, in domain.ProfileSettings) (domain.Profile, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	PutUser(ctx context.Context, in domain.UserInput) (domain.User, error)
	Now() time.Time
}

// ConfigAdmin reads and replaces the admin configuration.
type ConfigAdmin interface {
	Current() domain.AppConfig
	Update(ctx context.Context, cfg domain.AppConfig) (domain.AppConfig, error)
}

// Deps wires the HTTP surface.
type Deps struct {
	Study  StudyService
	Config ConfigAdmin
	Hub    *realtime.Hub
	Auth   Authenticator
	// MaxImageBytes caps uploaded frames.
	MaxImageBytes int64
}

type handlers struct {
	study         StudyService
	config        ConfigAdmin
	maxImageBytes int64
}

// NewHandler builds the routed HTTP handler.
func NewHandler(deps Deps) http.Handler {
	h := &handlers{study: deps.Study, config: deps.Config, maxImageBytes: deps.MaxImageBytes}
	if h.maxImageBytes <= 0 {
		h.maxImageBytes = defaultMaxImageBytes
	}

	user := func(fn http.HandlerFunc) http.Handler {
		return Chain(fn, Authenticate(deps.Auth))
	}
	admin := func(fn http.HandlerFunc) http.Handler {
		return Chain(fn, Authenticate(deps.Auth), RequireAdmin())
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.Handle("POST /v1/sessions/start", user(h.startSession))
	mux.Handle("POST /v1/sessions/stop", user(h.stopSession))
	mux.Handle("POST /v1/sessions/break", user(h.startBreak))
	mux.Handle("POST /v1/sessions/resume", user(h.resumeSession))
	mux.Handle("GET /v1/sessions/current", user(h.currentSession))
	mux.Handle("POST /v1/sessions/analyze", user(h.analyze))
	mux.Handle("GET /v1/sessions", user(h.listSessions))
	mux.Handle("GET /v1/budget", user(h.budget))
	mux.Handle("GET /v1/profile", user(h.profile))

	mux.Handle("GET /v1/admin/config", admin(h.getConfig))
	mux.Handle("PUT /v1/admin/config", admin(h.putConfig))
	mux.Handle("GET /v1/admin/users/{id}", admin(h.getUser))
	mux.Handle("PUT /v1/admin/users/{id}", admin(h.putUser))
	mux.Handle("PUT /v1/admin/profiles/{id}", admin(h.putProfile))

	if deps.Hub != nil {
		mux.Handle("GET /v1/ws", deps.Hub.Handler(realtimeAuth(deps.Auth)))
	}

	return Chain(mux, RecoverPanic(), RequestID())
}

func realtimeAuth(auth Authenticator) realtime.Authenticator {
	if auth == nil {
		return nil
	}
	return realtime.AuthenticatorFunc(func(r *http.Request) (string, error) {
		identity, err := auth.Authenticate(r)
		if err != nil {
			return "", err
		}
		return identity.UserID, nil
	})
}

// Server owns the HTTP listener lifecycle.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// NewServer wraps handler in an http.Server bound to addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		shutdownTimeout: timeouts.Shutdown,
	}
}

// Serve runs the HTTP server on listener until the context ends.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s == nil {
		return errors.New("study server is nil")
	}
	if listener == nil {
		return errors.New("listener is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("study server listening on %s", listener.Addr())
	go func() {
		serveErr <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
