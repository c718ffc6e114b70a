package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-roombook/internal/config"
	"github.com/npezzotti/go-roombook/internal/database"
	"github.com/npezzotti/go-roombook/internal/notify"
	"github.com/npezzotti/go-roombook/internal/stats"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type publisher interface {
	Publish(ev notify.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(notify.Event) {}

type App struct {
	log            *zap.Logger
	db             database.RoomRepository
	srv            *http.Server
	hub            *notify.Hub
	feed           publisher
	stats          stats.StatsProvider
	validate       *validator.Validate
	signingKey     []byte
	allowedOrigins []string
	authDisabled   bool
}

func NewApp(mux *http.ServeMux, logger *zap.Logger, hub *notify.Hub, db database.RoomRepository, statsProvider stats.StatsProvider, cfg *config.Config) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &App{
		log:            logger,
		db:             db,
		hub:            hub,
		feed:           nopPublisher{},
		stats:          statsProvider,
		validate:       newValidator(),
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		authDisabled:   cfg.AuthDisabled,
	}
	if hub != nil {
		s.feed = hub
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /login", s.login)
	mux.HandleFunc("GET /rooms/all", s.authMiddleware(s.listRooms))
	mux.HandleFunc("GET /rooms/{room_number}", s.authMiddleware(s.getRoom))
	mux.HandleFunc("PUT /rooms/{room_number}", s.authMiddleware(s.updateRoom))
	mux.HandleFunc("POST /rooms/{room_number}/make-occupied", s.authMiddleware(s.makeOccupied))
	mux.HandleFunc("GET /rooms/{room_number}/make-available", s.authMiddleware(s.makeAvailable))
	mux.HandleFunc("POST /rooms/{room_number}/make-available", s.authMiddleware(s.makeAvailable))
	mux.HandleFunc("POST /rooms/{room_number}/book", s.authMiddleware(s.bookRoom))
	if hub != nil {
		mux.HandleFunc("GET /ws/rooms", s.authMiddleware(s.serveWs))
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.requestLogger(h)
	h = otelhttp.NewHandler(h, "roombook")
	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *App) Handler() http.Handler {
	return s.srv.Handler
}

func (s *App) Start() error {
	s.log.Info("starting server", zap.String("addr", s.srv.Addr))
	if s.authDisabled {
		s.log.Warn("authentication is disabled, every request is treated as authenticated")
	}
	return s.srv.ListenAndServe()
}

func (s *App) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

func (s *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("json encode", zap.Error(err))
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}
