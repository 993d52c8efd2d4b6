package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/nigoertz/demo-cosmos-api/internal/config"
	tracesvc "github.com/nigoertz/demo-cosmos-api/internal/services/traces"
	"github.com/nigoertz/demo-cosmos-api/internal/store"
)

// Stores carries the four collection stores the API serves.
type Stores struct {
	Transactions *store.Store
	Steps        *store.Store
	Snapshots    *store.Store
	Logs         *store.Store
}

// byName maps the collection_name query values of the delete route.
func (s Stores) byName() map[string]*store.Store {
	return map[string]*store.Store{
		"transactions": s.Transactions,
		"steps":        s.Steps,
		"snapshots":    s.Snapshots,
		"logs":         s.Logs,
	}
}

type Server struct {
	srv         *http.Server
	lis         net.Listener
	logger      zerolog.Logger
	stores      Stores
	collections map[string]*store.Store
	traces      *tracesvc.Service
}

// New builds the router and handlers.
func New(cfg config.Config, stores Stores, traces *tracesvc.Service, logger zerolog.Logger) *Server {
	s := &Server{
		logger:      logger.With().Str("component", "http").Logger(),
		stores:      stores,
		collections: stores.byName(),
		traces:      traces,
	}

	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(cors(cfg.MonitoringOrigin))

	r.Get("/status", s.handleStatus)

	r.Post("/transactions", s.handleCreateTransaction)
	r.Get("/transactions", s.handleListTransactions)
	r.Get("/transactions/{id}", s.handleGetTransaction)
	r.Get("/transactions/{id}/snapshots", s.handleTransactionSnapshots)

	r.Post("/steps", s.handleCreateStep)
	r.Get("/steps/{id}", s.handleGetStep)

	r.Post("/snapshots", s.handleCreateSnapshot)
	r.Get("/snapshots", s.handleListSnapshots)
	r.Get("/snapshots/{id}", s.handleGetSnapshot)

	r.Post("/logs", s.handleCreateLog)
	r.Get("/logs/{id}", s.handleGetLog)

	r.Delete("/delete", s.handleDeleteEntries)

	s.srv = &http.Server{Handler: r}
	return s
}

// ListenAndServe serves until ctx is cancelled, then drains with a bounded
// shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info().Str("addr", l.Addr().String()).Msg("http server listening")

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }
