// Package devserver is a local stand-in for the portal backend. It serves
// the same HTTP API the client speaks, stores records in sqlite, fakes OCR
// extraction and includes a card tokenizer endpoint.
package devserver

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/repository"
)

type Config struct {
	Addr      string
	JWTSecret string
	UploadDir string
	// ExtractionDelayPolls withholds a document's extraction until it has
	// been fetched this many times.
	ExtractionDelayPolls int
}

type Server struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	accounts      repository.AccountRepository
	documents     repository.DocumentRepository
	receipts      repository.ReceiptRepository
	returns       repository.ReturnRepository
	subscriptions repository.SubscriptionRepository
	payments      repository.PaymentRepository

	methods *methodRegistry
	replays *replayCache
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	logger = common.LoggerOrDefault(logger)
	return &Server{
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
		accounts:      repository.NewAccountRepository(db, logger),
		documents:     repository.NewDocumentRepository(db, logger),
		receipts:      repository.NewReceiptRepository(db, logger),
		returns:       repository.NewReturnRepository(db, logger),
		subscriptions: repository.NewSubscriptionRepository(db, logger),
		payments:      repository.NewPaymentRepository(db, logger),
		methods:       newMethodRegistry(),
		replays:       newReplayCache(),
	}
}

// Router builds the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/v1/payment_methods", s.handleCreatePaymentMethod)

	r.Route("/api", func(r chi.Router) {
		r.Get("/payment/plans", s.handleListPlans)
		r.Get("/payment/services", s.handleListServices)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/documents", s.handleListDocuments)
			r.Post("/documents", s.handleUploadDocument)
			r.Get("/documents/{id}", s.handleGetDocument)
			r.Delete("/documents/{id}", s.handleDeleteDocument)

			r.Get("/receipts", s.handleListReceipts)
			r.Post("/receipts", s.handleUploadReceipt)

			r.Get("/returns", s.handleListReturns)
			r.Post("/returns", s.handleCreateReturn)
			r.Put("/returns/{id}", s.handleUpdateReturn)

			r.Get("/cpa/clients", s.handleListClients)

			r.Get("/subscription", s.handleGetSubscription)
			r.Post("/subscription", s.handleCreateSubscription)
			r.Delete("/subscription", s.handleCancelSubscription)
			r.Get("/payments/history", s.handlePaymentHistory)
			r.Post("/payment/service", s.handlePurchaseService)
		})
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("devserver.listen", "addr", s.cfg.Addr)
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

	s.logger.Info("devserver.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("devserver.http",
			"req_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}
