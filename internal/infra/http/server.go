package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nftcate/internal/config"
	"nftcate/internal/domain"
	"nftcate/internal/infra/auth/rbac"
	"nftcate/internal/observability/metrics"
	"nftcate/internal/usecase"

	"github.com/gin-gonic/gin"
)

// Authorizer decides whether a principal may act on a resource.
type Authorizer interface {
	Require(principal domain.Principal, permission string, resourceID string) error
}

type Server struct {
	cfg config.Config
	r   *gin.Engine

	issueUC  *usecase.IssueCertificate
	resumeUC *usecase.ResumeCertificate
	verifyUC *usecase.VerifyCertificate
	query    *usecase.CertificateQuery
	ledger   usecase.Ledger
	gateway  string
	health   func(ctx context.Context) error
	metrics  *metrics.Metrics

	authenticator domain.Authenticator
	authorizer    Authorizer
	authInitErr   error

	rateLimiter          domain.RateLimiter
	rateLimitRequests    int
	rateLimitWindow      time.Duration
	rateLimitWithSubject bool
	rateLimitFailClosed  bool
	rateLimitSubjectMax  int
	rateLimitSubjectHash bool
}

type ServerDeps struct {
	Issue  *usecase.IssueCertificate
	Resume *usecase.ResumeCertificate
	Verify *usecase.VerifyCertificate
	Query  *usecase.CertificateQuery
	Ledger usecase.Ledger

	// GatewayURL renders metadataUrl in mint responses; empty falls back to ipfs:// URIs.
	GatewayURL string
	// Health reports backing store reachability for /healthz.
	Health func(ctx context.Context) error

	Metrics       *metrics.Metrics
	Authenticator domain.Authenticator
	Authorizer    Authorizer
	RateLimiter   domain.RateLimiter
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:           cfg,
		r:             r,
		issueUC:       deps.Issue,
		resumeUC:      deps.Resume,
		verifyUC:      deps.Verify,
		query:         deps.Query,
		ledger:        deps.Ledger,
		gateway:       deps.GatewayURL,
		health:        deps.Health,
		metrics:       deps.Metrics,
		authenticator: deps.Authenticator,
		authorizer:    deps.Authorizer,
	}
	r.Use(s.requestLogger())
	s.initRateLimit(deps.RateLimiter)
	s.initAuth()
	s.routes()
	return s
}

func (s *Server) initAuth() {
	switch s.cfg.AuthMode {
	case "":
		s.authInitErr = errors.New("AUTH_MODE is required")
	case "none":
	case "jwt":
		if s.authenticator == nil {
			s.authInitErr = errors.New("jwt auth mode requires an authenticator")
			return
		}
		if s.authorizer == nil {
			s.authorizer = rbac.NewAuthorizer()
		}
	default:
		s.authInitErr = errors.New("unsupported auth mode")
	}
}

func (s *Server) initRateLimit(limiter domain.RateLimiter) {
	s.rateLimiter = limiter
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	s.rateLimitWithSubject = s.cfg.RateLimitIncludeSubject
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
	s.rateLimitSubjectMax = s.cfg.RateLimitSubjectMaxLen
	s.rateLimitSubjectHash = s.cfg.RateLimitSubjectHash
}

func (s *Server) routes() {
	s.r.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	cert := s.r.Group("/certificate")
	{
		cert.POST("/mint", s.handleMint)
		cert.POST("/resume", s.handleResume)
		cert.POST("/verify", s.handleVerify)
	}
	s.r.GET("/certificates", s.handleListCertificates)
	s.r.GET("/ledger/issuers/:address", s.handleIssuerRegistration)

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

// Handler exposes the router for an http.Server or tests.
func (s *Server) Handler() http.Handler {
	return s.r
}

// Run serves until ctx is cancelled, then drains in-flight requests for up to
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if s.authInitErr != nil {
		return s.authInitErr
	}
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
