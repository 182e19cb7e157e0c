// Package gateway is the edge dispatcher. Each request walks one path:
// CORS preflight short-circuit, authentication, rate check, protocol
// adapter, resolver, async audit, response.
package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pelorus/internal/config"
	"pelorus/internal/domain"
	"pelorus/internal/gateway/graphql"
	"pelorus/internal/gateway/resolver"
	"pelorus/internal/gateway/rest"
	"pelorus/internal/infra/audit"
	"pelorus/internal/infra/ratelimit"

	"github.com/gin-gonic/gin"
)

const graphqlEndpoint = "graphql"

type Server struct {
	cfg config.Config
	r   *gin.Engine
	log *slog.Logger

	registry      *resolver.Registry
	restAdapter   *rest.Adapter
	gqlAdapter    *graphql.Adapter
	authenticator domain.Authenticator
	limiter       domain.RateLimiter
	plan          ratelimit.Plan
	recorder      *audit.Recorder

	storeTimeout time.Duration
	corsOrigins  []string
}

type Deps struct {
	Registry      *resolver.Registry
	Authenticator domain.Authenticator
	Limiter       domain.RateLimiter
	Plan          ratelimit.Plan
	Recorder      *audit.Recorder
	Log           *slog.Logger
}

func NewServer(cfg config.Config, deps Deps) (*Server, error) {
	gqlAdapter, err := graphql.New()
	if err != nil {
		return nil, err
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	s := &Server{
		cfg:           cfg,
		r:             r,
		log:           log,
		registry:      deps.Registry,
		restAdapter:   rest.New(),
		gqlAdapter:    gqlAdapter,
		authenticator: deps.Authenticator,
		limiter:       deps.Limiter,
		plan:          deps.Plan,
		recorder:      deps.Recorder,
		storeTimeout:  cfg.StoreTimeout(),
		corsOrigins:   cfg.CORSAllowedOrigins,
	}
	r.Use(s.recovery())
	r.Use(s.cors())
	s.routes()
	return s, nil
}

func (s *Server) Run() error {
	s.log.Info("gateway listening", "addr", s.cfg.HTTPAddr)
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the underlying mux for tests and embedding.
func (s *Server) Handler() http.Handler { return s.r }

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "pelorus-gateway"})
	})

	s.r.GET("/graphql", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "POST GraphQL documents to this endpoint"})
	})
	s.r.POST("/graphql", s.handleGraphQL)

	for _, path := range s.restAdapter.Paths() {
		endpoint, _ := s.restAdapter.Lookup(path)
		s.r.Any("/"+path, s.handleREST(endpoint))
	}

	// Unknown paths are discoverable, not silent.
	s.r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "endpoint not found",
			"endpoints": s.restAdapter.Paths(),
		})
	})
}

// recovery converts handler panics into a generic 500. Detail stays in the
// server log, never in the response body.
func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("handler panic",
					"panic", rec,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}

// cors terminates preflight before authentication; OPTIONS is the one
// method that never reaches the auth or rate-limit stages.
func (s *Server) cors() gin.HandlerFunc {
	allowAll := len(s.corsOrigins) == 1 && s.corsOrigins[0] == "*"
	allowed := make(map[string]struct{}, len(s.corsOrigins))
	for _, origin := range s.corsOrigins {
		allowed[origin] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if _, ok := allowed[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Service-Token")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (s *Server) handleREST(endpoint rest.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := s.authenticate(c)
		if !ok {
			return
		}
		if !s.admit(c, endpoint.Path) {
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			s.writeRESTError(c, domain.NewValidationError("body", "unreadable body"))
			return
		}
		op, err := endpoint.BuildOperation(c.Request.Method, c.Request.URL.Query(), body)
		if err != nil {
			s.writeRESTError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), s.storeTimeout)
		defer cancel()
		result, err := s.registry.Resolve(ctx, op, caller)

		s.audit(caller, endpoint.Path, c.Request.Method, op, err)
		if err != nil {
			s.writeRESTError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (s *Server) handleGraphQL(c *gin.Context) {
	caller, ok := s.authenticate(c)
	if !ok {
		return
	}
	if !s.admit(c, graphqlEndpoint) {
		return
	}

	var req graphql.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"errors": []map[string]any{{"message": "invalid request body"}},
		})
		return
	}

	op, err := s.gqlAdapter.Parse(req)
	if err != nil {
		// Validation failed before execution: errors only, no data entry,
		// no resolver invoked.
		c.JSON(http.StatusOK, gin.H{"errors": graphql.Messages(err)})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.storeTimeout)
	defer cancel()
	result, err := s.registry.Resolve(ctx, op, caller)

	s.audit(caller, graphqlEndpoint, c.Request.Method, op, err)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"errors": []map[string]any{{"message": s.publicMessage(err)}}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{op.Name: result}})
}

// authenticate resolves the caller or terminates the request with 401.
// This always runs before the rate check, so rejected credentials are never
// charged against an endpoint budget.
func (s *Server) authenticate(c *gin.Context) (domain.Identity, bool) {
	creds := domain.Credentials{
		BearerToken:  bearerToken(c.GetHeader("Authorization")),
		ServiceToken: strings.TrimSpace(c.GetHeader("X-Service-Token")),
	}
	identity, err := s.authenticator.Authenticate(c.Request.Context(), creds)
	if err != nil {
		message := "invalid token"
		if creds.BearerToken == "" && creds.ServiceToken == "" {
			message = "authentication required"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
		return domain.Identity{}, false
	}
	return identity, true
}

// admit charges the request against the endpoint budget or terminates it
// with 429. Limiter transport errors fail open: dampening, not billing.
func (s *Server) admit(c *gin.Context, endpoint string) bool {
	limit := s.plan.For(endpoint)
	decision, err := s.limiter.Allow(c.Request.Context(), endpoint, limit.Requests, limit.Window)
	if err != nil {
		s.log.Warn("rate limiter unavailable", "endpoint", endpoint, "error", err)
		return true
	}
	writeRateLimitHeaders(c, decision)
	if !decision.Allowed {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": domain.ErrRateLimited.Error()})
		return false
	}
	return true
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision) {
	if decision.Limit > 0 {
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if !decision.ResetAt.IsZero() {
		c.Header("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			retryAfter := int64(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		}
	}
}

func (s *Server) audit(caller domain.Identity, endpoint, method string, op domain.Operation, resolveErr error) {
	outcome := domain.AuditSuccess
	metadata := map[string]any{
		"operation": op.Name,
		"domain":    string(op.Domain),
	}
	if resolveErr != nil {
		outcome = domain.AuditError
		metadata["error"] = s.publicMessage(resolveErr)
	}
	s.recorder.Record(domain.AuditRecord{
		CallerID: caller.ID,
		Endpoint: endpoint,
		Method:   method,
		Outcome:  outcome,
		Metadata: metadata,
	})
}

// writeRESTError maps the domain taxonomy onto HTTP statuses. GraphQL
// deliberately does not share this mapping; it reports failures at 200.
func (s *Server) writeRESTError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	default:
		if _, ok := domain.IsValidation(err); ok {
			status = http.StatusBadRequest
		}
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": s.publicMessage(err)})
}

// publicMessage strips internal detail from an error before it reaches a
// response body or the audit trail.
func (s *Server) publicMessage(err error) string {
	if v, ok := domain.IsValidation(err); ok {
		if v.Field == "method" {
			return v.Reason
		}
		return v.Error()
	}
	for _, sentinel := range []error{
		domain.ErrUnauthenticated,
		domain.ErrForbidden,
		domain.ErrNotFound,
		domain.ErrRateLimited,
		domain.ErrUpstreamUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("bearer "):])
}
