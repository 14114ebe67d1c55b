package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/stepauth/internal/verify/messenger"
	"github.com/aussiebroadwan/stepauth/internal/verify/metrics"
	"github.com/aussiebroadwan/stepauth/internal/verify/service"
	"github.com/aussiebroadwan/stepauth/internal/verify/store"
	"github.com/aussiebroadwan/stepauth/pkg/httpx"
	"github.com/aussiebroadwan/stepauth/pkg/jwtx"
	"github.com/aussiebroadwan/stepauth/pkg/slogx"

	_ "github.com/aussiebroadwan/stepauth/api/verifyd" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimits are the limiter profiles applied to the routes.
type RateLimits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Public   httpx.RateLimitConfig
}

// DefaultRateLimits returns the httpx default profiles.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Public:   httpx.PublicLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	signer          jwtx.Signer
	sessionVerifier jwtx.Verifier
	buildVersion    string
	startTime       time.Time
	logger          *slog.Logger

	store   store.Store
	sender  messenger.Sender
	metrics *metrics.Metrics

	VerificationService *service.VerificationService
	Cookies             CookieConfig
	Limits              RateLimits
}

func NewRouter(
	signer jwtx.Signer,
	sessionVerifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	sender messenger.Sender,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:             http.NewServeMux(),
		signer:          signer,
		sessionVerifier: sessionVerifier,
		buildVersion:    buildVersion,
		startTime:       time.Now(),
		logger:          logger,
		store:           st,
		sender:          sender,
		metrics:         m,
		Limits:          DefaultRateLimits(),
	}

	// The logging middleware copies the request, so metrics must sit inside
	// it to see the matched pattern.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		r.metrics.Middleware,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerCeremony()
	r.registerSession()
	r.registerSystem()

	r.Mux.Handle("GET /swagger/", httpx.Chain(httpSwagger.Handler(), r.limitByIP(r.Limits.Public)))
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Stepauth Verification Service API
//	@version		0.1.0
//	@description	Two step login: a password check followed by a six digit code delivered through a messenger bot.
//	@description
//	@description	Challenge and session tokens are EdDSA signed JWTs carried in HttpOnly cookies.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/stepauth
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	SessionCookie
//	@in							cookie
//	@name						stepauth_session
//	@description				Session token set by /api/verify.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerCeremony() {
	h := &CeremonyHandler{
		Service:         r.VerificationService,
		SessionVerifier: r.sessionVerifier,
		Cookies:         r.Cookies,
	}

	// Credential checks are limited per address and per username.
	r.Mux.Handle("POST /api/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			r.limitByIP(r.Limits.Strict),
			r.limit(r.Limits.Strict, httpx.JSONFieldKeyExtractor("username")),
		),
	)

	// Code checks and resends are limited per address and per challenge.
	r.Mux.Handle("POST /api/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			r.limitByIP(r.Limits.Moderate),
			r.limit(r.Limits.Strict, httpx.CookieKeyExtractor(ChallengeCookie)),
		),
	)
	r.Mux.Handle("POST /api/resend",
		httpx.Chain(http.HandlerFunc(h.HandleResend),
			r.limitByIP(r.Limits.Moderate),
			r.limit(r.Limits.Strict, httpx.CookieKeyExtractor(ChallengeCookie)),
		),
	)

	r.Mux.Handle("POST /logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			r.limitByIP(r.Limits.Moderate),
		),
	)
}

func (r *Router) registerSession() {
	r.Mux.Handle("GET /api/me",
		httpx.Chain(MeHandler(r.VerificationService),
			r.limitByIP(r.Limits.Moderate),
			httpx.RequireToken(r.sessionVerifier, SessionCookie, jwtx.AMRPassword, jwtx.AMROTP),
		),
	)
}

func (r *Router) registerSystem() {
	public := r.limitByIP(r.Limits.Public)

	r.Mux.Handle("GET /livez", httpx.Chain(LivezHandler(r.startTime, r.buildVersion), public))
	r.Mux.Handle("GET /readyz", httpx.Chain(
		ReadyzHandler(r.startTime, r.buildVersion, r.store, r.signer, r.sender), public))
	r.Mux.Handle("GET /metrics", httpx.Chain(r.metrics.Handler(), public))
}

func (r *Router) limit(cfg httpx.RateLimitConfig, key httpx.KeyExtractor) httpx.Middleware {
	return httpx.RateLimit(cfg, key, httpx.OnReject(r.countRejected))
}

func (r *Router) limitByIP(cfg httpx.RateLimitConfig) httpx.Middleware {
	return httpx.RateLimitByIP(cfg, httpx.OnReject(r.countRejected))
}

func (r *Router) countRejected(req *http.Request) {
	r.metrics.RateLimited.WithLabelValues(req.Pattern).Inc()
}
