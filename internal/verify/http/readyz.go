package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/stepauth/internal/verify/messenger"
	"github.com/aussiebroadwan/stepauth/internal/verify/store"
	"github.com/aussiebroadwan/stepauth/pkg/httpx"
	"github.com/aussiebroadwan/stepauth/pkg/jwtx"
	"github.com/aussiebroadwan/stepauth/pkg/verifysdk"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe checking the database, the token signer and the messenger configuration.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	verifysdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	verifysdk.HealthResponse	"service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	signer jwtx.Signer,
	sender messenger.Sender,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &verifysdk.HealthChecks{
			Database:  "ok",
			Signer:    "ok",
			Messenger: "ok",
		}
		status := "ok"
		code := http.StatusOK
		degrade := func() {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			checks.Database = "error: " + err.Error()
			degrade()
		}

		if signer == nil || signer.KID() == "" {
			checks.Signer = "error: no signing key"
			degrade()
		}

		if sender == nil {
			checks.Messenger = "error: not configured"
			degrade()
		} else if c, ok := sender.(messenger.Checker); ok {
			if err := c.Check(ctx); err != nil {
				checks.Messenger = "error: " + err.Error()
				degrade()
			}
		}

		httpx.WriteJSON(w, code, verifysdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
