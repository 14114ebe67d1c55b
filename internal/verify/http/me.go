package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/stepauth/internal/verify/service"
	"github.com/aussiebroadwan/stepauth/pkg/httpx"
	"github.com/aussiebroadwan/stepauth/pkg/slogx"
	"github.com/aussiebroadwan/stepauth/pkg/verifysdk"
)

// MeHandler godoc
//
//	@Summary		Describe the current session
//	@Description	Returns the user and session behind the session cookie. Used as the gate for the dashboard.
//	@Tags			Session
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	verifysdk.MeResponse	"Session details"
//	@Failure		401	{object}	verifysdk.Result		"Missing, expired or revoked session"
//	@Router			/api/me [get].
func MeHandler(svc *service.VerificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := httpx.ClaimsFromContext(ctx)
		if !ok {
			httpx.WriteResult(w, http.StatusUnauthorized, false, msgNotAuthenticated)
			return
		}

		session, user, err := svc.Session(ctx, claims.SID)
		if errors.Is(err, service.ErrSessionInactive) {
			httpx.WriteResult(w, http.StatusUnauthorized, false, msgNotAuthenticated)
			return
		}
		if err != nil {
			slogx.FromContext(ctx).Error("failed to load session", "session_id", claims.SID, "err", err)
			httpx.WriteResult(w, http.StatusInternalServerError, false, msgInternal)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, verifysdk.MeResponse{
			UserID:    user.ID,
			Username:  user.Username,
			SessionID: session.ID,
			ExpiresAt: session.ExpiresAt,
		})
	}
}
