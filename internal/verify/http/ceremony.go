package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/stepauth/internal/verify/service"
	"github.com/aussiebroadwan/stepauth/pkg/httpx"
	"github.com/aussiebroadwan/stepauth/pkg/jwtx"
	"github.com/aussiebroadwan/stepauth/pkg/slogx"
	"github.com/aussiebroadwan/stepauth/pkg/verifysdk"
)

// User facing messages.
const (
	msgCodeSent         = "Verification code sent"
	msgCodeResent       = "New verification code sent"
	msgVerified         = "Verification successful"
	msgLoggedOut        = "Logged out"
	msgBadCredentials   = "Invalid username or password"
	msgMissingFields    = "Username and password are required"
	msgMissingCode      = "Verification code is required"
	msgBadBody          = "Invalid request body"
	msgNoChallenge      = "Please log in first"
	msgCodeExpired      = "Verification code expired"
	msgBadCode          = "Invalid verification code"
	msgTooManyAttempts  = "Too many attempts. Please log in again"
	msgUserNotFound     = "User not found"
	msgDeliveryFailed   = "Failed to send verification code"
	msgNotAuthenticated = "Not authenticated"
	msgInternal         = "Internal server error"
)

// CeremonyHandler serves the login, verify, resend and logout endpoints.
type CeremonyHandler struct {
	Service         *service.VerificationService
	SessionVerifier jwtx.Verifier
	Cookies         CookieConfig
}

// HandleLogin handles POST /api/login
//
//	@Summary		Check credentials and send a code
//	@Description	Checks the username and password. On success a six digit code is delivered to the user's chat
//	@Description	and the challenge cookie is set. The code is valid for two minutes.
//	@Tags			Verification
//	@Accept			json
//	@Produce		json
//	@Param			request	body		verifysdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	verifysdk.Result		"Code sent"
//	@Failure		400		{object}	verifysdk.Result		"Malformed request"
//	@Failure		401		{object}	verifysdk.Result		"Invalid username or password"
//	@Failure		429		{object}	verifysdk.Result		"Rate limited"
//	@Failure		502		{object}	verifysdk.Result		"Code delivery failed"
//	@Router			/api/login [post].
func (h *CeremonyHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req verifysdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteResult(w, http.StatusBadRequest, false, msgBadBody)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		httpx.WriteResult(w, http.StatusBadRequest, false, msgMissingFields)
		return
	}

	issued, err := h.Service.Login(ctx, req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidCredentials):
		log.Info("login rejected", "username", req.Username)
		httpx.WriteResult(w, http.StatusUnauthorized, false, msgBadCredentials)
		return
	case errors.Is(err, service.ErrDeliveryFailed):
		httpx.WriteResult(w, http.StatusBadGateway, false, msgDeliveryFailed)
		return
	default:
		log.Error("login failed", "username", req.Username, "err", err)
		httpx.WriteResult(w, http.StatusInternalServerError, false, msgInternal)
		return
	}

	h.Cookies.set(w, ChallengeCookie, issued.Token, time.Now().Add(service.ChallengeTokenTTL))
	httpx.WriteResult(w, http.StatusOK, true, msgCodeSent)
}

// HandleVerify handles POST /api/verify
//
//	@Summary		Check the delivered code
//	@Description	Checks the code for the challenge in the challenge cookie. On success the session cookie is set
//	@Description	and the challenge is consumed. A challenge accepts at most five wrong codes.
//	@Tags			Verification
//	@Accept			json
//	@Produce		json
//	@Param			request	body		verifysdk.VerifyRequest	true	"Code"
//	@Success		200		{object}	verifysdk.Result		"Session issued"
//	@Failure		400		{object}	verifysdk.Result		"Wrong or expired code, or no pending challenge"
//	@Failure		404		{object}	verifysdk.Result		"User no longer exists"
//	@Failure		429		{object}	verifysdk.Result		"Attempts exhausted or rate limited"
//	@Router			/api/verify [post].
func (h *CeremonyHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifysdk.VerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteResult(w, http.StatusBadRequest, false, msgBadBody)
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		httpx.WriteResult(w, http.StatusBadRequest, false, msgMissingCode)
		return
	}

	issued, err := h.Service.Verify(ctx, httpx.TokenFromRequest(r, ChallengeCookie), req.Code)
	if err != nil {
		h.writeChallengeError(w, r, err)
		return
	}

	h.Cookies.clear(w, ChallengeCookie)
	h.Cookies.set(w, SessionCookie, issued.Token, issued.ExpiresAt)
	httpx.WriteResult(w, http.StatusOK, true, msgVerified)
}

// HandleResend handles POST /api/resend
//
//	@Summary		Send a new code
//	@Description	Rotates the pending challenge to a new code with a full two minute window. The previous code stops working.
//	@Tags			Verification
//	@Produce		json
//	@Success		200	{object}	verifysdk.Result	"Code sent"
//	@Failure		400	{object}	verifysdk.Result	"No pending challenge"
//	@Failure		404	{object}	verifysdk.Result	"User no longer exists"
//	@Failure		429	{object}	verifysdk.Result	"Rate limited"
//	@Failure		502	{object}	verifysdk.Result	"Code delivery failed"
//	@Router			/api/resend [post].
func (h *CeremonyHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Service.Resend(r.Context(), httpx.TokenFromRequest(r, ChallengeCookie)); err != nil {
		h.writeChallengeError(w, r, err)
		return
	}
	httpx.WriteResult(w, http.StatusOK, true, msgCodeResent)
}

// HandleLogout handles POST /logout
//
//	@Summary		Drop the challenge and the session
//	@Description	Deletes the pending challenge, revokes the session and clears both cookies. Always succeeds.
//	@Tags			Verification
//	@Produce		json
//	@Success		200	{object}	verifysdk.Result	"Logged out"
//	@Router			/logout [post].
func (h *CeremonyHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	challengeID, _ := h.Service.ChallengeID(httpx.TokenFromRequest(r, ChallengeCookie))

	var sessionID string
	if raw := httpx.TokenFromRequest(r, SessionCookie); raw != "" {
		if claims, err := h.SessionVerifier.Verify(raw); err == nil {
			sessionID = claims.SID
		}
	}

	if err := h.Service.Logout(ctx, challengeID, sessionID); err != nil {
		slogx.FromContext(ctx).Warn("logout cleanup failed", "err", err)
	}

	h.Cookies.clear(w, ChallengeCookie)
	h.Cookies.clear(w, SessionCookie)
	httpx.WriteResult(w, http.StatusOK, true, msgLoggedOut)
}

func (h *CeremonyHandler) writeChallengeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNoChallenge):
		httpx.WriteResult(w, http.StatusBadRequest, false, msgNoChallenge)
	case errors.Is(err, service.ErrCodeExpired):
		httpx.WriteResult(w, http.StatusBadRequest, false, msgCodeExpired)
	case errors.Is(err, service.ErrInvalidCode):
		httpx.WriteResult(w, http.StatusBadRequest, false, msgBadCode)
	case errors.Is(err, service.ErrTooManyAttempts):
		h.Cookies.clear(w, ChallengeCookie)
		httpx.WriteResult(w, http.StatusTooManyRequests, false, msgTooManyAttempts)
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteResult(w, http.StatusNotFound, false, msgUserNotFound)
	case errors.Is(err, service.ErrDeliveryFailed):
		httpx.WriteResult(w, http.StatusBadGateway, false, msgDeliveryFailed)
	default:
		slogx.FromContext(r.Context()).Error("challenge request failed", "path", r.URL.Path, "err", err)
		httpx.WriteResult(w, http.StatusInternalServerError, false, msgInternal)
	}
}
