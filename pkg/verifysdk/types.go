package verifysdk

import "time"

// Result is the envelope returned by the verification endpoints.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// VerifyRequest is the body of POST /api/verify.
type VerifyRequest struct {
	Code string `json:"code"`
}

// MeResponse describes the session behind the session cookie.
type MeResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks lists readiness of the service's dependencies.
type HealthChecks struct {
	Database  string `json:"database"`
	Signer    string `json:"signer"`
	Messenger string `json:"messenger"`
}
