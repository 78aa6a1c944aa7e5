// Package server provides the loopback HTTP surface consumed by the
// add-in's API client: token acquisition, explicit sign-in/out, and
// auth state inspection.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tasksuite/addin-auth/internal/autherr"
	"github.com/tasksuite/addin-auth/internal/models"
)

// TokenService is the engine surface the HTTP layer needs.
// *engine.Engine satisfies it.
type TokenService interface {
	GetAccessToken(ctx context.Context) (models.TokenResult, error)
	SignIn(ctx context.Context) (models.Account, error)
	SignOut(ctx context.Context) error
	AuthState() models.AuthState
}

// MuxConfig holds dependencies for building the HTTP mux.
type MuxConfig struct {
	Service TokenService
	Logger  *slog.Logger
}

// NewMux builds the loopback mux. Callers treat any non-2xx response
// as "not authenticated" and must not retry acquisition themselves.
func NewMux(cfg MuxConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /token", handleToken(cfg.Service, cfg.Logger))
	mux.HandleFunc("POST /signin", handleSignIn(cfg.Service, cfg.Logger))
	mux.HandleFunc("POST /signout", handleSignOut(cfg.Service, cfg.Logger))
	mux.HandleFunc("GET /state", handleState(cfg.Service))

	return mux
}

// tokenResponse is the consumer contract of the token endpoint.
type tokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresOn   time.Time `json:"expiresOn"`
	Scopes      []string  `json:"scopes"`
	FromCache   bool      `json:"fromCache"`
}

type accountResponse struct {
	HomeAccountID string `json:"homeAccountId"`
	TenantID      string `json:"tenantId"`
	Username      string `json:"username"`
	Name          string `json:"name,omitempty"`
}

type stateResponse struct {
	IsAuthenticating bool             `json:"isAuthenticating"`
	IsAuthenticated  bool             `json:"isAuthenticated"`
	Account          *accountResponse `json:"account,omitempty"`
	ErrorCode        string           `json:"errorCode,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func handleToken(svc TokenService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := svc.GetAccessToken(r.Context())
		if err != nil {
			writeError(w, logger, err)
			return
		}

		scopes := token.Scopes
		if scopes == nil {
			scopes = []string{}
		}

		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken: token.AccessToken,
			ExpiresOn:   token.ExpiresOn,
			Scopes:      scopes,
			FromCache:   token.FromCache,
		})
	}
}

func handleSignIn(svc TokenService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := svc.SignIn(r.Context())
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAccountResponse(account))
	}
}

func handleSignOut(svc TokenService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.SignOut(r.Context()); err != nil {
			writeError(w, logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func handleState(svc TokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := svc.AuthState()

		resp := stateResponse{
			IsAuthenticating: state.IsAuthenticating,
			IsAuthenticated:  state.IsAuthenticated,
		}
		if state.Account != nil {
			acct := toAccountResponse(*state.Account)
			resp.Account = &acct
		}
		if state.Error != nil {
			resp.ErrorCode = string(autherr.CodeOf(state.Error))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func toAccountResponse(a models.Account) accountResponse {
	return accountResponse{
		HomeAccountID: a.HomeAccountID,
		TenantID:      a.TenantID,
		Username:      a.Username,
		Name:          a.Name,
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := autherr.CodeOf(err)

	logger.Warn("request failed",
		slog.String("code", string(code)),
		slog.Any("error", err),
	)

	writeJSON(w, statusFor(code), errorResponse{
		Code:    string(code),
		Message: autherr.Map(err).UserMessage,
	})
}

// statusFor picks the HTTP status: transport-level failures are server
// errors, everything else means the caller is not authenticated.
func statusFor(code autherr.Code) int {
	switch code {
	case autherr.CodeNetworkError, autherr.CodeCommunicationError, autherr.CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing useful left to do.
		return
	}
}
