package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crowdfund/internal/domain"
	"crowdfund/internal/middleware"
)

const maxBodyBytes = 1 << 20

// CampaignService is the subset of crowdfund.Service the handlers call.
type CampaignService interface {
	CreateCampaign(ctx context.Context, caller domain.Identity, minimum decimal.Decimal) (*domain.Campaign, error)
	DeployedCampaigns(ctx context.Context) ([]string, error)
	Campaign(ctx context.Context, id string) (*domain.Campaign, error)
	Contribute(ctx context.Context, campaignID string, from domain.Identity, amount decimal.Decimal) (*domain.Campaign, error)
	CreateRequest(ctx context.Context, campaignID string, caller domain.Identity, description string, value decimal.Decimal, recipient domain.Identity) (*domain.Request, error)
	ApproveRequest(ctx context.Context, campaignID string, index int, from domain.Identity) (*domain.Request, error)
	FinalizeRequest(ctx context.Context, campaignID string, index int, caller domain.Identity) (*domain.Request, error)
	Requests(ctx context.Context, campaignID string) ([]*domain.Request, error)
	Request(ctx context.Context, campaignID string, index int) (*domain.Request, error)
	IsContributor(ctx context.Context, campaignID string, id domain.Identity) (bool, error)
	HasApproved(ctx context.Context, campaignID string, index int, id domain.Identity) (bool, error)
	Balance(ctx context.Context, id domain.Identity) (decimal.Decimal, error)
	Policy() domain.ApprovalPolicy
}

type App struct {
	Service CampaignService
	Logger  zerolog.Logger
}

func NewApp(svc CampaignService, logger zerolog.Logger) *App {
	return &App{Service: svc, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": msg},
	})
}

// fail maps a service error to its HTTP status. Unknown errors are logged
// and reported as internal without leaking their text.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientAmount):
		a.error(w, http.StatusUnprocessableEntity, "insufficient_amount", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusUnprocessableEntity, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrAlreadyApproved):
		a.error(w, http.StatusConflict, "already_approved", err.Error())
	case errors.Is(err, domain.ErrAlreadyFinalized):
		a.error(w, http.StatusConflict, "already_finalized", err.Error())
	case errors.Is(err, domain.ErrInsufficientApprovals):
		a.error(w, http.StatusConflict, "insufficient_approvals", err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		a.error(w, http.StatusConflict, "insufficient_funds", err.Error())
	case errors.Is(err, context.Canceled):
		a.error(w, http.StatusServiceUnavailable, "canceled", "request canceled")
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// caller returns the authenticated identity or writes 401.
func (a *App) caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing caller identity")
		return "", false
	}
	return id, true
}

// decode reads a single JSON object from the body into dst.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid payload: %v", err))
		return false
	}
	return true
}
