// Package handlers contains the HTTP handler implementations for the
// StashBox API. Handlers stay thin: decode and validate the request, call
// the owning service, and map the result into the response envelope. The
// single piece of handler-level logic is the route/body id cross-check on
// business information updates.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stashbox/internal/account"
	"stashbox/internal/core"
	"stashbox/internal/types"
)

// --- Service Interfaces ---
//
// Defined locally following the handler injection pattern: handlers depend on
// abstractions so tests can substitute mocks without touching the services.

// AccountService defines the account lifecycle operations used by this handler.
type AccountService interface {
	Create(ctx context.Context, params account.CreateParams) (*types.Account, *types.Subscription, error)
	Get(ctx context.Context, accountID string) (*types.Account, *types.Subscription, error)
	Update(ctx context.Context, accountID string, params account.UpdateParams) (*types.Account, error)
	UpdateBusinessInformation(ctx context.Context, accountID string, info string) (*types.Account, error)
	Delete(ctx context.Context, accountID string) error
}

// AccountUsageReader provides the subscription status projection for the
// account-scoped status route.
type AccountUsageReader interface {
	GetUsageStatusByAccount(ctx context.Context, accountID string) (*types.Subscription, *types.UsageStatusReport, error)
}

// --- Request/Response Models ---

// CreateAccountRequest is the request body for POST /v1/accounts.
type CreateAccountRequest struct {
	BusinessName        string         `json:"business_name" validate:"required,max=200"`
	BusinessInformation string         `json:"business_information,omitempty" validate:"max=10000"`
	Tier                types.PlanTier `json:"tier,omitempty" validate:"omitempty,plan_tier"`
}

// UpdateAccountRequest is the request body for PATCH /v1/accounts/{accountID}.
type UpdateAccountRequest struct {
	BusinessName        *string `json:"business_name,omitempty" validate:"omitempty,max=200"`
	BusinessInformation *string `json:"business_information,omitempty" validate:"omitempty,max=10000"`
}

// UpdateBusinessInfoRequest is the request body for
// PUT /v1/accounts/{accountID}/business. AccountID must match the route id.
type UpdateBusinessInfoRequest struct {
	AccountID           string `json:"account_id" validate:"required"`
	BusinessInformation string `json:"business_information" validate:"max=10000"`
}

// SubscriptionSummary is the subscription projection embedded in account
// responses. Full detail lives under /v1/subscriptions.
type SubscriptionSummary struct {
	ID                  string                  `json:"id"`
	PlanTier            types.PlanTier          `json:"plan_tier"`
	State               types.SubscriptionState `json:"state"`
	BillingPeriodAnchor time.Time               `json:"billing_period_anchor"`
}

// AccountResponse is the standard account response shape.
type AccountResponse struct {
	ID                  string               `json:"id"`
	BusinessName        string               `json:"business_name"`
	BusinessInformation string               `json:"business_information"`
	Subscription        *SubscriptionSummary `json:"subscription,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// SubscriptionStatusResponse is returned by the account-scoped status route.
type SubscriptionStatusResponse struct {
	Subscription SubscriptionSummary      `json:"subscription"`
	Usage        *types.UsageStatusReport `json:"usage"`
}

func toSubscriptionSummary(sub *types.Subscription) *SubscriptionSummary {
	if sub == nil {
		return nil
	}
	return &SubscriptionSummary{
		ID:                  sub.ID,
		PlanTier:            sub.PlanTier,
		State:               sub.State,
		BillingPeriodAnchor: sub.BillingPeriodAnchor,
	}
}

func toAccountResponse(acc *types.Account, sub *types.Subscription) AccountResponse {
	return AccountResponse{
		ID:                  acc.ID,
		BusinessName:        acc.BusinessName,
		BusinessInformation: acc.BusinessInformation,
		Subscription:        toSubscriptionSummary(sub),
		CreatedAt:           acc.CreatedAt,
		UpdatedAt:           acc.UpdatedAt,
	}
}

// --- Handler ---

// AccountHandler implements the /v1/accounts route group.
type AccountHandler struct {
	service     AccountService
	usageReader AccountUsageReader
	validator   *core.Validator
	logger      *slog.Logger
}

// NewAccountHandler creates the account handler.
func NewAccountHandler(svc AccountService, usageReader AccountUsageReader, v *core.Validator, l *slog.Logger) *AccountHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AccountHandler{
		service:     svc,
		usageReader: usageReader,
		validator:   v,
		logger:      l,
	}
}

// RegisterRoutes mounts the account routes on the provided chi.Router.
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.Create)

		r.Route("/{accountID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
			r.Put("/business", h.UpdateBusinessInformation)
			r.Get("/subscription-status", h.GetSubscriptionStatus)
		})
	})
}

// Create handles POST /v1/accounts. Provisions the account and its
// subscription (Free tier unless a signup tier is requested) and returns 201.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	acc, sub, err := h.service.Create(r.Context(), account.CreateParams{
		BusinessName:        req.BusinessName,
		BusinessInformation: req.BusinessInformation,
		Tier:                req.Tier,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: toAccountResponse(acc, sub)})
}

// Get handles GET /v1/accounts/{accountID}.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	acc, sub, err := h.service.Get(r.Context(), accountID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: toAccountResponse(acc, sub)})
}

// Update handles PATCH /v1/accounts/{accountID}. Partial profile update;
// the subscription is untouched.
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req UpdateAccountRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	acc, err := h.service.Update(r.Context(), accountID, account.UpdateParams{
		BusinessName:        req.BusinessName,
		BusinessInformation: req.BusinessInformation,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: toAccountResponse(acc, nil)})
}

// UpdateBusinessInformation handles PUT /v1/accounts/{accountID}/business.
// The body carries the account id redundantly; a mismatch with the route id
// is rejected before the service is invoked.
func (h *AccountHandler) UpdateBusinessInformation(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req UpdateBusinessInfoRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.AccountID != accountID {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationIDMismatch,
			"body account_id does not match the route account id", nil,
			map[string]any{"route_id": accountID, "body_id": req.AccountID}))
		return
	}

	acc, err := h.service.UpdateBusinessInformation(r.Context(), accountID, req.BusinessInformation)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: toAccountResponse(acc, nil)})
}

// Delete handles DELETE /v1/accounts/{accountID}. Refused while the
// subscription is Active on a paid tier; returns 204 on success.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	if err := h.service.Delete(r.Context(), accountID); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSubscriptionStatus handles GET /v1/accounts/{accountID}/subscription-status.
// Returns the subscription summary plus the usage evaluation for its current
// tier.
func (h *AccountHandler) GetSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	sub, report, err := h.usageReader.GetUsageStatusByAccount(r.Context(), accountID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: SubscriptionStatusResponse{
		Subscription: *toSubscriptionSummary(sub),
		Usage:        report,
	}})
}
