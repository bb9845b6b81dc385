package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stashbox/internal/core"
	"stashbox/internal/types"
)

// SubscriptionService defines the lifecycle operations used by this handler.
type SubscriptionService interface {
	Get(ctx context.Context, subscriptionID string) (*types.Subscription, error)
	Upgrade(ctx context.Context, subscriptionID string, target types.PlanTier) (*types.Subscription, error)
	Downgrade(ctx context.Context, subscriptionID string, target types.PlanTier) (*types.Subscription, error)
	Cancel(ctx context.Context, subscriptionID string) (*types.Subscription, error)
	GetUsageStatus(ctx context.Context, subscriptionID string) (*types.Subscription, *types.UsageStatusReport, error)
	RecordUsage(ctx context.Context, subscriptionID string, values map[types.Metric]int64) (*types.Subscription, *types.UsageStatusReport, error)
}

// --- Request/Response Models ---

// ChangeTierRequest is the request body for the upgrade and downgrade routes.
type ChangeTierRequest struct {
	Tier types.PlanTier `json:"tier" validate:"required,plan_tier"`
}

// RecordUsageRequest is the request body for PUT /v1/subscriptions/{id}/usage.
// Values are absolute counters replacing the stored ones, not deltas.
type RecordUsageRequest struct {
	Usage map[types.Metric]int64 `json:"usage" validate:"required,min=1"`
}

// SubscriptionResponse is the full subscription response shape.
type SubscriptionResponse struct {
	ID                  string                  `json:"id"`
	AccountID           string                  `json:"account_id"`
	PlanTier            types.PlanTier          `json:"plan_tier"`
	State               types.SubscriptionState `json:"state"`
	Usage               types.UsageSnapshot     `json:"usage"`
	BillingPeriodAnchor time.Time               `json:"billing_period_anchor"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

// UsageResponse pairs the stored snapshot with its evaluation.
type UsageResponse struct {
	SubscriptionID string                   `json:"subscription_id"`
	PlanTier       types.PlanTier           `json:"plan_tier"`
	State          types.SubscriptionState  `json:"state"`
	Usage          types.UsageSnapshot      `json:"usage"`
	Status         *types.UsageStatusReport `json:"status"`
}

func toSubscriptionResponse(sub *types.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                  sub.ID,
		AccountID:           sub.AccountID,
		PlanTier:            sub.PlanTier,
		State:               sub.State,
		Usage:               sub.Usage,
		BillingPeriodAnchor: sub.BillingPeriodAnchor,
		CreatedAt:           sub.CreatedAt,
		UpdatedAt:           sub.UpdatedAt,
	}
}

func toUsageResponse(sub *types.Subscription, report *types.UsageStatusReport) UsageResponse {
	return UsageResponse{
		SubscriptionID: sub.ID,
		PlanTier:       sub.PlanTier,
		State:          sub.State,
		Usage:          sub.Usage,
		Status:         report,
	}
}

// --- Handler ---

// SubscriptionHandler implements the /v1/subscriptions route group.
type SubscriptionHandler struct {
	service   SubscriptionService
	validator *core.Validator
	logger    *slog.Logger
}

// NewSubscriptionHandler creates the subscription handler.
func NewSubscriptionHandler(svc SubscriptionService, v *core.Validator, l *slog.Logger) *SubscriptionHandler {
	if l == nil {
		l = slog.Default()
	}
	return &SubscriptionHandler{
		service:   svc,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the subscription routes on the provided chi.Router.
func (h *SubscriptionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/subscriptions/{subscriptionID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Get("/usage", h.GetUsage)
		r.Put("/usage", h.RecordUsage)
		r.Post("/upgrade", h.Upgrade)
		r.Post("/downgrade", h.Downgrade)
		r.Post("/cancel", h.Cancel)
	})
}

// Get handles GET /v1/subscriptions/{subscriptionID}.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	subscriptionID := chi.URLParam(r, "subscriptionID")

	sub, err := h.service.Get(r.Context(), subscriptionID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: toSubscriptionResponse(sub)})
}

// GetUsage handles GET /v1/subscriptions/{subscriptionID}/usage.
func (h *SubscriptionHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	subscriptionID := chi.URLParam(r, "subscriptionID")

	sub, report, err := h.service.GetUsageStatus(r.Context(), subscriptionID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: toUsageResponse(sub, report)})
}

// RecordUsage handles PUT /v1/subscriptions/{subscriptionID}/usage.
func (h *SubscriptionHandler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	subscriptionID := chi.URLParam(r, "subscriptionID")

	var req RecordUsageRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	sub, report, err := h.service.RecordUsage(r.Context(), subscriptionID, req.Usage)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: toUsageResponse(sub, report)})
}

// Upgrade handles POST /v1/subscriptions/{subscriptionID}/upgrade.
func (h *SubscriptionHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	h.changeTier(w, r, h.service.Upgrade)
}

// Downgrade handles POST /v1/subscriptions/{subscriptionID}/downgrade.
func (h *SubscriptionHandler) Downgrade(w http.ResponseWriter, r *http.Request) {
	h.changeTier(w, r, h.service.Downgrade)
}

func (h *SubscriptionHandler) changeTier(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string, target types.PlanTier) (*types.Subscription, error)) {
	subscriptionID := chi.URLParam(r, "subscriptionID")

	var req ChangeTierRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	sub, err := op(r.Context(), subscriptionID, req.Tier)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: toSubscriptionResponse(sub)})
}

// Cancel handles POST /v1/subscriptions/{subscriptionID}/cancel. No body;
// cancellation is not idempotent and a second cancel is a conflict.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	subscriptionID := chi.URLParam(r, "subscriptionID")

	sub, err := h.service.Cancel(r.Context(), subscriptionID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: toSubscriptionResponse(sub)})
}
