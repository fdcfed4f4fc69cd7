// Package api exposes the CRM and campaign REST surface. Handlers resolve
// the tenant from the request context, delegate to the services, and map
// service errors onto HTTP status codes.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ignite/pulsemail/internal/auth"
	"github.com/ignite/pulsemail/internal/domain"
	"github.com/ignite/pulsemail/internal/pkg/httputil"
	"github.com/ignite/pulsemail/internal/repository/postgres"
	"github.com/ignite/pulsemail/internal/service/campaign"
	"github.com/ignite/pulsemail/internal/service/contact"
	"github.com/ignite/pulsemail/internal/template"
)

// TemplateStore is the persistence surface the template handlers use.
type TemplateStore interface {
	Get(ctx context.Context, userID, id string) (*domain.Template, error)
	List(ctx context.Context, userID string) ([]domain.Template, error)
	Create(ctx context.Context, t *domain.Template) (string, error)
	Update(ctx context.Context, userID, id string, u postgres.TemplateUpdate) error
	Delete(ctx context.Context, userID, id string) error
}

// DashboardStore aggregates the overview numbers.
type DashboardStore interface {
	Stats(ctx context.Context, userID string) (*postgres.DashboardStats, error)
}

// LogStore lists a campaign's per-recipient delivery rows.
type LogStore interface {
	ListByCampaign(ctx context.Context, campaignID, runID string, limit, offset int) ([]domain.EmailLog, error)
}

// Handlers carries the services behind the REST surface.
type Handlers struct {
	campaigns *campaign.Service
	contacts  *contact.Service
	templates TemplateStore
	dashboard DashboardStore
	logs      LogStore
	engine    *template.Engine
}

// NewHandlers wires the handler set.
func NewHandlers(campaigns *campaign.Service, contacts *contact.Service,
	templates TemplateStore, dashboard DashboardStore, logs LogStore,
	engine *template.Engine) *Handlers {
	return &Handlers{
		campaigns: campaigns,
		contacts:  contacts,
		templates: templates,
		dashboard: dashboard,
		logs:      logs,
		engine:    engine,
	}
}

func userID(r *http.Request) string { return auth.UserID(r.Context()) }

// serviceError maps service-layer errors onto HTTP responses. Not-found is
// 404, rejected input or lifecycle transitions are 400, duplicates are 409.
// Anything unrecognized is a store or transport failure and returns a 500
// carrying the underlying message in details.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound),
		errors.Is(err, contact.ErrNotFound),
		errors.Is(err, contact.ErrDuplicateNotFound),
		errors.Is(err, postgres.ErrTemplateNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, contact.ErrEmailExists):
		httputil.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, contact.ErrSelfMerge),
		errors.Is(err, campaign.ErrNoTemplate),
		errors.Is(err, campaign.ErrNoRecipients):
		httputil.BadRequest(w, err.Error())
	default:
		var ise *campaign.InvalidStateError
		if errors.As(err, &ise) {
			httputil.BadRequest(w, ise.Error())
			return
		}
		httputil.StoreError(w, "operation failed", err)
	}
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// HandleDashboardStats returns the tenant's overview aggregates.
func (h *Handlers) HandleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context(), userID(r))
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, stats)
}
