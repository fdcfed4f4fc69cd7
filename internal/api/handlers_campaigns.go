package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/pulsemail/internal/domain"
	"github.com/ignite/pulsemail/internal/pkg/httputil"
	"github.com/ignite/pulsemail/internal/service/campaign"
)

func (h *Handlers) HandleListCampaigns(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, 25, 100)
	rows, total, err := h.campaigns.List(r.Context(), userID(r), campaign.ListFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, NewPaginatedResponse(rows, p, int64(total)))
}

func (h *Handlers) HandleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) HandleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	if input.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}
	c, err := h.campaigns.Create(r.Context(), userID(r), input)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.Created(w, c)
}

// campaignUpdateRequest is the wire shape of a campaign update; absent
// fields stay untouched.
type campaignUpdateRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	FromName    *string   `json:"from_name"`
	FromEmail   *string   `json:"from_email"`
	TemplateID  *string   `json:"template_id"`
	TargetTags  *[]string `json:"target_tags"`
	ScheduledAt *string   `json:"scheduled_at"`
}

func (h *Handlers) HandleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignUpdateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	err := h.campaigns.Update(r.Context(), userID(r), chi.URLParam(r, "id"), campaign.UpdateFields{
		Name:        req.Name,
		Description: req.Description,
		FromName:    req.FromName,
		FromEmail:   req.FromEmail,
		TemplateID:  req.TemplateID,
		TargetTags:  req.TargetTags,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	c, err := h.campaigns.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) HandleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		serviceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// lifecycle transitions share one shape: POST, no body, campaign back.

func (h *Handlers) HandleStartCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.Start)
}

func (h *Handlers) HandlePauseCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.Pause)
}

func (h *Handlers) HandleResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.Resume)
}

func (h *Handlers) HandleRerunCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.Rerun)
}

func (h *Handlers) HandleDuplicateCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Duplicate(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.Created(w, c)
}

func (h *Handlers) transition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, userID, id string) (*domain.Campaign, error)) {
	c, err := op(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) HandleCampaignAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.campaigns.Analytics(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, a)
}

func (h *Handlers) HandleCampaignRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.campaigns.Runs(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"runs": runs})
}

// HandleCampaignLogs lists per-recipient delivery rows, optionally narrowed
// to one run via ?run_id=.
func (h *Handlers) HandleCampaignLogs(w http.ResponseWriter, r *http.Request) {
	// Tenant check happens through the campaign lookup.
	c, err := h.campaigns.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	p := ParsePagination(r, 100, 500)
	rows, err := h.logs.ListByCampaign(r.Context(), c.ID, r.URL.Query().Get("run_id"), p.Limit, p.Offset)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"logs": rows})
}
