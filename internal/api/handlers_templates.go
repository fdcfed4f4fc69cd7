package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/pulsemail/internal/domain"
	"github.com/ignite/pulsemail/internal/pkg/httputil"
	"github.com/ignite/pulsemail/internal/repository/postgres"
)

func (h *Handlers) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	rows, err := h.templates.List(r.Context(), userID(r))
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"templates": rows})
}

func (h *Handlers) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.templates.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, t)
}

type templateRequest struct {
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	HTMLBody    string `json:"html_body"`
	TextBody    string `json:"text_body"`
	PreviewText string `json:"preview_text"`
}

func (h *Handlers) HandleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}
	// Reject broken syntax at save time, not at send time.
	if err := h.engine.Validate(req.Subject); err != nil {
		httputil.BadRequest(w, "invalid subject template: "+err.Error())
		return
	}
	if err := h.engine.Validate(req.HTMLBody); err != nil {
		httputil.BadRequest(w, "invalid html template: "+err.Error())
		return
	}

	t := &domain.Template{
		ID:          uuid.New().String(),
		UserID:      userID(r),
		Name:        req.Name,
		Subject:     req.Subject,
		HTMLBody:    req.HTMLBody,
		TextBody:    req.TextBody,
		PreviewText: req.PreviewText,
	}
	id, err := h.templates.Create(r.Context(), t)
	if err != nil {
		serviceError(w, err)
		return
	}
	t.ID = id
	httputil.Created(w, t)
}

func (h *Handlers) HandleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var u postgres.TemplateUpdate
	if !httputil.Decode(w, r, &u) {
		return
	}
	if u.Subject != nil {
		if err := h.engine.Validate(*u.Subject); err != nil {
			httputil.BadRequest(w, "invalid subject template: "+err.Error())
			return
		}
	}
	if u.HTMLBody != nil {
		if err := h.engine.Validate(*u.HTMLBody); err != nil {
			httputil.BadRequest(w, "invalid html template: "+err.Error())
			return
		}
	}

	id := chi.URLParam(r, "id")
	if err := h.templates.Update(r.Context(), userID(r), id, u); err != nil {
		serviceError(w, err)
		return
	}
	t, err := h.templates.Get(r.Context(), userID(r), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, t)
}

func (h *Handlers) HandleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		serviceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// HandlePreviewTemplate renders a template body against sample data without
// persisting anything.
func (h *Handlers) HandlePreviewTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject  string                 `json:"subject"`
		HTMLBody string                 `json:"html_body"`
		Sample   map[string]interface{} `json:"sample"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Sample == nil {
		req.Sample = map[string]interface{}{
			"email":      "jordan@example.com",
			"first_name": "Jordan",
			"last_name":  "Lee",
			"company":    "Example Co",
		}
	}

	subject, err := h.engine.Render("", req.Subject, req.Sample)
	if err != nil {
		httputil.BadRequest(w, "subject: "+err.Error())
		return
	}
	body, err := h.engine.Render("", req.HTMLBody, req.Sample)
	if err != nil {
		httputil.BadRequest(w, "html_body: "+err.Error())
		return
	}
	httputil.OK(w, map[string]string{"subject": subject, "html_body": body})
}
