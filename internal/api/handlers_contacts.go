package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/pulsemail/internal/domain"
	"github.com/ignite/pulsemail/internal/pkg/httputil"
	"github.com/ignite/pulsemail/internal/service/contact"
)

func (h *Handlers) HandleListContacts(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, 50, 200)
	q := r.URL.Query()
	rows, total, err := h.contacts.List(r.Context(), userID(r), contact.ListFilter{
		Search: q.Get("search"),
		Status: domain.ContactStatus(q.Get("status")),
		Tag:    q.Get("tag"),
		ListID: q.Get("list_id"),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, NewPaginatedResponse(rows, p, int64(total)))
}

func (h *Handlers) HandleGetContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.contacts.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) HandleCreateContact(w http.ResponseWriter, r *http.Request) {
	var input contact.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	c, err := h.contacts.Create(r.Context(), userID(r), input)
	if err != nil {
		if strings.HasPrefix(err.Error(), "invalid email") {
			httputil.BadRequest(w, err.Error())
			return
		}
		serviceError(w, err)
		return
	}
	httputil.Created(w, c)
}

func (h *Handlers) HandleUpdateContact(w http.ResponseWriter, r *http.Request) {
	var u contact.UpdateFields
	if !httputil.Decode(w, r, &u) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.contacts.Update(r.Context(), userID(r), id, u); err != nil {
		if strings.HasPrefix(err.Error(), "invalid email") {
			httputil.BadRequest(w, err.Error())
			return
		}
		serviceError(w, err)
		return
	}
	c, err := h.contacts.Get(r.Context(), userID(r), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) HandleDeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := h.contacts.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		serviceError(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *Handlers) HandleContactActivities(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	acts, err := h.contacts.Activities(r.Context(), userID(r), chi.URLParam(r, "id"), limit)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"activities": acts})
}

func (h *Handlers) HandleAddContactNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.contacts.AddNote(r.Context(), userID(r), chi.URLParam(r, "id"), req.Title, req.Description); err != nil {
		serviceError(w, err)
		return
	}
	httputil.Created(w, map[string]string{"status": "created"})
}

func (h *Handlers) HandleBulkContacts(w http.ResponseWriter, r *http.Request) {
	var input contact.BulkInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	n, err := h.contacts.Bulk(r.Context(), userID(r), input)
	if err != nil {
		// Bulk validation failures are plain errors, not sentinels.
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.OK(w, map[string]interface{}{"affected": n})
}

func (h *Handlers) HandleMergeContacts(w http.ResponseWriter, r *http.Request) {
	var input contact.MergeInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	c, err := h.contacts.Merge(r.Context(), userID(r), input)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, c)
}

// HandleImportContacts ingests a CSV upload. The multipart form carries the
// file under "file", an optional JSON column mapping under "mapping", and an
// optional "list_id".
func (h *Handlers) HandleImportContacts(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	var mapping map[string]string
	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			httputil.BadRequest(w, "invalid mapping: "+err.Error())
			return
		}
	}

	result, err := h.contacts.ImportCSV(r.Context(), userID(r), file, mapping, r.FormValue("list_id"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.OK(w, result)
}

func (h *Handlers) HandleListDuplicates(w http.ResponseWriter, r *http.Request) {
	status := domain.DuplicateStatus(r.URL.Query().Get("status"))
	dups, err := h.contacts.Duplicates(r.Context(), userID(r), status)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"duplicates": dups})
}

func (h *Handlers) HandleScanDuplicates(w http.ResponseWriter, r *http.Request) {
	n, err := h.contacts.ScanDuplicates(r.Context(), userID(r))
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"found": n})
}

func (h *Handlers) HandleIgnoreDuplicate(w http.ResponseWriter, r *http.Request) {
	if err := h.contacts.IgnoreDuplicate(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "ignored"})
}

func (h *Handlers) HandleMergeDuplicate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MergeStrategy domain.MergeStrategy `json:"merge_strategy"`
	}
	// Body is optional; default strategy applies.
	_ = json.NewDecoder(r.Body).Decode(&req)

	c, err := h.contacts.MergeDuplicate(r.Context(), userID(r), chi.URLParam(r, "id"), req.MergeStrategy)
	if err != nil {
		serviceError(w, err)
		return
	}
	httputil.OK(w, c)
}
