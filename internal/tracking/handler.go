package tracking

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/pulsemail/internal/pkg/logger"
	engagement "github.com/ignite/pulsemail/internal/service/tracking"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the beacon endpoints. Every path always answers the email
// reader (pixel or redirect) no matter what the tracker did; errors are
// logged, never surfaced.
type Handler struct {
	svc     *engagement.Service
	links   *LinkBuilder
	siteURL string
}

// NewHandler creates the beacon handler. siteURL is the redirect fallback
// and the confirmation page host.
func NewHandler(svc *engagement.Service, links *LinkBuilder, siteURL string) *Handler {
	return &Handler{svc: svc, links: links, siteURL: siteURL}
}

// Routes returns the tracking router. The signed forms carry ids in the
// path; the bare query forms exist for pixel/link templates built elsewhere.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/track/open", h.HandleOpen)
	r.Get("/track/open/{data}/{sig}", h.HandleOpenSigned)
	r.Get("/track/click", h.HandleClick)
	r.Get("/track/click/{data}/{sig}", h.HandleClickSigned)
	r.Get("/unsubscribe", h.HandleUnsubscribe)
	r.Get("/track/unsubscribe/{data}/{sig}", h.HandleUnsubscribeSigned)
	r.Get("/health", h.HandleHealth)
	return r
}

// HandleOpen processes GET /track/open?cid=&uid=.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	h.trackOpen(w, r, r.URL.Query().Get("cid"), r.URL.Query().Get("uid"))
}

// HandleOpenSigned processes the signed pixel URL form.
func (h *Handler) HandleOpenSigned(w http.ResponseWriter, r *http.Request) {
	cid, uid, _, ok := h.links.Decode(chi.URLParam(r, "data"), chi.URLParam(r, "sig"))
	if !ok {
		h.servePixel(w)
		return
	}
	h.trackOpen(w, r, cid, uid)
}

func (h *Handler) trackOpen(w http.ResponseWriter, r *http.Request, cid, uid string) {
	if err := h.svc.TrackOpen(r.Context(), cid, uid); err != nil {
		logger.Warn("track open", "campaign_id", cid, "contact_id", uid, "error", err)
	}
	h.servePixel(w)
}

// HandleClick processes GET /track/click?cid=&uid=&url=.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.trackClick(w, r, q.Get("cid"), q.Get("uid"), q.Get("url"))
}

// HandleClickSigned processes the signed redirect URL form.
func (h *Handler) HandleClickSigned(w http.ResponseWriter, r *http.Request) {
	cid, uid, dest, ok := h.links.Decode(chi.URLParam(r, "data"), chi.URLParam(r, "sig"))
	if !ok {
		// Unverifiable link: redirect somewhere safe, track nothing.
		h.trackClick(w, r, "", "", "")
		return
	}
	h.trackClick(w, r, cid, uid, dest)
}

func (h *Handler) trackClick(w http.ResponseWriter, r *http.Request, cid, uid, rawURL string) {
	dest, err := h.svc.TrackClick(r.Context(), cid, uid, rawURL, h.siteURL)
	if err != nil {
		logger.Warn("track click", "campaign_id", cid, "contact_id", uid, "error", err)
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

// HandleUnsubscribe processes GET /unsubscribe?campaign=&contact=.
func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.unsubscribe(w, r, q.Get("campaign"), q.Get("contact"))
}

// HandleUnsubscribeSigned processes the signed one-click unsubscribe form.
func (h *Handler) HandleUnsubscribeSigned(w http.ResponseWriter, r *http.Request) {
	cid, uid, _, ok := h.links.Decode(chi.URLParam(r, "data"), chi.URLParam(r, "sig"))
	if !ok {
		http.Redirect(w, r, h.confirmationURL(), http.StatusFound)
		return
	}
	h.unsubscribe(w, r, cid, uid)
}

func (h *Handler) unsubscribe(w http.ResponseWriter, r *http.Request, cid, uid string) {
	if err := h.svc.Unsubscribe(r.Context(), cid, uid); err != nil {
		logger.Warn("unsubscribe", "campaign_id", cid, "contact_id", uid, "error", err)
	}
	http.Redirect(w, r, h.confirmationURL(), http.StatusFound)
}

func (h *Handler) confirmationURL() string {
	if h.siteURL == "" {
		return "/unsubscribed"
	}
	return h.siteURL + "/unsubscribed"
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Content-Length", strconv.Itoa(len(pixelGIF)))
	w.WriteHeader(http.StatusOK)
	w.Write(pixelGIF)
}
