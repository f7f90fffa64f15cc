package httpapi

import (
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/EduShopX/edushop/internal/httputil"
)

type shortLinkRequest struct {
	Model    string `json:"model"`
	ObjectID int64  `json:"object_id"`
}

func (h *handler) registerShortLinkRoutes(api *mux.Router) {
	api.Handle("/shortlinks/create/", authed(h.createShortLink)).Methods(http.MethodPost)
	api.HandleFunc("/shortlinks/s/{code}/", h.followShortLink).Methods(http.MethodGet)
	api.Handle("/shortlinks/{code}/stats/", authed(h.shortLinkStats)).Methods(http.MethodGet)
}

func (h *handler) createShortLink(w http.ResponseWriter, r *http.Request) {
	var in shortLinkRequest
	if !h.decode(w, r, &in) {
		return
	}
	link, err := h.app.ShortLinks.Create(r.Context(), in.Model, in.ObjectID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	short := url.URL{Scheme: requestScheme(r), Host: r.Host, Path: "/api/shortlinks/s/" + link.Code + "/"}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"short_url": short.String()})
}

func (h *handler) shortLinkStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.ShortLinks.Stats(r.Context(), mux.Vars(r)["code"])
	write(h, w, r, http.StatusOK, stats, err)
}

// followShortLink redirects to the target page; the click is counted by a
// background task.
func (h *handler) followShortLink(w http.ResponseWriter, r *http.Request) {
	target, err := h.app.ShortLinks.Resolve(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		return "https"
	}
	return "http"
}
