// Package httpapi exposes the application over REST. Routes follow the
// /api/ layout of the public contract; every collection and detail path
// ends with a slash.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/EduShopX/edushop/internal/app"
	"github.com/EduShopX/edushop/internal/app/metrics"
	"github.com/EduShopX/edushop/internal/auth"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/httputil"
	"github.com/EduShopX/edushop/internal/middleware"
	"github.com/EduShopX/edushop/pkg/logger"
)

// DefaultPageSize is the page length of paginated lists.
const DefaultPageSize = 30

// Probe reports the health of one dependency.
type Probe func(ctx context.Context) error

// Options carry the HTTP-only collaborators of the handler.
type Options struct {
	// Realtime serves /ws/support/{room_id}/ when set.
	Realtime http.Handler
	// Connections reports open websockets for the admin overview.
	Connections    func() int
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
	// IPResolver picks the client address for the blocklist; nil trusts
	// no forwarding header.
	IPResolver *middleware.IPResolver
	PageSize   int
	// Probes are checked by /healthz, keyed by dependency name.
	Probes map[string]Probe
	Log    *logger.Logger
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app      *app.Application
	opts     Options
	log      *logger.Logger
	pageSize int
	started  time.Time
}

// NewHandler returns the full HTTP surface: /api/, /swagger/, /admin/,
// /metrics, /healthz and the websocket endpoint.
func NewHandler(application *app.Application, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	h := &handler{app: application, opts: opts, log: log, pageSize: pageSize, started: time.Now()}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteDetail(w, http.StatusNotFound, "Not found.")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteDetail(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %q not allowed.", r.Method))
	})
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.LoggingMiddleware(log),
		metrics.InstrumentHandler,
		middleware.NewAuthMiddleware(application.Tokens, log.Named("auth"), []string{"/ws/"}).
			WithPrincipals(application.Accounts).Handler,
	)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	h.registerDocs(router)
	router.Handle("/admin/", adminOnly(h.adminOverview)).Methods(http.MethodGet)
	if opts.Realtime != nil {
		router.Handle("/ws/support/{room_id:[0-9]+}/", opts.Realtime).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.BlocklistMiddleware(application.Blocklist, opts.IPResolver, log.Named("blocklist")))
	if opts.RateLimiter != nil {
		api.Use(opts.RateLimiter.Handler)
	}
	api.HandleFunc("/", h.apiIndex).Methods(http.MethodGet)

	h.registerAuthRoutes(api)
	h.registerManagementRoutes(api)
	h.registerCatalogRoutes(api)
	h.registerBlogRoutes(api)
	h.registerShopRoutes(api)
	h.registerReportRoutes(api)
	h.registerShortLinkRoutes(api)
	h.registerChatRoutes(api)

	return middleware.NewCORSMiddleware(opts.AllowedOrigins).Handler(router)
}

func guard(g middleware.Guard, fn http.HandlerFunc) http.Handler {
	return middleware.Require(g)(fn)
}

func authed(fn http.HandlerFunc) http.Handler    { return guard(middleware.IsAuthenticated, fn) }
func adminOnly(fn http.HandlerFunc) http.Handler { return guard(middleware.IsAdmin, fn) }
func teacherOnly(fn http.HandlerFunc) http.Handler {
	return guard(middleware.IsTeacher, fn)
}
func nonAdmin(fn http.HandlerFunc) http.Handler { return guard(middleware.NotAdmin, fn) }

// principal returns the authenticated caller. Guards run first, so handlers
// behind them always see one.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

// pathID parses a numeric route variable. Routes constrain ids to digits,
// so a failure means the id overflowed.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Missing("Not found.")
	}
	return id, nil
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := httputil.DecodeJSON(r.Body, dst); err != nil {
		h.writeError(w, r, err)
		return false
	}
	return true
}

// writeError renders err and logs server-side failures with the request
// trace id.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	se := httputil.Classify(err)
	if se.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}
	httputil.WriteErrorResponse(w, se.HTTPStatus, string(se.Code), se.Message, se.Details)
}

// Page is the paginated list envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// paginate slices items for the ?page= of r. It fails only for a page
// number that is malformed or past the end.
func paginate[T any](r *http.Request, items []T, size int) (Page[T], error) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Page[T]{}, apperrors.Missing("Invalid page.")
		}
		page = n
	}
	start := (page - 1) * size
	if start > 0 && start >= len(items) {
		return Page[T]{}, apperrors.Missing("Invalid page.")
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	out := Page[T]{Count: len(items), Results: items[start:end]}
	if out.Results == nil {
		out.Results = []T{}
	}
	if end < len(items) {
		next := pageURL(r, page+1)
		out.Next = &next
	}
	if page > 1 {
		prev := pageURL(r, page-1)
		out.Previous = &prev
	}
	return out, nil
}

func pageURL(r *http.Request, page int) string {
	q := r.URL.Query()
	if page == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u := url.URL{Scheme: requestScheme(r), Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	return u.String()
}

func writePage[T any](h *handler, w http.ResponseWriter, r *http.Request, items []T, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := paginate(r, items, h.pageSize)
	if err != nil {
		httputil.WriteDetail(w, http.StatusNotFound, "Invalid page.")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

// writeList writes a whole list, as cached endpoints do.
func writeList[T any](h *handler, w http.ResponseWriter, r *http.Request, items []T, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

// write renders one object with status, or the error.
func write[T any](h *handler, w http.ResponseWriter, r *http.Request, status int, v T, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, status, v)
}

func (h *handler) noContent(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
