package httpapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/EduShopX/edushop/internal/httputil"
	"github.com/EduShopX/edushop/pkg/admin"
)

//go:embed openapi.yaml
var openapiYAML []byte

const recentAuditEntries = 10

var (
	openapiOnce sync.Once
	openapiJSON []byte
	openapiErr  error
)

// OpenAPIJSON returns the embedded API description converted to JSON.
func OpenAPIJSON() ([]byte, error) {
	openapiOnce.Do(func() {
		var doc map[string]interface{}
		if err := yaml.Unmarshal(openapiYAML, &doc); err != nil {
			openapiErr = fmt.Errorf("parse openapi.yaml: %w", err)
			return
		}
		openapiJSON, openapiErr = json.Marshal(doc)
	})
	return openapiJSON, openapiErr
}

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>EduShop API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({url: "/swagger/openapi.json", dom_id: "#swagger-ui"});
  </script>
</body>
</html>
`

func (h *handler) registerDocs(router *mux.Router) {
	router.HandleFunc("/swagger/", h.swaggerUI).Methods(http.MethodGet)
	router.HandleFunc("/swagger/openapi.json", h.openapi).Methods(http.MethodGet)
	router.HandleFunc("/swagger/openapi.yaml", h.openapiSource).Methods(http.MethodGet)
}

func (h *handler) swaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(swaggerPage))
}

func (h *handler) openapi(w http.ResponseWriter, r *http.Request) {
	body, err := OpenAPIJSON()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (h *handler) openapiSource(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapiYAML)
}

func (h *handler) apiIndex(w http.ResponseWriter, r *http.Request) {
	base := requestScheme(r) + "://" + r.Host + "/api/"
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"account":    base + "account/",
		"auth":       base + "auth/",
		"management": base + "management/",
		"teachers":   base + "teachers/me/courses/",
		"store":      base + "store/",
		"user":       base + "user/",
		"blog":       base + "blog/",
		"buy":        base + "buy/",
		"reports":    base + "reports/",
		"shortlinks": base + "shortlinks/",
		"chat":       base + "chat/room/",
		"docs":       requestScheme(r) + "://" + r.Host + "/swagger/",
	})
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// healthz runs every probe with a short deadline. Any failure turns the
// report unhealthy and the status 503.
func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.opts.Probes))
	for name := range h.opts.Probes {
		names = append(names, name)
	}
	sort.Strings(names)

	report := healthReport{Status: "ok", Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := h.opts.Probes[name](ctx); err != nil {
			report.Status = "unhealthy"
			report.Checks[name] = err.Error()
			h.log.WithContext(ctx).WithError(err).WithField("dependency", name).Warn("health probe failed")
			continue
		}
		report.Checks[name] = "ok"
	}
	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, report)
}

func (h *handler) adminOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := h.collectCounts(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	recent, err := h.app.Audit.List(ctx, recentAuditEntries)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	overview := admin.Overview{
		Counts:        counts,
		RecentAudit:   recent,
		StartedAt:     h.started.UTC(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if h.opts.Connections != nil {
		overview.Websockets = h.opts.Connections()
	}
	httputil.WriteJSON(w, http.StatusOK, overview)
}

func (h *handler) collectCounts(ctx context.Context) (admin.Counts, error) {
	var c admin.Counts
	students, err := h.app.Accounts.ListStudents(ctx)
	if err != nil {
		return c, err
	}
	c.Students = len(students)
	teachers, err := h.app.Accounts.ListTeachers(ctx, "")
	if err != nil {
		return c, err
	}
	c.Teachers = len(teachers)
	courses, err := h.app.Catalog.ListCourses(ctx)
	if err != nil {
		return c, err
	}
	c.Courses = len(courses)
	enrollments, err := h.app.Catalog.ListEnrollments(ctx)
	if err != nil {
		return c, err
	}
	c.Enrollments = len(enrollments)
	books, err := h.app.Shop.ListBooks(ctx)
	if err != nil {
		return c, err
	}
	c.Books = len(books)
	orders, err := h.app.Shop.ListOrders(ctx, "")
	if err != nil {
		return c, err
	}
	c.Orders = len(orders)
	articles, err := h.app.Blog.ListAllArticles(ctx)
	if err != nil {
		return c, err
	}
	c.Articles = len(articles)
	comments, err := h.app.Blog.ListAllComments(ctx)
	if err != nil {
		return c, err
	}
	c.Comments = len(comments)
	rooms, err := h.app.Chat.ListRooms(ctx)
	if err != nil {
		return c, err
	}
	c.ChatRooms = len(rooms)
	blocked, err := h.app.Blocklist.List(ctx)
	if err != nil {
		return c, err
	}
	c.BlockedIPs = len(blocked)
	return c, nil
}

func (h *handler) systemStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	httputil.WriteJSON(w, http.StatusOK, admin.CollectSystem(ctx, ""))
}
