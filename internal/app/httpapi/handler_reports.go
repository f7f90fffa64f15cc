package httpapi

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/EduShopX/edushop/internal/app/services/reports"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/httputil"
	"github.com/EduShopX/edushop/internal/middleware"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *handler) registerReportRoutes(api *mux.Router) {
	rep := api.PathPrefix("/reports").Subrouter()
	rep.Use(middleware.Require(middleware.IsAdmin))

	rep.HandleFunc("/user-stats/", h.userStats).Methods(http.MethodGet)
	rep.HandleFunc("/sales/", h.sales).Methods(http.MethodGet)
	rep.HandleFunc("/product-sales/", h.productSales).Methods(http.MethodGet)
	rep.HandleFunc("/order-status/", h.orderStatus).Methods(http.MethodGet)
	rep.HandleFunc("/chart/", h.salesChart).Methods(http.MethodGet)
	rep.HandleFunc("/top-teachers/", h.topTeachers).Methods(http.MethodGet)
	rep.HandleFunc("/new-users-last-30-days/", h.newUsers).Methods(http.MethodGet)
	rep.HandleFunc("/avg-payment-time/", h.avgPaymentTime).Methods(http.MethodGet)
	rep.HandleFunc("/daily-active-users/", h.dailyActiveUsers).Methods(http.MethodGet)

	rep.HandleFunc("/avg-order-value/", h.startAvgOrderValue).Methods(http.MethodGet)
	rep.HandleFunc("/avg-order-value/result/{task_id}/", h.avgOrderValueResult).Methods(http.MethodGet)
	rep.HandleFunc("/high-spender-email-excel/start/", h.startHighSpenderExport).Methods(http.MethodGet)
	rep.HandleFunc("/high-spender-email-excel/download/{task_id}/", h.downloadHighSpenderExport).Methods(http.MethodGet)

	rep.HandleFunc("/logs/", h.auditLog).Methods(http.MethodGet)
}

func (h *handler) userStats(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Reports.UserStats(r.Context())
	write(h, w, r, http.StatusOK, out, err)
}

func (h *handler) sales(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Reports.Sales(r.Context())
	write(h, w, r, http.StatusOK, out, err)
}

func (h *handler) productSales(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Reports.ProductSales(r.Context())
	write(h, w, r, http.StatusOK, out, err)
}

func (h *handler) orderStatus(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Reports.OrderStatus(r.Context())
	writeList(h, w, r, out, err)
}

func (h *handler) salesChart(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Reports.SalesChart(r.Context())
	write(h, w, r, http.StatusOK, out, err)
}

func (h *handler) topTeachers(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Reports.TopTeachers(r.Context())
	writeList(h, w, r, out, err)
}

func (h *handler) newUsers(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Reports.NewUsers(r.Context())
	write(h, w, r, http.StatusOK, out, err)
}

func (h *handler) avgPaymentTime(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Reports.AveragePaymentTime(r.Context())
	write(h, w, r, http.StatusOK, out, err)
}

func (h *handler) dailyActiveUsers(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Reports.DailyActiveUsers(r.Context())
	write(h, w, r, http.StatusOK, out, err)
}

func (h *handler) startAvgOrderValue(w http.ResponseWriter, r *http.Request) {
	taskID, err := h.app.Reports.StartAvgOrderValue(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"task_id": taskID})
}

func (h *handler) avgOrderValueResult(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Reports.AvgOrderValue(r.Context(), mux.Vars(r)["task_id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !out.Ready {
		writeTaskStatus(w, out)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]float64{"average_order_value": out.Value})
}

func (h *handler) startHighSpenderExport(w http.ResponseWriter, r *http.Request) {
	var threshold float64
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			h.writeError(w, r, apperrors.Validation("threshold", "A valid number is required."))
			return
		}
		threshold = v
	}
	taskID, err := h.app.Reports.StartHighSpenderExport(r.Context(), threshold)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"task_id": taskID})
}

func (h *handler) downloadHighSpenderExport(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Reports.HighSpenderExport(r.Context(), mux.Vars(r)["task_id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !out.Ready {
		writeTaskStatus(w, out)
		return
	}
	f, err := os.Open(out.Path)
	if err != nil {
		if os.IsNotExist(err) {
			h.writeError(w, r, apperrors.Missing("Export file is no longer available."))
			return
		}
		h.writeError(w, r, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="high_spenders.xlsx"`)
	http.ServeContent(w, r, "high_spenders.xlsx", info.ModTime(), f)
}

// writeTaskStatus answers a poll for a task that has not succeeded.
func writeTaskStatus(w http.ResponseWriter, out reports.Outcome) {
	body := map[string]string{"status": string(out.Status)}
	if out.Err != "" {
		body["error"] = out.Err
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

func (h *handler) auditLog(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Audit.List(r.Context(), 0)
	writePage(h, w, r, items, err)
}
