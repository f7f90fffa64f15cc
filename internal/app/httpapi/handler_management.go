package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/domain/shop"
	"github.com/EduShopX/edushop/internal/app/services/accounts"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/httputil"
	"github.com/EduShopX/edushop/internal/middleware"
)

type adminEnrollRequest struct {
	User   int64 `json:"user"`
	Course int64 `json:"course"`
}

type orderStatusRequest struct {
	Status shop.OrderStatus `json:"status"`
}

type massEmailRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type blockRequest struct {
	IP     string `json:"ip_addr"`
	Reason string `json:"reason"`
}

type messageRequest struct {
	Content string `json:"content"`
}

func (h *handler) registerManagementRoutes(api *mux.Router) {
	m := api.PathPrefix("/management").Subrouter()
	m.Use(middleware.Require(middleware.IsAdmin))

	m.HandleFunc("/uni/students/", h.listStudents).Methods(http.MethodGet)
	m.HandleFunc("/uni/students/", h.createAccountElsewhere("student")).Methods(http.MethodPost)
	m.HandleFunc("/uni/students/{id:[0-9]+}/", h.getStudent).Methods(http.MethodGet)
	m.HandleFunc("/uni/students/{id:[0-9]+}/", h.updateStudent).Methods(http.MethodPut, http.MethodPatch)
	m.HandleFunc("/uni/students/{id:[0-9]+}/", h.deleteStudent).Methods(http.MethodDelete)

	m.HandleFunc("/uni/teachers/", h.listTeachers).Methods(http.MethodGet)
	m.HandleFunc("/uni/teachers/", h.createAccountElsewhere("teacher")).Methods(http.MethodPost)
	m.HandleFunc("/uni/teachers/{id:[0-9]+}/", h.getTeacher).Methods(http.MethodGet)
	m.HandleFunc("/uni/teachers/{id:[0-9]+}/", h.updateTeacher).Methods(http.MethodPut, http.MethodPatch)
	m.HandleFunc("/uni/teachers/{id:[0-9]+}/", h.deleteTeacher).Methods(http.MethodDelete)

	m.HandleFunc("/uni/universities/", h.createUniversity).Methods(http.MethodPost)
	m.HandleFunc("/uni/education-studies/", h.createEducationStudy).Methods(http.MethodPost)

	h.registerCourseRoutes(m.PathPrefix("/uni/courses").Subrouter())

	m.HandleFunc("/enrollments/", h.listAllEnrollments).Methods(http.MethodGet)
	m.HandleFunc("/enrollments/", h.adminEnroll).Methods(http.MethodPost)
	m.HandleFunc("/enrollments/{id:[0-9]+}/", h.getEnrollment).Methods(http.MethodGet)
	m.HandleFunc("/enrollments/{id:[0-9]+}/", h.deleteEnrollment).Methods(http.MethodDelete)

	m.HandleFunc("/articles/", h.listAllArticles).Methods(http.MethodGet)
	m.HandleFunc("/comments/", h.listAllComments).Methods(http.MethodGet)
	h.registerArticleDetail(m.PathPrefix("/articles").Subrouter())
	h.registerCommentDetail(m.PathPrefix("/comments").Subrouter())

	m.HandleFunc("/books/", h.listBooks).Methods(http.MethodGet)
	m.HandleFunc("/books/", h.createBook).Methods(http.MethodPost)
	m.HandleFunc("/books/{id:[0-9]+}/", h.getBook).Methods(http.MethodGet)
	m.HandleFunc("/books/{id:[0-9]+}/", h.updateBook).Methods(http.MethodPut, http.MethodPatch)
	m.HandleFunc("/books/{id:[0-9]+}/", h.deleteBook).Methods(http.MethodDelete)

	m.HandleFunc("/orders/", h.listAllOrders).Methods(http.MethodGet)
	m.HandleFunc("/orders/{id:[0-9]+}/", h.getOrder).Methods(http.MethodGet)
	m.HandleFunc("/orders/{id:[0-9]+}/", h.setOrderStatus).Methods(http.MethodPut, http.MethodPatch)

	m.HandleFunc("/chat/rooms/", h.listAllRooms).Methods(http.MethodGet)
	m.HandleFunc("/chat/room/{id:[0-9]+}/admin_messages/", h.listRoomMessages).Methods(http.MethodGet)
	m.HandleFunc("/chat/room/{id:[0-9]+}/admin_messages/", h.postRoomMessage).Methods(http.MethodPost)

	m.HandleFunc("/email/send/", h.sendMassEmail).Methods(http.MethodPost)
	m.HandleFunc("/email/status/{task_id}/", h.massEmailStatus).Methods(http.MethodGet)

	m.HandleFunc("/blocklist/", h.listBlocked).Methods(http.MethodGet)
	m.HandleFunc("/blocklist/", h.addBlocked).Methods(http.MethodPost)
	m.HandleFunc("/blocklist/{id:[0-9]+}/", h.removeBlocked).Methods(http.MethodDelete)

	m.HandleFunc("/system/", h.systemStats).Methods(http.MethodGet)
}

// createAccountElsewhere answers POST on the profile collections, which
// cannot create accounts.
func (h *handler) createAccountElsewhere(kind string) http.HandlerFunc {
	msg := "create account in address /api/account/register/" + kind + "/"
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteDetail(w, http.StatusMethodNotAllowed, msg)
	}
}

func (h *handler) listStudents(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Accounts.ListStudents(r.Context())
	writePage(h, w, r, items, err)
}

func (h *handler) getStudent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.app.Accounts.GetStudent(r.Context(), id)
	write(h, w, r, http.StatusOK, view, err)
}

func (h *handler) updateStudent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var upd accounts.ProfileUpdate
	if !h.decode(w, r, &upd) {
		return
	}
	view, err := h.app.Accounts.UpdateStudent(r.Context(), id, upd)
	write(h, w, r, http.StatusOK, view, err)
}

func (h *handler) deleteStudent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.noContent(w, r, h.app.Accounts.DeleteStudent(r.Context(), id))
}

func (h *handler) listTeachers(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Accounts.ListTeachers(r.Context(), strings.TrimSpace(r.URL.Query().Get("name")))
	writePage(h, w, r, items, err)
}

func (h *handler) getTeacher(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.app.Accounts.GetTeacher(r.Context(), id)
	write(h, w, r, http.StatusOK, view, err)
}

func (h *handler) updateTeacher(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var upd accounts.ProfileUpdate
	if !h.decode(w, r, &upd) {
		return
	}
	view, err := h.app.Accounts.UpdateTeacher(r.Context(), id, upd)
	write(h, w, r, http.StatusOK, view, err)
}

func (h *handler) deleteTeacher(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.noContent(w, r, h.app.Accounts.DeleteTeacher(r.Context(), id))
}

func (h *handler) createUniversity(w http.ResponseWriter, r *http.Request) {
	var in account.University
	if !h.decode(w, r, &in) {
		return
	}
	out, err := h.app.Accounts.CreateUniversity(r.Context(), in)
	write(h, w, r, http.StatusCreated, out, err)
}

func (h *handler) createEducationStudy(w http.ResponseWriter, r *http.Request) {
	var in account.EducationStudy
	if !h.decode(w, r, &in) {
		return
	}
	out, err := h.app.Accounts.CreateEducationStudy(r.Context(), in)
	write(h, w, r, http.StatusCreated, out, err)
}

func (h *handler) listAllEnrollments(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Catalog.ListEnrollments(r.Context())
	writePage(h, w, r, items, err)
}

func (h *handler) adminEnroll(w http.ResponseWriter, r *http.Request) {
	var in adminEnrollRequest
	if !h.decode(w, r, &in) {
		return
	}
	if in.User == 0 {
		h.writeError(w, r, apperrors.Validation("user", "This field is required."))
		return
	}
	if in.Course == 0 {
		h.writeError(w, r, apperrors.Validation("course", "This field is required."))
		return
	}
	out, err := h.app.Catalog.AdminEnroll(r.Context(), in.User, in.Course)
	write(h, w, r, http.StatusCreated, out, err)
}

func (h *handler) listAllArticles(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Blog.ListAllArticles(r.Context())
	writePage(h, w, r, items, err)
}

func (h *handler) listAllComments(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Blog.ListAllComments(r.Context())
	writePage(h, w, r, items, err)
}

func (h *handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Shop.ListOrders(r.Context(), shop.OrderStatus(r.URL.Query().Get("status")))
	writePage(h, w, r, items, err)
}

func (h *handler) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in orderStatusRequest
	if !h.decode(w, r, &in) {
		return
	}
	order, err := h.app.Shop.SetOrderStatus(r.Context(), id, in.Status)
	write(h, w, r, http.StatusOK, order, err)
}

func (h *handler) listAllRooms(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Chat.ListRooms(r.Context())
	writePage(h, w, r, items, err)
}

func (h *handler) listRoomMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.app.Chat.ListRoomMessages(r.Context(), principal(r), id)
	writePage(h, w, r, items, err)
}

func (h *handler) postRoomMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in messageRequest
	if !h.decode(w, r, &in) {
		return
	}
	msg, err := h.app.Chat.PostRoomMessage(r.Context(), principal(r), id, in.Content)
	write(h, w, r, http.StatusCreated, msg, err)
}

func (h *handler) sendMassEmail(w http.ResponseWriter, r *http.Request) {
	var in massEmailRequest
	if !h.decode(w, r, &in) {
		return
	}
	taskID, err := h.app.Email.SendMass(r.Context(), in.Subject, in.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (h *handler) massEmailStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Email.Status(r.Context(), mux.Vars(r)["task_id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	info := res.Info
	if info == "" {
		info = res.Error
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": string(res.Status), "info": info})
}

func (h *handler) listBlocked(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Blocklist.List(r.Context())
	writePage(h, w, r, items, err)
}

func (h *handler) addBlocked(w http.ResponseWriter, r *http.Request) {
	var in blockRequest
	if !h.decode(w, r, &in) {
		return
	}
	entry, err := h.app.Blocklist.Add(r.Context(), in.IP, in.Reason)
	write(h, w, r, http.StatusCreated, entry, err)
}

func (h *handler) removeBlocked(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.noContent(w, r, h.app.Blocklist.Remove(r.Context(), id))
}
