package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/EduShopX/edushop/internal/app/domain/catalog"
	catalogsvc "github.com/EduShopX/edushop/internal/app/services/catalog"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/middleware"
)

type enrollRequest struct {
	Course int64 `json:"course"`
}

func (h *handler) registerCatalogRoutes(api *mux.Router) {
	teacher := api.PathPrefix("/teachers/me/courses").Subrouter()
	teacher.Use(middleware.Require(middleware.IsTeacher))
	h.registerCourseRoutes(teacher)

	api.HandleFunc("/store/courses/", h.listStoreCourses).Methods(http.MethodGet)
	api.Handle("/store/courses/{course:[0-9]+}/videos/", authed(h.listStoreVideos)).Methods(http.MethodGet)

	api.Handle("/user/courses/", authed(h.listMyCourses)).Methods(http.MethodGet)
	api.Handle("/user/enrollments/", nonAdmin(h.listMyEnrollments)).Methods(http.MethodGet)
	api.Handle("/user/enrollments/", nonAdmin(h.enroll)).Methods(http.MethodPost)
	api.Handle("/user/enrollments/{id:[0-9]+}/", nonAdmin(h.getEnrollment)).Methods(http.MethodGet)
	api.Handle("/user/enrollments/{id:[0-9]+}/", nonAdmin(h.deleteEnrollment)).Methods(http.MethodDelete)
}

// registerCourseRoutes mounts course and nested video CRUD on sub. The
// caller's principal decides the scope: staff see every course, teachers
// only their own.
func (h *handler) registerCourseRoutes(sub *mux.Router) {
	sub.HandleFunc("/", h.listManagedCourses).Methods(http.MethodGet)
	sub.HandleFunc("/", h.createCourse).Methods(http.MethodPost)
	sub.HandleFunc("/{course:[0-9]+}/", h.getCourse).Methods(http.MethodGet)
	sub.HandleFunc("/{course:[0-9]+}/", h.updateCourse).Methods(http.MethodPut, http.MethodPatch)
	sub.HandleFunc("/{course:[0-9]+}/", h.deleteCourse).Methods(http.MethodDelete)

	sub.HandleFunc("/{course:[0-9]+}/videos/", h.listCourseVideos).Methods(http.MethodGet)
	sub.HandleFunc("/{course:[0-9]+}/videos/", h.createCourseVideo).Methods(http.MethodPost)
	sub.HandleFunc("/{course:[0-9]+}/videos/{id:[0-9]+}/", h.getCourseVideo).Methods(http.MethodGet)
	sub.HandleFunc("/{course:[0-9]+}/videos/{id:[0-9]+}/", h.updateCourseVideo).Methods(http.MethodPut, http.MethodPatch)
	sub.HandleFunc("/{course:[0-9]+}/videos/{id:[0-9]+}/", h.deleteCourseVideo).Methods(http.MethodDelete)
}

func (h *handler) listManagedCourses(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Catalog.ListCoursesFor(r.Context(), principal(r))
	writePage(h, w, r, items, err)
}

func (h *handler) createCourse(w http.ResponseWriter, r *http.Request) {
	var in catalogsvc.CourseInput
	if !h.decode(w, r, &in) {
		return
	}
	course, err := h.app.Catalog.CreateCourse(r.Context(), principal(r), in)
	write(h, w, r, http.StatusCreated, course, err)
}

func (h *handler) getCourse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "course")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	course, err := h.app.Catalog.GetCourse(r.Context(), principal(r), id)
	write(h, w, r, http.StatusOK, course, err)
}

func (h *handler) updateCourse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "course")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in catalogsvc.CourseInput
	if !h.decode(w, r, &in) {
		return
	}
	course, err := h.app.Catalog.UpdateCourse(r.Context(), principal(r), id, in)
	write(h, w, r, http.StatusOK, course, err)
}

func (h *handler) deleteCourse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "course")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.noContent(w, r, h.app.Catalog.DeleteCourse(r.Context(), principal(r), id))
}

func (h *handler) listCourseVideos(w http.ResponseWriter, r *http.Request) {
	courseID, err := pathID(r, "course")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.app.Catalog.ListManagedVideos(r.Context(), principal(r), courseID)
	writePage(h, w, r, items, err)
}

func (h *handler) createCourseVideo(w http.ResponseWriter, r *http.Request) {
	courseID, err := pathID(r, "course")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in catalogsvc.VideoInput
	if !h.decode(w, r, &in) {
		return
	}
	in.Course = &courseID
	video, err := h.app.Catalog.CreateVideo(r.Context(), principal(r), in)
	write(h, w, r, http.StatusCreated, video, err)
}

// nestedVideo loads the video named by the path and checks it belongs to
// the course in the path.
func (h *handler) nestedVideo(r *http.Request) (catalog.Video, error) {
	courseID, err := pathID(r, "course")
	if err != nil {
		return catalog.Video{}, err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return catalog.Video{}, err
	}
	video, err := h.app.Catalog.GetManagedVideo(r.Context(), principal(r), id)
	if err != nil {
		return catalog.Video{}, err
	}
	if video.CourseID != courseID {
		return catalog.Video{}, apperrors.Missing("Not found.")
	}
	return video, nil
}

func (h *handler) getCourseVideo(w http.ResponseWriter, r *http.Request) {
	video, err := h.nestedVideo(r)
	write(h, w, r, http.StatusOK, video, err)
}

func (h *handler) updateCourseVideo(w http.ResponseWriter, r *http.Request) {
	video, err := h.nestedVideo(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in catalogsvc.VideoInput
	if !h.decode(w, r, &in) {
		return
	}
	// Videos stay on their course; moving them is done by recreating.
	in.Course = nil
	updated, err := h.app.Catalog.UpdateVideo(r.Context(), principal(r), video.ID, in)
	write(h, w, r, http.StatusOK, updated, err)
}

func (h *handler) deleteCourseVideo(w http.ResponseWriter, r *http.Request) {
	video, err := h.nestedVideo(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.noContent(w, r, h.app.Catalog.DeleteVideo(r.Context(), principal(r), video.ID))
}

func (h *handler) listStoreCourses(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Catalog.ListCourses(r.Context())
	writeList(h, w, r, items, err)
}

func (h *handler) listStoreVideos(w http.ResponseWriter, r *http.Request) {
	courseID, err := pathID(r, "course")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.app.Catalog.ListVisibleVideos(r.Context(), courseID, principal(r).UserID)
	writeList(h, w, r, items, err)
}

func (h *handler) listMyCourses(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Catalog.ListStudentCourses(r.Context(), principal(r).UserID)
	writeList(h, w, r, items, err)
}

func (h *handler) listMyEnrollments(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Catalog.ListUserEnrollments(r.Context(), principal(r).UserID)
	writeList(h, w, r, items, err)
}

func (h *handler) enroll(w http.ResponseWriter, r *http.Request) {
	var in enrollRequest
	if !h.decode(w, r, &in) {
		return
	}
	if in.Course == 0 {
		h.writeError(w, r, apperrors.Validation("course", "This field is required."))
		return
	}
	out, err := h.app.Catalog.Enroll(r.Context(), principal(r), in.Course)
	write(h, w, r, http.StatusCreated, out, err)
}

func (h *handler) getEnrollment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.app.Catalog.GetEnrollment(r.Context(), principal(r), id)
	write(h, w, r, http.StatusOK, out, err)
}

func (h *handler) deleteEnrollment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.noContent(w, r, h.app.Catalog.DeleteEnrollment(r.Context(), principal(r), id))
}
