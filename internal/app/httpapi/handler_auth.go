package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/EduShopX/edushop/internal/app/services/accounts"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/httputil"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (h *handler) registerAuthRoutes(api *mux.Router) {
	api.HandleFunc("/account/register/student/", h.registerStudent).Methods(http.MethodPost)
	api.HandleFunc("/account/register/teacher/", h.registerTeacher).Methods(http.MethodPost)
	api.HandleFunc("/account/universities/", h.listUniversities).Methods(http.MethodGet)
	api.HandleFunc("/account/education-studies/", h.listEducationStudies).Methods(http.MethodGet)

	api.HandleFunc("/auth/login/", h.login).Methods(http.MethodPost)
	api.Handle("/auth/logout/", authed(h.logout)).Methods(http.MethodPost)
	api.HandleFunc("/auth/token/refresh/", h.refresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/token/verify/", h.verify).Methods(http.MethodPost)
	api.HandleFunc("/auth/token/blacklist/", h.blacklist).Methods(http.MethodPost)
}

func (h *handler) registerStudent(w http.ResponseWriter, r *http.Request) {
	var in accounts.RegisterInput
	if !h.decode(w, r, &in) {
		return
	}
	if _, err := h.app.Accounts.RegisterStudent(r.Context(), in); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (h *handler) registerTeacher(w http.ResponseWriter, r *http.Request) {
	var in accounts.RegisterInput
	if !h.decode(w, r, &in) {
		return
	}
	if _, err := h.app.Accounts.RegisterTeacher(r.Context(), in); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (h *handler) listUniversities(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Accounts.ListUniversities(r.Context())
	writeList(h, w, r, items, err)
}

func (h *handler) listEducationStudies(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Accounts.ListEducationStudies(r.Context())
	writeList(h, w, r, items, err)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !h.decode(w, r, &in) {
		return
	}
	pair, err := h.app.Accounts.Login(r.Context(), in.Username, in.Password)
	write(h, w, r, http.StatusOK, pair, err)
}

// logout revokes the posted refresh token. Failures answer 400 with the
// reason, whatever the cause.
func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.app.Accounts.Blacklist(r.Context(), in.Refresh); err != nil {
		se := httputil.Classify(err)
		if se.HTTPStatus >= http.StatusInternalServerError {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": se.Message})
		return
	}
	httputil.WriteDetail(w, http.StatusOK, "Logout successful")
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if !h.decode(w, r, &in) {
		return
	}
	pair, err := h.app.Accounts.Refresh(r.Context(), in.Refresh)
	write(h, w, r, http.StatusOK, pair, err)
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	var in tokenRequest
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.app.Accounts.Verify(r.Context(), in.Token); err != nil {
		if se := apperrors.GetServiceError(err); se == nil {
			err = apperrors.InvalidToken(err)
		}
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *handler) blacklist(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.app.Accounts.Blacklist(r.Context(), in.Refresh); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct{}{})
}
