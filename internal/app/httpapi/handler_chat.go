package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/EduShopX/edushop/internal/middleware"
)

func (h *handler) registerChatRoutes(api *mux.Router) {
	c := api.PathPrefix("/chat/room").Subrouter()
	c.Use(middleware.Require(middleware.NotAdmin))
	c.HandleFunc("/create/", h.createRoom).Methods(http.MethodPost)
	c.HandleFunc("/", h.listMyRooms).Methods(http.MethodGet)
	c.HandleFunc("/user_messages/", h.listMyMessages).Methods(http.MethodGet)
	c.HandleFunc("/user_messages/", h.postMyMessage).Methods(http.MethodPost)
}

func (h *handler) createRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.app.Chat.CreateRoom(r.Context(), principal(r))
	write(h, w, r, http.StatusCreated, room, err)
}

func (h *handler) listMyRooms(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Chat.ListUserRooms(r.Context(), principal(r).UserID)
	writeList(h, w, r, items, err)
}

func (h *handler) listMyMessages(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Chat.ListUserMessages(r.Context(), principal(r))
	writePage(h, w, r, items, err)
}

func (h *handler) postMyMessage(w http.ResponseWriter, r *http.Request) {
	var in messageRequest
	if !h.decode(w, r, &in) {
		return
	}
	msg, err := h.app.Chat.PostUserMessage(r.Context(), principal(r), in.Content)
	write(h, w, r, http.StatusCreated, msg, err)
}
