package realtime

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/EduShopX/edushop/internal/app/domain/chat"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/pkg/logger"
)

// Rooms is the chat logic a live connection relies on.
type Rooms interface {
	CanJoin(ctx context.Context, p auth.Principal, roomID int64) (bool, error)
	SaveLiveMessage(ctx context.Context, p auth.Principal, roomID int64, content string) (chat.Message, error)
	CloseRoom(ctx context.Context, roomID int64) error
}

// Server upgrades /ws/support/{room_id}/ requests. The caller must be
// authenticated by the auth middleware (which accepts ?token= on this path).
type Server struct {
	hub      *Hub
	channels *Channels
	rooms    Rooms
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewServer wires the websocket endpoint. allowOrigin decides the
// Origin check; nil accepts every origin.
func NewServer(hub *Hub, channels *Channels, rooms Rooms, allowOrigin func(origin string) bool, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("realtime")
	}
	s := &Server{hub: hub, channels: channels, rooms: rooms, log: log}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowOrigin == nil {
				return true
			}
			return allowOrigin(origin)
		},
	}
	return s
}

// ServeHTTP refuses the handshake with 403 for anonymous callers and rooms
// the caller may not join, matching a consumer that closes before accept.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := auth.PrincipalFrom(ctx)
	if !ok {
		http.Error(w, "authentication required", http.StatusForbidden)
		return
	}
	roomID, err := strconv.ParseInt(mux.Vars(r)["room_id"], 10, 64)
	if err != nil {
		http.Error(w, "room not found", http.StatusForbidden)
		return
	}
	allowed, err := s.rooms.CanJoin(ctx, principal, roomID)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Error("check chat room access")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "permission denied", http.StatusForbidden)
		return
	}

	group := GroupName(roomID)
	sub, err := s.channels.Subscribe(ctx, group)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Error("join chat group")
		http.Error(w, "server error", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		_ = sub.Close()
		return
	}

	client := &Client{
		server:    s,
		conn:      conn,
		sub:       sub,
		principal: principal,
		roomID:    roomID,
		group:     group,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
	if !s.hub.join(client) {
		_ = sub.Close()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	s.log.WithContext(ctx).WithField("room", roomID).Info("websocket joined chat room")

	go client.writePump()
	go client.forward()
	go client.readPump()
}
