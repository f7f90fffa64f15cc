// Package chat manages support rooms between users and staff and the
// messages exchanged in them.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/chat"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/tasks"
	"github.com/EduShopX/edushop/pkg/logger"
)

const (
	TaskDeleteInactiveRooms = "chat.delete_inactive_rooms"
	// CleanupSchedule runs the room cleanup daily at midnight UTC.
	CleanupSchedule = "0 0 * * *"

	cacheTTL = 2 * time.Minute
)

// ErrPermission is returned when the caller may not post to a room, or the
// room is closed.
var ErrPermission = errors.New("chat: permission denied")

// Service owns support rooms.
type Service struct {
	store storage.ChatStore
	cache cache.Cache
	log   *logger.Logger
}

func New(store storage.ChatStore, c cache.Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("chat")
	}
	return &Service{store: store, cache: c, log: log}
}

// CreateRoom opens the caller's support room. Each user gets one.
func (s *Service) CreateRoom(ctx context.Context, p auth.Principal) (chat.Room, error) {
	room, err := s.store.CreateRoom(ctx, chat.Room{UserID: p.UserID, IsActive: true})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return chat.Room{}, apperrors.BadRequest("There is already a room for this user.")
		}
		return chat.Room{}, err
	}
	cache.Invalidate(ctx, s.cache, cache.KeyChatRoomsUser(p.UserID))
	return room, nil
}

// ListRooms returns every room for staff.
func (s *Service) ListRooms(ctx context.Context) ([]chat.Room, error) {
	return s.store.ListRooms(ctx, storage.RoomFilter{})
}

// ListUserRooms returns the rooms userID owns.
func (s *Service) ListUserRooms(ctx context.Context, userID int64) ([]chat.Room, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.KeyChatRoomsUser(userID), cacheTTL, func(ctx context.Context) ([]chat.Room, error) {
		return s.store.ListRooms(ctx, storage.RoomFilter{UserID: userID})
	})
}

func (s *Service) ownRoom(ctx context.Context, userID int64) (chat.Room, error) {
	rooms, err := s.store.ListRooms(ctx, storage.RoomFilter{UserID: userID})
	if err != nil {
		return chat.Room{}, err
	}
	if len(rooms) == 0 {
		return chat.Room{}, fmt.Errorf("room for user %d: %w", userID, storage.ErrNotFound)
	}
	return rooms[0], nil
}

// ListUserMessages returns the messages of the caller's own room.
func (s *Service) ListUserMessages(ctx context.Context, p auth.Principal) ([]chat.Message, error) {
	room, err := s.ownRoom(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return s.roomMessages(ctx, room.ID, p.UserID)
}

// PostUserMessage appends a message to the caller's own room.
func (s *Service) PostUserMessage(ctx context.Context, p auth.Principal, content string) (chat.Message, error) {
	room, err := s.ownRoom(ctx, p.UserID)
	if err != nil {
		return chat.Message{}, err
	}
	return s.post(ctx, room, p.UserID, content)
}

// ListRoomMessages returns the messages of any room for staff.
func (s *Service) ListRoomMessages(ctx context.Context, p auth.Principal, roomID int64) ([]chat.Message, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.roomMessages(ctx, roomID, p.UserID)
}

// PostRoomMessage lets staff answer in any room.
func (s *Service) PostRoomMessage(ctx context.Context, p auth.Principal, roomID int64, content string) (chat.Message, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return chat.Message{}, err
	}
	return s.post(ctx, room, p.UserID, content)
}

func (s *Service) roomMessages(ctx context.Context, roomID, viewerID int64) ([]chat.Message, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.KeyMessagesRoomUser(roomID, viewerID), cacheTTL, func(ctx context.Context) ([]chat.Message, error) {
		return s.store.ListMessages(ctx, roomID)
	})
}

func (s *Service) post(ctx context.Context, room chat.Room, senderID int64, content string) (chat.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return chat.Message{}, apperrors.Validation("content", "This field may not be blank.")
	}
	msg, err := s.store.CreateMessage(ctx, chat.Message{RoomID: room.ID, SenderID: senderID, Content: content})
	if err != nil {
		return chat.Message{}, err
	}
	s.invalidateRoom(ctx, room)
	return msg, nil
}

func (s *Service) invalidateRoom(ctx context.Context, room chat.Room) {
	cache.Invalidate(ctx, s.cache, cache.KeyMessagesRoomAll(room.ID), cache.KeyChatRoomsUser(room.UserID))
}

// CanJoin reports whether p may open a live connection to roomID: staff
// may join any active room, everyone else only their own active room.
func (s *Service) CanJoin(ctx context.Context, p auth.Principal, roomID int64) (bool, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !room.IsActive {
		return false, nil
	}
	return p.IsAdmin() || room.UserID == p.UserID, nil
}

// SaveLiveMessage stores a message sent over a live connection. It returns
// ErrPermission when the room is gone, closed or not the caller's.
func (s *Service) SaveLiveMessage(ctx context.Context, p auth.Principal, roomID int64, content string) (chat.Message, error) {
	ok, err := s.CanJoin(ctx, p, roomID)
	if err != nil {
		return chat.Message{}, err
	}
	if !ok {
		return chat.Message{}, ErrPermission
	}
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return chat.Message{}, ErrPermission
		}
		return chat.Message{}, err
	}
	msg, err := s.store.CreateMessage(ctx, chat.Message{RoomID: roomID, SenderID: p.UserID, Content: content})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return chat.Message{}, ErrPermission
		}
		return chat.Message{}, err
	}
	s.invalidateRoom(ctx, room)
	return msg, nil
}

// CloseRoom deactivates a room. Closed rooms are removed by the nightly
// cleanup.
func (s *Service) CloseRoom(ctx context.Context, roomID int64) error {
	room, err := s.store.SetRoomActive(ctx, roomID, false)
	if err != nil {
		return err
	}
	s.invalidateRoom(ctx, room)
	return nil
}

// DeleteInactiveRooms removes every closed room with its messages.
func (s *Service) DeleteInactiveRooms(ctx context.Context) (int, error) {
	n, err := s.store.DeleteInactiveRooms(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		cache.Invalidate(ctx, s.cache, "chat:rooms:user:*", "messages:room:*")
	}
	s.log.WithContext(ctx).WithField("deleted", n).Info("inactive chat rooms deleted")
	return n, nil
}

// RegisterTasks binds the cleanup job.
func (s *Service) RegisterTasks(registry *tasks.Registry) {
	registry.Register(TaskDeleteInactiveRooms, func(ctx context.Context, _ *tasks.Task) (interface{}, error) {
		n, err := s.DeleteInactiveRooms(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]int{"deleted": n}, nil
	}, tasks.Options{MaxRetries: 3, RetryDelay: 30 * time.Second, Backoff: true})
}

// ScheduleCleanup registers the nightly cleanup with beat.
func ScheduleCleanup(beat *tasks.Beat) error {
	return beat.Schedule(CleanupSchedule, TaskDeleteInactiveRooms, nil)
}
