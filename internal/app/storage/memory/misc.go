package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/audit"
	"github.com/EduShopX/edushop/internal/app/domain/blocklist"
	"github.com/EduShopX/edushop/internal/app/domain/chat"
	"github.com/EduShopX/edushop/internal/app/domain/shortlink"
	"github.com/EduShopX/edushop/internal/app/storage"
)

// ShortLinkStore implementation -----------------------------------------------

func (s *Store) CreateShortLink(_ context.Context, link shortlink.Link) (shortlink.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shortLinks {
		if existing.Code == link.Code {
			return shortlink.Link{}, fmt.Errorf("short link %s: %w", link.Code, storage.ErrConflict)
		}
	}
	link.ID = s.nextIDLocked()
	link.CreatedAt = time.Now().UTC()
	s.shortLinks[link.ID] = link
	return link, nil
}

func (s *Store) GetShortLink(_ context.Context, id int64) (shortlink.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.shortLinks[id]
	if !ok {
		return shortlink.Link{}, fmt.Errorf("short link %d: %w", id, storage.ErrNotFound)
	}
	return link, nil
}

func (s *Store) GetShortLinkByCode(_ context.Context, code string) (shortlink.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, link := range s.shortLinks {
		if link.Code == code {
			return link, nil
		}
	}
	return shortlink.Link{}, fmt.Errorf("short link %s: %w", code, storage.ErrNotFound)
}

func (s *Store) FindShortLink(_ context.Context, target shortlink.TargetType, targetID int64) (shortlink.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, link := range s.shortLinks {
		if link.TargetType == target && link.TargetID == targetID {
			return link, nil
		}
	}
	return shortlink.Link{}, fmt.Errorf("short link %s/%d: %w", target, targetID, storage.ErrNotFound)
}

func (s *Store) IncrementClicks(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.shortLinks[id]
	if !ok {
		return fmt.Errorf("short link %d: %w", id, storage.ErrNotFound)
	}
	link.Clicks++
	s.shortLinks[id] = link
	return nil
}

// ChatStore implementation ----------------------------------------------------

func (s *Store) decorateRoomLocked(room chat.Room) chat.Room {
	if user, ok := s.users[room.UserID]; ok {
		room.Username = user.Username
	}
	return room
}

func (s *Store) CreateRoom(_ context.Context, room chat.Room) (chat.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[room.UserID]; !ok {
		return chat.Room{}, fmt.Errorf("user %d: %w", room.UserID, storage.ErrNotFound)
	}
	for _, existing := range s.rooms {
		if existing.UserID == room.UserID {
			return chat.Room{}, fmt.Errorf("room for user %d: %w", room.UserID, storage.ErrConflict)
		}
	}
	now := time.Now().UTC()
	room.ID = s.nextIDLocked()
	room.CreatedAt = now
	room.UpdatedAt = now
	s.rooms[room.ID] = room
	return s.decorateRoomLocked(room), nil
}

func (s *Store) GetRoom(_ context.Context, id int64) (chat.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return chat.Room{}, fmt.Errorf("room %d: %w", id, storage.ErrNotFound)
	}
	return s.decorateRoomLocked(room), nil
}

func (s *Store) ListRooms(_ context.Context, filter storage.RoomFilter) ([]chat.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]chat.Room, 0)
	for _, room := range s.rooms {
		if filter.UserID != 0 && room.UserID != filter.UserID {
			continue
		}
		if filter.ActiveOnly && !room.IsActive {
			continue
		}
		result = append(result, s.decorateRoomLocked(room))
	}
	sortByID(result, func(r chat.Room) int64 { return r.ID })
	return result, nil
}

func (s *Store) SetRoomActive(_ context.Context, id int64, active bool) (chat.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return chat.Room{}, fmt.Errorf("room %d: %w", id, storage.ErrNotFound)
	}
	room.IsActive = active
	room.UpdatedAt = time.Now().UTC()
	s.rooms[id] = room
	return s.decorateRoomLocked(room), nil
}

func (s *Store) DeleteInactiveRooms(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, room := range s.rooms {
		if !room.IsActive {
			s.deleteRoomLocked(id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) deleteRoomLocked(id int64) {
	delete(s.rooms, id)
	for mid, msg := range s.messages {
		if msg.RoomID == id {
			delete(s.messages, mid)
		}
	}
}

func (s *Store) CreateMessage(_ context.Context, msg chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[msg.RoomID]; !ok {
		return chat.Message{}, fmt.Errorf("room %d: %w", msg.RoomID, storage.ErrNotFound)
	}
	msg.ID = s.nextIDLocked()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if user, ok := s.users[msg.SenderID]; ok {
		msg.Sender = user.Username
	}
	s.messages[msg.ID] = msg
	return msg, nil
}

func (s *Store) ListMessages(_ context.Context, roomID int64) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]chat.Message, 0)
	for _, msg := range s.messages {
		if msg.RoomID != roomID {
			continue
		}
		if user, ok := s.users[msg.SenderID]; ok {
			msg.Sender = user.Username
		}
		result = append(result, msg)
	}
	sortByID(result, func(m chat.Message) int64 { return m.ID })
	return result, nil
}

// AuditStore implementation ---------------------------------------------------

func (s *Store) AppendAudit(_ context.Context, entry audit.Entry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextIDLocked()
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	s.auditLog = append(s.auditLog, entry)
	return entry, nil
}

// ListAudit returns the newest entries first.
func (s *Store) ListAudit(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.auditLog)
	if limit <= 0 || limit > n {
		limit = n
	}
	result := make([]audit.Entry, 0, limit)
	for i := n - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.auditLog[i])
	}
	return result, nil
}

// BlocklistStore implementation -----------------------------------------------

func (s *Store) AddBlockedIP(_ context.Context, entry blocklist.Entry) (blocklist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.blocked {
		if existing.IP == entry.IP {
			return blocklist.Entry{}, fmt.Errorf("ip %s: %w", entry.IP, storage.ErrConflict)
		}
	}
	entry.ID = s.nextIDLocked()
	entry.CreatedAt = time.Now().UTC()
	s.blocked[entry.ID] = entry
	return entry, nil
}

func (s *Store) ListBlockedIPs(_ context.Context) ([]blocklist.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]blocklist.Entry, 0, len(s.blocked))
	for _, entry := range s.blocked {
		result = append(result, entry)
	}
	sortByID(result, func(e blocklist.Entry) int64 { return e.ID })
	return result, nil
}

func (s *Store) DeleteBlockedIP(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blocked[id]; !ok {
		return fmt.Errorf("blocked ip %d: %w", id, storage.ErrNotFound)
	}
	delete(s.blocked, id)
	return nil
}

func (s *Store) IsBlocked(_ context.Context, ip string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.blocked {
		if entry.IP == ip {
			return true, nil
		}
	}
	return false, nil
}
