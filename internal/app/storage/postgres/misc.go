package postgres

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

const shortLinkColumns = `id, code, target_type, target_id, clicks, created_at`

const roomSelect = `
	SELECT r.id, r.user_id, r.is_active, r.created_at, r.updated_at, COALESCE(u.username, '') AS username
	FROM chat_rooms r
	LEFT JOIN users u ON u.id = r.user_id`

const messageSelect = `
	SELECT m.id, m.room_id, m.sender_id, m.content, m.created_at, COALESCE(u.username, '') AS sender_username
	FROM chat_messages m
	LEFT JOIN users u ON u.id = m.sender_id`

// --- ShortLinkStore ----------------------------------------------------------

func (s *Store) CreateShortLink(ctx context.Context, link shortlink.Link) (shortlink.Link, error) {
	link.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO short_links (code, target_type, target_id, clicks, created_at)
		VALUES ($1, $2, $3, 0, $4)
		RETURNING id
	`, link.Code, string(link.TargetType), link.TargetID, link.CreatedAt).Scan(&link.ID)
	if err != nil {
		return shortlink.Link{}, mapError(err, "short link "+link.Code)
	}
	return link, nil
}

func (s *Store) GetShortLink(ctx context.Context, id int64) (shortlink.Link, error) {
	var link shortlink.Link
	if err := s.db.GetContext(ctx, &link, `SELECT `+shortLinkColumns+` FROM short_links WHERE id = $1`, id); err != nil {
		return shortlink.Link{}, mapError(err, fmt.Sprintf("short link %d", id))
	}
	return link, nil
}

func (s *Store) GetShortLinkByCode(ctx context.Context, code string) (shortlink.Link, error) {
	var link shortlink.Link
	if err := s.db.GetContext(ctx, &link, `SELECT `+shortLinkColumns+` FROM short_links WHERE code = $1`, code); err != nil {
		return shortlink.Link{}, mapError(err, "short link "+code)
	}
	return link, nil
}

func (s *Store) FindShortLink(ctx context.Context, target shortlink.TargetType, targetID int64) (shortlink.Link, error) {
	var link shortlink.Link
	err := s.db.GetContext(ctx, &link, `
		SELECT `+shortLinkColumns+` FROM short_links WHERE target_type = $1 AND target_id = $2 ORDER BY id LIMIT 1
	`, string(target), targetID)
	if err != nil {
		return shortlink.Link{}, mapError(err, fmt.Sprintf("short link %s/%d", target, targetID))
	}
	return link, nil
}

func (s *Store) IncrementClicks(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE short_links SET clicks = clicks + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(result, fmt.Sprintf("short link %d", id))
}

// --- ChatStore ---------------------------------------------------------------

func (s *Store) CreateRoom(ctx context.Context, room chat.Room) (chat.Room, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO chat_rooms (user_id, is_active, created_at, updated_at) VALUES ($1, $2, $3, $3)
		RETURNING id
	`, room.UserID, room.IsActive, now).Scan(&id)
	if err != nil {
		return chat.Room{}, mapError(err, fmt.Sprintf("room for user %d", room.UserID))
	}
	return s.GetRoom(ctx, id)
}

func (s *Store) GetRoom(ctx context.Context, id int64) (chat.Room, error) {
	var room chat.Room
	if err := s.db.GetContext(ctx, &room, roomSelect+` WHERE r.id = $1`, id); err != nil {
		return chat.Room{}, mapError(err, fmt.Sprintf("room %d", id))
	}
	return room, nil
}

func (s *Store) ListRooms(ctx context.Context, filter storage.RoomFilter) ([]chat.Room, error) {
	var w where
	if filter.UserID != 0 {
		w.add("r.user_id = $%d", filter.UserID)
	}
	if filter.ActiveOnly {
		w.addRaw("r.is_active")
	}
	rooms := []chat.Room{}
	err := s.db.SelectContext(ctx, &rooms, roomSelect+w.String()+` ORDER BY r.id`, w.args...)
	return rooms, err
}

func (s *Store) SetRoomActive(ctx context.Context, id int64, active bool) (chat.Room, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE chat_rooms SET is_active = $2, updated_at = $3 WHERE id = $1
	`, id, active, time.Now().UTC())
	if err != nil {
		return chat.Room{}, err
	}
	if err := expectRows(result, fmt.Sprintf("room %d", id)); err != nil {
		return chat.Room{}, err
	}
	return s.GetRoom(ctx, id)
}

// DeleteInactiveRooms removes closed rooms; messages cascade.
func (s *Store) DeleteInactiveRooms(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chat_rooms WHERE NOT is_active`)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func (s *Store) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	var id int64
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO chat_messages (room_id, sender_id, content, created_at) VALUES ($1, $2, $3, $4)
		RETURNING id
	`, msg.RoomID, msg.SenderID, msg.Content, msg.Timestamp).Scan(&id)
	if err != nil {
		return chat.Message{}, mapError(err, fmt.Sprintf("room %d", msg.RoomID))
	}
	var stored chat.Message
	if err := s.db.GetContext(ctx, &stored, messageSelect+` WHERE m.id = $1`, id); err != nil {
		return chat.Message{}, mapError(err, fmt.Sprintf("message %d", id))
	}
	return stored, nil
}

func (s *Store) ListMessages(ctx context.Context, roomID int64) ([]chat.Message, error) {
	messages := []chat.Message{}
	err := s.db.SelectContext(ctx, &messages, messageSelect+` WHERE m.room_id = $1 ORDER BY m.id`, roomID)
	return messages, err
}

// --- AuditStore --------------------------------------------------------------

func (s *Store) AppendAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO audit_log (user_id, username, action, model, object_id, object_repr, action_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, entry.UserID, entry.Username, string(entry.Action), entry.Model, entry.ObjectID, entry.ObjectRepr, entry.Time).Scan(&entry.ID)
	if err != nil {
		return audit.Entry{}, err
	}
	return entry, nil
}

// ListAudit returns the newest entries first. A non-positive limit returns all.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]audit.Entry, error) {
	var lim interface{}
	if limit > 0 {
		lim = limit
	}
	entries := []audit.Entry{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, username, action, model, object_id, object_repr, action_time
		FROM audit_log
		ORDER BY id DESC
		LIMIT $1
	`, lim)
	return entries, err
}

// --- BlocklistStore ----------------------------------------------------------

func (s *Store) AddBlockedIP(ctx context.Context, entry blocklist.Entry) (blocklist.Entry, error) {
	entry.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO blocked_ips (ip_addr, reason, created_at) VALUES ($1, $2, $3) RETURNING id
	`, entry.IP, entry.Reason, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return blocklist.Entry{}, mapError(err, "ip "+entry.IP)
	}
	return entry, nil
}

func (s *Store) ListBlockedIPs(ctx context.Context) ([]blocklist.Entry, error) {
	entries := []blocklist.Entry{}
	err := s.db.SelectContext(ctx, &entries, `SELECT id, ip_addr, reason, created_at FROM blocked_ips ORDER BY id`)
	return entries, err
}

func (s *Store) DeleteBlockedIP(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM blocked_ips WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(result, fmt.Sprintf("blocked ip %d", id))
}

func (s *Store) IsBlocked(ctx context.Context, ip string) (bool, error) {
	var blocked bool
	err := s.db.QueryRowxContext(ctx, `SELECT EXISTS (SELECT 1 FROM blocked_ips WHERE ip_addr = $1)`, ip).Scan(&blocked)
	return blocked, err
}
