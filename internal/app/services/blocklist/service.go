// Package blocklist manages the IP addresses refused at the API edge.
package blocklist

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	domainaudit "github.com/EduShopX/edushop/internal/app/domain/audit"
	"github.com/EduShopX/edushop/internal/app/domain/blocklist"
	"github.com/EduShopX/edushop/internal/app/services/audit"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/middleware"
	"github.com/EduShopX/edushop/pkg/logger"
)

const lookupTTL = time.Minute

func keyIP(ip string) string { return "blocklist:ip:" + ip }

// Service answers block lookups for every request, so results are cached
// briefly.
type Service struct {
	store storage.BlocklistStore
	cache cache.Cache
	audit audit.Recorder
	log   *logger.Logger
}

var _ middleware.BlockChecker = (*Service)(nil)

func New(store storage.BlocklistStore, c cache.Cache, rec audit.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("blocklist")
	}
	return &Service{store: store, cache: c, audit: rec, log: log}
}

// IsBlocked implements middleware.BlockChecker.
func (s *Service) IsBlocked(ctx context.Context, ip string) (bool, error) {
	return cache.GetOrLoad(ctx, s.cache, keyIP(ip), lookupTTL, func(ctx context.Context) (bool, error) {
		return s.store.IsBlocked(ctx, ip)
	})
}

func (s *Service) List(ctx context.Context) ([]blocklist.Entry, error) {
	return s.store.ListBlockedIPs(ctx)
}

// Add denies ip.
func (s *Service) Add(ctx context.Context, ip, reason string) (blocklist.Entry, error) {
	ip = strings.TrimSpace(ip)
	if net.ParseIP(ip) == nil {
		return blocklist.Entry{}, apperrors.Validation("ip_addr", "Enter a valid IPv4 or IPv6 address.")
	}
	entry, err := s.store.AddBlockedIP(ctx, blocklist.Entry{IP: ip, Reason: strings.TrimSpace(reason)})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return blocklist.Entry{}, apperrors.Validation("ip_addr", "This IP address is already blocked.")
		}
		return blocklist.Entry{}, err
	}
	cache.Invalidate(ctx, s.cache, keyIP(ip))
	if s.audit != nil {
		s.audit.Record(ctx, domainaudit.ActionAdd, "blocked_ip", entry.ID, entry.IP)
	}
	s.log.WithContext(ctx).WithField("ip", ip).Warn("ip blocked")
	return entry, nil
}

// Remove lifts the block with the given id.
func (s *Service) Remove(ctx context.Context, id int64) error {
	entries, err := s.store.ListBlockedIPs(ctx)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBlockedIP(ctx, id); err != nil {
		return err
	}
	for _, e := range entries {
		if e.ID == id {
			cache.Invalidate(ctx, s.cache, keyIP(e.IP))
			if s.audit != nil {
				s.audit.Record(ctx, domainaudit.ActionDelete, "blocked_ip", id, e.IP)
			}
		}
	}
	return nil
}
