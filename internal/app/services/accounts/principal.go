package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
)

// principalTTL bounds how long a deactivation or demotion can go unnoticed.
const principalTTL = 30 * time.Second

type principalState struct {
	UserID   int64        `json:"user_id"`
	Role     account.Role `json:"role"`
	IsStaff  bool         `json:"is_staff"`
	IsActive bool         `json:"is_active"`
}

// WithCache enables caching of the per-request principal lookup.
func (s *Service) WithCache(c cache.Cache) *Service {
	s.cache = c
	return s
}

// LoadPrincipal reloads the caller behind an access token. Missing and
// inactive users are refused with 401; role and staff flags come from the
// stored user, not from the token.
func (s *Service) LoadPrincipal(ctx context.Context, userID int64) (auth.Principal, error) {
	state, err := cache.GetOrLoad(ctx, s.cache, cache.KeyAuthUser(userID), principalTTL,
		func(ctx context.Context) (principalState, error) {
			user, err := s.users.GetUser(ctx, userID)
			if err != nil {
				return principalState{}, err
			}
			return principalState{UserID: user.ID, Role: user.Role, IsStaff: user.IsStaff, IsActive: user.IsActive}, nil
		})
	if errors.Is(err, storage.ErrNotFound) {
		return auth.Principal{}, apperrors.Unauthorized("User not found")
	}
	if err != nil {
		return auth.Principal{}, err
	}
	if !state.IsActive {
		return auth.Principal{}, apperrors.Unauthorized("User is inactive")
	}
	return auth.Principal{UserID: state.UserID, Role: state.Role, IsStaff: state.IsStaff}, nil
}

func (s *Service) forgetPrincipal(ctx context.Context, userID int64) {
	cache.Invalidate(ctx, s.cache, cache.KeyAuthUser(userID))
}
