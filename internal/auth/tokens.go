package auth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	apperrors "github.com/EduShopX/edushop/internal/errors"
)

var (
	errWrongTokenType = errors.New("token has wrong type")
	errRevoked        = errors.New("token is blacklisted")
)

// TokenPair is returned by login and refresh.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Config controls token lifetimes.
type Config struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// UserLookup reloads the user when a refresh token is exchanged so the new
// access token carries current role and flags.
type UserLookup func(ctx context.Context, id int64) (account.User, error)

// Tokens signs and verifies tokens.
type Tokens struct {
	priv      *ecdsa.PrivateKey
	pub       *ecdsa.PublicKey
	cfg       Config
	blacklist Blacklist
	now       func() time.Time
}

// NewTokens builds a token service. blacklist may be nil, in which case an
// in-process blacklist is used.
func NewTokens(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey, cfg Config, blacklist Blacklist) *Tokens {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 24 * time.Hour
	}
	if blacklist == nil {
		blacklist = NewMemoryBlacklist()
	}
	return &Tokens{priv: priv, pub: pub, cfg: cfg, blacklist: blacklist, now: time.Now}
}

func (t *Tokens) sign(user account.User, typ TokenType, ttl time.Duration) (string, error) {
	now := t.now()
	claims := &Claims{
		UserID:    user.ID,
		Role:      string(user.Role),
		IsActive:  user.IsActive,
		IsStaff:   user.IsStaff,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.cfg.Issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(t.priv)
}

// Issue creates a fresh access/refresh pair for user.
func (t *Tokens) Issue(user account.User) (TokenPair, error) {
	access, err := t.sign(user, TokenAccess, t.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := t.sign(user, TokenRefresh, t.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Parse verifies signature, expiry and type. An empty want accepts either
// type. Blacklisted tokens are rejected.
func (t *Tokens) Parse(ctx context.Context, raw string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.pub, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}))
	if err != nil {
		return nil, apperrors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, apperrors.InvalidToken(nil)
	}
	if want != "" && claims.TokenType != want {
		return nil, apperrors.InvalidToken(errWrongTokenType)
	}
	revoked, err := t.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperrors.Internal("check token blacklist", err)
	}
	if revoked {
		return nil, apperrors.InvalidToken(errRevoked)
	}
	return claims, nil
}

// Revoke blacklists a refresh token for the rest of its lifetime.
func (t *Tokens) Revoke(ctx context.Context, raw string) error {
	claims, err := t.Parse(ctx, raw, TokenRefresh)
	if err != nil {
		return err
	}
	return t.revokeClaims(ctx, claims)
}

func (t *Tokens) revokeClaims(ctx context.Context, claims *Claims) error {
	ttl := claims.ExpiresAt.Time.Sub(t.now())
	if err := t.blacklist.Revoke(ctx, claims.ID, ttl); err != nil {
		return apperrors.Internal("blacklist token", err)
	}
	return nil
}

// Refresh exchanges a refresh token for a new pair and blacklists the
// presented one. lookup reloads the user; inactive users are refused.
func (t *Tokens) Refresh(ctx context.Context, raw string, lookup UserLookup) (TokenPair, error) {
	claims, err := t.Parse(ctx, raw, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	user := account.User{ID: claims.UserID, Role: account.Role(claims.Role), IsActive: claims.IsActive, IsStaff: claims.IsStaff}
	if lookup != nil {
		if user, err = lookup(ctx, claims.UserID); err != nil {
			return TokenPair{}, apperrors.InvalidToken(err)
		}
	}
	if !user.IsActive {
		return TokenPair{}, apperrors.Unauthorized("User is inactive")
	}
	if err := t.revokeClaims(ctx, claims); err != nil {
		return TokenPair{}, err
	}
	return t.Issue(user)
}
