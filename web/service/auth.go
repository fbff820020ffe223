package service

import (
	"errors"
	"strings"
	"time"

	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/util/common"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 72 * time.Hour

var errBadToken = errors.New("invalid token")

// AuthService issues and verifies bearer tokens for API clients. The signing
// key is the panel secret.
type AuthService struct {
	settingService SettingService
	userService    UserService
}

type tokenClaims struct {
	UserId int        `json:"uid"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Login checks the credentials and returns a fresh token for the user.
func (s *AuthService) Login(email, password string) (string, *model.User, error) {
	user, err := s.userService.CheckUser(email, password)
	if err != nil {
		return "", nil, err
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) IssueToken(user *model.User) (string, error) {
	secret, err := s.settingService.GetSecret()
	if err != nil {
		return "", common.Internal("read secret", err)
	}
	now := time.Now()
	claims := tokenClaims{
		UserId: user.Id,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", common.Internal("sign token", err)
	}
	return tok, nil
}

// ParseToken returns the user id carried by a valid token. The role in the
// token is informational; callers resolve the current one through GetIdentity.
func (s *AuthService) ParseToken(raw string) (int, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return 0, errBadToken
	}
	secret, err := s.settingService.GetSecret()
	if err != nil {
		return 0, err
	}
	claims := &tokenClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid || claims.UserId <= 0 {
		return 0, errBadToken
	}
	return claims.UserId, nil
}
