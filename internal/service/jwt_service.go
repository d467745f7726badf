package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionTTL es la validez de un token de sesión (7 días).
const DefaultSessionTTL = 7 * 24 * time.Hour

const sessionIssuer = "psy-relay"

// JWTService emite y valida tokens de sesión firmados con HS256.
type JWTService struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	denylist TokenDenylist
	now      func() time.Time
}

type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

var (
	ErrTokenInvalid = errors.New("session token invalid")
	ErrTokenExpired = errors.New("session token expired")
)

func NewJWTService(secret string, ttl time.Duration) *JWTService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &JWTService{
		secret:   []byte(secret),
		ttl:      ttl,
		issuer:   sessionIssuer,
		denylist: NewMemoryTokenDenylist(),
		now:      time.Now,
	}
}

func NewJWTServiceWithDenylist(secret string, ttl time.Duration, denylist TokenDenylist) *JWTService {
	svc := NewJWTService(secret, ttl)
	if denylist != nil {
		svc.denylist = denylist
	}
	return svc
}

// TTL devuelve la validez configurada para los tokens emitidos.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// Issue firma un token para userID que expira en TTL.
func (s *JWTService) Issue(userID string) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(userID) == "" {
		return "", ErrTokenInvalid
	}
	now := s.now().UTC()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify valida firma, expiración, emisor y revocación, y devuelve el userID del token.
func (s *JWTService) Verify(token string) (string, error) {
	claims, err := s.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *JWTService) Parse(token string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrTokenInvalid
	}
	if strings.TrimSpace(token) == "" {
		return Claims{}, ErrTokenInvalid
	}
	claims, err := s.parseToken(token)
	if err != nil {
		return Claims{}, err
	}
	if !s.isValidClaims(claims) {
		return Claims{}, ErrTokenInvalid
	}
	if claims.ID != "" && s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(claims.ID)
		if err != nil || revoked {
			return Claims{}, ErrTokenInvalid
		}
	}
	return claims, nil
}

// Revoke invalida el token hasta su expiración natural.
func (s *JWTService) Revoke(token string) error {
	claims, err := s.Parse(token)
	if err != nil {
		return err
	}
	if claims.ID == "" || s.denylist == nil {
		return ErrTokenInvalid
	}
	remaining := claims.ExpiresAt.Time.Sub(s.now())
	return s.denylist.Revoke(claims.ID, remaining)
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

func (s *JWTService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.UserID) == "" {
		return false
	}
	if claims.Subject != claims.UserID {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
