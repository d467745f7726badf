package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Identity es el resultado de verificar una credencial federada.
type Identity struct {
	Subject       string
	Email         string
	DisplayName   string
	EmailVerified bool
}

// IdentityVerifier valida credenciales emitidas por un proveedor de identidad externo.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}

var ErrInvalidCredential = errors.New("invalid credential")

const (
	jwksRefreshInterval  = time.Hour
	jwksRefetchCooldown  = time.Minute
	googleClockLeeway    = 30 * time.Second
	googleJWKSFetchLimit = 5 * time.Second
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// GoogleVerifier verifica ID tokens de Google (RS256) contra las claves públicas publicadas.
type GoogleVerifier struct {
	audience string
	issuers  []string
	keys     keyfunc.Keyfunc
	logger   *zap.Logger
}

// NewGoogleVerifier descarga el JWKS de certsURL y lo refresca en segundo plano
// hasta que ctx se cancele. Un kid desconocido fuerza un refetch, como mucho uno
// por minuto.
func NewGoogleVerifier(ctx context.Context, audience, certsURL string, logger *zap.Logger) (*GoogleVerifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	keys, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{certsURL}, keyfunc.Override{
		Client:            resty.New().SetTimeout(googleJWKSFetchLimit).GetClient(),
		HTTPTimeout:       googleJWKSFetchLimit,
		RateLimitWaitMax:  googleJWKSFetchLimit,
		RefreshInterval:   jwksRefreshInterval,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(jwksRefetchCooldown), 1),
		RefreshErrorHandlerFunc: func(url string) func(context.Context, error) {
			return func(_ context.Context, err error) {
				logger.Warn("jwks refresh failed", zap.String("url", url), zap.Error(err))
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks %s: %w", certsURL, err)
	}
	return newGoogleVerifier(audience, keys, logger), nil
}

func newGoogleVerifier(audience string, keys keyfunc.Keyfunc, logger *zap.Logger) *GoogleVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleVerifier{
		audience: audience,
		issuers:  googleIssuers,
		keys:     keys,
		logger:   logger,
	}
}

func (v *GoogleVerifier) Verify(ctx context.Context, credential string) (Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Identity{}, ErrInvalidCredential
	}
	if v.audience == "" {
		v.logger.Error("identity verifier has no audience configured")
		return Identity{}, ErrInvalidCredential
	}

	var claims googleClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(googleClockLeeway),
	)
	_, err := parser.ParseWithClaims(credential, &claims, v.keys.KeyfuncCtx(ctx))
	if err != nil {
		v.logger.Info("credential rejected", zap.Error(err))
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	if !v.trustedIssuer(claims.Issuer) {
		v.logger.Info("credential rejected", zap.String("issuer", claims.Issuer))
		return Identity{}, fmt.Errorf("%w: untrusted issuer", ErrInvalidCredential)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}

	return Identity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		DisplayName:   claims.Name,
		EmailVerified: claims.EmailVerified,
	}, nil
}

func (v *GoogleVerifier) trustedIssuer(iss string) bool {
	for _, trusted := range v.issuers {
		if iss == trusted {
			return true
		}
	}
	return false
}
