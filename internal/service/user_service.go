package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"psy-relay/internal/domain"
	"psy-relay/internal/repository"
)

// UserService coordina el login federado y el perfil de usuario.
type UserService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	identity IdentityVerifier
	tokens   *JWTService
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, identity IdentityVerifier, tokens *JWTService) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger:   logger,
		users:    users,
		identity: identity,
		tokens:   tokens,
	}
}

var ErrUserNotFound = errors.New("user not found")

// ProfileUpdate son los campos editables del perfil; nil significa "sin cambios".
type ProfileUpdate struct {
	Name     *string
	Theme    *string
	Language *string
}

// Login verifica la credencial federada, obtiene o crea el usuario y emite un token de sesión.
func (s *UserService) Login(ctx context.Context, credential string) (domain.User, string, error) {
	if s.users == nil || s.identity == nil || s.tokens == nil {
		return domain.User{}, "", errors.New("user service not configured")
	}

	identity, err := s.identity.Verify(ctx, credential)
	if err != nil {
		return domain.User{}, "", err
	}

	user, err := s.upsertFederatedUser(ctx, identity)
	if err != nil {
		return domain.User{}, "", err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

func (s *UserService) upsertFederatedUser(ctx context.Context, identity Identity) (domain.User, error) {
	user, err := s.users.FindByFederatedID(ctx, identity.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, err
	}

	user, err = s.users.Create(ctx, domain.NewUser{
		FederatedID: identity.Subject,
		Email:       strings.ToLower(strings.TrimSpace(identity.Email)),
		DisplayName: strings.TrimSpace(identity.DisplayName),
	})
	if errors.Is(err, repository.ErrDuplicateFederatedID) {
		// Otro login concurrente creó el registro primero.
		return s.users.FindByFederatedID(ctx, identity.Subject)
	}
	if err != nil {
		return domain.User{}, err
	}
	s.logger.Info("user created", zap.String("user_id", user.ID))
	return user, nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

// UpdateProfile aplica solo los campos presentes; los valores en blanco se ignoran.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	var patch domain.UserPatch
	if name := trimmedOrNil(update.Name); name != nil {
		patch.DisplayName = name
	}
	prefs := map[string]string{}
	if theme := trimmedOrNil(update.Theme); theme != nil {
		prefs[domain.PreferenceTheme] = *theme
	}
	if lang := trimmedOrNil(update.Language); lang != nil {
		prefs[domain.PreferenceLanguage] = *lang
	}
	if len(prefs) > 0 {
		patch.Preferences = prefs
	}

	if patch.IsEmpty() {
		return s.Profile(ctx, userID)
	}

	user, err := s.users.Update(ctx, userID, patch)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
