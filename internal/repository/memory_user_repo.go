package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"psy-relay/internal/domain"
)

// MemoryUserRepository guarda usuarios en memoria. Util para desarrollo local y tests.
type MemoryUserRepository struct {
	mu          sync.Mutex
	byID        map[string]domain.User
	byFederated map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:        make(map[string]domain.User),
		byFederated: make(map[string]string),
	}
}

func (r *MemoryUserRepository) FindByFederatedID(_ context.Context, federatedID string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byFederated[federatedID]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) Create(_ context.Context, input domain.NewUser) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byFederated[input.FederatedID]; exists {
		return domain.User{}, ErrDuplicateFederatedID
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:          uuid.NewString(),
		FederatedID: input.FederatedID,
		Email:       input.Email,
		DisplayName: input.DisplayName,
		Preferences: domain.DefaultPreferences(),
		Transcripts: []domain.SessionRecord{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.byID[user.ID] = user
	r.byFederated[user.FederatedID] = user.ID
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) Update(_ context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	user = cloneUser(user)
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.DisplayName != nil {
		user.DisplayName = *patch.DisplayName
	}
	for k, v := range patch.Preferences {
		user.Preferences[k] = v
	}
	user.UpdatedAt = time.Now().UTC()
	r.byID[id] = user
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) AppendSession(_ context.Context, id string, exchange []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	user.Transcripts = append(user.Transcripts, domain.SessionRecord{
		Timestamp: now,
		Exchange:  append([]string(nil), exchange...),
	})
	user.UpdatedAt = now
	r.byID[id] = user
	return nil
}

// cloneUser copia mapas y slices para que el llamador no comparta estado con el repo.
func cloneUser(u domain.User) domain.User {
	prefs := make(map[string]string, len(u.Preferences))
	for k, v := range u.Preferences {
		prefs[k] = v
	}
	u.Preferences = prefs

	sessions := make([]domain.SessionRecord, len(u.Transcripts))
	for i, s := range u.Transcripts {
		sessions[i] = domain.SessionRecord{
			Timestamp: s.Timestamp,
			Exchange:  append([]string(nil), s.Exchange...),
		}
	}
	u.Transcripts = sessions
	return u
}
