package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psy-relay/internal/domain"
)

func TestMemoryUserRepository_CreateAppliesDefaults(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user, err := repo.Create(ctx, domain.NewUser{FederatedID: "g-123", Email: "a@b.com", DisplayName: "Ana"})
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "light", user.Theme())
	assert.Equal(t, "en", user.Language())
	assert.Empty(t, user.Transcripts)
	assert.NotNil(t, user.Transcripts)

	found, err := repo.FindByFederatedID(ctx, "g-123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

func TestMemoryUserRepository_RejectsDuplicateFederatedID(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, domain.NewUser{FederatedID: "g-1"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, domain.NewUser{FederatedID: "g-1"})
	assert.ErrorIs(t, err, ErrDuplicateFederatedID)
}

func TestMemoryUserRepository_NotFound(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindByFederatedID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Update(ctx, "missing", domain.UserPatch{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.AppendSession(ctx, "missing", []string{"a", "b"}), ErrNotFound)
}

func TestMemoryUserRepository_PartialUpdateKeepsOtherFields(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	user, err := repo.Create(ctx, domain.NewUser{FederatedID: "g-1", Email: "a@b.com", DisplayName: "Ana"})
	require.NoError(t, err)

	_, err = repo.Update(ctx, user.ID, domain.UserPatch{Preferences: map[string]string{"language": "es"}})
	require.NoError(t, err)

	updated, err := repo.Update(ctx, user.ID, domain.UserPatch{Preferences: map[string]string{"theme": "dark"}})
	require.NoError(t, err)

	assert.Equal(t, "dark", updated.Theme())
	assert.Equal(t, "es", updated.Language())
	assert.Equal(t, "Ana", updated.DisplayName)
	assert.Equal(t, "a@b.com", updated.Email)
}

func TestMemoryUserRepository_AppendSessionKeepsOrder(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	user, err := repo.Create(ctx, domain.NewUser{FederatedID: "g-1"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AppendSession(ctx, user.ID, []string{fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)}))
	}

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, got.Transcripts, 5)
	for i, rec := range got.Transcripts {
		assert.Equal(t, []string{fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)}, rec.Exchange)
		assert.False(t, rec.Timestamp.IsZero())
	}
}

func TestMemoryUserRepository_ConcurrentAppendsArePreserved(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	user, err := repo.Create(ctx, domain.NewUser{FederatedID: "g-1"})
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.AppendSession(ctx, user.ID, []string{fmt.Sprintf("q%d", i), "a"})
		}(i)
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, got.Transcripts, n)
}

func TestMemoryUserRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	user, err := repo.Create(ctx, domain.NewUser{FederatedID: "g-1"})
	require.NoError(t, err)

	user.Preferences["theme"] = "dark"

	fresh, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "light", fresh.Theme())
}
