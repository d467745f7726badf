package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"psy-relay/internal/domain"
)

var (
	ErrNotFound             = errors.New("user not found")
	ErrDuplicateFederatedID = errors.New("federated id already registered")
)

// UserRepository define el contrato de persistencia para usuarios y sus transcripciones.
type UserRepository interface {
	FindByFederatedID(ctx context.Context, federatedID string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	Create(ctx context.Context, input domain.NewUser) (domain.User, error)
	Update(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error)
	AppendSession(ctx context.Context, id string, exchange []string) error
}

// pgxPool es el subconjunto de pgxpool.Pool que usa el repositorio.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool pgxPool
}

func NewPgUserRepository(pool pgxPool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const pgUserColumns = `id, federated_id, email, display_name, preferences, transcripts, created_at, updated_at`

func (r *PgUserRepository) FindByFederatedID(ctx context.Context, federatedID string) (domain.User, error) {
	query := `SELECT ` + pgUserColumns + ` FROM users WHERE federated_id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, federatedID))
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + pgUserColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) Create(ctx context.Context, input domain.NewUser) (domain.User, error) {
	const query = `
		INSERT INTO users (id, federated_id, email, display_name, preferences, transcripts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, '[]'::jsonb, $6, $6)
	`
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
	prefs, err := json.Marshal(user.Preferences)
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal preferences: %w", err)
	}

	_, err = r.pool.Exec(ctx, query,
		user.ID,
		user.FederatedID,
		user.Email,
		user.DisplayName,
		prefs,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, ErrDuplicateFederatedID
		}
		return domain.User{}, err
	}
	return user, nil
}

func (r *PgUserRepository) Update(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	// COALESCE deja intacto cualquier campo que no venga en el patch;
	// jsonb || mezcla solo las claves de preferencias enviadas.
	query := `
		UPDATE users SET
			email = COALESCE($2, email),
			display_name = COALESCE($3, display_name),
			preferences = preferences || $4::jsonb,
			updated_at = $5
		WHERE id = $1
		RETURNING ` + pgUserColumns

	prefs := patch.Preferences
	if prefs == nil {
		prefs = map[string]string{}
	}
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal preferences: %w", err)
	}

	return scanUser(r.pool.QueryRow(ctx, query,
		id,
		patch.Email,
		patch.DisplayName,
		prefsJSON,
		time.Now().UTC(),
	))
}

func (r *PgUserRepository) AppendSession(ctx context.Context, id string, exchange []string) error {
	// Un unico UPDATE: Postgres bloquea la fila, asi dos appends concurrentes no se pisan.
	const query = `
		UPDATE users SET
			transcripts = transcripts || $2::jsonb,
			updated_at = $3
		WHERE id = $1
	`
	now := time.Now().UTC()
	record, err := json.Marshal([]domain.SessionRecord{{Timestamp: now, Exchange: exchange}})
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, id, record, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u           domain.User
		prefsRaw    []byte
		sessionsRaw []byte
	)
	err := row.Scan(
		&u.ID,
		&u.FederatedID,
		&u.Email,
		&u.DisplayName,
		&prefsRaw,
		&sessionsRaw,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}

	u.Preferences = map[string]string{}
	if len(prefsRaw) > 0 {
		if err := json.Unmarshal(prefsRaw, &u.Preferences); err != nil {
			return domain.User{}, fmt.Errorf("unmarshal preferences: %w", err)
		}
	}
	u.Transcripts = []domain.SessionRecord{}
	if len(sessionsRaw) > 0 {
		if err := json.Unmarshal(sessionsRaw, &u.Transcripts); err != nil {
			return domain.User{}, fmt.Errorf("unmarshal transcripts: %w", err)
		}
	}
	return u, nil
}
