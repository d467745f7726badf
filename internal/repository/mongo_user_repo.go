package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"psy-relay/internal/domain"
)

// DefaultUsersCollection es el nombre de la coleccion de usuarios.
const DefaultUsersCollection = "users"

// MongoUserRepository implementa UserRepository sobre una coleccion de MongoDB.
// Cada usuario es un documento; las transcripciones viven embebidas en el.
type MongoUserRepository struct {
	coll *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection(DefaultUsersCollection)}
}

// EnsureIndexes crea el indice unico sobre federated_id.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "federated_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("federated_id_unique"),
	})
	return err
}

func (r *MongoUserRepository) FindByFederatedID(ctx context.Context, federatedID string) (domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "federated_id", Value: federatedID}})
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *MongoUserRepository) Create(ctx context.Context, input domain.NewUser) (domain.User, error) {
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
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.User{}, ErrDuplicateFederatedID
		}
		return domain.User{}, err
	}
	return user, nil
}

func (r *MongoUserRepository) Update(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	if patch.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *patch.Email})
	}
	if patch.DisplayName != nil {
		set = append(set, bson.E{Key: "display_name", Value: *patch.DisplayName})
	}
	for key, value := range patch.Preferences {
		if key == "" || strings.ContainsAny(key, ".$") {
			return domain.User{}, fmt.Errorf("invalid preference key %q", key)
		}
		set = append(set, bson.E{Key: "preferences." + key, Value: value})
	}

	var user domain.User
	err := r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return normalizeUser(user), nil
}

func (r *MongoUserRepository) AppendSession(ctx context.Context, id string, exchange []string) error {
	now := time.Now().UTC()
	record := domain.SessionRecord{Timestamp: now, Exchange: exchange}
	// $push es atomico a nivel de documento: dos appends simultaneos se conservan ambos.
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{
			{Key: "$push", Value: bson.D{{Key: "transcripts", Value: record}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now}}},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.D) (domain.User, error) {
	var user domain.User
	err := r.coll.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return normalizeUser(user), nil
}

func normalizeUser(u domain.User) domain.User {
	if u.Preferences == nil {
		u.Preferences = map[string]string{}
	}
	if u.Transcripts == nil {
		u.Transcripts = []domain.SessionRecord{}
	}
	return u
}
