package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"diabuddy/internal/config"
	"diabuddy/internal/models"
)

const messageCollection = "chat_message_history"

// MongoStore keeps one history document per user and appends with Mongo's
// $push/$each upsert, so concurrent appends for a new user cannot race.
type MongoStore struct {
	client   *mongo.Client
	messages *mongo.Collection
}

type historyDocument struct {
	UserID   string                `bson:"user_id"`
	Messages []*models.ChatMessage `bson:"messages"`
}

// OpenMongo connects to the configured deployment and ensures the per-user
// unique index on the history collection.
func OpenMongo(ctx context.Context, cfg config.MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(messageCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure user_id index: %w", err)
	}

	return &MongoStore{client: client, messages: coll}, nil
}

// Append implements Store using a single atomic upsert-append.
func (s *MongoStore) Append(ctx context.Context, userID string, msgs []*models.ChatMessage) ([]*models.ChatMessage, error) {
	if userID == "" {
		return nil, errors.New("user id required")
	}
	if len(msgs) == 0 {
		return msgs, nil
	}

	res, err := s.messages.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$push": bson.M{"messages": bson.M{"$each": msgs}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return nil, fmt.Errorf("append messages: %w", err)
	}
	if !res.Acknowledged {
		return nil, ErrNotAcknowledged
	}
	return msgs, nil
}

// Messages implements Store.
func (s *MongoStore) Messages(ctx context.Context, userID string) ([]*models.ChatMessage, error) {
	var doc historyDocument
	err := s.messages.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoHistory
		}
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return doc.Messages, nil
}

// Delete implements Store. Removing an absent record is a no-op.
func (s *MongoStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.messages.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
