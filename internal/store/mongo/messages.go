package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/forgecheck/grader/internal/domain"
)

// MessageStore persists MessageRequest rows, satisfying
// internal/frontsvc.MessageStore.
type MessageStore struct {
	coll *mongo.Collection
}

// Insert records a new MessageRequest, one per bus round-trip (spec §6).
func (s *MessageStore) Insert(ctx context.Context, msg domain.MessageRequest) error {
	_, err := s.coll.InsertOne(ctx, msg)
	return err
}

// Complete marks a MessageRequest as successfully completed.
func (s *MessageStore) Complete(ctx context.Context, id string, payload []byte, completedAt time.Time) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":      domain.MessageCompleted,
			"isError":     false,
			"response":    payload,
			"completedAt": completedAt,
		}},
	)
	return err
}

// Fail marks a MessageRequest as completed with an error payload.
func (s *MessageStore) Fail(ctx context.Context, id string, payload []byte, completedAt time.Time) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":       domain.MessageCompleted,
			"isError":      true,
			"errorPayload": payload,
			"completedAt":  completedAt,
		}},
	)
	return err
}
