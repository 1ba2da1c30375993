package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/forgecheck/grader/internal/domain"
)

// ExecutionStore persists ContainerExecution history records, satisfying
// both internal/image.ExecutionStore and internal/submission.ExecutionStore
// (their Insert signatures are identical).
type ExecutionStore struct {
	coll *mongo.Collection
}

// Insert appends a ContainerExecution history record. Records are
// append-only; there is no update path once Seal has run.
func (s *ExecutionStore) Insert(ctx context.Context, execution domain.ContainerExecution) error {
	_, err := s.coll.InsertOne(ctx, execution)
	return err
}
