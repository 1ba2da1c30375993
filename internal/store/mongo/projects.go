package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/forgecheck/grader/internal/domain"
)

// ProjectStore persists Project records, satisfying internal/image.ProjectStore.
type ProjectStore struct {
	coll *mongo.Collection
}

// Upsert replaces the project record keyed by name.
func (s *ProjectStore) Upsert(ctx context.Context, project domain.Project) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": project.Name},
		project,
		options.Replace().SetUpsert(true),
	)
	return err
}

// Get returns the project record for name, or nil if none exists.
func (s *ProjectStore) Get(ctx context.Context, name string) (*domain.Project, error) {
	var project domain.Project
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&project)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// Delete removes the project record for name.
func (s *ProjectStore) Delete(ctx context.Context, name string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": name})
	return err
}
