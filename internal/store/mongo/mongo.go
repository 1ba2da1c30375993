// Package mongo implements the runner and front services' persistence on
// MongoDB: Project, ContainerExecution, and MessageRequest collections
// (spec §6's persisted state layout).
package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connect dials MongoDB and returns a ready client. Callers are
// responsible for calling client.Disconnect on shutdown.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// Store is a handle on the database; it hands out the narrow,
// single-collection stores that satisfy internal/image.ProjectStore,
// internal/image.ExecutionStore (and the identical
// internal/submission.ExecutionStore), and internal/frontsvc.MessageStore.
// Grounded on the teacher's single-struct-per-database repository shape
// (api/internal/repository/postgres/postgres.go), split one type per
// collection here because Go methods can't be overloaded on argument type
// the way the teacher's single SQL Repository overloads by method name.
type Store struct {
	db *mongo.Database
}

// New builds a Store backed by db.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Projects returns the Project collection store.
func (s *Store) Projects() *ProjectStore {
	return &ProjectStore{coll: s.db.Collection("projects")}
}

// Executions returns the ContainerExecution collection store.
func (s *Store) Executions() *ExecutionStore {
	return &ExecutionStore{coll: s.db.Collection("container_executions")}
}

// Messages returns the MessageRequest collection store.
func (s *Store) Messages() *MessageStore {
	return &MessageStore{coll: s.db.Collection("message_requests")}
}
