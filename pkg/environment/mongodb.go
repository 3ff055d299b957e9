package environment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStore reads composite keys as documents {_id: key, properties: {...}}.
type MongoStore struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoStore reads documents out of collection, bounding every fetch by timeout.
func NewMongoStore(collection *mongo.Collection, timeout time.Duration) *MongoStore {
	return &MongoStore{collection: collection, timeout: timeout}
}

// Name identifies the store in property source names.
func (s *MongoStore) Name() string {
	return "mongodb"
}

type propertiesDocument struct {
	Key        string            `bson:"_id"`
	Properties map[string]string `bson:"properties"`
}

func (s *MongoStore) Fetch(key string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result := s.collection.FindOne(ctx, bson.D{{Key: "_id", Value: key}})
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return map[string]string{}, nil
		}
		return nil, unavailable(s.Name(), key, err)
	}

	var doc propertiesDocument
	if err := result.Decode(&doc); err != nil {
		return nil, malformed(s.Name(), key, err)
	}
	if doc.Properties == nil {
		return map[string]string{}, nil
	}
	return doc.Properties, nil
}
