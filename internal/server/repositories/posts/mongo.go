package posts

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrijs2005/edumate/internal/server/models"
)

// CollectionName is the MongoDB collection holding posts.
const CollectionName = "posts"

type collection interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
	DeleteMany(ctx context.Context, filter any, opts ...options.Lister[options.DeleteManyOptions]) (*mongo.DeleteResult, error)
}

// MongoRepository keeps each post as one document with embedded attachments.
// MongoDB has no foreign keys, so Create does not check the poster.
type MongoRepository struct {
	coll collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the feed index. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(CollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "poster_id", Value: 1}, {Key: "upload_date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, p *models.Post) error {
	doc := *p
	if doc.Attachments == nil {
		doc.Attachments = []models.PostAttachment{}
	}
	if _, err := r.coll.InsertOne(ctx, &doc); err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *MongoRepository) ListByPoster(ctx context.Context, posterID string) ([]*models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "upload_date", Value: -1}, {Key: "_id", Value: 1}})

	cur, err := r.coll.Find(ctx, bson.M{"poster_id": posterID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo error: %w", err)
	}

	var docs []models.Post
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo error: %w", err)
	}

	out := make([]*models.Post, len(docs))
	for i := range docs {
		out[i] = &docs[i]
	}
	return out, nil
}

func (r *MongoRepository) DeleteByPoster(ctx context.Context, posterID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"poster_id": posterID})
	if err != nil {
		return 0, fmt.Errorf("mongo error: %w", err)
	}
	return res.DeletedCount, nil
}
