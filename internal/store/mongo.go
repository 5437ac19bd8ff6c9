package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/storefinder/internal/models"
)

const (
	// NearMaxDistance is the radius of the map query in meters.
	NearMaxDistance = 10000
	nearLimit       = 10
	searchLimit     = 5
)

// Connect opens a MongoDB client and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// MongoStore handles store document CRUD and queries in MongoDB.
type MongoStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("stores"), now: time.Now}
}

// EnsureIndexes creates the slug, text and geo indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "name", Value: "text"}, {Key: "description", Value: "text"}},
		},
		{
			Keys: bson.D{{Key: "location", Value: "2dsphere"}},
		},
		{
			Keys: bson.D{{Key: "created", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("mongo store indexes: %w", err)
	}
	return nil
}

// Insert derives a unique slug, stamps the creation time and saves the store.
func (s *MongoStore) Insert(ctx context.Context, store *models.Store) (*models.Store, error) {
	base := slug.Make(store.Name)
	taken, err := s.col.CountDocuments(ctx, slugFilter(base))
	if err != nil {
		return nil, fmt.Errorf("mongo slug count: %w", err)
	}
	store.Slug = uniqueSlug(base, taken)
	store.Created = s.now()
	if store.Location.Type == "" {
		store.Location.Type = "Point"
	}

	res, err := s.col.InsertOne(ctx, store)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("mongo insert store: %w", err)
	}
	store.ID = res.InsertedID.(primitive.ObjectID)
	return store, nil
}

// Update overwrites the editable fields of a store. An empty photo keeps the current one.
func (s *MongoStore) Update(ctx context.Context, store *models.Store) (*models.Store, error) {
	set := bson.M{
		"name":        store.Name,
		"description": store.Description,
		"tags":        store.Tags,
		"location":    models.NewPoint(store.Location.Coordinates[0], store.Location.Coordinates[1], store.Location.Address),
	}
	if store.Photo != "" {
		set["photo"] = store.Photo
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Store
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": store.ID}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo update store: %w", err)
	}
	return &updated, nil
}

// GetByID looks a store up by its hex id.
func (s *MongoStore) GetByID(ctx context.Context, id string) (*models.Store, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

// GetBySlug looks a store up by its public slug.
func (s *MongoStore) GetBySlug(ctx context.Context, slug string) (*models.Store, error) {
	return s.findOne(ctx, bson.M{"slug": slug})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.Store, error) {
	var store models.Store
	if err := s.col.FindOne(ctx, filter).Decode(&store); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo find store: %w", err)
	}
	return &store, nil
}

// List returns one page of stores, newest first, and the total store count.
func (s *MongoStore) List(ctx context.Context, skip, limit int64) ([]models.Store, int64, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
	stores, err := s.find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("mongo count stores: %w", err)
	}
	return stores, count, nil
}

// ListByTag returns stores carrying tag, or every tagged store when tag is empty.
func (s *MongoStore) ListByTag(ctx context.Context, tag string) ([]models.Store, error) {
	return s.find(ctx, tagFilter(tag), options.Find().SetSort(bson.D{{Key: "created", Value: -1}}))
}

// ListByIDs returns the stores whose ids are in ids.
func (s *MongoStore) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Store, error) {
	if len(ids) == 0 {
		return []models.Store{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

// TagCounts aggregates every tag with the number of stores carrying it.
func (s *MongoStore) TagCounts(ctx context.Context) ([]models.TagCount, error) {
	cur, err := s.col.Aggregate(ctx, tagCountPipeline())
	if err != nil {
		return nil, fmt.Errorf("mongo tag aggregate: %w", err)
	}
	defer cur.Close(ctx)

	tags := []models.TagCount{}
	if err := cur.All(ctx, &tags); err != nil {
		return nil, fmt.Errorf("mongo tag decode: %w", err)
	}
	return tags, nil
}

// Search runs a text query and returns the best matches by text score.
func (s *MongoStore) Search(ctx context.Context, q string) ([]models.Store, error) {
	score := bson.M{"score": bson.M{"$meta": "textScore"}}
	opts := options.Find().
		SetProjection(score).
		SetSort(score).
		SetLimit(searchLimit)
	return s.find(ctx, bson.M{"$text": bson.M{"$search": q}}, opts)
}

// Near returns the stores closest to a point, within NearMaxDistance meters.
func (s *MongoStore) Near(ctx context.Context, lng, lat float64) ([]models.Store, error) {
	opts := options.Find().
		SetProjection(bson.D{
			{Key: "slug", Value: 1},
			{Key: "name", Value: 1},
			{Key: "description", Value: 1},
			{Key: "location", Value: 1},
			{Key: "photo", Value: 1},
		}).
		SetLimit(nearLimit)
	return s.find(ctx, nearFilter(lng, lat), opts)
}

func (s *MongoStore) find(ctx context.Context, filter any, opts *options.FindOptions) ([]models.Store, error) {
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find stores: %w", err)
	}
	defer cur.Close(ctx)

	stores := []models.Store{}
	if err := cur.All(ctx, &stores); err != nil {
		return nil, fmt.Errorf("mongo decode stores: %w", err)
	}
	return stores, nil
}

func slugFilter(base string) bson.M {
	pattern := "^" + regexp.QuoteMeta(base) + "((-[0-9]*$)?)$"
	return bson.M{"slug": primitive.Regex{Pattern: pattern, Options: "i"}}
}

// uniqueSlug suffixes base with -N when other stores already use it.
func uniqueSlug(base string, taken int64) string {
	if taken == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, taken+1)
}

func tagFilter(tag string) bson.M {
	if tag == "" {
		return bson.M{"tags": bson.M{"$exists": true}}
	}
	return bson.M{"tags": tag}
}

func tagCountPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$unwind", Value: "$tags"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tags"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
}

func nearFilter(lng, lat float64) bson.M {
	return bson.M{
		"location": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": bson.A{lng, lat},
				},
				"$maxDistance": NearMaxDistance,
			},
		},
	}
}
