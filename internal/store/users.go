package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/storefinder/internal/models"
)

// UserStore handles user accounts in MongoDB.
type UserStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{col: db.Collection("users"), now: time.Now}
}

// EnsureIndexes creates the unique email index and the reset token lookup index.
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "resetPasswordToken", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo user indexes: %w", err)
	}
	return nil
}

func (s *UserStore) CreateUser(ctx context.Context, name, email, hashedPw string) (*models.User, error) {
	u := &models.User{
		Name:         name,
		Email:        normalizeEmail(email),
		PasswordHash: hashedPw,
		Hearts:       []primitive.ObjectID{},
		CreatedAt:    s.now(),
	}
	res, err := s.col.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("mongo insert user: %w", err)
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return u, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

// GetUserByResetToken finds the user holding a live reset token.
func (s *UserStore) GetUserByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, resetTokenFilter(token, now))
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo find user: %w", err)
	}
	return &u, nil
}

// UpdateProfile changes the user's display name and email.
func (s *UserStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, name, email string) (*models.User, error) {
	update := bson.M{"$set": bson.M{"name": name, "email": normalizeEmail(email)}}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

// SetResetToken stores a reset token and its expiry on the user.
func (s *UserStore) SetResetToken(ctx context.Context, id primitive.ObjectID, token string, expires time.Time) error {
	update := bson.M{"$set": bson.M{"resetPasswordToken": token, "resetPasswordExpires": expires}}
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("mongo set reset token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetPassword replaces the password hash and clears the reset token in one update.
// The filter re-checks the token so a concurrent consumer cannot reuse it.
func (s *UserStore) ResetPassword(ctx context.Context, id primitive.ObjectID, token, hashedPw string) (*models.User, error) {
	filter := resetTokenFilter(token, s.now())
	filter["_id"] = id
	update := bson.M{
		"$set":   bson.M{"passwordHash": hashedPw},
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpires": ""},
	}
	return s.findOneAndUpdate(ctx, filter, update)
}

// ToggleHeart adds storeID to the user's hearts when absent and removes it when present.
// The membership check and the write happen in a single pipeline update.
func (s *UserStore) ToggleHeart(ctx context.Context, userID, storeID primitive.ObjectID) (*models.User, error) {
	return s.findOneAndUpdate(ctx, bson.M{"_id": userID}, heartTogglePipeline(storeID))
}

func (s *UserStore) findOneAndUpdate(ctx context.Context, filter bson.M, update any) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("mongo update user: %w", err)
	}
	return &u, nil
}

func resetTokenFilter(token string, now time.Time) bson.M {
	return bson.M{
		"resetPasswordToken":   token,
		"resetPasswordExpires": bson.M{"$gt": now},
	}
}

func heartTogglePipeline(storeID primitive.ObjectID) mongo.Pipeline {
	hearts := bson.D{{Key: "$ifNull", Value: bson.A{"$hearts", bson.A{}}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "hearts", Value: bson.D{
				{Key: "$cond", Value: bson.D{
					{Key: "if", Value: bson.D{{Key: "$in", Value: bson.A{storeID, hearts}}}},
					{Key: "then", Value: bson.D{{Key: "$setDifference", Value: bson.A{hearts, bson.A{storeID}}}}},
					{Key: "else", Value: bson.D{{Key: "$concatArrays", Value: bson.A{hearts, bson.A{storeID}}}}},
				}},
			}},
		}}},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
