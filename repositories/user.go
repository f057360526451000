package repositories

import (
	"context"
	"time"

	"go-tours/models"
	"go-tours/utils"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository handles database operations for users. Deactivated users are
// excluded from every read unless IncludeInactive is passed.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection("users")}
}

// EnsureIndexes creates the unique email index.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errors.Wrap(err, "create user indexes")
}

// UserFilter adds the active-account default to filter.
func UserFilter(filter bson.M, opts ...FindOption) bson.M {
	out := copyFilter(filter)
	if !applyOptions(opts).includeInactive {
		out["active"] = bson.M{"$ne": false}
	}
	return out
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M, opts []FindOption) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return decodeOne[models.User](r.coll.FindOne(ctx, UserFilter(filter, opts...)), "find user")
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID, opts ...FindOption) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, opts)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string, opts ...FindOption) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)}, opts)
}

// ConsumeResetToken atomically clears an unexpired reset token matching hash
// and returns its owner. A token can therefore be consumed only once.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	filter := UserFilter(bson.M{
		"passwordResetToken":   hash,
		"passwordResetExpires": bson.M{"$gt": now},
	})
	res := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$unset": bson.M{
		"passwordResetToken":   "",
		"passwordResetExpires": "",
	}}, options.FindOneAndUpdate().SetReturnDocument(options.After))
	return decodeOne[models.User](res, "consume reset token")
}

// FindByIDs returns the active users among ids, in no particular order.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cursor, err := r.coll.Find(ctx, UserFilter(bson.M{"_id": bson.M{"$in": ids}}))
	if err != nil {
		return nil, errors.Wrap(err, "find users by id")
	}
	defer cursor.Close(ctx)
	return decodeAll[models.User](ctx, cursor, "decode users")
}

func (r *UserRepository) Find(ctx context.Context, features *utils.APIFeatures, opts ...FindOption) ([]models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cursor, err := r.coll.Find(ctx, UserFilter(features.Filter, opts...), features.FindOptions())
	if err != nil {
		return nil, errors.Wrap(err, "find users")
	}
	defer cursor.Close(ctx)
	return decodeAll[models.User](ctx, cursor, "decode users")
}

func (r *UserRepository) Insert(ctx context.Context, user *models.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := r.coll.InsertOne(ctx, user)
	if err != nil {
		return errors.Wrap(err, "insert user")
	}
	user.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// Replace writes the whole document. Deactivated users cannot be replaced.
func (r *UserRepository) Replace(ctx context.Context, user *models.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := r.coll.ReplaceOne(ctx, UserFilter(bson.M{"_id": user.ID}), user)
	if err != nil {
		return errors.Wrap(err, "replace user")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateFields sets the given fields and returns the updated user.
func (r *UserRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res := r.coll.FindOneAndUpdate(ctx, UserFilter(bson.M{"_id": id}), bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	return decodeOne[models.User](res, "update user")
}

// SetResetToken stores a reset-token hash without touching any other field.
func (r *UserRepository) SetResetToken(ctx context.Context, id primitive.ObjectID, hash string, expires time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"passwordResetToken":   hash,
		"passwordResetExpires": expires,
	}})
	return errors.Wrap(err, "set reset token")
}

func (r *UserRepository) ClearResetToken(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$unset": bson.M{
		"passwordResetToken":   "",
		"passwordResetExpires": "",
	}})
	return errors.Wrap(err, "clear reset token")
}

// Deactivate soft-deletes a user.
func (r *UserRepository) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"active": false}})
	return errors.Wrap(err, "deactivate user")
}

func (r *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete user")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
