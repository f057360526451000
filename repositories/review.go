package repositories

import (
	"context"

	"go-tours/models"
	"go-tours/utils"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReviewRepository handles database operations for reviews.
type ReviewRepository struct {
	coll *mongo.Collection
}

func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	return &ReviewRepository{coll: db.Collection("reviews")}
}

// EnsureIndexes makes a user able to review a tour only once.
func (r *ReviewRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errors.Wrap(err, "create review indexes")
}

func (r *ReviewRepository) Find(ctx context.Context, features *utils.APIFeatures, _ ...FindOption) ([]models.Review, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cursor, err := r.coll.Find(ctx, features.Filter, features.FindOptions())
	if err != nil {
		return nil, errors.Wrap(err, "find reviews")
	}
	defer cursor.Close(ctx)
	return decodeAll[models.Review](ctx, cursor, "decode reviews")
}

func (r *ReviewRepository) FindByID(ctx context.Context, id primitive.ObjectID, _ ...FindOption) (*models.Review, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return decodeOne[models.Review](r.coll.FindOne(ctx, bson.M{"_id": id}), "find review")
}

// FindByTour returns the newest reviews of a tour first.
func (r *ReviewRepository) FindByTour(ctx context.Context, tourID primitive.ObjectID) ([]models.Review, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cursor, err := r.coll.Find(ctx, bson.M{"tour": tourID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find tour reviews")
	}
	defer cursor.Close(ctx)
	return decodeAll[models.Review](ctx, cursor, "decode reviews")
}

func (r *ReviewRepository) Insert(ctx context.Context, review *models.Review) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := r.coll.InsertOne(ctx, review)
	if err != nil {
		return errors.Wrap(err, "insert review")
	}
	review.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *ReviewRepository) Replace(ctx context.Context, review *models.Review) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": review.ID}, review)
	if err != nil {
		return errors.Wrap(err, "replace review")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete review")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RatingSummaryPipeline aggregates the count and mean rating of one tour.
func RatingSummaryPipeline(tourID primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tour": tourID}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$tour",
			"nRating":   bson.M{"$sum": 1},
			"avgRating": bson.M{"$avg": "$rating"},
		}}},
	}
}

// RatingSummary returns zero quantity and the default average when a tour has no reviews.
func (r *ReviewRepository) RatingSummary(ctx context.Context, tourID primitive.ObjectID) (models.RatingSummary, error) {
	type row struct {
		NRating   int     `bson:"nRating"`
		AvgRating float64 `bson:"avgRating"`
	}
	rows, err := aggregate[row](ctx, r.coll, RatingSummaryPipeline(tourID), "review rating summary")
	if err != nil {
		return models.RatingSummary{}, err
	}
	if len(rows) == 0 {
		return models.RatingSummary{Quantity: 0, Average: models.DefaultRatingsAverage}, nil
	}
	return models.RatingSummary{Quantity: rows[0].NRating, Average: rows[0].AvgRating}, nil
}
