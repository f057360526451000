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

// TourRepository handles database operations for tours. Secret tours are
// excluded from every read unless IncludeSecret is passed.
type TourRepository struct {
	coll *mongo.Collection
}

func NewTourRepository(db *mongo.Database) *TourRepository {
	return &TourRepository{coll: db.Collection("tours")}
}

func (r *TourRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}}},
		{Keys: bson.D{{Key: "slug", Value: 1}}},
		{Keys: bson.D{{Key: "startLocation", Value: "2dsphere"}}},
	})
	return errors.Wrap(err, "create tour indexes")
}

// TourFilter adds the public-tour default to filter. A caller supplied
// secretTour condition is overridden.
func TourFilter(filter bson.M, opts ...FindOption) bson.M {
	out := copyFilter(filter)
	if !applyOptions(opts).includeSecret {
		out["secretTour"] = bson.M{"$ne": true}
	}
	return out
}

func (r *TourRepository) Find(ctx context.Context, features *utils.APIFeatures, opts ...FindOption) ([]models.Tour, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cursor, err := r.coll.Find(ctx, TourFilter(features.Filter, opts...), features.FindOptions())
	if err != nil {
		return nil, errors.Wrap(err, "find tours")
	}
	defer cursor.Close(ctx)
	return decodeAll[models.Tour](ctx, cursor, "decode tours")
}

func (r *TourRepository) FindByID(ctx context.Context, id primitive.ObjectID, opts ...FindOption) (*models.Tour, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return decodeOne[models.Tour](r.coll.FindOne(ctx, TourFilter(bson.M{"_id": id}, opts...)), "find tour")
}

func (r *TourRepository) FindBySlug(ctx context.Context, slug string, opts ...FindOption) (*models.Tour, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return decodeOne[models.Tour](r.coll.FindOne(ctx, TourFilter(bson.M{"slug": slug}, opts...)), "find tour by slug")
}

func (r *TourRepository) Insert(ctx context.Context, tour *models.Tour) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := r.coll.InsertOne(ctx, tour)
	if err != nil {
		return errors.Wrap(err, "insert tour")
	}
	tour.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *TourRepository) Replace(ctx context.Context, tour *models.Tour) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": tour.ID}, tour)
	if err != nil {
		return errors.Wrap(err, "replace tour")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TourRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete tour")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRatings stores a freshly aggregated rating summary on the tour.
func (r *TourRepository) UpdateRatings(ctx context.Context, id primitive.ObjectID, summary models.RatingSummary) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"ratingsQuantity": summary.Quantity,
		"ratingsAverage":  models.RoundRating(summary.Average),
	}})
	return errors.Wrap(err, "update tour ratings")
}

// StatsPipeline groups well rated public tours by difficulty.
func StatsPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"ratingsAverage": bson.M{"$gte": 4.5}, "secretTour": bson.M{"$ne": true}}}},
		{{Key: "$group", Value: bson.M{
			"_id":        bson.M{"$toUpper": "$difficulty"},
			"numTours":   bson.M{"$sum": 1},
			"numRatings": bson.M{"$sum": "$ratingsQuantity"},
			"avgRating":  bson.M{"$avg": "$ratingsAverage"},
			"avgPrice":   bson.M{"$avg": "$price"},
			"minPrice":   bson.M{"$min": "$price"},
			"maxPrice":   bson.M{"$max": "$price"},
		}}},
		{{Key: "$sort", Value: bson.M{"avgPrice": 1}}},
	}
}

// MonthlyPlanPipeline counts tour starts per month of year.
func MonthlyPlanPipeline(year int) mongo.Pipeline {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"secretTour": bson.M{"$ne": true}}}},
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.M{"startDates": bson.M{"$gte": from, "$lt": to}}}},
		{{Key: "$group", Value: bson.M{
			"_id":           bson.M{"$month": "$startDates"},
			"numTourStarts": bson.M{"$sum": 1},
			"tours":         bson.M{"$push": "$name"},
		}}},
		{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}, {Key: "month", Value: 1}}}},
		{{Key: "$limit", Value: 12}},
	}
}

// DistancesPipeline orders public tours by distance from [lng, lat]. $geoNear
// must be the first stage, so the secret-tour default goes into its query.
func DistancesPipeline(lng, lat, multiplier float64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near":               bson.M{"type": "Point", "coordinates": bson.A{lng, lat}},
			"distanceField":      "distance",
			"distanceMultiplier": multiplier,
			"spherical":          true,
			"query":              bson.M{"secretTour": bson.M{"$ne": true}},
		}}},
		{{Key: "$project", Value: bson.M{"distance": 1, "name": 1}}},
	}
}

// WithinFilter matches tours starting inside a sphere of radius radians around [lng, lat].
func WithinFilter(lng, lat, radius float64) bson.M {
	return TourFilter(bson.M{"startLocation": bson.M{
		"$geoWithin": bson.M{"$centerSphere": bson.A{bson.A{lng, lat}, radius}},
	}})
}

func (r *TourRepository) Stats(ctx context.Context) ([]models.TourStats, error) {
	return aggregate[models.TourStats](ctx, r.coll, StatsPipeline(), "tour stats")
}

func (r *TourRepository) MonthlyPlan(ctx context.Context, year int) ([]models.MonthlyPlan, error) {
	return aggregate[models.MonthlyPlan](ctx, r.coll, MonthlyPlanPipeline(year), "monthly plan")
}

func (r *TourRepository) Distances(ctx context.Context, lng, lat, multiplier float64) ([]models.TourDistance, error) {
	return aggregate[models.TourDistance](ctx, r.coll, DistancesPipeline(lng, lat, multiplier), "tour distances")
}

func (r *TourRepository) Within(ctx context.Context, lng, lat, radius float64) ([]models.Tour, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cursor, err := r.coll.Find(ctx, WithinFilter(lng, lat, radius))
	if err != nil {
		return nil, errors.Wrap(err, "find tours within")
	}
	defer cursor.Close(ctx)
	return decodeAll[models.Tour](ctx, cursor, "decode tours")
}

func aggregate[T any](ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, op string) ([]T, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	defer cursor.Close(ctx)
	return decodeAll[T](ctx, cursor, op)
}
