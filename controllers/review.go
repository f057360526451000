package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"go-tours/middleware"
	"go-tours/models"
	"go-tours/repositories"
	"go-tours/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReviewStore is the review persistence the controller needs.
type ReviewStore interface {
	Store[models.Review]
	RatingSummary(ctx context.Context, tourID primitive.ObjectID) (models.RatingSummary, error)
}

// RatingsWriter stores the aggregated ratings of a tour.
type RatingsWriter interface {
	FindByID(ctx context.Context, id primitive.ObjectID, opts ...repositories.FindOption) (*models.Tour, error)
	UpdateRatings(ctx context.Context, id primitive.ObjectID, summary models.RatingSummary) error
}

// ReviewController handles review-related requests, both top level and
// nested under a tour.
type ReviewController struct {
	Reviews ReviewStore
	Tours   RatingsWriter
	Users   UserLookup
	crud    *Factory[models.Review, *models.Review]
}

func NewReviewController(reviews ReviewStore, tours RatingsWriter, users UserLookup) *ReviewController {
	rc := &ReviewController{Reviews: reviews, Tours: tours, Users: users}
	rc.crud = &Factory[models.Review, *models.Review]{
		Store:    reviews,
		Defaults: setTourUser,
		Preserve: func(doc, stored *models.Review) {
			doc.Tour, doc.User, doc.CreatedAt = stored.Tour, stored.User, stored.CreatedAt
		},
		Check: rc.checkTour,
		Present: func(ctx context.Context, rv *models.Review) (any, error) {
			views, err := reviewViews(ctx, rc.Users, []models.Review{*rv})
			if err != nil {
				return nil, err
			}
			return views[0], nil
		},
		PresentAll: func(ctx context.Context, rvs []models.Review) (any, error) {
			return reviewViews(ctx, rc.Users, rvs)
		},
		AfterWrite: rc.afterWrite,
	}
	return rc
}

// setTourUser takes the tour from the nested route when the body has none.
// The author is always the logged in user.
func setTourUser(r *http.Request, rv *models.Review) {
	if rv.Tour.IsZero() {
		if id, err := primitive.ObjectIDFromHex(mux.Vars(r)["tourid"]); err == nil {
			rv.Tour = id
		}
	}
	if me, ok := middleware.Identity(r); ok {
		rv.User = me.ID
	}
}

// tourScope limits a nested listing to its tour.
func tourScope(r *http.Request) (bson.M, error) {
	raw, ok := mux.Vars(r)["tourid"]
	if !ok {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, &utils.CastError{Path: "_id", Value: raw}
	}
	return bson.M{"tour": id}, nil
}

func (rc *ReviewController) checkTour(ctx context.Context, rv *models.Review) error {
	if rv.Tour.IsZero() {
		return nil
	}
	_, err := rc.Tours.FindByID(ctx, rv.Tour, repositories.IncludeSecret())
	if errors.Is(err, repositories.ErrNotFound) {
		return utils.NotFound("No tour found with that ID")
	}
	return err
}

func (rc *ReviewController) afterWrite(ctx context.Context, docs ...*models.Review) error {
	done := map[primitive.ObjectID]bool{}
	for _, rv := range docs {
		if done[rv.Tour] {
			continue
		}
		done[rv.Tour] = true
		if err := rc.RecalculateRatings(ctx, rv.Tour); err != nil {
			return err
		}
	}
	return nil
}

// RecalculateRatings aggregates every review of a tour into its rating
// quantity and average.
func (rc *ReviewController) RecalculateRatings(ctx context.Context, tourID primitive.ObjectID) error {
	summary, err := rc.Reviews.RatingSummary(ctx, tourID)
	if err != nil {
		return err
	}
	if err := rc.Tours.UpdateRatings(ctx, tourID, summary); err != nil {
		return err
	}
	log.Printf("tour %s ratings: %d reviews, average %.1f", tourID.Hex(), summary.Quantity, summary.Average)
	return nil
}

// OwnReview lets admins through and others only for reviews they wrote.
func (rc *ReviewController) OwnReview(next middleware.AuthedHandler) middleware.AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, me *models.User) error {
		if me.HasRole(models.RoleAdmin) {
			return next(w, r, me)
		}
		id, err := parseID(r, "id")
		if err != nil {
			return err
		}
		rv, err := rc.Reviews.FindByID(r.Context(), id)
		if err != nil {
			return notFound(err)
		}
		if rv.User != me.ID {
			return utils.Forbidden("You can only change your own reviews")
		}
		return next(w, r, me)
	}
}

func (rc *ReviewController) GetReviews() middleware.Handler   { return rc.crud.GetAll(tourScope) }
func (rc *ReviewController) GetReview() middleware.Handler    { return rc.crud.GetOne() }
func (rc *ReviewController) CreateReview() middleware.Handler { return rc.crud.CreateOne() }
func (rc *ReviewController) UpdateReview() middleware.Handler { return rc.crud.UpdateOne() }
func (rc *ReviewController) DeleteReview() middleware.Handler { return rc.crud.DeleteOne() }
