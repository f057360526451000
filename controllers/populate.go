package controllers

import (
	"context"

	"go-tours/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserLookup resolves user references for presentation.
type UserLookup interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
}

// ReviewLookup loads the reviews of a tour.
type ReviewLookup interface {
	FindByTour(ctx context.Context, tourID primitive.ObjectID) ([]models.Review, error)
}

// summaries maps ids to the public part of their active users. Missing and
// deactivated users are left out.
func summaries(ctx context.Context, users UserLookup, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	seen := map[primitive.ObjectID]bool{}
	unique := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	found, err := users.FindByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]models.UserSummary, len(found))
	for i := range found {
		out[found[i].ID] = found[i].Summary()
	}
	return out, nil
}

// reviewViews attaches author name and photo to each review.
func reviewViews(ctx context.Context, users UserLookup, reviews []models.Review) ([]models.ReviewView, error) {
	ids := make([]primitive.ObjectID, len(reviews))
	for i := range reviews {
		ids[i] = reviews[i].User
	}
	authors, err := summaries(ctx, users, ids)
	if err != nil {
		return nil, err
	}
	views := make([]models.ReviewView, len(reviews))
	for i := range reviews {
		views[i] = models.ReviewView{Review: &reviews[i]}
		if a, ok := authors[reviews[i].User]; ok {
			views[i].User = &models.UserSummary{ID: a.ID, Name: a.Name, Photo: a.Photo}
		}
	}
	return views, nil
}

// tourViews attaches guides and the duration in weeks to each tour. Reviews are
// only loaded when withReviews is set.
func tourViews(ctx context.Context, users UserLookup, reviews ReviewLookup, tours []models.Tour, withReviews bool) ([]models.TourView, error) {
	var ids []primitive.ObjectID
	for i := range tours {
		ids = append(ids, tours[i].Guides...)
	}
	guides, err := summaries(ctx, users, ids)
	if err != nil {
		return nil, err
	}
	views := make([]models.TourView, len(tours))
	for i := range tours {
		t := &tours[i]
		views[i] = models.TourView{Tour: t, DurationWeeks: t.DurationWeeks(), Guides: []models.UserSummary{}}
		for _, gid := range t.Guides {
			if g, ok := guides[gid]; ok {
				views[i].Guides = append(views[i].Guides, g)
			}
		}
		if withReviews {
			rs, err := reviews.FindByTour(ctx, t.ID)
			if err != nil {
				return nil, err
			}
			if views[i].Reviews, err = reviewViews(ctx, users, rs); err != nil {
				return nil, err
			}
		}
	}
	return views, nil
}
