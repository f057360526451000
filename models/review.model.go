package models

import (
	"strings"
	"time"

	"go-tours/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Review is a user's rating of a tour.
type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Review    string             `bson:"review" json:"review" validate:"required"`
	Rating    int                `bson:"rating" json:"rating" validate:"required,gte=1,lte=5"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	Tour      primitive.ObjectID `bson:"tour" json:"tour" validate:"required"`
	User      primitive.ObjectID `bson:"user" json:"user" validate:"required"`
}

var reviewMessages = map[string]string{
	"review.required": "Review can not be empty!",
	"rating.required": "A review must have a rating",
	"rating.gte":      "Rating must be between 1 and 5",
	"rating.lte":      "Rating must be between 1 and 5",
	"tour.required":   "Review must belong to a tour.",
	"user.required":   "Review must belong to a user",
}

func (rv *Review) Prepare() error {
	rv.Review = strings.TrimSpace(rv.Review)
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().Truncate(time.Millisecond)
	}
	return utils.ValidateStruct(rv, reviewMessages)
}

func (rv *Review) SetID(id primitive.ObjectID) { rv.ID = id }

// ReviewView is a review with its author populated.
type ReviewView struct {
	*Review
	User *UserSummary `json:"user,omitempty"`
}

// RatingSummary is the aggregate of all reviews of one tour.
type RatingSummary struct {
	Quantity int
	Average  float64
}
