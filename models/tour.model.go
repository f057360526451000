package models

import (
	"math"
	"strings"
	"time"

	"go-tours/utils"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tour difficulties.
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

const DefaultRatingsAverage = 4.5

// GeoPoint is a GeoJSON point with coordinates in [lng, lat] order.
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates" validate:"len=2"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Day         int       `bson:"day,omitempty" json:"day,omitempty"`
}

// Tour represents a bookable tour
type Tour struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Name            string               `bson:"name" json:"name,omitempty" validate:"required,min=10,max=40"`
	Slug            string               `bson:"slug" json:"slug,omitempty"`
	Duration        int                  `bson:"duration" json:"duration,omitempty" validate:"required,gt=0"`
	MaxGroupSize    int                  `bson:"maxGroupSize" json:"maxGroupSize,omitempty" validate:"required,gt=0"`
	Difficulty      string               `bson:"difficulty" json:"difficulty,omitempty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64              `bson:"ratingsAverage" json:"ratingsAverage,omitempty" validate:"gte=1,lte=5"`
	RatingsQuantity int                  `bson:"ratingsQuantity" json:"ratingsQuantity"`
	Price           float64              `bson:"price" json:"price,omitempty" validate:"required,gt=0"`
	DiscountPrice   float64              `bson:"discountPrice,omitempty" json:"discountPrice,omitempty" validate:"omitempty,ltfield=Price"`
	Summary         string               `bson:"summary,omitempty" json:"summary,omitempty"`
	Description     string               `bson:"description,omitempty" json:"description,omitempty"`
	ImageCover      string               `bson:"imageCover,omitempty" json:"imageCover,omitempty"`
	Images          []string             `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt,omitempty"`
	StartDates      []time.Time          `bson:"startDates,omitempty" json:"startDates,omitempty"`
	SecretTour      bool                 `bson:"secretTour" json:"secretTour,omitempty"`
	StartLocation   *GeoPoint            `bson:"startLocation,omitempty" json:"startLocation,omitempty"`
	Locations       []GeoPoint           `bson:"locations,omitempty" json:"locations,omitempty" validate:"dive"`
	Guides          []primitive.ObjectID `bson:"guides,omitempty" json:"guides,omitempty"`
}

var tourMessages = map[string]string{
	"name.required":         "A tour must have a name",
	"name.min":              "A tour name must have more or equal than 10 characters",
	"name.max":              "A tour name must have less or equal than 40 characters",
	"duration.required":     "A tour must have a duration",
	"duration.gt":           "A tour duration must be positive",
	"maxGroupSize.required": "A tour must have a group size",
	"maxGroupSize.gt":       "A tour group size must be positive",
	"difficulty.required":   "A tour must have a difficulty",
	"difficulty.oneof":      "Difficulty is either: easy, medium, difficult",
	"ratingsAverage.gte":    "Rating must be above 1.0",
	"ratingsAverage.lte":    "Rating must be below 5.0",
	"price.required":        "A tour must have a price",
	"price.gt":              "A tour price must be positive",
	"discountPrice.ltfield": "Discount price should be below regular price",
	"coordinates.len":       "A location needs exactly [longitude, latitude] coordinates",
}

// Prepare derives the slug, fills defaults and validates the tour. It is
// called explicitly before every insert and replace.
func (t *Tour) Prepare() error {
	t.Name = strings.TrimSpace(t.Name)
	t.Slug = slug.Make(t.Name)
	if t.RatingsAverage == 0 {
		t.RatingsAverage = DefaultRatingsAverage
	}
	t.RatingsAverage = RoundRating(t.RatingsAverage)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().Truncate(time.Millisecond)
	}
	if t.StartLocation != nil && t.StartLocation.Type == "" {
		t.StartLocation.Type = "Point"
	}
	for i := range t.Locations {
		if t.Locations[i].Type == "" {
			t.Locations[i].Type = "Point"
		}
	}
	return utils.ValidateStruct(t, tourMessages)
}

func (t *Tour) SetID(id primitive.ObjectID) { t.ID = id }

// DurationWeeks is the duration expressed in weeks.
func (t *Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

// RoundRating rounds a rating average to one decimal.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

// TourView is a tour with its populated references, as sent to clients.
type TourView struct {
	*Tour
	DurationWeeks float64       `json:"durationWeeks,omitempty"`
	Guides        []UserSummary `json:"guides,omitempty"`
	Reviews       []ReviewView  `json:"reviews,omitempty"`
}

// TourStats is one difficulty bucket of the tour statistics.
type TourStats struct {
	Difficulty string  `bson:"_id" json:"_id"`
	NumTours   int     `bson:"numTours" json:"numTours"`
	NumRatings int     `bson:"numRatings" json:"numRatings"`
	AvgRating  float64 `bson:"avgRating" json:"avgRating"`
	AvgPrice   float64 `bson:"avgPrice" json:"avgPrice"`
	MinPrice   float64 `bson:"minPrice" json:"minPrice"`
	MaxPrice   float64 `bson:"maxPrice" json:"maxPrice"`
}

// MonthlyPlan lists the tours starting in one month.
type MonthlyPlan struct {
	Month         int      `bson:"month" json:"month"`
	NumTourStarts int      `bson:"numTourStarts" json:"numTourStarts"`
	Tours         []string `bson:"tours" json:"tours"`
}

// TourDistance is a tour name with its distance from a point.
type TourDistance struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Name     string             `bson:"name" json:"name"`
	Distance float64            `bson:"distance" json:"distance"`
}
