package controllers

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go-tours/middleware"
	"go-tours/models"
	"go-tours/repositories"
	"go-tours/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Earth radius in each supported unit, and the factor converting meters to it.
var (
	earthRadius   = map[string]float64{"mi": 3963.2, "km": 6378.1}
	metersPerUnit = map[string]float64{"mi": 0.000621371, "km": 0.001}
)

const msgBadLatLng = "Please provide latitude and longitude in the format lat,lng."

// tourFilterFields may repeat in a query string and then match any value.
var tourFilterFields = map[string]bool{
	"duration":        true,
	"ratingsAverage":  true,
	"ratingsQuantity": true,
	"maxGroupSize":    true,
	"difficulty":      true,
	"price":           true,
}

// TourStore is the tour persistence the controller needs.
type TourStore interface {
	Store[models.Tour]
	FindBySlug(ctx context.Context, slug string, opts ...repositories.FindOption) (*models.Tour, error)
	Stats(ctx context.Context) ([]models.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]models.MonthlyPlan, error)
	Distances(ctx context.Context, lng, lat, multiplier float64) ([]models.TourDistance, error)
	Within(ctx context.Context, lng, lat, radius float64) ([]models.Tour, error)
}

// TourController handles tour-related requests
type TourController struct {
	Tours   TourStore
	Users   UserLookup
	Reviews ReviewLookup
	crud    *Factory[models.Tour, *models.Tour]
}

// NewTourController creates a new TourController
func NewTourController(tours TourStore, users UserLookup, reviews ReviewLookup) *TourController {
	tc := &TourController{Tours: tours, Users: users, Reviews: reviews}
	tc.crud = &Factory[models.Tour, *models.Tour]{
		Store:      tours,
		MultiValue: tourFilterFields,
		WriteOpts:  []repositories.FindOption{repositories.IncludeSecret()},
		Check: func(ctx context.Context, t *models.Tour) error {
			return tc.checkGuides(ctx, t.Guides)
		},
		Present: func(ctx context.Context, t *models.Tour) (any, error) {
			views, err := tourViews(ctx, tc.Users, tc.Reviews, []models.Tour{*t}, true)
			if err != nil {
				return nil, err
			}
			return views[0], nil
		},
		PresentAll: func(ctx context.Context, ts []models.Tour) (any, error) {
			return tourViews(ctx, tc.Users, tc.Reviews, ts, false)
		},
	}
	return tc
}

func (tc *TourController) GetTours() middleware.Handler   { return tc.crud.GetAll(nil) }
func (tc *TourController) GetTour() middleware.Handler    { return tc.crud.GetOne() }
func (tc *TourController) CreateTour() middleware.Handler { return tc.crud.CreateOne() }
func (tc *TourController) UpdateTour() middleware.Handler { return tc.crud.UpdateOne() }
func (tc *TourController) DeleteTour() middleware.Handler { return tc.crud.DeleteOne() }

// AliasTopTours fixes the query of the five best cheap tours.
func AliasTopTours(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		q.Set("limit", "5")
		q.Set("sort", "-ratingsAverage,price")
		q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
		r.URL.RawQuery = q.Encode()
		next.ServeHTTP(w, r)
	})
}

// GetTourStats groups well rated tours by difficulty.
func (tc *TourController) GetTourStats(w http.ResponseWriter, r *http.Request) error {
	stats, err := tc.Tours.Stats(r.Context())
	if err != nil {
		return err
	}
	utils.RespondData(w, http.StatusOK, map[string]interface{}{"stats": stats})
	return nil
}

// GetMonthlyPlan counts tour starts per month of the requested year.
func (tc *TourController) GetMonthlyPlan(w http.ResponseWriter, r *http.Request, _ *models.User) error {
	raw := mux.Vars(r)["year"]
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1 || year > 9999 {
		return &utils.CastError{Path: "year", Value: raw}
	}
	plan, err := tc.Tours.MonthlyPlan(r.Context(), year)
	if err != nil {
		return err
	}
	utils.RespondData(w, http.StatusOK, map[string]interface{}{"plan": plan})
	return nil
}

// GetToursWithin finds tours starting within distance of a point.
func (tc *TourController) GetToursWithin(w http.ResponseWriter, r *http.Request) error {
	vars := mux.Vars(r)
	lat, lng, err := parseLatLng(vars["latlng"])
	if err != nil {
		return err
	}
	unit, err := parseUnit(vars["unit"])
	if err != nil {
		return err
	}
	distance, err := strconv.ParseFloat(vars["distance"], 64)
	if err != nil || distance <= 0 {
		return &utils.CastError{Path: "distance", Value: vars["distance"]}
	}

	tours, err := tc.Tours.Within(r.Context(), lng, lat, distance/earthRadius[unit])
	if err != nil {
		return err
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"results": len(tours),
		"data":    map[string]interface{}{"data": tours},
	})
	return nil
}

// GetDistances lists every tour with its distance from a point.
func (tc *TourController) GetDistances(w http.ResponseWriter, r *http.Request) error {
	vars := mux.Vars(r)
	lat, lng, err := parseLatLng(vars["latlng"])
	if err != nil {
		return err
	}
	unit, err := parseUnit(vars["unit"])
	if err != nil {
		return err
	}
	distances, err := tc.Tours.Distances(r.Context(), lng, lat, metersPerUnit[unit])
	if err != nil {
		return err
	}
	utils.RespondData(w, http.StatusOK, map[string]interface{}{"data": distances})
	return nil
}

func parseLatLng(raw string) (lat, lng float64, err error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, utils.BadRequest(msgBadLatLng)
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLng != nil || !finite(lat) || !finite(lng) ||
		lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, utils.BadRequest(msgBadLatLng)
	}
	return lat, lng, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func parseUnit(raw string) (string, error) {
	if _, ok := earthRadius[raw]; !ok {
		return "", utils.BadRequest("Please provide the unit as mi or km.")
	}
	return raw, nil
}

// checkGuides rejects references to users that are not active guides.
func (tc *TourController) checkGuides(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	known, err := summaries(ctx, tc.Users, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		g, ok := known[id]
		if !ok || (g.Role != models.RoleGuide && g.Role != models.RoleLeadGuide) {
			return utils.BadRequest("Invalid guide: " + id.Hex() + ".")
		}
	}
	return nil
}
