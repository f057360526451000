package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTourFilter(t *testing.T) {
	in := bson.M{"difficulty": "easy", "secretTour": true}
	out := TourFilter(in)

	assert.Equal(t, bson.M{"$ne": true}, out["secretTour"], "callers cannot reveal secret tours")
	assert.Equal(t, "easy", out["difficulty"])
	assert.Equal(t, true, in["secretTour"], "input is left alone")

	all := TourFilter(bson.M{"difficulty": "easy"}, IncludeSecret())
	assert.NotContains(t, all, "secretTour")
}

func TestUserFilter(t *testing.T) {
	assert.Equal(t, bson.M{"role": "guide", "active": bson.M{"$ne": false}}, UserFilter(bson.M{"role": "guide"}))
	assert.Equal(t, bson.M{"role": "guide"}, UserFilter(bson.M{"role": "guide"}, IncludeInactive()))
}

func TestDistancesPipeline(t *testing.T) {
	p := DistancesPipeline(-118.11, 34.11, 0.001)
	require.NotEmpty(t, p)
	first := p[0][0]
	assert.Equal(t, "$geoNear", first.Key)

	stage, ok := first.Value.(bson.M)
	require.True(t, ok)
	assert.Equal(t, bson.A{-118.11, 34.11}, stage["near"].(bson.M)["coordinates"])
	assert.Equal(t, 0.001, stage["distanceMultiplier"])
	assert.Equal(t, bson.M{"secretTour": bson.M{"$ne": true}}, stage["query"])
}

func TestWithinFilter(t *testing.T) {
	f := WithinFilter(-118.11, 34.11, 0.05)
	assert.Equal(t, bson.M{"$ne": true}, f["secretTour"])
	within := f["startLocation"].(bson.M)["$geoWithin"].(bson.M)
	assert.Equal(t, bson.A{bson.A{-118.11, 34.11}, 0.05}, within["$centerSphere"])
}

func TestMonthlyPlanPipelineBoundsYear(t *testing.T) {
	p := MonthlyPlanPipeline(2021)
	var bounds bson.M
	for _, stage := range p {
		if stage[0].Key != "$match" {
			continue
		}
		if m, ok := stage[0].Value.(bson.M)["startDates"]; ok {
			bounds = m.(bson.M)
		}
	}
	require.NotNil(t, bounds)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), bounds["$gte"])
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), bounds["$lt"])
	assert.Equal(t, "$limit", p[len(p)-1][0].Key)
}

func TestStatsPipelineSkipsSecretTours(t *testing.T) {
	match := StatsPipeline()[0][0]
	assert.Equal(t, "$match", match.Key)
	assert.Equal(t, bson.M{"$ne": true}, match.Value.(bson.M)["secretTour"])
}

func TestRatingSummaryPipeline(t *testing.T) {
	id := primitive.NewObjectID()
	match := RatingSummaryPipeline(id)[0][0]
	assert.Equal(t, bson.M{"tour": id}, match.Value)
}
