package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestParseAPIFeaturesDefaults(t *testing.T) {
	f, err := ParseAPIFeatures(url.Values{}, nil)
	require.NoError(t, err)
	assert.Empty(t, f.Filter)
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}}, f.Sort)
	assert.Equal(t, int64(1), f.Page)
	assert.Equal(t, int64(100), f.Limit)
	assert.Nil(t, f.Projection)
}

func TestParseAPIFeaturesFilter(t *testing.T) {
	q, err := url.ParseQuery("duration[gte]=5&duration[lt]=10&difficulty=easy&secretTour=false&price=397.5&page=2&limit=3")
	require.NoError(t, err)

	f, err := ParseAPIFeatures(q, nil)
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"duration":   bson.M{"$gte": int64(5), "$lt": int64(10)},
		"difficulty": "easy",
		"secretTour": false,
		"price":      397.5,
	}, f.Filter)
	assert.Equal(t, int64(2), f.Page)
	assert.Equal(t, int64(3), f.Limit)

	opts := f.FindOptions()
	assert.Equal(t, int64(3), *opts.Skip)
	assert.Equal(t, int64(3), *opts.Limit)
}

func TestParseAPIFeaturesRepeatedParams(t *testing.T) {
	q, err := url.ParseQuery("difficulty=easy&difficulty=medium&name=a&name=b")
	require.NoError(t, err)

	f, err := ParseAPIFeatures(q, map[string]bool{"difficulty": true})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$in": bson.A{"easy", "medium"}}, f.Filter["difficulty"])
	assert.Equal(t, "b", f.Filter["name"])
}

func TestParseAPIFeaturesSanitizes(t *testing.T) {
	q := url.Values{
		"$where":         {"1"},
		"guides.name":    {"x"},
		"price[regex]":   {".*"},
		"ratingsAverage": {"4.5"},
		"sort":           {"-price,$natural,name"},
		"fields":         {"name,$x"},
	}
	f, err := ParseAPIFeatures(q, nil)
	require.NoError(t, err)
	assert.Equal(t, bson.M{"ratingsAverage": 4.5}, f.Filter)
	assert.Equal(t, bson.D{{Key: "price", Value: -1}, {Key: "name", Value: 1}}, f.Sort)
	assert.Equal(t, bson.D{{Key: "name", Value: 1}}, f.Projection)
}

func TestParseAPIFeaturesFields(t *testing.T) {
	f, err := ParseAPIFeatures(url.Values{"fields": {"-__v,-secretTour"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "__v", Value: 0}, {Key: "secretTour", Value: 0}}, f.Projection)

	_, err = ParseAPIFeatures(url.Values{"fields": {"name,-price"}}, nil)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.StatusCode)
}

func TestParseAPIFeaturesBadPaging(t *testing.T) {
	f, err := ParseAPIFeatures(url.Values{"page": {"-1"}, "limit": {"abc"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultPage), f.Page)
	assert.Equal(t, int64(DefaultLimit), f.Limit)
}

func TestParseAPIFeaturesCapsPaging(t *testing.T) {
	f, err := ParseAPIFeatures(url.Values{"page": {"3"}, "limit": {"9223372036854775807"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(MaxLimit), f.Limit)
	assert.Equal(t, int64(2*MaxLimit), *f.FindOptions().Skip)

	_, err = ParseAPIFeatures(url.Values{"page": {"9223372036854775807"}, "limit": {"10"}}, nil)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.StatusCode)
	assert.Equal(t, "Invalid page: 9223372036854775807.", appErr.Message)
}

func TestParseAPIFeaturesMergesEqualityAndOperators(t *testing.T) {
	q, err := url.ParseQuery("price=500&price[gte]=100&difficulty=easy&difficulty=medium&difficulty[ne]=difficult")
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		f, err := ParseAPIFeatures(q, map[string]bool{"difficulty": true})
		require.NoError(t, err)
		assert.Equal(t, bson.M{
			"price":      bson.M{"$eq": int64(500), "$gte": int64(100)},
			"difficulty": bson.M{"$in": bson.A{"easy", "medium"}, "$ne": "difficult"},
		}, f.Filter)
	}
}
