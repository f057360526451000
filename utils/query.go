package utils

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
	MaxLimit     = 1000
)

var reservedParams = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}

var filterOperators = map[string]string{
	"gte": "$gte",
	"gt":  "$gt",
	"lte": "$lte",
	"lt":  "$lt",
	"ne":  "$ne",
}

// APIFeatures is a list query built from query-string conventions:
// filtering with field[op]=value, sort, fields, page and limit.
type APIFeatures struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.D
	Page       int64
	Limit      int64
}

// ParseAPIFeatures builds an APIFeatures from query values. Parameters named in
// multi may repeat and then match any of their values; every other repeated
// parameter keeps only its last value.
func ParseAPIFeatures(values url.Values, multi map[string]bool) (*APIFeatures, error) {
	f := &APIFeatures{
		Filter: bson.M{},
		Sort:   bson.D{{Key: "createdAt", Value: -1}},
		Page:   DefaultPage,
		Limit:  DefaultLimit,
	}

	// Equality and operators on one field merge into a single condition.
	conds := map[string]bson.M{}
	cond := func(field string) bson.M {
		c, ok := conds[field]
		if !ok {
			c = bson.M{}
			conds[field] = c
		}
		return c
	}
	for key, vals := range values {
		if len(vals) == 0 || reservedParams[key] {
			continue
		}
		field, op := splitOperator(key)
		if !safeField(field) {
			continue
		}
		if op == "" {
			if multi[field] && len(vals) > 1 {
				in := make(bson.A, 0, len(vals))
				for _, v := range vals {
					in = append(in, coerce(v))
				}
				cond(field)["$in"] = in
			} else {
				cond(field)["$eq"] = coerce(vals[len(vals)-1])
			}
			continue
		}
		mongoOp, ok := filterOperators[op]
		if !ok {
			continue
		}
		cond(field)[mongoOp] = coerce(vals[len(vals)-1])
	}
	for field, c := range conds {
		if eq, ok := c["$eq"]; ok && len(c) == 1 {
			f.Filter[field] = eq
		} else {
			f.Filter[field] = c
		}
	}

	if sortParam := values.Get("sort"); sortParam != "" {
		sort := bson.D{}
		for _, part := range strings.Split(sortParam, ",") {
			part = strings.TrimSpace(part)
			dir := 1
			if strings.HasPrefix(part, "-") {
				dir = -1
				part = part[1:]
			}
			if part == "" || !safeField(part) {
				continue
			}
			sort = append(sort, bson.E{Key: part, Value: dir})
		}
		if len(sort) > 0 {
			f.Sort = sort
		}
	}

	if fieldsParam := values.Get("fields"); fieldsParam != "" {
		projection := bson.D{}
		include, exclude := false, false
		for _, part := range strings.Split(fieldsParam, ",") {
			part = strings.TrimSpace(part)
			val := 1
			if strings.HasPrefix(part, "-") {
				val = 0
				part = part[1:]
			}
			if part == "" || !safeField(part) {
				continue
			}
			if part != "_id" {
				include = include || val == 1
				exclude = exclude || val == 0
			}
			projection = append(projection, bson.E{Key: part, Value: val})
		}
		if include && exclude {
			return nil, BadRequest("Cannot mix included and excluded fields")
		}
		if len(projection) > 0 {
			f.Projection = projection
		}
	}

	if page, err := strconv.ParseInt(values.Get("page"), 10, 64); err == nil && page > 0 {
		f.Page = page
	}
	if limit, err := strconv.ParseInt(values.Get("limit"), 10, 64); err == nil && limit > 0 {
		f.Limit = limit
		if f.Limit > MaxLimit {
			f.Limit = MaxLimit
		}
	}
	if f.Page-1 > math.MaxInt64/f.Limit {
		return nil, BadRequest("Invalid page: " + values.Get("page") + ".")
	}
	return f, nil
}

// FindOptions converts sort, projection and pagination to driver options.
func (f *APIFeatures) FindOptions() *options.FindOptions {
	opts := options.Find().
		SetSort(f.Sort).
		SetSkip((f.Page - 1) * f.Limit).
		SetLimit(f.Limit)
	if len(f.Projection) > 0 {
		opts.SetProjection(f.Projection)
	}
	return opts
}

func splitOperator(key string) (field, op string) {
	open := strings.Index(key, "[")
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, ""
	}
	return key[:open], key[open+1 : len(key)-1]
}

// safeField rejects names that could smuggle operators or nested paths into a query.
func safeField(name string) bool {
	return name != "" && !strings.HasPrefix(name, "$") && !strings.Contains(name, ".")
}

func coerce(v string) interface{} {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if fl, err := strconv.ParseFloat(v, 64); err == nil {
		return fl
	}
	return v
}
