package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go-tours/middleware"
	"go-tours/models"
	"go-tours/repositories"
	"go-tours/utils"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory Store keyed by document id.
type memStore[T any, PT Document[T]] struct {
	mu           sync.Mutex
	docs         map[primitive.ObjectID]T
	order        []primitive.ObjectID
	idOf         func(*T) primitive.ObjectID
	lastFeatures *utils.APIFeatures
}

func newMemStore[T any, PT Document[T]](idOf func(*T) primitive.ObjectID) *memStore[T, PT] {
	return &memStore[T, PT]{docs: map[primitive.ObjectID]T{}, idOf: idOf}
}

func (m *memStore[T, PT]) Find(_ context.Context, features *utils.APIFeatures, _ ...repositories.FindOption) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFeatures = features
	out := make([]T, 0, len(m.order))
	for _, id := range m.order {
		if doc, ok := m.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *memStore[T, PT]) FindByID(_ context.Context, id primitive.ObjectID, _ ...repositories.FindOption) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &doc, nil
}

func (m *memStore[T, PT]) Insert(_ context.Context, doc *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.idOf(doc)
	if id.IsZero() {
		id = primitive.NewObjectID()
		PT(doc).SetID(id)
	}
	m.docs[id] = *doc
	m.order = append(m.order, id)
	return nil
}

func (m *memStore[T, PT]) Replace(_ context.Context, doc *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.idOf(doc)
	if _, ok := m.docs[id]; !ok {
		return repositories.ErrNotFound
	}
	m.docs[id] = *doc
	return nil
}

func (m *memStore[T, PT]) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *memStore[T, PT]) get(id primitive.ObjectID) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	return doc, ok
}

type fakeTours struct {
	*memStore[models.Tour, *models.Tour]
	ratings        map[primitive.ObjectID]models.RatingSummary
	withinRadius   float64
	distMultiplier float64
	planYear       int
}

func newFakeTours() *fakeTours {
	return &fakeTours{
		memStore: newMemStore[models.Tour, *models.Tour](func(t *models.Tour) primitive.ObjectID { return t.ID }),
		ratings:  map[primitive.ObjectID]models.RatingSummary{},
	}
}

func (f *fakeTours) FindBySlug(_ context.Context, slug string, _ ...repositories.FindOption) (*models.Tour, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.docs {
		if t.Slug == slug {
			return &t, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeTours) Stats(context.Context) ([]models.TourStats, error) {
	return []models.TourStats{{Difficulty: "EASY", NumTours: 1}}, nil
}

func (f *fakeTours) MonthlyPlan(_ context.Context, year int) ([]models.MonthlyPlan, error) {
	f.planYear = year
	return []models.MonthlyPlan{}, nil
}

func (f *fakeTours) Distances(_ context.Context, _, _, multiplier float64) ([]models.TourDistance, error) {
	f.distMultiplier = multiplier
	return []models.TourDistance{}, nil
}

func (f *fakeTours) Within(ctx context.Context, _, _, radius float64) ([]models.Tour, error) {
	f.withinRadius = radius
	return f.Find(ctx, nil)
}

func (f *fakeTours) UpdateRatings(_ context.Context, id primitive.ObjectID, summary models.RatingSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ratings[id] = summary
	return nil
}

type fakeReviews struct {
	*memStore[models.Review, *models.Review]
}

func newFakeReviews() *fakeReviews {
	return &fakeReviews{newMemStore[models.Review, *models.Review](func(rv *models.Review) primitive.ObjectID { return rv.ID })}
}

func (f *fakeReviews) FindByTour(_ context.Context, tourID primitive.ObjectID) ([]models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Review
	for _, id := range f.order {
		if rv, ok := f.docs[id]; ok && rv.Tour == tourID {
			out = append(out, rv)
		}
	}
	return out, nil
}

func (f *fakeReviews) RatingSummary(ctx context.Context, tourID primitive.ObjectID) (models.RatingSummary, error) {
	rs, _ := f.FindByTour(ctx, tourID)
	if len(rs) == 0 {
		return models.RatingSummary{Average: models.DefaultRatingsAverage}, nil
	}
	sum := 0
	for _, rv := range rs {
		sum += rv.Rating
	}
	return models.RatingSummary{Quantity: len(rs), Average: float64(sum) / float64(len(rs))}, nil
}

type fakeUsers struct {
	*memStore[models.User, *models.User]
}

func newFakeUsers(users ...models.User) *fakeUsers {
	f := &fakeUsers{newMemStore[models.User, *models.User](func(u *models.User) primitive.ObjectID { return u.ID })}
	for i := range users {
		_ = f.Insert(context.Background(), &users[i])
	}
	return f
}

func (f *fakeUsers) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := f.docs[id]; ok && u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) Deactivate(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.docs[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.Active = false
	f.docs[id] = u
	return nil
}

func newUser(name, role string) models.User {
	return models.User{ID: primitive.NewObjectID(), Name: name, Email: name + "@example.com", Role: role, Active: true}
}

func validTour(name string) models.Tour {
	return models.Tour{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Duration:     7,
		MaxGroupSize: 10,
		Difficulty:   "easy",
		Price:        497,
	}
}

// newRequest builds a request with mux vars and an optional logged in user.
func newRequest(method, target string, body interface{}, vars map[string]string, me *models.User) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	if me != nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, me))
	}
	return req
}

func serve(h middleware.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	(&middleware.ErrorHandler{}).Wrap(h).ServeHTTP(rr, req)
	return rr
}

func asUser(h middleware.AuthedHandler, me *models.User) middleware.Handler {
	return func(w http.ResponseWriter, r *http.Request) error { return h(w, r, me) }
}

type envelope struct {
	Status  string                     `json:"status"`
	Message string                     `json:"message"`
	Results *int                       `json:"results"`
	Token   string                     `json:"token"`
	Data    map[string]json.RawMessage `json:"data"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}
