package controllers

import (
	"context"
	"errors"
	"net/http"

	"go-tours/middleware"
	"go-tours/repositories"
	"go-tours/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const msgNoDocument = "No document found with that ID"

// Store is the persistence a Factory works against.
type Store[T any] interface {
	Find(ctx context.Context, features *utils.APIFeatures, opts ...repositories.FindOption) ([]T, error)
	FindByID(ctx context.Context, id primitive.ObjectID, opts ...repositories.FindOption) (*T, error)
	Insert(ctx context.Context, doc *T) error
	Replace(ctx context.Context, doc *T) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// Document is a pointer to a model that can be validated and re-keyed.
type Document[T any] interface {
	*T
	Prepare() error
	SetID(id primitive.ObjectID)
}

// Factory builds the generic CRUD handlers of one resource. Prepare runs
// before every write, Present after every read.
type Factory[T any, PT Document[T]] struct {
	Store Store[T]

	// Present turns a stored document into its response form. Nil sends it as is.
	Present func(ctx context.Context, doc *T) (any, error)
	// PresentAll does the same for a listing.
	PresentAll func(ctx context.Context, docs []T) (any, error)
	// Defaults fills fields of a new document from the request.
	Defaults func(r *http.Request, doc *T)
	// Preserve copies fields an update must not change from stored to doc.
	Preserve func(doc, stored *T)
	// Check validates a prepared document against other collections.
	Check func(ctx context.Context, doc *T) error
	// AfterWrite runs once the affected documents have been written or deleted.
	AfterWrite func(ctx context.Context, docs ...*T) error

	// MultiValue lists the fields whose repeated query parameters become $in.
	MultiValue map[string]bool
	// WriteOpts relax the default filter when loading a document to change it.
	WriteOpts []repositories.FindOption
}

// Scope adds request-derived conditions to a listing filter.
type Scope func(r *http.Request) (bson.M, error)

func pathVar(r *http.Request, key string) string {
	return mux.Vars(r)[key]
}

func parseID(r *http.Request, key string) (primitive.ObjectID, error) {
	raw := pathVar(r, key)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, &utils.CastError{Path: "_id", Value: raw}
	}
	return id, nil
}

func notFound(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return utils.NotFound(msgNoDocument)
	}
	return err
}

func (f *Factory[T, PT]) present(ctx context.Context, doc *T) (any, error) {
	if f.Present == nil {
		return doc, nil
	}
	return f.Present(ctx, doc)
}

func (f *Factory[T, PT]) prepare(ctx context.Context, doc *T) error {
	if err := PT(doc).Prepare(); err != nil {
		return err
	}
	if f.Check == nil {
		return nil
	}
	return f.Check(ctx, doc)
}

func (f *Factory[T, PT]) afterWrite(ctx context.Context, docs ...*T) error {
	if f.AfterWrite == nil {
		return nil
	}
	return f.AfterWrite(ctx, docs...)
}

// GetAll lists documents with the query-string features applied.
func (f *Factory[T, PT]) GetAll(scope Scope) middleware.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		features, err := utils.ParseAPIFeatures(r.URL.Query(), f.MultiValue)
		if err != nil {
			return err
		}
		if scope != nil {
			extra, err := scope(r)
			if err != nil {
				return err
			}
			for k, v := range extra {
				features.Filter[k] = v
			}
		}
		docs, err := f.Store.Find(r.Context(), features)
		if err != nil {
			return err
		}
		var out any = docs
		if f.PresentAll != nil {
			if out, err = f.PresentAll(r.Context(), docs); err != nil {
				return err
			}
		}
		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "success",
			"results": len(docs),
			"data":    map[string]interface{}{"data": out},
		})
		return nil
	}
}

// GetOne returns the document named by the "id" path variable.
func (f *Factory[T, PT]) GetOne() middleware.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		id, err := parseID(r, "id")
		if err != nil {
			return err
		}
		doc, err := f.Store.FindByID(r.Context(), id)
		if err != nil {
			return notFound(err)
		}
		out, err := f.present(r.Context(), doc)
		if err != nil {
			return err
		}
		utils.RespondData(w, http.StatusOK, map[string]interface{}{"data": out})
		return nil
	}
}

// CreateOne inserts the request body as a new document.
func (f *Factory[T, PT]) CreateOne() middleware.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		doc := new(T)
		if err := utils.DecodeJSON(r, doc); err != nil {
			return err
		}
		PT(doc).SetID(primitive.NilObjectID)
		if f.Defaults != nil {
			f.Defaults(r, doc)
		}
		if err := f.prepare(r.Context(), doc); err != nil {
			return err
		}
		if err := f.Store.Insert(r.Context(), doc); err != nil {
			return err
		}
		if err := f.afterWrite(r.Context(), doc); err != nil {
			return err
		}
		utils.RespondData(w, http.StatusCreated, map[string]interface{}{"data": doc})
		return nil
	}
}

// UpdateOne overlays the request body onto the stored document, validates the
// result and replaces it.
func (f *Factory[T, PT]) UpdateOne() middleware.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		id, err := parseID(r, "id")
		if err != nil {
			return err
		}
		doc, err := f.Store.FindByID(r.Context(), id, f.WriteOpts...)
		if err != nil {
			return notFound(err)
		}
		before := *doc
		if err := utils.DecodeJSON(r, doc); err != nil {
			return err
		}
		PT(doc).SetID(id)
		if f.Preserve != nil {
			f.Preserve(doc, &before)
		}
		if err := f.prepare(r.Context(), doc); err != nil {
			return err
		}
		if err := f.Store.Replace(r.Context(), doc); err != nil {
			return notFound(err)
		}
		if err := f.afterWrite(r.Context(), &before, doc); err != nil {
			return err
		}
		utils.RespondData(w, http.StatusOK, map[string]interface{}{"data": doc})
		return nil
	}
}

// DeleteOne removes the document for good.
func (f *Factory[T, PT]) DeleteOne() middleware.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		id, err := parseID(r, "id")
		if err != nil {
			return err
		}
		doc, err := f.Store.FindByID(r.Context(), id, f.WriteOpts...)
		if err != nil {
			return notFound(err)
		}
		if err := f.Store.Delete(r.Context(), id); err != nil {
			return notFound(err)
		}
		if err := f.afterWrite(r.Context(), doc); err != nil {
			return err
		}
		utils.RespondJSON(w, http.StatusNoContent, nil)
		return nil
	}
}
