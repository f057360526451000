package controllers

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"

	"go-tours/middleware"
	"go-tours/models"
	"go-tours/repositories"
	"go-tours/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

// viewData is what every page template receives.
type viewData struct {
	Title   string
	User    *models.User
	Tours   []models.Tour
	Tour    *models.TourView
	Message string
}

// ViewController renders the server side pages.
type ViewController struct {
	Tours   TourStore
	Users   UserLookup
	Reviews ReviewLookup
	tmpl    *template.Template
}

func NewViewController(tours TourStore, users UserLookup, reviews ReviewLookup) (*ViewController, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &ViewController{Tours: tours, Users: users, Reviews: reviews, tmpl: tmpl}, nil
}

func (vc *ViewController) render(w http.ResponseWriter, status int, name string, data viewData) {
	var buf bytes.Buffer
	if err := vc.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("render %s: %v", name, err)
		http.Error(w, "Something went very wrong!", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("write %s: %v", name, err)
	}
}

// Overview lists all public tours.
func (vc *ViewController) Overview(w http.ResponseWriter, r *http.Request) error {
	features, err := utils.ParseAPIFeatures(url.Values{}, nil)
	if err != nil {
		return err
	}
	tours, err := vc.Tours.Find(r.Context(), features)
	if err != nil {
		return err
	}
	me, _ := middleware.Identity(r)
	vc.render(w, http.StatusOK, "overview", viewData{Title: "All Tours", User: me, Tours: tours})
	return nil
}

// Tour shows one tour with guides and reviews.
func (vc *ViewController) Tour(w http.ResponseWriter, r *http.Request) error {
	tour, err := vc.Tours.FindBySlug(r.Context(), pathVar(r, "slug"))
	if errors.Is(err, repositories.ErrNotFound) {
		return utils.NotFound("There is no tour with that name.")
	}
	if err != nil {
		return err
	}
	views, err := tourViews(r.Context(), vc.Users, vc.Reviews, []models.Tour{*tour}, true)
	if err != nil {
		return err
	}
	me, _ := middleware.Identity(r)
	vc.render(w, http.StatusOK, "tour", viewData{Title: tour.Name + " Tour", User: me, Tour: &views[0]})
	return nil
}

// RenderError shows the error page.
func (vc *ViewController) RenderError(w http.ResponseWriter, status int, message string) {
	vc.render(w, status, "error", viewData{Title: "Something went wrong!", Message: message})
}
