// routes/routes.go
package routes

import (
	"io"
	"net/http"
	"strings"

	"go-tours/controllers"
	"go-tours/middleware"
	"go-tours/models"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// App bundles everything the router dispatches to.
type App struct {
	Users   *controllers.UserController
	Tours   *controllers.TourController
	Reviews *controllers.ReviewController
	Views   *controllers.ViewController
	Auth    *middleware.Authenticator
	Errors  *middleware.ErrorHandler
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, app App) {
	e := app.Errors
	h := func(fn middleware.Handler) http.Handler { return e.Wrap(fn) }
	protect := func(fn middleware.AuthedHandler) http.Handler { return e.Wrap(app.Auth.Protect(fn)) }
	restrict := func(fn middleware.AuthedHandler, roles ...string) http.Handler {
		return protect(middleware.RestrictTo(roles...)(fn))
	}

	// Views
	views := router.NewRoute().Subrouter()
	views.Use(app.Auth.Identify)
	views.Handle("/", h(app.Views.Overview)).Methods(http.MethodGet)
	views.Handle("/tour/{slug}", h(app.Views.Tour)).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	// User routes
	users := api.PathPrefix("/users").Subrouter()
	users.Handle("/signup", h(app.Users.Signup)).Methods(http.MethodPost)
	users.Handle("/login", h(app.Users.Login)).Methods(http.MethodPost)
	users.Handle("/logout", h(app.Users.Logout)).Methods(http.MethodGet)
	users.Handle("/forgotpassword", h(app.Users.ForgotPassword)).Methods(http.MethodPost)
	users.Handle("/resetpassword/{token}", h(app.Users.ResetPassword)).Methods(http.MethodPatch)

	users.Handle("/me", protect(app.Users.GetMe)).Methods(http.MethodGet)
	users.Handle("/updatemypassword", protect(app.Users.UpdateMyPassword)).Methods(http.MethodPatch)
	users.Handle("/updateme", protect(app.Users.UpdateMe)).Methods(http.MethodPatch)
	users.Handle("/deleteme", protect(app.Users.DeleteMe)).Methods(http.MethodDelete)

	// Admin routes
	users.Handle("", restrict(middleware.Authed(app.Users.GetUsers()), models.RoleAdmin)).Methods(http.MethodGet)
	users.Handle("/", restrict(middleware.Authed(app.Users.GetUsers()), models.RoleAdmin)).Methods(http.MethodGet)
	users.Handle("/{id}", restrict(middleware.Authed(app.Users.GetUser()), models.RoleAdmin)).Methods(http.MethodGet)
	users.Handle("/{id}", restrict(middleware.Authed(app.Users.UpdateUser()), models.RoleAdmin)).Methods(http.MethodPatch)
	users.Handle("/{id}", restrict(middleware.Authed(app.Users.DeleteUser()), models.RoleAdmin)).Methods(http.MethodDelete)

	// Tour routes
	tours := api.PathPrefix("/tours").Subrouter()
	tours.Handle("/top-5-cheap-tours", controllers.AliasTopTours(h(app.Tours.GetTours()))).Methods(http.MethodGet)
	tours.Handle("/get-tour-stats", h(app.Tours.GetTourStats)).Methods(http.MethodGet)
	tours.Handle("/get-monthly-plan/{year}",
		restrict(app.Tours.GetMonthlyPlan, models.RoleAdmin, models.RoleLeadGuide, models.RoleGuide)).Methods(http.MethodGet)
	tours.Handle("/tours-within/{distance}/center/{latlng}/unit/{unit}", h(app.Tours.GetToursWithin)).Methods(http.MethodGet)
	tours.Handle("/distance/{latlng}/unit/{unit}", h(app.Tours.GetDistances)).Methods(http.MethodGet)

	for _, root := range []string{"", "/"} {
		tours.Handle(root, h(app.Tours.GetTours())).Methods(http.MethodGet)
		tours.Handle(root, restrict(middleware.Authed(app.Tours.CreateTour()), models.RoleAdmin, models.RoleLeadGuide)).Methods(http.MethodPost)
	}
	tours.Handle("/{id}", h(app.Tours.GetTour())).Methods(http.MethodGet)
	tours.Handle("/{id}", restrict(middleware.Authed(app.Tours.UpdateTour()), models.RoleAdmin, models.RoleLeadGuide)).Methods(http.MethodPatch)
	tours.Handle("/{id}", restrict(middleware.Authed(app.Tours.DeleteTour()), models.RoleAdmin, models.RoleLeadGuide)).Methods(http.MethodDelete)

	// Review routes, top level and nested under a tour
	registerReviews(api.PathPrefix("/reviews").Subrouter(), app, protect, restrict)
	registerReviews(tours.PathPrefix("/{tourid}/review").Subrouter(), app, protect, restrict)

	router.NotFoundHandler = e.NotFoundHandler()
}

func registerReviews(r *mux.Router, app App,
	protect func(middleware.AuthedHandler) http.Handler,
	restrict func(middleware.AuthedHandler, ...string) http.Handler,
) {
	rc := app.Reviews
	for _, root := range []string{"", "/"} {
		r.Handle(root, protect(middleware.Authed(rc.GetReviews()))).Methods(http.MethodGet)
		r.Handle(root, restrict(middleware.Authed(rc.CreateReview()), models.RoleUser)).Methods(http.MethodPost)
	}
	r.Handle("/{id}", protect(middleware.Authed(rc.GetReview()))).Methods(http.MethodGet)
	r.Handle("/{id}", restrict(rc.OwnReview(middleware.Authed(rc.UpdateReview())), models.RoleUser, models.RoleAdmin)).Methods(http.MethodPatch)
	r.Handle("/{id}", restrict(rc.OwnReview(middleware.Authed(rc.DeleteReview())), models.RoleUser, models.RoleAdmin)).Methods(http.MethodDelete)
}

// Options configure the global middleware chain.
type Options struct {
	Production     bool
	AllowedOrigins []string
	// TrustProxy enables ProxyHeaders, so the rate limit keys on X-Forwarded-For.
	TrustProxy     bool
	Limiter        *middleware.RateLimiter
	AccessLog      io.Writer
}

// Handler wraps router with the global middleware, outermost first: panic
// recovery, access log, proxy headers when trusted, CORS, request ID, security headers,
// body limit and the /api rate limit.
func Handler(router http.Handler, opts Options) http.Handler {
	h := router
	if opts.Limiter != nil {
		h = apiOnly(opts.Limiter.Middleware, h)
	}
	h = middleware.LimitBody(middleware.MaxBodyBytes)(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.RequestID(h)
	h = handlers.CORS(
		handlers.AllowedOrigins(opts.AllowedOrigins),
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization", middleware.RequestIDHeader}),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
	)(h)
	if opts.TrustProxy {
		h = handlers.ProxyHeaders(h)
	}
	if opts.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(opts.AccessLog, h)
	}
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(!opts.Production))(h)
}

// apiOnly applies mw to requests under /api.
func apiOnly(mw func(http.Handler) http.Handler, next http.Handler) http.Handler {
	limited := mw(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api") {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
