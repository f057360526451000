package controllers

import (
	"context"
	"net/http"
	"time"

	"go-tours/middleware"
	"go-tours/models"
	"go-tours/repositories"
	"go-tours/services"
	"go-tours/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Accounts is the authentication service behind the user endpoints.
type Accounts interface {
	Signup(ctx context.Context, in models.SignupInput) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	ForgotPassword(ctx context.Context, email, baseURL string) error
	ResetPassword(ctx context.Context, plain string, in models.PasswordInput) (*services.Session, error)
	UpdatePassword(ctx context.Context, me *models.User, current string, in models.PasswordInput) (*services.Session, error)
	UpdateProfile(ctx context.Context, me *models.User, in services.ProfileInput) (*models.User, error)
	Deactivate(ctx context.Context, me *models.User) error
}

// UserStore is the user persistence the admin endpoints need.
type UserStore interface {
	Store[models.User]
	UserLookup
	Deactivate(ctx context.Context, id primitive.ObjectID) error
}

// CookieOptions shape the session cookie.
type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

// UserController handles user-related requests
type UserController struct {
	Accounts Accounts
	Users    UserStore
	Cookie   CookieOptions
	crud     *Factory[models.User, *models.User]
	now      func() time.Time
}

// NewUserController creates a new UserController
func NewUserController(accounts Accounts, users UserStore, cookie CookieOptions) *UserController {
	return &UserController{
		Accounts: accounts,
		Users:    users,
		Cookie:   cookie,
		crud: &Factory[models.User, *models.User]{
			Store: users,
			Preserve: func(doc, stored *models.User) {
				doc.Password = stored.Password
				doc.PasswordChangedAt = stored.PasswordChangedAt
				doc.PasswordResetToken = stored.PasswordResetToken
				doc.PasswordResetExpires = stored.PasswordResetExpires
				doc.Active = stored.Active
			},
		},
		now: time.Now,
	}
}

// sendSession sets the session cookie and writes token and user.
func (uc *UserController) sendSession(w http.ResponseWriter, r *http.Request, status int, s *services.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  uc.now().Add(uc.Cookie.TTL),
		HttpOnly: true,
		Secure:   uc.Cookie.Secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	utils.RespondJSON(w, status, map[string]interface{}{
		"status": "success",
		"token":  s.Token,
		"data":   map[string]interface{}{"user": s.User},
	})
}

// Signup handles user registration
func (uc *UserController) Signup(w http.ResponseWriter, r *http.Request) error {
	var in models.SignupInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		return err
	}
	session, err := uc.Accounts.Signup(r.Context(), in)
	if err != nil {
		return err
	}
	uc.sendSession(w, r, http.StatusCreated, session)
	return nil
}

// Login handles user authentication
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) error {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &creds); err != nil {
		return err
	}
	session, err := uc.Accounts.Login(r.Context(), creds.Email, creds.Password)
	if err != nil {
		return err
	}
	uc.sendSession(w, r, http.StatusOK, session)
	return nil
}

// Logout overwrites the session cookie with one that expires right away.
func (uc *UserController) Logout(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    "loggedout",
		Path:     "/",
		Expires:  uc.now().Add(10 * time.Second),
		HttpOnly: true,
	})
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "success"})
	return nil
}

// ForgotPassword mails a reset link to the account owner.
func (uc *UserController) ForgotPassword(w http.ResponseWriter, r *http.Request) error {
	var body struct {
		Email string `json:"email"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		return err
	}
	if err := uc.Accounts.ForgotPassword(r.Context(), body.Email, baseURL(r)); err != nil {
		return err
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Token sent to email!",
	})
	return nil
}

// ResetPassword sets a new password using a mailed reset token.
func (uc *UserController) ResetPassword(w http.ResponseWriter, r *http.Request) error {
	var in models.PasswordInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		return err
	}
	session, err := uc.Accounts.ResetPassword(r.Context(), pathVar(r, "token"), in)
	if err != nil {
		return err
	}
	uc.sendSession(w, r, http.StatusOK, session)
	return nil
}

// UpdateMyPassword changes the password of the logged in user.
func (uc *UserController) UpdateMyPassword(w http.ResponseWriter, r *http.Request, me *models.User) error {
	var body struct {
		PasswordCurrent string `json:"passwordCurrent"`
		models.PasswordInput
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		return err
	}
	session, err := uc.Accounts.UpdatePassword(r.Context(), me, body.PasswordCurrent, body.PasswordInput)
	if err != nil {
		return err
	}
	uc.sendSession(w, r, http.StatusOK, session)
	return nil
}

// GetMe returns the logged in user.
func (uc *UserController) GetMe(w http.ResponseWriter, _ *http.Request, me *models.User) error {
	utils.RespondData(w, http.StatusOK, map[string]interface{}{"data": me})
	return nil
}

// UpdateMe changes name, email and photo of the logged in user.
func (uc *UserController) UpdateMe(w http.ResponseWriter, r *http.Request, me *models.User) error {
	var in services.ProfileInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		return err
	}
	user, err := uc.Accounts.UpdateProfile(r.Context(), me, in)
	if err != nil {
		return notFound(err)
	}
	utils.RespondData(w, http.StatusOK, map[string]interface{}{"user": user})
	return nil
}

// DeleteMe deactivates the logged in user.
func (uc *UserController) DeleteMe(w http.ResponseWriter, r *http.Request, me *models.User) error {
	if err := uc.Accounts.Deactivate(r.Context(), me); err != nil {
		return err
	}
	utils.RespondJSON(w, http.StatusNoContent, nil)
	return nil
}

func (uc *UserController) GetUsers() middleware.Handler   { return uc.crud.GetAll(nil) }
func (uc *UserController) GetUser() middleware.Handler    { return uc.crud.GetOne() }
func (uc *UserController) UpdateUser() middleware.Handler { return uc.crud.UpdateOne() }

// DeleteUser deactivates an account. Users are never removed for good.
func (uc *UserController) DeleteUser() middleware.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		id, err := parseID(r, "id")
		if err != nil {
			return err
		}
		if _, err := uc.Users.FindByID(r.Context(), id); err != nil {
			return notFound(err)
		}
		if err := uc.Users.Deactivate(r.Context(), id); err != nil {
			return err
		}
		utils.RespondJSON(w, http.StatusNoContent, nil)
		return nil
	}
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.URL.Scheme == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

var _ UserStore = (*repositories.UserRepository)(nil)
