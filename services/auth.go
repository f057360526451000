package services

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"go-tours/models"
	"go-tours/repositories"
	"go-tours/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Client facing messages of the authentication pipeline.
const (
	MsgNotLoggedIn      = "You are not logged in! Please log in to get access."
	MsgInvalidToken     = "Invalid token. Please log in again!"
	MsgExpiredToken     = "Your token has expired! Please log in again."
	MsgUserGone         = "The user belonging to this token no longer exists."
	MsgPasswordChanged  = "User recently changed password! Please log in again."
	MsgForbidden        = "You do not have permission to perform this action"
	MsgMissingLogin     = "Please provide email and password!"
	MsgBadLogin         = "Incorrect email or password"
	MsgNoSuchEmail      = "There is no user with that email address."
	MsgMailFailed       = "There was an error sending the email. Try again later!"
	MsgBadResetToken    = "Token is invalid or has expired"
	MsgWrongPassword    = "Your current password is wrong."
	MsgNoPasswordUpdate = "This route is not for password updates. Please use /updatemypassword."
)

// UserStore is the persistence the auth pipeline needs.
type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID, opts ...repositories.FindOption) (*models.User, error)
	FindByEmail(ctx context.Context, email string, opts ...repositories.FindOption) (*models.User, error)
	ConsumeResetToken(ctx context.Context, hash string, now time.Time) (*models.User, error)
	Insert(ctx context.Context, user *models.User) error
	Replace(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error)
	SetResetToken(ctx context.Context, id primitive.ObjectID, hash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id primitive.ObjectID) error
	Deactivate(ctx context.Context, id primitive.ObjectID) error
}

// ResetMailer delivers password reset links.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, toName, toEmail, resetURL string) error
}

// Session is an authenticated user with a freshly issued token.
type Session struct {
	Token string
	User  *models.User
}

// AuthService implements signup, login, token authentication and the
// self-service account operations.
type AuthService struct {
	users  UserStore
	tokens *utils.TokenService
	mail   ResetMailer
	now    func() time.Time
}

func NewAuthService(users UserStore, tokens *utils.TokenService, mail ResetMailer) *AuthService {
	return &AuthService{users: users, tokens: tokens, mail: mail, now: time.Now}
}

func (s *AuthService) newSession(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}

// Signup creates a user with the default role. Nothing is stored unless the
// whole payload is valid.
func (s *AuthService) Signup(ctx context.Context, in models.SignupInput) (*Session, error) {
	user := &models.User{
		Name:   in.Name,
		Email:  in.Email,
		Photo:  in.Photo,
		Role:   models.RoleUser,
		Active: true,
	}
	if err := utils.MergeValidation(user.Prepare(), in.PasswordInput.Validate()); err != nil {
		return nil, err
	}
	hashed, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user.Password = hashed
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}
	return s.newSession(user)
}

// Login checks credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, utils.BadRequest(MsgMissingLogin)
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, utils.Unauthorized(MsgBadLogin)
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, utils.Unauthorized(MsgBadLogin)
	}
	return s.newSession(user)
}

// Authenticate resolves a bearer token to its active user. It fails when the
// token is missing, invalid or expired, when the account is gone or
// deactivated, and when the password changed after the token was issued.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, utils.Unauthorized(MsgNotLoggedIn)
	}
	claims, err := s.tokens.Verify(token)
	switch {
	case errors.Is(err, utils.ErrExpiredToken):
		return nil, utils.Unauthorized(MsgExpiredToken)
	case err != nil:
		return nil, utils.Unauthorized(MsgInvalidToken)
	}
	id, err := primitive.ObjectIDFromHex(claims.ID)
	if err != nil {
		return nil, utils.Unauthorized(MsgInvalidToken)
	}
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, utils.Unauthorized(MsgUserGone)
	}
	if err != nil {
		return nil, err
	}
	if user.ChangedPasswordAfter(claims.IssuedAtMillis()) {
		return nil, utils.Unauthorized(MsgPasswordChanged)
	}
	return user, nil
}

// ForgotPassword stores a reset token for the account and mails its plaintext
// inside a URL rooted at baseURL. If the mail cannot be sent the token is
// cleared again.
func (s *AuthService) ForgotPassword(ctx context.Context, email, baseURL string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return utils.NotFound(MsgNoSuchEmail)
	}
	if err != nil {
		return err
	}

	rt, err := utils.GenerateResetToken(s.now())
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, rt.Hash, rt.Expires); err != nil {
		return err
	}

	resetURL := strings.TrimRight(baseURL, "/") + "/api/v1/users/resetpassword/" + rt.Plain
	if err := s.mail.SendPasswordReset(ctx, user.Name, user.Email, resetURL); err != nil {
		log.Printf("password reset mail to %s failed: %v", user.Email, err)
		if cerr := s.users.ClearResetToken(ctx, user.ID); cerr != nil {
			log.Printf("rollback of reset token for %s failed: %v", user.ID.Hex(), cerr)
		}
		return utils.NewAppError(MsgMailFailed, http.StatusInternalServerError)
	}
	return nil
}

// ResetPassword consumes a reset token and sets the new password. Expired and
// unknown tokens fail the same way.
func (s *AuthService) ResetPassword(ctx context.Context, plain string, in models.PasswordInput) (*Session, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	user, err := s.users.ConsumeResetToken(ctx, utils.HashResetToken(plain), s.now())
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, utils.BadRequest(MsgBadResetToken)
	}
	if err != nil {
		return nil, err
	}
	if err := s.changePassword(ctx, user, in.Password); err != nil {
		return nil, err
	}
	return s.newSession(user)
}

// UpdatePassword changes the password of an authenticated user after checking
// the current one.
func (s *AuthService) UpdatePassword(ctx context.Context, me *models.User, current string, in models.PasswordInput) (*Session, error) {
	if !utils.CheckPassword(current, me.Password) {
		return nil, utils.Unauthorized(MsgWrongPassword)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.changePassword(ctx, me, in.Password); err != nil {
		return nil, err
	}
	return s.newSession(me)
}

func (s *AuthService) changePassword(ctx context.Context, user *models.User, password string) error {
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	user.SetPassword(hashed, s.now())
	return s.users.Replace(ctx, user)
}

// ProfileInput holds the fields a user may change about themselves.
type ProfileInput struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Photo           *string `json:"photo"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

// UpdateProfile changes name, email and photo. Password fields are rejected.
func (s *AuthService) UpdateProfile(ctx context.Context, me *models.User, in ProfileInput) (*models.User, error) {
	if in.Password != nil || in.PasswordConfirm != nil {
		return nil, utils.BadRequest(MsgNoPasswordUpdate)
	}
	candidate := *me
	if in.Name != nil {
		candidate.Name = *in.Name
	}
	if in.Email != nil {
		candidate.Email = *in.Email
	}
	if in.Photo != nil {
		candidate.Photo = *in.Photo
	}
	if err := candidate.Prepare(); err != nil {
		return nil, err
	}
	return s.users.UpdateFields(ctx, me.ID, bson.M{
		"name":  candidate.Name,
		"email": candidate.Email,
		"photo": candidate.Photo,
	})
}

// Deactivate soft-deletes the authenticated user.
func (s *AuthService) Deactivate(ctx context.Context, me *models.User) error {
	return s.users.Deactivate(ctx, me.ID)
}
