package services

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go-tours/models"
	"go-tours/repositories"
	"go-tours/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	utils.PasswordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

// memUsers is an in-memory UserStore. Like the repository it hides
// deactivated users.
type memUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[primitive.ObjectID]models.User{}}
}

func (m *memUsers) get(id primitive.ObjectID) (models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u, ok
}

func (m *memUsers) FindByID(_ context.Context, id primitive.ObjectID, _ ...repositories.FindOption) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.Active {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string, _ ...repositories.FindOption) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == models.NormalizeEmail(email) && u.Active {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memUsers) ConsumeResetToken(_ context.Context, hash string, now time.Time) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Active && u.PasswordResetToken == hash && u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now) {
			u.PasswordResetToken = ""
			u.PasswordResetExpires = nil
			m.users[id] = u
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memUsers) Insert(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return errors.New("duplicate email")
		}
	}
	user.ID = primitive.NewObjectID()
	m.users[user.ID] = *user
	return nil
}

func (m *memUsers) Replace(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[user.ID]; !ok || !u.Active {
		return repositories.ErrNotFound
	}
	m.users[user.ID] = *user
	return nil
}

func (m *memUsers) UpdateFields(_ context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.Active {
		return nil, repositories.ErrNotFound
	}
	u.Name, _ = set["name"].(string)
	u.Email, _ = set["email"].(string)
	u.Photo, _ = set["photo"].(string)
	m.users[id] = u
	return &u, nil
}

func (m *memUsers) SetResetToken(_ context.Context, id primitive.ObjectID, hash string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.PasswordResetToken = hash
	u.PasswordResetExpires = &expires
	m.users[id] = u
	return nil
}

func (m *memUsers) ClearResetToken(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	m.users[id] = u
	return nil
}

func (m *memUsers) Deactivate(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.Active = false
	m.users[id] = u
	return nil
}

type fakeMailer struct {
	urls []string
	err  error
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, _, _, resetURL string) error {
	if f.err != nil {
		return f.err
	}
	f.urls = append(f.urls, resetURL)
	return nil
}

func newService(t *testing.T) (*AuthService, *memUsers, *fakeMailer) {
	t.Helper()
	users := newMemUsers()
	mail := &fakeMailer{}
	return NewAuthService(users, utils.NewTokenService("test-secret", time.Hour), mail), users, mail
}

func signup(t *testing.T, svc *AuthService, email string) *Session {
	t.Helper()
	s, err := svc.Signup(context.Background(), models.SignupInput{
		Name:          "Test User",
		Email:         email,
		PasswordInput: models.PasswordInput{Password: "pass1234", PasswordConfirm: "pass1234"},
	})
	require.NoError(t, err)
	return s
}

func requireAppError(t *testing.T, err error, status int, msg string) {
	t.Helper()
	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, status, appErr.StatusCode)
	assert.Equal(t, msg, appErr.Message)
}

func TestSignup(t *testing.T) {
	svc, users, _ := newService(t)
	s := signup(t, svc, "Test@Example.com")

	assert.NotEmpty(t, s.Token)
	assert.Equal(t, models.RoleUser, s.User.Role)
	assert.Equal(t, "test@example.com", s.User.Email)

	stored, ok := users.get(s.User.ID)
	require.True(t, ok)
	assert.True(t, stored.Active)
	assert.NotEqual(t, "pass1234", stored.Password)
	assert.True(t, utils.CheckPassword("pass1234", stored.Password))

	me, err := svc.Authenticate(context.Background(), s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, me.ID)
}

func TestSignupInvalidPersistsNothing(t *testing.T) {
	svc, users, _ := newService(t)
	_, err := svc.Signup(context.Background(), models.SignupInput{
		Name:          "Test User",
		Email:         "not-an-email",
		PasswordInput: models.PasswordInput{Password: "pass1234", PasswordConfirm: "pass4321"},
	})
	var ve *utils.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Messages, "Please provide a valid email")
	assert.Contains(t, ve.Messages, "Passwords are not the same!")
	assert.Empty(t, users.users)
}

func TestLogin(t *testing.T) {
	svc, _, _ := newService(t)
	signup(t, svc, "test@example.com")
	ctx := context.Background()

	s, err := svc.Login(ctx, "TEST@example.com", "pass1234")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)

	_, err = svc.Login(ctx, "test@example.com", "wrong-password")
	requireAppError(t, err, http.StatusUnauthorized, MsgBadLogin)

	_, err = svc.Login(ctx, "nobody@example.com", "pass1234")
	requireAppError(t, err, http.StatusUnauthorized, MsgBadLogin)

	_, err = svc.Login(ctx, "", "pass1234")
	requireAppError(t, err, http.StatusBadRequest, MsgMissingLogin)
}

func TestAuthenticateFailures(t *testing.T) {
	svc, users, _ := newService(t)
	s := signup(t, svc, "test@example.com")
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "")
	requireAppError(t, err, http.StatusUnauthorized, MsgNotLoggedIn)

	_, err = svc.Authenticate(ctx, "garbage")
	requireAppError(t, err, http.StatusUnauthorized, MsgInvalidToken)

	expired, err := utils.NewTokenService("test-secret", -time.Minute).Issue(s.User.ID.Hex())
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, expired)
	requireAppError(t, err, http.StatusUnauthorized, MsgExpiredToken)

	notAnID, err := utils.NewTokenService("test-secret", time.Hour).Issue("not-an-object-id")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, notAnID)
	requireAppError(t, err, http.StatusUnauthorized, MsgInvalidToken)

	stranger, err := utils.NewTokenService("test-secret", time.Hour).Issue(primitive.NewObjectID().Hex())
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, stranger)
	requireAppError(t, err, http.StatusUnauthorized, MsgUserGone)

	require.NoError(t, users.Deactivate(ctx, s.User.ID))
	_, err = svc.Authenticate(ctx, s.Token)
	requireAppError(t, err, http.StatusUnauthorized, MsgUserGone)
}

func TestPasswordChangeInvalidatesOldTokens(t *testing.T) {
	svc, _, _ := newService(t)
	s := signup(t, svc, "test@example.com")
	ctx := context.Background()

	svc.now = func() time.Time { return time.Now().Add(time.Second) }
	_, err := svc.UpdatePassword(ctx, s.User, "pass1234", models.PasswordInput{Password: "newpass123", PasswordConfirm: "newpass123"})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, s.Token)
	requireAppError(t, err, http.StatusUnauthorized, MsgPasswordChanged)
}

func TestUpdatePassword(t *testing.T) {
	svc, users, _ := newService(t)
	s := signup(t, svc, "test@example.com")
	ctx := context.Background()

	_, err := svc.UpdatePassword(ctx, s.User, "wrong-password", models.PasswordInput{Password: "newpass123", PasswordConfirm: "newpass123"})
	requireAppError(t, err, http.StatusUnauthorized, MsgWrongPassword)

	_, err = svc.UpdatePassword(ctx, s.User, "pass1234", models.PasswordInput{Password: "newpass123", PasswordConfirm: "other"})
	var ve *utils.ValidationError
	require.ErrorAs(t, err, &ve)

	fresh, err := svc.UpdatePassword(ctx, s.User, "pass1234", models.PasswordInput{Password: "newpass123", PasswordConfirm: "newpass123"})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, fresh.Token)
	require.NoError(t, err)

	stored, _ := users.get(s.User.ID)
	assert.True(t, utils.CheckPassword("newpass123", stored.Password))
	assert.NotNil(t, stored.PasswordChangedAt)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	svc, _, mail := newService(t)
	err := svc.ForgotPassword(context.Background(), "nobody@example.com", "http://localhost:8000")
	requireAppError(t, err, http.StatusNotFound, MsgNoSuchEmail)
	assert.Empty(t, mail.urls)
}

func TestForgotPasswordMailFailureRollsBack(t *testing.T) {
	svc, users, mail := newService(t)
	s := signup(t, svc, "test@example.com")
	mail.err = errors.New("smtp down")

	err := svc.ForgotPassword(context.Background(), "test@example.com", "http://localhost:8000")
	requireAppError(t, err, http.StatusInternalServerError, MsgMailFailed)

	stored, _ := users.get(s.User.ID)
	assert.Empty(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)
}

func TestResetPasswordOnce(t *testing.T) {
	svc, users, mail := newService(t)
	s := signup(t, svc, "test@example.com")
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, "test@example.com", "http://localhost:8000/"))
	require.Len(t, mail.urls, 1)
	prefix := "http://localhost:8000/api/v1/users/resetpassword/"
	require.True(t, strings.HasPrefix(mail.urls[0], prefix))
	plain := strings.TrimPrefix(mail.urls[0], prefix)

	stored, _ := users.get(s.User.ID)
	assert.Equal(t, utils.HashResetToken(plain), stored.PasswordResetToken, "only the hash is stored")

	in := models.PasswordInput{Password: "newpass123", PasswordConfirm: "newpass123"}
	fresh, err := svc.ResetPassword(ctx, plain, in)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, fresh.Token)
	require.NoError(t, err)

	stored, _ = users.get(s.User.ID)
	assert.Empty(t, stored.PasswordResetToken)
	assert.True(t, utils.CheckPassword("newpass123", stored.Password))

	_, err = svc.ResetPassword(ctx, plain, in)
	requireAppError(t, err, http.StatusBadRequest, MsgBadResetToken)
}

func TestResetPasswordExpiredLooksInvalid(t *testing.T) {
	svc, _, mail := newService(t)
	signup(t, svc, "test@example.com")
	ctx := context.Background()

	svc.now = func() time.Time { return time.Now().Add(-11 * time.Minute) }
	require.NoError(t, svc.ForgotPassword(ctx, "test@example.com", "http://localhost:8000"))
	plain := mail.urls[0][strings.LastIndex(mail.urls[0], "/")+1:]

	svc.now = time.Now
	in := models.PasswordInput{Password: "newpass123", PasswordConfirm: "newpass123"}
	_, err := svc.ResetPassword(ctx, plain, in)
	requireAppError(t, err, http.StatusBadRequest, MsgBadResetToken)

	_, err = svc.ResetPassword(ctx, "unknown-token", in)
	requireAppError(t, err, http.StatusBadRequest, MsgBadResetToken)
}

func TestResetPasswordInvalidInputKeepsToken(t *testing.T) {
	svc, users, mail := newService(t)
	s := signup(t, svc, "test@example.com")
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, "test@example.com", "http://localhost:8000"))
	plain := mail.urls[0][strings.LastIndex(mail.urls[0], "/")+1:]

	_, err := svc.ResetPassword(ctx, plain, models.PasswordInput{Password: "newpass123", PasswordConfirm: "nope"})
	var ve *utils.ValidationError
	require.ErrorAs(t, err, &ve)

	stored, _ := users.get(s.User.ID)
	assert.NotEmpty(t, stored.PasswordResetToken)
}

func TestUpdateProfile(t *testing.T) {
	svc, _, _ := newService(t)
	s := signup(t, svc, "test@example.com")
	ctx := context.Background()

	pw := "newpass123"
	_, err := svc.UpdateProfile(ctx, s.User, ProfileInput{Password: &pw})
	requireAppError(t, err, http.StatusBadRequest, MsgNoPasswordUpdate)

	bad := "nope"
	_, err = svc.UpdateProfile(ctx, s.User, ProfileInput{Email: &bad})
	var ve *utils.ValidationError
	require.ErrorAs(t, err, &ve)

	name, email := "New Name", "New@Example.com"
	u, err := svc.UpdateProfile(ctx, s.User, ProfileInput{Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "New Name", u.Name)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)
}

func TestDeactivate(t *testing.T) {
	svc, _, _ := newService(t)
	s := signup(t, svc, "test@example.com")
	ctx := context.Background()

	require.NoError(t, svc.Deactivate(ctx, s.User))
	_, err := svc.Login(ctx, "test@example.com", "pass1234")
	requireAppError(t, err, http.StatusUnauthorized, MsgBadLogin)
}
