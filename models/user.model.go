package models

import (
	"strings"
	"time"

	"go-tours/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a user can hold.
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

// Roles lists every valid role.
var Roles = []string{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}

const DefaultPhoto = "default.jpg"

// User represents a user in the system
type User struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name                 string             `bson:"name" json:"name" validate:"required"`
	Email                string             `bson:"email" json:"email" validate:"required,email"`
	Photo                string             `bson:"photo,omitempty" json:"photo,omitempty"`
	Role                 string             `bson:"role" json:"role" validate:"required,oneof=user guide lead-guide admin"`
	Password             string             `bson:"password" json:"-"`
	Active               bool               `bson:"active" json:"-"`
	PasswordChangedAt    *time.Time         `bson:"passwordChangedAt,omitempty" json:"-"`
	PasswordResetToken   string             `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires *time.Time         `bson:"passwordResetExpires,omitempty" json:"-"`
}

var userMessages = map[string]string{
	"name.required":  "Please tell us your name!",
	"email.required": "Please provide your email",
	"email.email":    "Please provide a valid email",
	"role.required":  "A user must have a role",
	"role.oneof":     "Role is either: user, guide, lead-guide, admin",
}

// Prepare normalizes the document and validates it before it is written.
func (u *User) Prepare() error {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = NormalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Photo == "" {
		u.Photo = DefaultPhoto
	}
	return utils.ValidateStruct(u, userMessages)
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at issuedAtMilli (unix milliseconds).
func (u *User) ChangedPasswordAfter(issuedAtMilli int64) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAtMilli < u.PasswordChangedAt.UnixMilli()
}

// SetPassword stores the hash of a new password and stamps the change time.
// Any pending reset token is discarded.
func (u *User) SetPassword(hashed string, now time.Time) {
	changed := now.Truncate(time.Millisecond)
	u.Password = hashed
	u.PasswordChangedAt = &changed
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
}

func (u *User) SetID(id primitive.ObjectID) { u.ID = id }

// HasRole reports whether the user's role is one of roles.
func (u *User) HasRole(roles ...string) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserSummary is the public part of a user embedded in other documents.
type UserSummary struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Photo string             `bson:"photo,omitempty" json:"photo,omitempty"`
	Email string             `bson:"email,omitempty" json:"email,omitempty"`
	Role  string             `bson:"role,omitempty" json:"role,omitempty"`
}

// Summary returns the public part of u.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Photo: u.Photo, Email: u.Email, Role: u.Role}
}

// PasswordInput is a new password with its confirmation.
type PasswordInput struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

var passwordMessages = map[string]string{
	"password.required":        "Please provide a password",
	"password.min":             "A password must have at least 8 characters",
	"passwordConfirm.required": "Please confirm your password",
	"passwordConfirm.eqfield":  "Passwords are not the same!",
}

func (p *PasswordInput) Validate() error {
	return utils.ValidateStruct(p, passwordMessages)
}

// SignupInput is the accepted signup payload. Role is deliberately absent.
type SignupInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Photo string `json:"photo"`
	PasswordInput
}
