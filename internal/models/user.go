package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleAdmin     = "admin"
	RoleOfficial  = "official"
	RoleResident  = "resident"
	RoleResponder = "responder"
)

const (
	DefaultBarangay     = "Malagutay"
	DefaultMunicipality = "Loon"
	DefaultProvince     = "Bohol"
	DefaultZipCode      = "6316"
	DefaultLongitude    = 123.8014
	DefaultLatitude     = 9.8063
)

type User struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username            string             `bson:"username" json:"username"`
	Email               string             `bson:"email" json:"email"`
	Password            string             `bson:"password" json:"-"`
	FirstName           string             `bson:"first_name" json:"firstName"`
	LastName            string             `bson:"last_name" json:"lastName"`
	ContactNumber       string             `bson:"contact_number" json:"contactNumber"`
	Role                string             `bson:"role" json:"role"`
	Address             Address            `bson:"address" json:"address"`
	Location            GeoPoint           `bson:"location" json:"location"`
	ProfilePicture      string             `bson:"profile_picture,omitempty" json:"profilePicture,omitempty"`
	IsActive            bool               `bson:"is_active" json:"isActive"`
	IsVerified          bool               `bson:"is_verified" json:"isVerified"`
	Preferences         Preferences        `bson:"preferences" json:"preferences"`
	VerificationToken   string             `bson:"verification_token,omitempty" json:"-"`
	PasswordResetToken  string             `bson:"password_reset_token,omitempty" json:"-"`
	PasswordResetExpiry *time.Time         `bson:"password_reset_expiry,omitempty" json:"-"`
	LastLogin           *time.Time         `bson:"last_login,omitempty" json:"lastLogin,omitempty"`
	CreatedAt           time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updated_at" json:"updatedAt"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Actor returns the authenticated-actor value for this user.
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

type Address struct {
	Street       string `bson:"street,omitempty" json:"street,omitempty"`
	Sitio        string `bson:"sitio,omitempty" json:"sitio,omitempty"`
	Barangay     string `bson:"barangay" json:"barangay"`
	Municipality string `bson:"municipality" json:"municipality"`
	Province     string `bson:"province" json:"province"`
	ZipCode      string `bson:"zip_code" json:"zipCode"`
}

// WithDefaults fills the administrative fields every resident shares.
func (a Address) WithDefaults() Address {
	if a.Barangay == "" {
		a.Barangay = DefaultBarangay
	}
	if a.Municipality == "" {
		a.Municipality = DefaultMunicipality
	}
	if a.Province == "" {
		a.Province = DefaultProvince
	}
	if a.ZipCode == "" {
		a.ZipCode = DefaultZipCode
	}
	return a
}

type Preferences struct {
	Notifications NotificationPreferences `bson:"notifications" json:"notifications"`
	Language      string                  `bson:"language" json:"language"`
}

type NotificationPreferences struct {
	Email bool `bson:"email" json:"email"`
	SMS   bool `bson:"sms" json:"sms"`
	Push  bool `bson:"push" json:"push"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Notifications: NotificationPreferences{Email: true, SMS: true, Push: true},
		Language:      "en",
	}
}

// Actor is the authenticated caller threaded through every mutating operation.
type Actor struct {
	UserID primitive.ObjectID
	Role   string
}

// HasRole reports whether the actor holds any of roles.
func (a Actor) HasRole(roles ...string) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// Recipient is a resolved alert target with its contact points.
type Recipient struct {
	UserID      primitive.ObjectID `json:"userId"`
	PhoneNumber string             `json:"phoneNumber,omitempty"`
	Email       string             `json:"email,omitempty"`
}

type AuthUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Role       string `json:"role"`
	IsVerified bool   `json:"isVerified"`
}

type RegisterRequest struct {
	Username      string    `json:"username" validate:"required,min=3,max=30,alphanum"`
	Email         string    `json:"email" validate:"required,email"`
	Password      string    `json:"password" validate:"required,min=6"`
	FirstName     string    `json:"firstName" validate:"required,max=50"`
	LastName      string    `json:"lastName" validate:"required,max=50"`
	ContactNumber string    `json:"contactNumber" validate:"required,ph_phone"`
	Address       Address   `json:"address"`
	Location      *GeoPoint `json:"location,omitempty"`
}

// CreateUserRequest is the admin variant of registration that can assign any role.
type CreateUserRequest struct {
	RegisterRequest
	Role string `json:"role" validate:"required,oneof=admin official resident responder"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string   `json:"token"`
	ExpiresAt int64    `json:"expiresAt"`
	User      AuthUser `json:"user"`
}

type UpdateProfileRequest struct {
	FirstName     *string      `json:"firstName,omitempty" validate:"omitempty,max=50"`
	LastName      *string      `json:"lastName,omitempty" validate:"omitempty,max=50"`
	ContactNumber *string      `json:"contactNumber,omitempty" validate:"omitempty,ph_phone"`
	Address       *Address     `json:"address,omitempty"`
	Location      *GeoPoint    `json:"location,omitempty"`
	Preferences   *Preferences `json:"preferences,omitempty"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type UserFilter struct {
	Role     string
	IsActive *bool
	Sitio    string
	Page     int
	Limit    int
}
