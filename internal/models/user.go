package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account stored in the MongoDB users collection.
type User struct {
	ID                   primitive.ObjectID   `json:"id"    bson:"_id,omitempty"`
	Email                string               `json:"email" bson:"email"`
	Name                 string               `json:"name"  bson:"name"`
	PasswordHash         string               `json:"-"     bson:"passwordHash"`
	ResetPasswordToken   string               `json:"-"     bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpires *time.Time           `json:"-"     bson:"resetPasswordExpires,omitempty"`
	Hearts               []primitive.ObjectID `json:"hearts" bson:"hearts"`
	CreatedAt            time.Time            `json:"created_at" bson:"createdAt"`
}

// HasHeart reports whether the store id is in the user's hearts.
func (u *User) HasHeart(storeID primitive.ObjectID) bool {
	for _, id := range u.Hearts {
		if id == storeID {
			return true
		}
	}
	return false
}

// RegisterForm is the POST /register body.
type RegisterForm struct {
	Name            string `form:"name"             validate:"required"`
	Email           string `form:"email"            validate:"required,email"`
	Password        string `form:"password"         validate:"required"`
	PasswordConfirm string `form:"password-confirm" validate:"required,eqfield=Password"`
}

// LoginForm is the POST /login body.
type LoginForm struct {
	Email    string `form:"email"    validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

// AccountForm is the POST /account body.
type AccountForm struct {
	Name  string `form:"name"  validate:"required"`
	Email string `form:"email" validate:"required,email"`
}
