package dto

import (
	"strings"

	"github.com/hugh/evently/internal/api/validation"
	"github.com/hugh/evently/internal/auth"
	"github.com/hugh/evently/internal/database/models"
)

type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r SignUpRequest) Validate() map[string]string {
	errors := make(map[string]string)

	email := strings.TrimSpace(r.Email)
	if email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(email) {
		errors["email"] = "Email is invalid"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if msg, ok := validation.CheckPassword(r.Password); !ok {
		errors["password"] = msg
	}
	if len(r.Name) > validation.MaxNameLength {
		errors["name"] = "Name is too long"
	}

	return errors
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r SignInRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Email) == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type UserDTO struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Image         string `json:"image,omitempty"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"emailVerified"`
	PhoneVerified bool   `json:"phoneVerified"`
}

func NewUserDTO(u *models.User) UserDTO {
	return UserDTO{
		ID:            u.ID.String(),
		Email:         u.Email,
		Name:          u.Name,
		Image:         u.Image,
		Role:          string(u.Role),
		EmailVerified: u.EmailVerified(),
		PhoneVerified: u.PhoneVerified,
	}
}

type SignUpResponse struct {
	Message string  `json:"message"`
	User    UserDTO `json:"user"`
}

// AuthResponse carries a freshly minted session token.
type AuthResponse struct {
	Token string        `json:"token"`
	User  auth.Identity `json:"user"`
}

type SessionResponse struct {
	User auth.Identity `json:"user"`
}
