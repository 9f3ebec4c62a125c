package verification

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmailTaken      = errors.New("user with this email already exists")
	ErrInvalidToken    = errors.New("invalid verification token")
	ErrTokenExpired    = errors.New("verification token has expired")
	ErrNotFound        = errors.New("user not found")
	ErrAlreadyVerified = errors.New("already verified")
	ErrPhoneTaken      = errors.New("phone number already verified by another account")
	ErrDeliveryFailed  = errors.New("failed to deliver verification message")
	ErrInvalidOTP      = errors.New("invalid otp")
	ErrOTPExpired      = errors.New("otp has expired")
	ErrTooManyRequests = errors.New("too many requests")
)
