package dto

import "strings"

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// Phone verification actions
const (
	PhoneActionSend   = "send"
	PhoneActionVerify = "verify"
)

type VerifyPhoneRequest struct {
	Action string `json:"action"`
	Phone  string `json:"phone,omitempty"`
	OTP    string `json:"otp,omitempty"`
}

func (r VerifyPhoneRequest) Validate() map[string]string {
	errors := make(map[string]string)

	switch r.Action {
	case PhoneActionSend:
		if strings.TrimSpace(r.Phone) == "" {
			errors["phone"] = "Phone number is required"
		}
	case PhoneActionVerify:
		if strings.TrimSpace(r.OTP) == "" {
			errors["otp"] = "OTP is required"
		}
	default:
		errors["action"] = "Action must be 'send' or 'verify'"
	}

	return errors
}
