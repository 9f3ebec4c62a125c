package dto

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// StatusResponse is the {message, success} shape used by the verification endpoints.
type StatusResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
	Role    string `json:"role,omitempty"`
	Phone   string `json:"phone,omitempty"`
}
