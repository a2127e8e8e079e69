package handler

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// Response is the generic success envelope.
type Response struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// ErrorResponseBody is the error envelope.
type ErrorResponseBody struct {
	Success bool     `json:"success" example:"false"`
	Error   APIError `json:"error"`
}

// MessageResponse carries a plain confirmation message.
type MessageResponse struct {
	Message string `json:"message" example:"run cleared"`
}

// CheckKeyRequest is the body of POST /llm/check-key.
type CheckKeyRequest struct {
	APIKey string `json:"api_key" example:"sk-..."`
}

// CheckKeyResponse reports the key check outcome.
type CheckKeyResponse struct {
	Valid   bool   `json:"valid" example:"true"`
	Message string `json:"message" example:"API key is working!"`
}
