package models

// Response represents a generic API response structure.
type Response struct {
	Success      int         `json:"success"`
	ErrorCode    string      `json:"error_code,omitempty"`
	ErrorDetails string      `json:"error_details,omitempty"`
	Data         interface{} `json:"data,omitempty"`
}

// MessageData wraps a human-readable confirmation for mutations that do
// not return an entity.
type MessageData struct {
	Message string `json:"message"`
}
