package api

type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// ErrorResponse is the envelope returned for every failed request.
type ErrorResponse struct {
	Error   string  `json:"error"`
	Raw     *string `json:"raw,omitempty"`
	Message string  `json:"message,omitempty"`
}
