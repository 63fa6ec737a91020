package response

// Response represents the standard API error envelope
type Response struct {
	Status     string `json:"status"`      // always "error"
	StatusCode int    `json:"status_code"` // HTTP status code
	Error      string `json:"error"`
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}
