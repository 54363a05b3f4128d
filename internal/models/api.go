package models

// APIResponse is the uniform envelope returned by every HTTP endpoint.
type APIResponse struct {
	Status   string      `json:"status"`
	Message  string      `json:"message,omitempty"`
	Result   interface{} `json:"result,omitempty"`
	ErrorMsg string      `json:"error,omitempty"`
}

// Success wraps a result payload in a success envelope.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// SuccessWithMessage wraps a result payload with a human-readable message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: "ok", Message: message, Result: result}
}

// Error builds an error envelope.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", ErrorMsg: message}
}
