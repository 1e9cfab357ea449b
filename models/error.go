package models

// ErrorMessageResponse is the body written for every failed request
type ErrorMessageResponse struct {
	Response MessageError
}

// MessageError contains the inner details for the error message response
type MessageError struct {
	Message string
	Error   string
}

// NewErrorResponse builds the error body; a nil err leaves Error empty
func NewErrorResponse(message string, err error) ErrorMessageResponse {
	body := ErrorMessageResponse{Response: MessageError{Message: message}}
	if err != nil {
		body.Response.Error = err.Error()
	}
	return body
}
