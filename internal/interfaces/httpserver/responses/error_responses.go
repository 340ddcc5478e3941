package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"file-hub/internal/utils/platformerrors"
)

// ErrorResponse represents an error response with platform error details
type ErrorResponse struct {
	Code      string `json:"code,omitempty"` // UUID from PlatformError
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HandleError maps domain errors onto appropriate HTTP responses. Internal
// fault categories never leak their detail to the caller.
func HandleError(reqCtx *gin.Context, err error, message string) {
	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		statusCode := platformerrors.ErrorTypeToHTTPStatus(platformErr.GetErrorType())

		errorMessage := platformErr.Message
		if statusCode >= http.StatusInternalServerError {
			errorMessage = message
		}
		if errorMessage == "" {
			errorMessage = message
		}

		reqCtx.AbortWithStatusJSON(statusCode, ErrorResponse{
			Code:      platformErr.GetUUID(),
			Error:     errorMessage,
			RequestID: platformErr.GetRequestID(),
		})
		return
	}

	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error: message,
	})
}
