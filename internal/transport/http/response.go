package httptransport

import (
	stderrors "errors"
	"fmt"
	"math"

	"github.com/gin-gonic/gin"

	"bookaudio-server-go/internal/platform/errors"
)

// APIResponse is the uniform JSON envelope for all non-streaming endpoints.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

// RespondSuccess writes a success envelope.
func RespondSuccess(c *gin.Context, httpStatus int, data interface{}, message string) {
	if message == "" {
		message = "ok"
	}
	c.JSON(httpStatus, APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// RespondError writes a failure envelope.
func RespondError(c *gin.Context, httpStatus int, message string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// RespondDomainError maps a domain error to its HTTP status. Rate-limit
// errors additionally carry a Retry-After header.
func RespondDomainError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)

	var typed *errors.Error
	if stderrors.As(err, &typed) && typed.RetryAfter > 0 {
		c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(typed.RetryAfter.Seconds()))))
	}
	RespondError(c, status, err.Error(), gin.H{"kind": string(errors.KindOf(err))})
}
