package apierrors

import (
	"github.com/gin-gonic/gin"
)

// body is the wire shape of every error response.
type body struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Fail aborts the request with the code's status and default message.
func Fail(c *gin.Context, code Code) {
	write(c, code, "", nil)
}

// FailWith aborts with a custom message and an optional structured payload
// (e.g. the affected-pages list on registry:component_in_use). An empty
// message falls back to the code's default.
func FailWith(c *gin.Context, code Code, message string, details any) {
	write(c, code, message, details)
}

func write(c *gin.Context, code Code, message string, details any) {
	if message == "" {
		message = code.Message()
	}
	c.AbortWithStatusJSON(code.Status(), gin.H{
		"error": body{Code: code, Message: message, Details: details},
	})
}
