package middleware

import (
	"errors"
	"log"
	"net/http"

	"shopapi/apperror"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last error a handler attached with c.Error as
// {message, errors}. Errors outside the apperror taxonomy become a 500 with
// a generic message.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var appErr *apperror.Error
		if !errors.As(err, &appErr) {
			log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "An unexpected error occurred"})
			return
		}

		status := apperror.StatusCode(appErr.Kind)
		if status >= 500 {
			log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		}
		body := gin.H{"message": appErr.Message}
		if len(appErr.Fields) > 0 {
			body["errors"] = appErr.Fields
		}
		c.JSON(status, body)
	}
}
