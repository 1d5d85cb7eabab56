package controllers

import (
	"context"
	"net/http"
	"time"

	"shopapi/apperror"
	"shopapi/mailer"
	"shopapi/payment"
	"shopapi/reports"
	"shopapi/services"

	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"
)

// TokenFetcher exchanges gateway credentials for an access token.
type TokenFetcher interface {
	FetchAccessToken(ctx context.Context) (payment.AccessToken, error)
}

type Controller struct {
	Auth     *services.AuthService
	Catalog  *services.CatalogService
	Orders   *services.OrderService
	Payments TokenFetcher
	Failures mailer.FailureLog
}

func requestContext(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}

// bind decodes the JSON body into dst and records a validation error on failure.
func bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.Error(apperror.FromBinding(err))
		return false
	}
	return true
}

func writeWorkbook(c *gin.Context, filename string, file *xlsx.File) {
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Type", reports.ContentType)
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Expires", "0")
	c.Status(http.StatusOK)
	if err := file.Write(c.Writer); err != nil {
		c.Error(apperror.Wrap(apperror.KindInternal, "Failed to write Excel file", err))
	}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
