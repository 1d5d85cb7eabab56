package controllers

import (
	"net/http"
	"time"

	"shopapi/services"

	"github.com/gin-gonic/gin"
)

// UpdateCart replaces the cart of the user in the path.
func (ctl *Controller) UpdateCart(c *gin.Context) {
	var input services.CartInput
	if !bind(c, &input) {
		return
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	if err := ctl.Orders.UpdateCart(ctx, c.Param("userId"), input.Cart); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart updated successfully"})
}
