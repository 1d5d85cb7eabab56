package controllers

import (
	"net/http"
	"time"

	"shopapi/services"

	"github.com/gin-gonic/gin"
)

func (ctl *Controller) PlaceOrder(c *gin.Context) {
	var input services.PlaceOrderInput
	if !bind(c, &input) {
		return
	}
	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	order, err := ctl.Orders.PlaceOrder(ctx, c.Param("userId"), input)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Order added", "order": order})
}
