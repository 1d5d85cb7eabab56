package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"shopapi/apperror"
	"shopapi/payment"
	"shopapi/reports"

	"github.com/gin-gonic/gin"
)

func (ctl *Controller) ConfirmDelivery(c *gin.Context) {
	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	order, err := ctl.Orders.ConfirmDelivery(ctx, c.Param("orderId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Delivery has been made successfully", "order": order})
}

func (ctl *Controller) GetOrdersAdmin(c *gin.Context) {
	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	orders, err := ctl.Orders.ListOrders(ctx)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Orders found successfully", "count": len(orders), "orders": orders})
}

// Reconcile reports ledger entries out of step with their embedded copies;
// ?repair=true also fixes lagging delivery flags.
func (ctl *Controller) Reconcile(c *gin.Context) {
	repair, err := strconv.ParseBool(c.DefaultQuery("repair", "false"))
	if err != nil {
		c.Error(apperror.Validation("Unable to Process", apperror.Field("repair", "repair must be true or false")))
		return
	}
	ctx, cancel := requestContext(c, 30*time.Second)
	defer cancel()

	report, err := ctl.Orders.Reconcile(ctx, repair)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Reconciliation finished",
		"checked":     report.Checked,
		"divergences": report.Divergences,
	})
}

func (ctl *Controller) ExportOrders(c *gin.Context) {
	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	orders, err := ctl.Orders.ListOrders(ctx)
	if err != nil {
		c.Error(err)
		return
	}
	file, err := reports.OrdersWorkbook(orders)
	if err != nil {
		c.Error(apperror.Wrap(apperror.KindInternal, "Failed to create Excel sheet", err))
		return
	}
	writeWorkbook(c, "orders.xlsx", file)
}

func (ctl *Controller) AccessToken(c *gin.Context) {
	ctx, cancel := requestContext(c, 15*time.Second)
	defer cancel()

	tok, err := ctl.Payments.FetchAccessToken(ctx)
	if errors.Is(err, payment.ErrNotConfigured) {
		c.Error(apperror.Wrap(apperror.KindInternal, "The payment gateway is not configured", err))
		return
	}
	if err != nil {
		c.Error(apperror.Wrap(apperror.KindInternal, "Unable to get an access token", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Access token generated", "accessToken": tok.Token, "expiresAt": tok.ExpiresAt})
}
