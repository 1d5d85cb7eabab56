package controllers

import (
	"net/http"
	"time"

	"shopapi/models"

	"github.com/gin-gonic/gin"
)

func productJSON(message string, p *models.Product) gin.H {
	return gin.H{
		"message":    message,
		"id":         p.ID.Hex(),
		"title":      p.Title,
		"price":      p.Price,
		"category":   p.Category,
		"isDiscount": p.IsDiscount,
		"isFinished": p.IsFinished,
		"newPrice":   p.NewPrice,
		"image":      p.Image,
		"createdAt":  p.CreatedAt,
	}
}

func (ctl *Controller) GetProducts(c *gin.Context) {
	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	products, err := ctl.Catalog.ListProducts(ctx)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Products found successfully", "products": products})
}

func (ctl *Controller) GetProductByID(c *gin.Context) {
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	p, err := ctl.Catalog.GetProduct(ctx, c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, productJSON("Product found", p))
}

func (ctl *Controller) GetCategories(c *gin.Context) {
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	categories, err := ctl.Catalog.ListCategories(ctx)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Categories found successfully", "categories": categories})
}
