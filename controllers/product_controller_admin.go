package controllers

import (
	"net/http"
	"time"

	"shopapi/apperror"
	"shopapi/reports"
	"shopapi/services"

	"github.com/gin-gonic/gin"
)

func (ctl *Controller) CreateProduct(c *gin.Context) {
	var input services.ProductInput
	if !bind(c, &input) {
		return
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	p, err := ctl.Catalog.CreateProduct(ctx, input)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, productJSON("Product created successfully", p))
}

func (ctl *Controller) UpdateProduct(c *gin.Context) {
	var input services.ProductEditInput
	if !bind(c, &input) {
		return
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	p, err := ctl.Catalog.EditProduct(ctx, c.Param("id"), input)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, productJSON("Product updated", p))
}

func (ctl *Controller) DeleteProduct(c *gin.Context) {
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	if err := ctl.Catalog.DeleteProduct(ctx, c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted", "id": c.Param("id")})
}

func (ctl *Controller) CreateCategory(c *gin.Context) {
	var input services.CategoryInput
	if !bind(c, &input) {
		return
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	category, err := ctl.Catalog.CreateCategory(ctx, input)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Category added successfully", "id": category.ID.Hex(), "title": category.Title})
}

func (ctl *Controller) ExportProducts(c *gin.Context) {
	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	products, err := ctl.Catalog.ListProducts(ctx)
	if err != nil {
		c.Error(err)
		return
	}
	file, err := reports.ProductsWorkbook(products)
	if err != nil {
		c.Error(apperror.Wrap(apperror.KindInternal, "Failed to create Excel sheet", err))
		return
	}
	writeWorkbook(c, "products.xlsx", file)
}
