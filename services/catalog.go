package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"shopapi/apperror"
	"shopapi/database"
	"shopapi/models"
)

type ProductInput struct {
	Title    string  `json:"title" binding:"required"`
	Price    float64 `json:"price" binding:"gt=0"`
	Category string  `json:"category" binding:"required"`
}

type ProductEditInput struct {
	Title      string  `json:"title" binding:"required"`
	IsDiscount bool    `json:"isDiscount"`
	IsFinished bool    `json:"isFinished"`
	NewPrice   float64 `json:"newPrice" binding:"gte=0"`
}

type CategoryInput struct {
	Title string `json:"title" binding:"required"`
}

type CatalogService struct {
	Store Store
}

func productMissing() error {
	return apperror.NotFound("The product you are looking for does not exist")
}

func titleTaken() error {
	return apperror.Conflict("Error from title", apperror.Field("title",
		"A product with a similar title already exists. Perhaps you have already added it"))
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.Store.ListProducts(ctx)
	if err != nil {
		return nil, apperror.Persistence("Could not get all the products", err)
	}
	return products, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.Store.ProductByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, productMissing()
	}
	if err != nil {
		return nil, apperror.Persistence("Unable to find product", err)
	}
	return p, nil
}

// CreateProduct adds a product with the default flags and placeholder image.
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := apperror.Check(in); err != nil {
		return nil, err
	}

	if _, err := s.Store.ProductByTitle(ctx, in.Title); err == nil {
		return nil, titleTaken()
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, apperror.Persistence("Unable to look for similar product", err)
	}

	now := time.Now().UTC()
	p := &models.Product{
		Title:     in.Title,
		Price:     in.Price,
		Category:  in.Category,
		Image:     models.PlaceholderImage,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, titleTaken()
		}
		return nil, apperror.Persistence("Unable to create product", err)
	}
	return p, nil
}

func (s *CatalogService) EditProduct(ctx context.Context, id string, in ProductEditInput) (*models.Product, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := apperror.Check(in); err != nil {
		return nil, err
	}
	edit := models.ProductEdit{
		Title:      in.Title,
		IsDiscount: in.IsDiscount,
		IsFinished: in.IsFinished,
		NewPrice:   in.NewPrice,
	}
	p, err := s.Store.UpdateProduct(ctx, id, edit, time.Now().UTC())
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, productMissing()
	case errors.Is(err, database.ErrDuplicate):
		return nil, titleTaken()
	case err != nil:
		return nil, apperror.Persistence("Unable to update product", err)
	}
	return p, nil
}

// DeleteProduct succeeds whether or not the product exists.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.Store.DeleteProduct(ctx, id); err != nil {
		return apperror.Persistence("Unable to delete product", err)
	}
	return nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := apperror.Check(in); err != nil {
		return nil, err
	}
	exists := apperror.Conflict("Unable to process category title", apperror.Field("title", "This category already exists."))

	if _, err := s.Store.CategoryByTitle(ctx, in.Title); err == nil {
		return nil, exists
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, apperror.Persistence("Unable to look for the category name", err)
	}

	c := &models.Category{Title: in.Title, CreatedAt: time.Now().UTC()}
	if err := s.Store.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, exists
		}
		return nil, apperror.Persistence("Unable to save the new category", err)
	}
	return c, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.Store.ListCategories(ctx)
	if err != nil {
		return nil, apperror.Persistence("Unable to fetch the categories", err)
	}
	return categories, nil
}
