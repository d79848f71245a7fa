package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/supabros/bookstore/internal/models"
	"github.com/supabros/bookstore/internal/store"
)

// BookInput is the admin create form. Every field is required.
type BookInput struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	CoverImage  string           `json:"coverImage"`
	DownloadURL string           `json:"downloadUrl"`
	Category    string           `json:"category"`
}

// BookPatch is the admin edit form. Absent fields are left untouched.
type BookPatch struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	CoverImage  *string          `json:"coverImage"`
	DownloadURL *string          `json:"downloadUrl"`
	Category    *string          `json:"category"`
}

type CatalogService struct {
	store     store.Store
	validator *ValidationHelper
}

func NewCatalogService(st store.Store) *CatalogService {
	return &CatalogService{store: st, validator: NewValidationHelper()}
}

func (s *CatalogService) ListBooks(ctx context.Context) ([]models.Book, error) {
	books, err := s.store.GetBooks(ctx)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []models.Book{}
	}
	return books, nil
}

func (s *CatalogService) CreateBook(ctx context.Context, in BookInput) (*models.Book, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" || in.Price == nil ||
		in.CoverImage == "" || in.DownloadURL == "" || strings.TrimSpace(in.Category) == "" {
		return nil, invalid("All fields are required")
	}
	if !s.validURL(in.CoverImage) || !s.validURL(in.DownloadURL) {
		return nil, invalid("Invalid URL format for coverImage or downloadUrl")
	}
	price := in.Price.Round(2)
	if !price.IsPositive() {
		return nil, invalid("Price must be a positive number")
	}

	book := &models.Book{
		Title:       in.Title,
		Description: in.Description,
		Price:       models.FormatAmount(price),
		CoverImage:  in.CoverImage,
		DownloadURL: in.DownloadURL,
		Category:    in.Category,
	}
	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, err
	}

	log.Printf("[CATALOG] Book %s created: %q at %s", book.ID, book.Title, book.Price)
	return book, nil
}

func (s *CatalogService) UpdateBook(ctx context.Context, id string, patch BookPatch) (*models.Book, error) {
	if patch.CoverImage != nil && !s.validURL(*patch.CoverImage) {
		return nil, invalid("Invalid coverImage URL")
	}
	if patch.DownloadURL != nil && !s.validURL(*patch.DownloadURL) {
		return nil, invalid("Invalid downloadUrl URL")
	}

	update := models.BookUpdate{
		Title:       patch.Title,
		Description: patch.Description,
		CoverImage:  patch.CoverImage,
		DownloadURL: patch.DownloadURL,
		Category:    patch.Category,
	}
	if patch.Price != nil {
		rounded := patch.Price.Round(2)
		if !rounded.IsPositive() {
			return nil, invalid("Price must be a positive number")
		}
		price := models.FormatAmount(rounded)
		update.Price = &price
	}

	book, err := s.store.UpdateBook(ctx, id, update)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Book not found")
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[CATALOG] Book %s updated", id)
	return book, nil
}

func (s *CatalogService) DeleteBook(ctx context.Context, id string) error {
	err := s.store.DeleteBook(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFound("Book not found")
	case errors.Is(err, store.ErrReferenced):
		return conflict("Book has been ordered and cannot be deleted")
	case err != nil:
		return err
	}

	log.Printf("[CATALOG] Book %s deleted", id)
	return nil
}

func (s *CatalogService) validURL(raw string) bool {
	return s.validator.ValidateVar(raw, "required,url") == nil
}
