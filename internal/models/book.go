package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Book is a downloadable title in the catalog
type Book struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Price       string    `json:"price" db:"price"` // fixed 2-decimal string
	CoverImage  string    `json:"coverImage" db:"cover_image"`
	DownloadURL string    `json:"downloadUrl" db:"download_url"`
	Category    string    `json:"category" db:"category"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// BookUpdate carries the fields of an admin edit. Nil fields are left untouched.
type BookUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Price       *string `json:"price"`
	CoverImage  *string `json:"coverImage"`
	DownloadURL *string `json:"downloadUrl"`
	Category    *string `json:"category"`
}

// Apply copies the set fields of u onto b.
func (u BookUpdate) Apply(b *Book) {
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Description != nil {
		b.Description = *u.Description
	}
	if u.Price != nil {
		b.Price = *u.Price
	}
	if u.CoverImage != nil {
		b.CoverImage = *u.CoverImage
	}
	if u.DownloadURL != nil {
		b.DownloadURL = *u.DownloadURL
	}
	if u.Category != nil {
		b.Category = *u.Category
	}
}

// FormatAmount renders a money value the way it is stored: two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ParseAmount parses a stored or submitted money string.
func ParseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// MustAmount parses a stored money string, treating garbage as zero.
// Stored amounts are always written through FormatAmount.
func MustAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
