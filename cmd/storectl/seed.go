package main

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/supabros/bookstore/internal/config"
	"github.com/supabros/bookstore/internal/services"
	"github.com/supabros/bookstore/internal/store"
)

type sampleBook struct {
	title, description, price, cover, download, category string
}

var sampleBooks = []sampleBook{
	{
		"The Art of Programming",
		"Master the fundamentals of software development with this comprehensive guide to programming principles and best practices.",
		"50", "https://images.unsplash.com/photo-1532012197267-da84d127e765?w=400&h=600&fit=crop",
		"https://example.com/downloads/art-of-programming.pdf", "Technology",
	},
	{
		"Digital Marketing Mastery",
		"Learn proven strategies to grow your business online with modern digital marketing techniques and tools.",
		"30", "https://images.unsplash.com/photo-1533750349088-cd871a92f312?w=400&h=600&fit=crop",
		"https://example.com/downloads/digital-marketing.pdf", "Business",
	},
	{
		"The Creative Mind",
		"Unlock your creative potential with exercises and insights from the world's most innovative thinkers.",
		"25", "https://images.unsplash.com/photo-1544947950-fa07a98d237f?w=400&h=600&fit=crop",
		"https://example.com/downloads/creative-mind.pdf", "Self-Help",
	},
	{
		"Financial Freedom",
		"A step-by-step guide to building wealth and achieving financial independence in the modern economy.",
		"100", "https://images.unsplash.com/photo-1579621970563-ebec7560ff3e?w=400&h=600&fit=crop",
		"https://example.com/downloads/financial-freedom.pdf", "Finance",
	},
	{
		"Healthy Living Guide",
		"Transform your life with practical advice on nutrition, fitness, and mental wellness.",
		"20", "https://images.unsplash.com/photo-1506126613408-eca07ce68773?w=400&h=600&fit=crop",
		"https://example.com/downloads/healthy-living.pdf", "Health",
	},
	{
		"Advanced AI & Machine Learning",
		"Deep dive into artificial intelligence and machine learning algorithms with hands-on projects.",
		"150", "https://images.unsplash.com/photo-1555255707-c07966088b7b?w=400&h=600&fit=crop",
		"https://example.com/downloads/ai-ml.pdf", "Technology",
	},
	{
		"Leadership Principles",
		"Essential leadership skills and strategies for managing teams and driving organizational success.",
		"75", "https://images.unsplash.com/photo-1519389950473-47ba0277781c?w=400&h=600&fit=crop",
		"https://example.com/downloads/leadership.pdf", "Business",
	},
	{
		"Photography Basics",
		"Learn the fundamentals of photography, from camera settings to composition and lighting.",
		"35", "https://images.unsplash.com/photo-1452587925148-ce544e77e70d?w=400&h=600&fit=crop",
		"https://example.com/downloads/photography.pdf", "Arts",
	},
}

func seedCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default admin and the sample catalog when they are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			st, err := store.Open(cfg.Store)
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
			}
			defer st.Close()

			auth := services.NewAuthService(st, nil, cfg.JWT, cfg.Argon2)
			return seed(cmd.Context(), st, auth, username, password, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&username, "admin-username", "admin", "username of the seeded admin")
	cmd.Flags().StringVar(&password, "admin-password", "admin123", "password of the seeded admin")
	return cmd
}

// seed is idempotent: the admin is skipped when any admin exists and the
// books when the catalog is not empty.
func seed(ctx context.Context, st store.Store, auth *services.AuthService, username, password string, out io.Writer) error {
	admins, err := st.CountAdmins(ctx)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if admins == 0 {
		if _, err := auth.CreateAdmin(ctx, username, password); err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		fmt.Fprintf(out, "admin user created (username: %s)\n", username)
	} else {
		fmt.Fprintln(out, "admin user already exists")
	}

	books, err := st.GetBooks(ctx)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	if len(books) > 0 {
		fmt.Fprintln(out, "books already exist")
		return nil
	}

	catalog := services.NewCatalogService(st)
	for _, b := range sampleBooks {
		price := decimal.RequireFromString(b.price)
		_, err := catalog.CreateBook(ctx, services.BookInput{
			Title:       b.title,
			Description: b.description,
			Price:       &price,
			CoverImage:  b.cover,
			DownloadURL: b.download,
			Category:    b.category,
		})
		if err != nil {
			return fmt.Errorf("create book %q: %w", b.title, err)
		}
	}
	fmt.Fprintf(out, "created %d sample books\n", len(sampleBooks))
	return nil
}
