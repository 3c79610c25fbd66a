package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/dgtech/storefront/internal/domain/product"
	"github.com/dgtech/storefront/internal/storage/postgres"
)

const rewritePrompt = `Rewrite the text content of this product listing for SEO.

PRODUCT:
Name: %s
Brand: %s
Category: %s
Current description: %s

Produce:
1. "seo_name": a clearer product name in the form "[Brand] [Model] with [CPU]
   ([specs separated by commas])". Only include specs present in the current
   name or description, never invent them.
2. "description": 2-3 sentences (80-120 words) focused on benefits and key
   differentiators, starting with the product name. Plain text, no markdown.
3. "meta_description": 155-160 characters including product name, brand and
   the main benefit.
4. "meta_keywords": 5-8 comma-separated search keywords.

Respond with ONLY a JSON object with exactly those four string keys.`

// rewritten mirrors the JSON object the model is asked to produce.
type rewritten struct {
	SEOName         string `json:"seo_name"`
	Description     string `json:"description"`
	MetaDescription string `json:"meta_description"`
	MetaKeywords    string `json:"meta_keywords"`
}

func main() {
	var (
		databaseURL string
		model       string
		concurrency int
		force       bool
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&model, "model", "gemini-2.5-flash", "Gemini model to use")
	flag.IntVar(&concurrency, "concurrency", 4, "number of products rewritten in parallel")
	flag.BoolVar(&force, "force", false, "rewrite products that already have SEO content")
	flag.BoolVar(&dryRun, "dry-run", false, "print generated content without writing to the database")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, model, concurrency, force, dryRun); err != nil {
		slog.Error("catalog rewrite failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog rewrite completed")
}

func run(ctx context.Context, databaseURL, model string, concurrency int, force, dryRun bool) error {
	// Reads GEMINI_API_KEY from the environment.
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "create genai client")
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewProductRepository(pool)

	products, err := repo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list products")
	}

	var pending []product.Product
	for _, p := range products {
		if p.SEOFriendlyName != "" && !force {
			continue
		}
		pending = append(pending, p)
	}

	slog.Info("rewriting catalog content",
		slog.Int("total", len(products)),
		slog.Int("pending", len(pending)),
		slog.String("model", model),
		slog.Bool("dry_run", dryRun),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, p := range pending {
		g.Go(func() error {
			content, err := rewriteProduct(ctx, client, model, p)
			if err != nil {
				return errors.Wrapf(err, "rewrite product %s", p.ID)
			}

			if dryRun {
				slog.Info("generated content",
					slog.String("product", p.ID),
					slog.String("seo_name", content.SEOFriendlyName),
					slog.String("meta_description", content.MetaDescription),
				)
				return nil
			}

			if err := repo.UpdateContent(ctx, p.ID, content); err != nil {
				return errors.Wrapf(err, "update product %s", p.ID)
			}

			slog.Info("product rewritten", slog.String("product", p.ID))
			return nil
		})
	}

	return g.Wait()
}

func rewriteProduct(ctx context.Context, client *genai.Client, model string, p product.Product) (product.ContentUpdate, error) {
	prompt := fmt.Sprintf(rewritePrompt, p.Name, p.Brand, p.Category, p.Description)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}
	temp := float32(0)
	config := &genai.GenerateContentConfig{
		Temperature: &temp,
	}

	res, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return product.ContentUpdate{}, errors.Wrap(err, "generate content")
	}

	var r rewritten
	if err := json.Unmarshal([]byte(stripFences(res.Text())), &r); err != nil {
		return product.ContentUpdate{}, errors.Wrap(err, "parse model response")
	}
	if r.SEOName == "" || r.Description == "" {
		return product.ContentUpdate{}, errors.New("model response missing required fields")
	}

	return product.ContentUpdate{
		SEOFriendlyName: r.SEOName,
		Description:     r.Description,
		MetaDescription: r.MetaDescription,
		MetaKeywords:    r.MetaKeywords,
	}, nil
}

// stripFences removes a markdown code fence that some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
