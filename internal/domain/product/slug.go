package product

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
)

// Slugify converts a product name into a URL-safe identifier: lowercased,
// runs of non-alphanumeric characters collapsed into single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// UniqueSlug derives a slug for name that does not collide with an existing
// product ID. Collisions are resolved by suffixing an incrementing counter,
// so "acer-swift" becomes "acer-swift-1", "acer-swift-2" and so on.
func UniqueSlug(ctx context.Context, repo Repository, name string) (string, error) {
	base := Slugify(name)
	if base == "" {
		return "", errors.New("product name produces empty slug")
	}

	slug := base
	for n := 1; ; n++ {
		exists, err := repo.IDExists(ctx, slug)
		if err != nil {
			return "", errors.Wrap(err, "check slug")
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}
