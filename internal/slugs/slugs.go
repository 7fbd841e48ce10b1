// Package slugs resolves collision-free slugs and SKUs. Every check counts
// soft-deleted rows so retired identifiers are never handed out again.
package slugs

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
)

var (
	disallowedChars = regexp.MustCompile(`[^a-z0-9\s_-]`)
	separatorRuns   = regexp.MustCompile(`[\s_-]+`)
)

// Scope names the table and column a value must be unique within, plus any
// extra equality filters (subcategories are unique per category).
type Scope struct {
	Table  string
	Column string
	Where  map[string]any
}

var (
	BrandSlug    = Scope{Table: "brands", Column: "slug"}
	BrandName    = Scope{Table: "brands", Column: "name"}
	CategorySlug = Scope{Table: "categories", Column: "slug"}
	CategoryName = Scope{Table: "categories", Column: "name"}
	ProductSlug  = Scope{Table: "products", Column: "slug"}
	ProductName  = Scope{Table: "products", Column: "name"}
	VariantSKU   = Scope{Table: "product_variants", Column: "sku"}
	SectionKey   = Scope{Table: "sections", Column: "key"}
)

// SubCategorySlug scopes slug uniqueness to a single category.
func SubCategorySlug(categoryID uuid.UUID) Scope {
	return Scope{Table: "sub_categories", Column: "slug", Where: map[string]any{"category_id": categoryID}}
}

// SubCategoryName scopes name uniqueness to a single category.
func SubCategoryName(categoryID uuid.UUID) Scope {
	return Scope{Table: "sub_categories", Column: "name", Where: map[string]any{"category_id": categoryID}}
}

// Normalize lowercases a human name and reduces it to a URL-safe token.
func Normalize(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = disallowedChars.ReplaceAllString(s, "")
	s = separatorRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func (s Scope) query(ctx context.Context, db *gorm.DB, excludeID *uuid.UUID) *gorm.DB {
	// Table() bypasses the soft-delete scope, so deleted rows are counted.
	q := db.WithContext(ctx).Table(s.Table)
	for col, val := range s.Where {
		q = q.Where(fmt.Sprintf("%s = ?", col), val)
	}
	if excludeID != nil && *excludeID != uuid.Nil {
		q = q.Where("id <> ?", *excludeID)
	}
	return q
}

// Taken reports whether value is used by any row in scope other than excludeID,
// including soft-deleted rows. Create and update paths share this predicate.
func Taken(ctx context.Context, db *gorm.DB, scope Scope, value string, excludeID *uuid.UUID) (bool, error) {
	var count int64
	err := scope.query(ctx, db, excludeID).
		Where(fmt.Sprintf("%s = ?", scope.Column), value).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Unique normalizes base and appends -1, -2, ... until the value is free in
// scope. A concurrent writer can still claim the same value; the unique index
// is the final guard and its violation must be mapped to a conflict by callers.
func Unique(ctx context.Context, db *gorm.DB, base string, scope Scope, excludeID *uuid.UUID) (string, error) {
	slug := Normalize(base)
	if slug == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name must contain at least one letter or number")
	}

	var existing []string
	err := scope.query(ctx, db, excludeID).
		Where(fmt.Sprintf("%s = ? OR %s LIKE ?", scope.Column, scope.Column), slug, slug+"-%").
		Pluck(scope.Column, &existing).Error
	if err != nil {
		return "", err
	}

	used := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		used[v] = struct{}{}
	}
	if _, ok := used[slug]; !ok {
		return slug, nil
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", slug, i)
		if _, ok := used[candidate]; !ok {
			return candidate, nil
		}
	}
}
