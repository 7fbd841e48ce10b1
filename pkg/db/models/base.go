package models

import "github.com/google/uuid"

// All lists every persisted model in dependency order for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Otp{},
		&Brand{},
		&Category{},
		&SubCategory{},
		&Product{},
		&ProductVariant{},
		&Image{},
		&ProductReview{},
		&Section{},
		&SectionItem{},
	}
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
