package enums

import "fmt"

// ModuleType discriminates the owner of a polymorphic image row.
type ModuleType string

const (
	ModuleTypeProduct       ModuleType = "product"
	ModuleTypeVariant       ModuleType = "variant"
	ModuleTypeProductReview ModuleType = "product_review"
	ModuleTypeSection       ModuleType = "section"
	ModuleTypeBrand         ModuleType = "brand"
)

var validModuleTypes = []ModuleType{
	ModuleTypeProduct,
	ModuleTypeVariant,
	ModuleTypeProductReview,
	ModuleTypeSection,
	ModuleTypeBrand,
}

func (m ModuleType) String() string {
	return string(m)
}

// IsValid reports whether the module type is known.
func (m ModuleType) IsValid() bool {
	for _, candidate := range validModuleTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseModuleType converts raw input into a ModuleType.
func ParseModuleType(value string) (ModuleType, error) {
	for _, candidate := range validModuleTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid module type %q", value)
}

// ImageType is the display role of an image within its owner.
type ImageType string

const (
	ImageTypePrimary   ImageType = "primary"
	ImageTypeGallery   ImageType = "gallery"
	ImageTypeThumbnail ImageType = "thumbnail"
	ImageTypeLogo      ImageType = "logo"
	ImageTypeBanner    ImageType = "banner"
)

var validImageTypes = []ImageType{
	ImageTypePrimary,
	ImageTypeGallery,
	ImageTypeThumbnail,
	ImageTypeLogo,
	ImageTypeBanner,
}

func (t ImageType) String() string {
	return string(t)
}

// IsValid reports whether the image type is known.
func (t ImageType) IsValid() bool {
	for _, candidate := range validImageTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseImageType converts raw input into an ImageType.
func ParseImageType(value string) (ImageType, error) {
	for _, candidate := range validImageTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid image type %q", value)
}
