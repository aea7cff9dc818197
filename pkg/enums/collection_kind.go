package enums

import "fmt"

// CollectionKind distinguishes the two synchronized collection flavors.
type CollectionKind string

const (
	CollectionKindCart     CollectionKind = "cart"
	CollectionKindWishlist CollectionKind = "wishlist"
)

var validCollectionKinds = []CollectionKind{
	CollectionKindCart,
	CollectionKindWishlist,
}

// String implements fmt.Stringer.
func (c CollectionKind) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CollectionKind.
func (c CollectionKind) IsValid() bool {
	for _, candidate := range validCollectionKinds {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCollectionKind converts raw input into a CollectionKind.
func ParseCollectionKind(value string) (CollectionKind, error) {
	for _, candidate := range validCollectionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid collection kind %q", value)
}
