package utils

func ToPointer[T any](value T) *T {
	return &value
}

// NonZero returns a pointer to value, or nil when value is the zero value.
// Used for optional response fields.
func NonZero[T comparable](value T) *T {
	var zero T
	if value == zero {
		return nil
	}
	return &value
}
