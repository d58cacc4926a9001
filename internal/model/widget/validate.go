package widget

import "math"

// ValidateRequired checks a decoded document against RequiredFields and
// reports the first field that is absent or falsy. Empty sequences and
// objects count as present.
func ValidateRequired(doc map[string]any) error {
	for _, field := range RequiredFields {
		value, ok := doc[field]
		if !ok || falsy(value) {
			return &MissingFieldError{Field: field}
		}
	}
	return nil
}

func falsy(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == ""
	case float64:
		return v == 0 || math.IsNaN(v)
	case float32:
		return v == 0 || math.IsNaN(float64(v))
	case int:
		return v == 0
	case int64:
		return v == 0
	case uint64:
		return v == 0
	default:
		return false
	}
}
