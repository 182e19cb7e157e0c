package resolver

import (
	"strconv"

	"pelorus/internal/domain"
)

// Argument values arrive as strings from query parameters and as JSON
// scalars from request bodies and GraphQL documents; these helpers accept
// both.

func argString(args map[string]any, name string) (string, bool) {
	v, ok := args[name]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func argInt(args map[string]any, name string) (int, bool) {
	v, ok := args[name]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func requireString(args map[string]any, name string) (string, error) {
	s, ok := argString(args, name)
	if !ok {
		return "", domain.NewValidationError(name, "required")
	}
	return s, nil
}

func requireCaller(caller domain.Identity) error {
	if caller.Anonymous() {
		return domain.ErrUnauthenticated
	}
	return nil
}
