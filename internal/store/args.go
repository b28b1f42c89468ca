package store

import (
	"fmt"

	"github.com/nyhage/bodil/internal/dispatch"
)

// Argument decoding. JSON numbers arrive as float64, so integer
// arguments accept both forms.

func strArg(args dispatch.Args, key string) (string, bool, error) {
	v, ok := args[key]
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, &dispatch.InvalidArgsError{Reason: fmt.Sprintf("%s must be a string", key)}
	}
	return s, true, nil
}

func requireStr(args dispatch.Args, key string) (string, error) {
	s, ok, err := strArg(args, key)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", &dispatch.InvalidArgsError{Reason: fmt.Sprintf("%s is required", key)}
	}
	return s, nil
}

func intArg(args dispatch.Args, key string) (int, bool, error) {
	v, ok := args[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false, &dispatch.InvalidArgsError{Reason: fmt.Sprintf("%s must be an integer", key)}
		}
		return int(n), true, nil
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	default:
		return 0, false, &dispatch.InvalidArgsError{Reason: fmt.Sprintf("%s must be an integer", key)}
	}
}

func requireInt(args dispatch.Args, key string) (int, error) {
	n, ok, err := intArg(args, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &dispatch.InvalidArgsError{Reason: fmt.Sprintf("%s is required", key)}
	}
	return n, nil
}

func floatArg(args dispatch.Args, key string) (float64, bool, error) {
	v, ok := args[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return n, true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	default:
		return 0, false, &dispatch.InvalidArgsError{Reason: fmt.Sprintf("%s must be a number", key)}
	}
}
