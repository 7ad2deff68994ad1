package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/insuratask/insuratask/internal/calsync"
	"github.com/insuratask/insuratask/internal/google"
	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
)

// StringArg returns a trimmed string argument and whether it was present.
func StringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key].(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// RequiredString returns a non-empty string argument.
func RequiredString(args map[string]interface{}, key string) (string, error) {
	v, ok := StringArg(args, key)
	if !ok || v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// IntArg returns an integer argument. JSON numbers arrive as float64; numeric
// strings are accepted too.
func IntArg(args map[string]interface{}, key string) (int64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, true, fmt.Errorf("%s must be an integer", key)
		}
		return int64(v), true, nil
	case int:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, true, fmt.Errorf("%s must be an integer", key)
		}
		return n, true, nil
	}
	return 0, true, fmt.Errorf("%s must be an integer", key)
}

// RequiredID returns a positive integer argument.
func RequiredID(args map[string]interface{}, key string) (int64, error) {
	id, ok, err := IntArg(args, key)
	if err != nil {
		return 0, err
	}
	if !ok || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return id, nil
}

// BoolArg returns a boolean argument, nil when absent.
func BoolArg(args map[string]interface{}, key string) (*bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case bool:
		return &v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s must be a boolean", key)
		}
		return &b, nil
	}
	return nil, fmt.Errorf("%s must be a boolean", key)
}

// StringMapArg returns an object argument with string values. A JSON encoded
// object string is accepted as well.
func StringMapArg(args map[string]interface{}, key string) (map[string]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	out := map[string]string{}
	switch v := raw.(type) {
	case map[string]interface{}:
		for k, val := range v {
			out[k] = fmt.Sprint(val)
		}
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("%s must be an object of strings", key)
		}
	default:
		return nil, fmt.Errorf("%s must be an object of strings", key)
	}
	return out, nil
}

// JSONResult encodes v as an indented JSON text result.
func JSONResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ErrorResult turns a service error into a tool error result with a message
// an agent can act on.
func ErrorResult(action string, err error) *mcp.CallToolResult {
	var verr *task.ValidationError
	switch {
	case errors.As(err, &verr):
		return mcp.NewToolResultError(fmt.Sprintf("Invalid input: %v", verr))
	case errors.Is(err, store.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: not found", action))
	case errors.Is(err, calsync.ErrNotConnected), errors.Is(err, google.ErrNotConfigured):
		return mcp.NewToolResultError("Google Calendar is not connected. Connect it with `insuratask calendar connect` or the web UI.")
	}
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %v", action, err))
}
