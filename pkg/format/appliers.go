// Package format applies the format options a caller selects for formattable
// fields to fetched rows.
package format

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Arguments map[string]any

// Applier rewrites one field value. A nil value is never passed to an applier.
type Applier func(value any, args Arguments) (any, error)

// ArgumentCheck validates the sub-arguments of a format option before any row
// is fetched.
type ArgumentCheck func(args Arguments) error

type Registry struct {
	mu       sync.RWMutex
	appliers map[string]Applier
	checks   map[string]ArgumentCheck
}

// NewRegistry returns a registry holding the built-in appliers.
func NewRegistry() *Registry {
	return &Registry{
		appliers: map[string]Applier{
			"UPPERCASE": upper,
			"LOWERCASE": lower,
			"TRUNCATE":  truncate,
			"ISO":       layout(time.RFC3339),
			"DATE":      layout("2006-01-02"),
			"TIME":      layout("15:04:05"),
			"CUSTOM":    custom,
			"ROUND":     round,
		},
		checks: map[string]ArgumentCheck{
			"TRUNCATE": checkArguments[TruncateArguments],
			"CUSTOM":   checkArguments[CustomArguments],
			"ROUND":    checkArguments[RoundArguments],
		},
	}
}

func (r *Registry) Register(name string, applier Applier) error {
	if name == "" || applier == nil {
		return fmt.Errorf("format name and applier are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.appliers[name]; exists {
		return fmt.Errorf("format '%s' is already registered", name)
	}
	r.appliers[name] = applier
	return nil
}

// RegisterCheck attaches an argument check to a registered format.
func (r *Registry) RegisterCheck(name string, check ArgumentCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.appliers[name]; !exists {
		return fmt.Errorf("format '%s' is not registered", name)
	}
	r.checks[name] = check
	return nil
}

// Check runs the argument check of name, if it has one.
func (r *Registry) Check(name string, args Arguments) error {
	r.mu.RLock()
	check, ok := r.checks[name]
	r.mu.RUnlock()
	if !ok || check == nil {
		return nil
	}
	return check(args)
}

func (r *Registry) Get(name string) (Applier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	applier, ok := r.appliers[name]
	return applier, ok
}

type TruncateArguments struct {
	Limit int `json:"limit" validate:"required,min=1"`
}

type CustomArguments struct {
	CustomFormat string `json:"customFormat" validate:"required"`
}

type RoundArguments struct {
	Limit int `json:"limit" validate:"min=0,max=15"`
}

// Common layout aliases accepted by CUSTOM
var layoutAliases = map[string]string{
	"iso8601":   time.RFC3339,
	"rfc3339":   time.RFC3339,
	"rfc822":    time.RFC822,
	"rfc1123":   time.RFC1123,
	"unix":      time.UnixDate,
	"date":      "2006-01-02",
	"datetime":  "2006-01-02 15:04:05",
	"time":      "15:04:05",
	"timestamp": "2006-01-02T15:04:05Z07:00",
}

var parseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"15:04:05",
}

func upper(value any, _ Arguments) (any, error) {
	return strings.ToUpper(toString(value)), nil
}

func lower(value any, _ Arguments) (any, error) {
	return strings.ToLower(toString(value)), nil
}

func truncate(value any, args Arguments) (any, error) {
	parsed, err := parseArguments[TruncateArguments](args)
	if err != nil {
		return nil, err
	}
	runes := []rune(toString(value))
	if len(runes) <= parsed.Limit {
		return string(runes), nil
	}
	return string(runes[:parsed.Limit]), nil
}

func layout(l string) Applier {
	return func(value any, _ Arguments) (any, error) {
		t, err := toTime(value)
		if err != nil {
			return nil, err
		}
		return t.Format(l), nil
	}
}

func custom(value any, args Arguments) (any, error) {
	parsed, err := parseArguments[CustomArguments](args)
	if err != nil {
		return nil, err
	}
	t, err := toTime(value)
	if err != nil {
		return nil, err
	}
	l := parsed.CustomFormat
	if alias, ok := layoutAliases[l]; ok {
		l = alias
	}
	return t.Format(l), nil
}

func round(value any, args Arguments) (any, error) {
	parsed, err := parseArguments[RoundArguments](args)
	if err != nil {
		return nil, err
	}
	f, ok := toFloat64(value)
	if !ok {
		return nil, fmt.Errorf("cannot round %T", value)
	}
	pow := math.Pow(10, float64(parsed.Limit))
	return math.Round(f*pow) / pow, nil
}

func checkArguments[T any](args Arguments) error {
	_, err := parseArguments[T](args)
	return err
}

// parseArguments converts args to T through JSON and validates the result.
func parseArguments[T any](args Arguments) (T, error) {
	var result T
	b, err := json.Marshal(args)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("arguments %v are not a valid %T", args, result)
	}
	if err := validate.Struct(result); err != nil {
		return result, fmt.Errorf("invalid format arguments: %w", err)
	}
	return result, nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, l := range parseLayouts {
			if parsed, err := time.Parse(l, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse date: %s", t)
	}
	return time.Time{}, fmt.Errorf("expected a time value, got %T", v)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case []byte:
		var f float64
		_, err := fmt.Sscan(string(n), &f)
		return f, err == nil
	}
	return 0, false
}
