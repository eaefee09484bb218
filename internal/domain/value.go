package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeFormat is the canonical timestamp layout used everywhere: record
// timestamps, date property values, and activity entries.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// DateOnlyFormat is accepted for date properties that carry no time component.
const DateOnlyFormat = "2006-01-02"

// Coerce converts a raw (typically JSON-decoded) value into the canonical Go
// representation for the definition's data type: string, float64, bool, a
// normalized date string, or []string for multiselect. Reference values pass
// through as record ID strings; target existence is checked at write time.
// Unparseable input fails with TypeMismatchError; a select value outside the
// configured options fails with ValidationError.
func Coerce(def *PropertyDefinition, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch def.DataType {
	case TypeString:
		s, ok := coerceString(raw)
		if !ok {
			return nil, &TypeMismatchError{Property: def.Name, DataType: def.DataType, Value: raw}
		}
		return s, nil
	case TypeNumber:
		n, ok := coerceNumber(raw)
		if !ok {
			return nil, &TypeMismatchError{Property: def.Name, DataType: def.DataType, Value: raw}
		}
		return n, nil
	case TypeBoolean:
		b, ok := coerceBool(raw)
		if !ok {
			return nil, &TypeMismatchError{Property: def.Name, DataType: def.DataType, Value: raw}
		}
		return b, nil
	case TypeDate:
		d, ok := coerceDate(raw)
		if !ok {
			return nil, &TypeMismatchError{Property: def.Name, DataType: def.DataType, Value: raw}
		}
		return d, nil
	case TypeSelect:
		s, ok := coerceString(raw)
		if !ok {
			return nil, &TypeMismatchError{Property: def.Name, DataType: def.DataType, Value: raw}
		}
		if len(def.Options) > 0 && !def.HasOption(s) {
			return nil, &ValidationError{Message: fmt.Sprintf("property %q: %q is not a valid option", def.Name, s)}
		}
		return s, nil
	case TypeMultiSelect:
		vals, ok := coerceStringSlice(raw)
		if !ok {
			return nil, &TypeMismatchError{Property: def.Name, DataType: def.DataType, Value: raw}
		}
		if len(def.Options) > 0 {
			for _, v := range vals {
				if !def.HasOption(v) {
					return nil, &ValidationError{Message: fmt.Sprintf("property %q: %q is not a valid option", def.Name, v)}
				}
			}
		}
		return vals, nil
	case TypeReference:
		s, ok := coerceString(raw)
		if !ok || s == "" {
			return nil, &TypeMismatchError{Property: def.Name, DataType: def.DataType, Value: raw}
		}
		return s, nil
	}
	return nil, &ValidationError{Message: fmt.Sprintf("property %q has unsupported data type %q", def.Name, def.DataType)}
}

func coerceString(raw any) (string, bool) {
	s, ok := raw.(string)
	return s, ok
}

func coerceNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func coerceBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	return false, false
}

func coerceDate(raw any) (string, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC().Format(TimeFormat), true
	case string:
		s := strings.TrimSpace(v)
		if _, err := time.Parse(DateOnlyFormat, s); err == nil {
			return s, true
		}
		if t, err := time.Parse(TimeFormat, s); err == nil {
			return t.UTC().Format(TimeFormat), true
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC().Format(TimeFormat), true
		}
	}
	return "", false
}

func coerceStringSlice(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		return []string{v}, true
	}
	return nil, false
}

// ValidateRules checks a coerced value against the definition's validation
// rules. It assumes the value already has the canonical type for its
// dataType.
func ValidateRules(def *PropertyDefinition, value any) error {
	if value == nil || def.Rules.Empty() {
		return nil
	}
	r := def.Rules
	switch v := value.(type) {
	case float64:
		if r.Min != nil && v < *r.Min {
			return &ValidationError{Message: fmt.Sprintf("property %q: %s is below minimum %s", def.Name, formatNumber(v), formatNumber(*r.Min))}
		}
		if r.Max != nil && v > *r.Max {
			return &ValidationError{Message: fmt.Sprintf("property %q: %s is above maximum %s", def.Name, formatNumber(v), formatNumber(*r.Max))}
		}
	case string:
		if r.MinLength > 0 && len(v) < r.MinLength {
			return &ValidationError{Message: fmt.Sprintf("property %q: value shorter than %d characters", def.Name, r.MinLength)}
		}
		if r.MaxLength > 0 && len(v) > r.MaxLength {
			return &ValidationError{Message: fmt.Sprintf("property %q: value longer than %d characters", def.Name, r.MaxLength)}
		}
		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return fmt.Errorf("property %q: compile pattern: %w", def.Name, err)
			}
			if !re.MatchString(v) {
				return &ValidationError{Message: fmt.Sprintf("property %q: value does not match pattern %s", def.Name, r.Pattern)}
			}
		}
	}
	return nil
}

// ValueEqual compares two canonical property values, treating nil as "unset"
// and comparing multiselect slices element-wise.
func ValueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	as, aok := a.([]string)
	bs, bok := b.([]string)
	if aok || bok {
		if !aok || !bok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return a == b
}

// ValueString renders a canonical value for display, comparison against
// trigger values, and activity change entries.
func ValueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatNumber(x)
	case bool:
		return strconv.FormatBool(x)
	case []string:
		return strings.Join(x, ";")
	}
	return fmt.Sprintf("%v", v)
}

// ValueNumber extracts a float64 from a canonical value if it is numeric.
func ValueNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
