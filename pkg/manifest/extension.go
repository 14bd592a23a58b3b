package manifest

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	nperrors "github.com/matzehuels/nativepkg/pkg/errors"
)

// Well-known extension keys.
const (
	// KeyHeadersOnly marks a package that ships headers and no binary (manifest, bool).
	KeyHeadersOnly = "headersOnly"

	// KeySoLink is the release binary download URL (manifest, string).
	KeySoLink = "soLink"

	// KeyDebugSoLink is the debug binary download URL (manifest, string).
	KeyDebugSoLink = "debugSoLink"

	// KeyOverrideSoName replaces the derived binary file name (manifest, string).
	KeyOverrideSoName = "overrideSoName"

	// KeyUseRelease asks for the release binary of a dependency (dependency spec, bool).
	KeyUseRelease = "useRelease"
)

// ExtensionData is free-form data attached to manifests and dependency specs.
//
// Values are limited to string, bool, int64, float64, []any and
// map[string]any (recursively). Decoders may produce other numeric types;
// [ExtensionData.Normalize] folds them into this set.
type ExtensionData map[string]any

// ExtensionTypeError is returned by the typed accessors when a key is present
// with a value of the wrong kind.
type ExtensionTypeError struct {
	Key  string
	Want string
	Got  any
}

func (e *ExtensionTypeError) Error() string {
	return fmt.Sprintf("extension key %q: want %s, got %s", e.Key, e.Want, kindOf(e.Got))
}

// Code returns the error code for this error type.
func (e *ExtensionTypeError) Code() nperrors.Code { return nperrors.ErrCodeInvalidManifest }

// Keys returns the keys in sorted order.
func (d ExtensionData) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key is present.
func (d ExtensionData) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// GetBool returns the boolean stored at key. ok is false when the key is absent.
func (d ExtensionData) GetBool(key string) (val, ok bool, err error) {
	raw, present := d[key]
	if !present {
		return false, false, nil
	}
	b, isBool := raw.(bool)
	if !isBool {
		return false, true, &ExtensionTypeError{Key: key, Want: "bool", Got: raw}
	}
	return b, true, nil
}

// GetString returns the string stored at key. ok is false when the key is absent.
func (d ExtensionData) GetString(key string) (val string, ok bool, err error) {
	raw, present := d[key]
	if !present {
		return "", false, nil
	}
	s, isString := raw.(string)
	if !isString {
		return "", true, &ExtensionTypeError{Key: key, Want: "string", Got: raw}
	}
	return s, true, nil
}

// Set stores v at key after normalizing it. Unsupported kinds are rejected.
func (d ExtensionData) Set(key string, v any) error {
	n, err := normalize(v)
	if err != nil {
		return fmt.Errorf("extension key %q: %w", key, err)
	}
	d[key] = n
	return nil
}

// Normalize folds decoder-specific value types into the supported set and
// reports the first key holding an unsupported value.
func (d ExtensionData) Normalize() error {
	for _, k := range d.Keys() {
		n, err := normalize(d[k])
		if err != nil {
			return nperrors.Wrap(nperrors.ErrCodeInvalidManifest, err, "extension key %q", k)
		}
		d[k] = n
	}
	return nil
}

// Clone returns a deep copy.
func (d ExtensionData) Clone() ExtensionData {
	if d == nil {
		return nil
	}
	out := make(ExtensionData, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func normalize(v any) (any, error) {
	switch t := v.(type) {
	case string, bool, int64, float64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case float32:
		return float64(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, fmt.Errorf("invalid number %q", t.String())
		}
		return f, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case ExtensionData:
		return normalize(map[string]any(t))
	default:
		return nil, fmt.Errorf("unsupported value kind %s", kindOf(v))
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return t
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int32, int64, uint32:
		return "integer"
	case float32, float64:
		return "float"
	case []any:
		return "list"
	case map[string]any:
		return "table"
	default:
		return fmt.Sprintf("%T", v)
	}
}
