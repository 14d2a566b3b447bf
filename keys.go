package plugreg

import (
	"fmt"
	"reflect"
	"strings"
)

// resolveKey computes the registration key for candidate under cfg. A
// configured KeyExtractor is authoritative; otherwise the key attribute is
// read off the candidate. ok=false means the candidate has no key, which is
// not an error by itself — the engine decides via SkipIfNoKey. An attribute
// of the wrong shape is a ConfigurationError.
func resolveKey(candidate any, cfg *Config) (key string, ok bool, err error) {
	if cfg.KeyExtractor != nil {
		key, ok = cfg.KeyExtractor(typeName(candidate), candidate)
		return key, ok && key != "", nil
	}
	val, found, err := lookupAttr(candidate, cfg.KeyAttribute)
	if err != nil || !found {
		return "", false, err
	}
	s, isString := val.(string)
	if !isString {
		return "", false, &ConfigurationError{
			Class:     typeName(candidate),
			Attribute: cfg.KeyAttribute,
			Reason:    fmt.Sprintf("registry key must be a string, got %T", val),
		}
	}
	return s, s != "", nil
}

// lookupAttr reads a named attribute off an arbitrary candidate: a niladic
// single-result method first, then an exported struct field, both following
// Go's promotion rules for embedded types. Nil values (and empty strings at
// the call sites that require keys) count as absent. A method with the
// wrong signature is a ConfigurationError, not a silent miss.
func lookupAttr(candidate any, attr string) (any, bool, error) {
	if candidate == nil || attr == "" {
		return nil, false, nil
	}
	v := reflect.ValueOf(candidate)
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, false, nil
	}

	if m := v.MethodByName(attr); m.IsValid() {
		t := m.Type()
		if t.NumIn() != 0 || t.NumOut() != 1 {
			return nil, false, &ConfigurationError{
				Class:     typeName(candidate),
				Attribute: attr,
				Reason:    "attribute method must take no arguments and return exactly one value",
			}
		}
		return attrValue(m.Call(nil)[0])
	}

	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, false, nil
	}
	f := v.FieldByName(attr)
	if !f.IsValid() || !f.CanInterface() {
		return nil, false, nil
	}
	return attrValue(f)
}

// attrValue unwraps a reflected attribute, treating nil-able zero values as
// absent so that an unset optional attribute reads as "no attribute".
func attrValue(v reflect.Value) (any, bool, error) {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil, false, nil
		}
	}
	return v.Interface(), true, nil
}

// typeName names a candidate's concrete type for keys and error messages.
func typeName(candidate any) string {
	t := reflect.TypeOf(candidate)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// SuffixExtractor builds a KeyExtractor that lowercases the candidate's
// type name after stripping a suffix: SuffixExtractor("Handler") maps an
// ImageXpressHandler to "imagexpress". Types without the suffix map to
// their whole lowercased name.
func SuffixExtractor(suffix string) KeyExtractor {
	return func(name string, _ any) (string, bool) {
		if len(name) > len(suffix) && strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
		}
		return strings.ToLower(name), name != ""
	}
}
