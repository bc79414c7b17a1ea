package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type FieldErrors map[string]string

// FromBindError turns a gin bind/validation error into a field->message map.
// dst: the struct pointer that was bound (for reading json tags)
func FromBindError(err error, dst any) FieldErrors {
	out := FieldErrors{}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			key := fieldKey(dst, fe.StructNamespace())
			out[key] = messageForTag(fe.Tag(), fe.Param())
		}
		return out
	}

	// other bind failures (type mismatch etc)
	out["_"] = "Request payload is invalid."
	return out
}

// fieldKey resolves a validator struct namespace ("input.MerchantLocale.ShopID")
// into the wire key ("merchant_locale.shop_id") by walking json/form tags.
func fieldKey(dst any, namespace string) string {
	t := reflect.TypeOf(dst)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		// first element is the root struct's name
		parts = parts[1:]
	}

	keys := make([]string, 0, len(parts))
	for _, name := range parts {
		// strip slice/map indexes ("Items[2]" -> "Items")
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		if t.Kind() != reflect.Struct {
			keys = append(keys, strings.ToLower(name))
			continue
		}
		f, ok := t.FieldByName(name)
		if !ok {
			keys = append(keys, strings.ToLower(name))
			continue
		}
		keys = append(keys, tagKey(f, name))
		t = f.Type
		for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Map {
			t = t.Elem()
		}
	}
	return strings.Join(keys, ".")
}

func tagKey(f reflect.StructField, fallback string) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		tag = f.Tag.Get("form")
	}
	if i := strings.Index(tag, ","); i >= 0 {
		tag = tag[:i]
	}
	if tag == "" || tag == "-" {
		return strings.ToLower(fallback)
	}
	return tag
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "email":
		return "Must be a valid email address."
	case "len":
		return "Must be exactly " + param + " characters."
	case "min":
		return "Must be at least " + param + " characters."
	case "max":
		return "Must be at most " + param + " characters."
	default:
		return "Invalid value."
	}
}
