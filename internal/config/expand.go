package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
)

var ErrUndefinedVariable = errors.New("environment variable not defined")

// ${NAME} or ${NAME:default}
var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:)?([^}]*)\}`)

// ExpandEnv replaces ${NAME} and ${NAME:default} references in s. A
// reference to an unset variable without a default is an error.
func ExpandEnv(s string) (string, error) {
	var missing []error
	out := envReference.ReplaceAllStringFunc(s, func(match string) string {
		m := envReference.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(m[1]); ok {
			return v
		}
		if m[2] == ":" {
			return m[3]
		}
		missing = append(missing, fmt.Errorf("%w: %s", ErrUndefinedVariable, m[1]))
		return match
	})
	return out, errors.Join(missing...)
}

// expandFields applies ExpandEnv to every string field tagged expand:"env",
// descending into nested structs, struct pointers and struct slices.
func expandFields(v reflect.Value, path string) error {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return expandFields(v.Elem(), path)
	case reflect.Slice:
		var errz []error
		for i := range v.Len() {
			errz = append(errz, expandFields(v.Index(i), fmt.Sprintf("%s[%d]", path, i)))
		}
		return errors.Join(errz...)
	case reflect.Struct:
	default:
		return nil
	}

	var errz []error
	t := v.Type()
	for i := range v.NumField() {
		field, sf := v.Field(i), t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if path != "" {
			name = path + "." + sf.Name
		}
		if field.Kind() != reflect.String {
			errz = append(errz, expandFields(field, name))
			continue
		}
		if sf.Tag.Get("expand") != "env" || field.String() == "" {
			continue
		}
		expanded, err := ExpandEnv(field.String())
		if err != nil {
			errz = append(errz, fmt.Errorf("%s: %w", name, err))
			continue
		}
		field.SetString(expanded)
	}
	return errors.Join(errz...)
}
