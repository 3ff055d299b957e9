package config

import (
	"os"
	"reflect"
	"strings"

	"github.com/animalet/sargantana-config/pkg/config/secrets"
	"github.com/pkg/errors"
)

// expandVariables walks val and replaces ${prefix:key} references in every settable
// string it reaches (struct fields, pointers, slices and map values) with the value
// resolved by the secrets registry. The first resolution failure stops the walk.
func expandVariables(val reflect.Value) (err error) {
	// os.Expand has no error channel, so failures travel out through a panic.
	defer func() {
		if r := recover(); r != nil {
			resolveErr, ok := r.(expansionError)
			if !ok {
				panic(r)
			}
			err = resolveErr.err
		}
	}()
	walk(val)
	return nil
}

type expansionError struct {
	err error
}

func expand(property string) string {
	value, err := secrets.Resolve(property)
	if err != nil {
		panic(expansionError{err: errors.Wrap(err, "error resolving property")})
	}
	return value
}

func walk(val reflect.Value) {
	switch val.Kind() {
	case reflect.String:
		if val.CanSet() {
			val.SetString(os.Expand(strings.TrimSpace(val.String()), expand))
		}
	case reflect.Struct:
		for i := 0; i < val.NumField(); i++ {
			walk(val.Field(i))
		}
	case reflect.Ptr:
		if !val.IsNil() {
			walk(val.Elem())
		}
	case reflect.Slice:
		for i := 0; i < val.Len(); i++ {
			walk(val.Index(i))
		}
	case reflect.Map:
		if val.IsNil() {
			return
		}
		for _, key := range val.MapKeys() {
			// map values are not addressable: expand a copy and store it back
			entry := reflect.New(val.Type().Elem()).Elem()
			entry.Set(val.MapIndex(key))
			walk(entry)
			val.SetMapIndex(key, entry)
		}
	default:
		return
	}
}
