// Package reflect_util maps struct fields to their JSON keys.
package reflect_util

import "reflect"

// GetFields returns the exported fields of t.
func GetFields(t reflect.Type) []reflect.StructField {
	fields := make([]reflect.StructField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.IsExported() {
			fields = append(fields, f)
		}
	}
	return fields
}

// JSONKey returns the name of f in its json tag, without options.
func JSONKey(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return tag[:i]
		}
	}
	return tag
}

// FieldByJSONKey finds the exported field of t tagged with key.
func FieldByJSONKey(t reflect.Type, key string) (reflect.StructField, bool) {
	for _, f := range GetFields(t) {
		if JSONKey(f) == key {
			return f, true
		}
	}
	return reflect.StructField{}, false
}
