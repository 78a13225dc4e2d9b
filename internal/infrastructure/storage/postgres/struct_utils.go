package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns extracts column names from struct "db" tags.
// Embedded structs (entity.Catalog, entity.BaseDocument) are walked
// recursively. Called once per repo at construction time.
//
// Usage:
//
//	columns := ExtractDBColumns[product.Product]()
//	// Returns: ["id", "version", "code", "name", "active", ...]
func ExtractDBColumns[T any]() []string {
	var zero T
	t := reflect.TypeOf(zero)
	return extractColumnsFromType(t)
}

func extractColumnsFromType(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return nil
	}

	var cols []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			cols = append(cols, extractColumnsFromType(field.Type)...)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}

		cols = append(cols, tag)
	}

	return cols
}

// fieldInfo contains pre-computed metadata about a struct field.
type fieldInfo struct {
	index int
	dbTag string
}

// typeMetadata contains cached reflection metadata for a type.
type typeMetadata struct {
	fields          []fieldInfo
	embeddedIndices []int
}

// typeCache holds metadata per type so reflection runs once.
var typeCache sync.Map // map[reflect.Type]*typeMetadata

func getOrCreateTypeMetadata(t reflect.Type) *typeMetadata {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{
		fields:          make([]fieldInfo, 0),
		embeddedIndices: make([]int, 0),
	}

	if t.Kind() != reflect.Struct {
		typeCache.Store(t, meta)
		return meta
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			meta.embeddedIndices = append(meta.embeddedIndices, i)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}

		meta.fields = append(meta.fields, fieldInfo{index: i, dbTag: tag})
	}

	typeCache.Store(t, meta)
	return meta
}

// StructToMap converts a struct to a column->value map using "db" tags.
// Fields without a "db" tag or tagged "-" are skipped. Embedded structs
// are flattened into the same map.
//
// Type metadata is cached, so repeated calls for the same type skip the
// field walk.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := getOrCreateTypeMetadata(rv.Type())

	res := make(map[string]any, len(meta.fields))

	for _, fi := range meta.fields {
		res[fi.dbTag] = rv.Field(fi.index).Interface()
	}

	for _, embIdx := range meta.embeddedIndices {
		for k, val := range StructToMap(rv.Field(embIdx).Interface()) {
			res[k] = val
		}
	}

	return res
}
