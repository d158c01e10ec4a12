package columnar

import (
	"encoding/json"
	"strings"

	"transformat/internal/model"
)

// fieldSchema is one column in the generated parquet JSON schema.
type fieldSchema struct {
	Tag string `json:"Tag"`
}

type jsonSchema struct {
	Tag    string        `json:"Tag"`
	Fields []fieldSchema `json:"Fields"`
}

// buildSchema maps an ordered field-definition list to a parquet-go
// JSON schema per spec.md §4.5: int -> 64-bit signed, double -> 64-bit
// float, timestamp -> text (the parsed textual form is preserved
// as-is), everything else -> text.
func buildSchema(defs []model.FieldDefinition) string {
	s := jsonSchema{
		Tag:    "name=root, repetitiontype=REQUIRED",
		Fields: make([]fieldSchema, 0, len(defs)),
	}
	for _, def := range defs {
		var tag string
		name := sanitizeFieldName(def.FieldName)
		switch def.FieldType {
		case model.FieldInt:
			tag = "name=" + name + ", type=INT64, repetitiontype=OPTIONAL"
		case model.FieldDouble:
			tag = "name=" + name + ", type=DOUBLE, repetitiontype=OPTIONAL"
		default: // string, timestamp
			tag = "name=" + name + ", type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"
		}
		s.Fields = append(s.Fields, fieldSchema{Tag: tag})
	}
	out, _ := json.Marshal(s)
	return string(out)
}

// transformTypesMetadata serialises field_name -> transform_type as the
// transform_types schema-level metadata entry downstream masking reads
// to decide per-column policy.
func transformTypesMetadata(defs []model.FieldDefinition) string {
	m := make(map[string]model.TransformType, len(defs))
	for _, def := range defs {
		tt := def.TransformType
		if tt == "" {
			tt = model.TransformPlain
		}
		m[def.FieldName] = tt
	}
	out, _ := json.Marshal(m)
	return string(out)
}

// sanitizeFieldName guards against parquet-go JSON-schema tag injection
// from a field name containing a comma (would break tag parsing).
func sanitizeFieldName(name string) string {
	return strings.ReplaceAll(name, ",", "_")
}
