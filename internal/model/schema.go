package model

import (
	"bytes"
	"encoding/json"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"
	schemareflector "github.com/swaggest/jsonschema-go"

	"github.com/dotk-io/acbp/modelschema"
)

var documentSchema *jsonschema.Schema

func init() {
	js, err := jsonschema.UnmarshalJSON(bytes.NewReader(modelschema.Schema()))
	if err != nil {
		panic(err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft2020)
	if err := compiler.AddResource("schema.json", js); err != nil {
		panic(err)
	}

	documentSchema, err = compiler.Compile("schema.json")
	if err != nil {
		panic(err)
	}
}

// ValidateDocument checks a raw model document against the embedded JSON
// schema before any decoding happens.
func ValidateDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}

	return documentSchema.Validate(doc)
}

func ReflectSchema() ([]byte, error) {
	reflector := schemareflector.Reflector{}

	s, err := reflector.Reflect(Model{})
	if err != nil {
		return nil, err
	}

	return json.MarshalIndent(s, "", "  ")
}

// Categories marshal as a mapping from category name to value list, not as
// the slice the Go type uses.
func (Categories) PrepareJSONSchema(schema *schemareflector.Schema) error {
	schema.Type = nil
	schema.Items = nil
	schema.AddType(schemareflector.Object)
	schema.WithAdditionalProperties(stringArraySchema().ToSchemaOrBool())
	return nil
}

// When marshals as a mapping whose values are a single string or a list.
func (When) PrepareJSONSchema(schema *schemareflector.Schema) error {
	schema.Type = nil
	schema.Items = nil
	schema.AddType(schemareflector.Object)
	values := schemareflector.Schema{}
	values.AnyOf = []schemareflector.SchemaOrBool{
		stringSchema().ToSchemaOrBool(),
		stringArraySchema().ToSchemaOrBool(),
	}
	schema.WithAdditionalProperties(values.ToSchemaOrBool())
	return nil
}

// The type tag is validated in Go where the closed variant lives; the schema
// only requires it to be present.
func (Kind) PrepareJSONSchema(schema *schemareflector.Schema) error {
	schema.Type = nil
	schema.AddType(schemareflector.String)
	return nil
}

func stringSchema() *schemareflector.Schema {
	s := schemareflector.Schema{}
	s.AddType(schemareflector.String)
	return &s
}

func stringArraySchema() *schemareflector.Schema {
	s := schemareflector.Schema{}
	s.AddType(schemareflector.Array)
	items := schemareflector.Items{}
	items.WithSchemaOrBool(stringSchema().ToSchemaOrBool())
	s.WithItems(items)
	return &s
}
