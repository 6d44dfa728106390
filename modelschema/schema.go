//go:generate go run ../build/gen-model-schema.go schema.json

package modelschema

import (
	_ "embed"
)

//go:embed "schema.json"
var schema []byte

func Schema() []byte {
	return schema
}
