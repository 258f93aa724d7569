package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"entitysvc/core"

	"github.com/go-viper/mapstructure/v2"
	"github.com/xeipuuv/gojsonschema"
)

// filterSchema describes the structured filter document. Operator names are
// checked by the compiler, not here, so that an unknown comparison reports
// ErrInvalidFilterOperator.
const filterSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "node": {
      "type": "object",
      "anyOf": [
        {
          "required": ["operator", "children"],
          "properties": {
            "operator": {"type": "string"},
            "children": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/node"}}
          }
        },
        {
          "required": ["field", "operator"],
          "properties": {
            "field": {"type": "string", "minLength": 1},
            "operator": {"type": "string"}
          }
        }
      ]
    }
  },
  "$ref": "#/definitions/node"
}`

var filterSchemaLoader = gojsonschema.NewStringLoader(filterSchema)

// DecodeFilter turns a raw "__filter" value into an expression tree. It
// accepts an expression, a structured map, a JSON document of that map, or
// the textual filter syntax. nil and blank input mean no filter.
func DecodeFilter(raw any) (*core.FilterExpr, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case core.FilterExpr:
		return &v, nil
	case *core.FilterExpr:
		return v, nil
	case map[string]any:
		return decodeFilterMap(v)
	case []byte:
		return decodeFilterJSON(v)
	case string:
		text := strings.TrimSpace(v)
		switch {
		case text == "":
			return nil, nil
		case strings.HasPrefix(text, "{"):
			return decodeFilterJSON([]byte(text))
		default:
			expr, err := ParseFilter(text)
			if err != nil {
				return nil, err
			}
			return expr, nil
		}
	default:
		return nil, fmt.Errorf("%w: %s has unsupported type %T", core.ErrInvalidParameter, core.KeyFilter, raw)
	}
}

func decodeFilterJSON(data []byte) (*core.FilterExpr, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s is not valid JSON: %v", core.ErrInvalidParameter, core.KeyFilter, err)
	}
	return decodeFilterMap(doc)
}

func decodeFilterMap(doc map[string]any) (*core.FilterExpr, error) {
	result, err := gojsonschema.Validate(filterSchemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %s cannot be validated: %v", core.ErrInvalidParameter, core.KeyFilter, err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("%w: %s is malformed: %v", core.ErrInvalidParameter, core.KeyFilter, result.Errors())
	}

	var expr core.FilterExpr
	if err := mapstructure.Decode(doc, &expr); err != nil {
		return nil, fmt.Errorf("%w: %s cannot be decoded: %v", core.ErrInvalidParameter, core.KeyFilter, err)
	}
	return &expr, nil
}
