package apicrawler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/v0xg/autoqa/internal/model"
)

var errNotSpec = errors.New("document is neither OpenAPI 3 nor Swagger 2")

// endpoint methods in the order they are emitted per path
var specMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// parseSpec reads an OpenAPI 3 or Swagger 2 document in JSON or YAML
func parseSpec(body []byte, format docFormat) ([]model.APIEndpoint, error) {
	var raw map[string]any
	switch format {
	case formatJSON:
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	case formatYAML:
		var doc any
		if err := yaml.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		m, ok := normalizeYAML(doc).(map[string]any)
		if !ok {
			return nil, errNotSpec
		}
		raw = m
		// both loaders below want JSON
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to convert YAML: %w", err)
		}
		body = data
	default:
		return nil, errNotSpec
	}

	switch {
	case raw["openapi"] != nil:
		return parseOpenAPI3(body)
	case raw["swagger"] != nil:
		return parseSwagger2(body)
	}
	return nil, errNotSpec
}

// normalizeYAML rewrites map[interface{}]interface{} nodes so the tree can
// be encoded as JSON
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	}
	return v
}

func parseOpenAPI3(body []byte) ([]model.APIEndpoint, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI doc: %w", err)
	}
	if doc.Paths == nil {
		return nil, nil
	}

	paths := doc.Paths.Map()
	var out []model.APIEndpoint
	for _, path := range sortedKeys(paths) {
		item := paths[path]
		if item == nil {
			continue
		}
		ops := item.Operations()
		for _, method := range specMethods {
			op := ops[method]
			if op == nil {
				continue
			}
			ep := model.APIEndpoint{Path: path, Method: method, Source: model.SourceSpec}

			for _, p := range append(append(openapi3.Parameters{}, item.Parameters...), op.Parameters...) {
				if p == nil || p.Value == nil {
					continue
				}
				param := model.Parameter{Name: p.Value.Name, In: p.Value.In, Required: p.Value.Required}
				if p.Value.Schema != nil && p.Value.Schema.Value != nil {
					param.Schema = p.Value.Schema.Value
				}
				ep.Parameters = append(ep.Parameters, param)
			}

			if op.RequestBody != nil && op.RequestBody.Value != nil {
				if s := jsonSchema(op.RequestBody.Value.Content); s != nil {
					ep.RequestBody = s
				}
			}
			if op.Responses != nil {
				if r200 := op.Responses.Map()["200"]; r200 != nil && r200.Value != nil {
					if s := jsonSchema(r200.Value.Content); s != nil {
						ep.ResponseSchema = s
					}
				}
			}
			out = append(out, ep)
		}
	}
	return out, nil
}

// jsonSchema picks the application/json schema, falling back to the first
// media type that has one
func jsonSchema(content openapi3.Content) *openapi3.Schema {
	if mt := content["application/json"]; mt != nil && mt.Schema != nil && mt.Schema.Value != nil {
		return mt.Schema.Value
	}
	for _, ct := range sortedKeys(content) {
		if mt := content[ct]; mt != nil && mt.Schema != nil && mt.Schema.Value != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

func parseSwagger2(body []byte) ([]model.APIEndpoint, error) {
	var doc openapi2.T
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse Swagger doc: %w", err)
	}

	basePath := strings.TrimRight(doc.BasePath, "/")
	var out []model.APIEndpoint
	for _, path := range sortedKeys(doc.Paths) {
		item := doc.Paths[path]
		if item == nil {
			continue
		}
		ops := item.Operations()
		for _, method := range specMethods {
			op := ops[method]
			if op == nil {
				continue
			}
			ep := model.APIEndpoint{Path: basePath + path, Method: method, Source: model.SourceSpec}

			for _, p := range append(append(openapi2.Parameters{}, item.Parameters...), op.Parameters...) {
				if p == nil {
					continue
				}
				if p.In == "body" {
					if p.Schema != nil {
						ep.RequestBody = p.Schema
					}
					continue
				}
				param := model.Parameter{Name: p.Name, In: p.In, Required: p.Required}
				if p.Schema != nil {
					param.Schema = p.Schema
				}
				ep.Parameters = append(ep.Parameters, param)
			}

			if resp := op.Responses["200"]; resp != nil && resp.Schema != nil {
				ep.ResponseSchema = resp.Schema
			}
			out = append(out, ep)
		}
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
