package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrSchema marks inbound messages that fail schema validation.
var ErrSchema = errors.New("schema validation failed")

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// inboundSchemas maps client message types to their schema file.
var inboundSchemas = map[string]string{
	TypeHello:     "hello.schema.json",
	TypeAct:       "act.schema.json",
	TypeProposals: "proposals.schema.json",
	TypeResponses: "responses.schema.json",
}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		for _, name := range inboundSchemas {
			b, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				compileErr = err
				return
			}
			if err := c.AddResource(name, bytes.NewReader(b)); err != nil {
				compileErr = fmt.Errorf("schema %s: %w", name, err)
				return
			}
		}
		out := make(map[string]*jsonschema.Schema, len(inboundSchemas))
		for typ, name := range inboundSchemas {
			s, err := c.Compile(name)
			if err != nil {
				compileErr = fmt.Errorf("compile %s: %w", name, err)
				return
			}
			out[typ] = s
		}
		compiled = out
	})
	return compiled, compileErr
}

// Validate checks raw against the schema of its declared client message type.
func Validate(raw []byte) (BaseMessage, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return base, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	all, err := schemas()
	if err != nil {
		return base, err
	}
	s, ok := all[base.Type]
	if !ok {
		return base, fmt.Errorf("%w: unexpected message type %q", ErrSchema, base.Type)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return base, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if err := s.Validate(v); err != nil {
		return base, fmt.Errorf("%w: %s: %v", ErrSchema, base.Type, err)
	}
	return base, nil
}

// Decode validates raw and unmarshals it into T, which must be the message
// type named by want.
func Decode[T any](raw []byte, want string) (T, error) {
	var out T
	base, err := Validate(raw)
	if err != nil {
		return out, err
	}
	if base.Type != want {
		return out, fmt.Errorf("%w: got %s, want %s", ErrSchema, base.Type, want)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return out, nil
}
