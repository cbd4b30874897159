package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Request types that carry a schema. Replies are server-built and
// not validated.
var schemaFiles = map[string]string{
	TypeHello:    "hello.schema.json",
	TypeObserve:  "observe.schema.json",
	TypeQuery:    "query.schema.json",
	TypeRoute:    "route.schema.json",
	TypeTour:     "tour.schema.json",
	TypeSave:     "save.schema.json",
	TypeLoad:     "load.schema.json",
	TypeSnapshot: "snapshot.schema.json",
}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func compileAll() {
	compiled = make(map[string]*jsonschema.Schema, len(schemaFiles))
	c := jsonschema.NewCompiler()
	for typ, file := range schemaFiles {
		b, err := schemaFS.ReadFile("schemas/" + file)
		if err != nil {
			compileErr = fmt.Errorf("read schema %s: %w", file, err)
			return
		}
		url := "mem://" + file
		if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema %s: %w", file, err)
			return
		}
		s, err := c.Compile(url)
		if err != nil {
			compileErr = fmt.Errorf("compile schema %s: %w", file, err)
			return
		}
		compiled[typ] = s
	}
}

// ValidateRequest checks a raw frame against the schema for its
// message type. Types without a schema pass.
func ValidateRequest(msgType string, raw []byte) error {
	compileOnce.Do(compileAll)
	if compileErr != nil {
		return compileErr
	}
	s, ok := compiled[msgType]
	if !ok {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
