// Package schema validates message payloads against per-type JSON Schemas.
// Schemas are embedded and compiled once at startup; a payload that fails
// its schema is refused before any authorization or IO work.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Names of the registered payload schemas.
const (
	Propose = "propose"
	Vote    = "vote"
	Space   = "space"
)

// Validator holds the compiled payload schemas.
type Validator struct {
	compiled map[string]*jsonschema.Schema
}

// NewValidator compiles every embedded schema.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	names := []string{Propose, Vote, Space}
	compiled := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		raw, err := schemaFS.ReadFile(fmt.Sprintf("schemas/%s.json", name))
		if err != nil {
			return nil, fmt.Errorf("read %s schema: %w", name, err)
		}
		url := fmt.Sprintf("https://snapshot-hub.local/schemas/%s.json", name)
		if err := c.AddResource(url, strings.NewReader(string(raw))); err != nil {
			return nil, fmt.Errorf("load %s schema: %w", name, err)
		}
		s, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", name, err)
		}
		compiled[name] = s
	}
	return &Validator{compiled: compiled}, nil
}

// Validate checks payload against the named schema.
func (v *Validator) Validate(name string, payload []byte) error {
	s, ok := v.compiled[name]
	if !ok {
		return fmt.Errorf("no schema registered for %q", name)
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("%s payload is not valid JSON: %w", name, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s payload rejected: %w", name, err)
	}
	return nil
}
