package codec

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/default.json schema/meta.json
var schemaFS embed.FS

// Scalar field types. Any other type names an enum or a message.
const (
	TypeInt    = "int"
	TypeDouble = "double"
)

// FieldDef describes one field of a wire message.
type FieldDef struct {
	Tag      int    `json:"tag"`
	Type     string `json:"type"`
	Repeated bool   `json:"repeated,omitempty"`
}

// Schema is the wire schema descriptor shared with the scoring service.
// It maps field names onto tags and enum names onto numbers.
type Schema struct {
	Version  int                            `json:"version"`
	Enums    map[string]map[string]int      `json:"enums,omitempty"`
	Messages map[string]map[string]FieldDef `json:"messages"`

	byTag     map[string]map[int]string
	enumNames map[string]map[int]string
}

// Messages and fields the codec reads and writes.
var requiredFields = map[string][]string{
	"Note":          {"pitch", "startTime", "duration", "velocity"},
	"NoteList":      {"notes", "size"},
	"Edit":          {"operation", "pos", "sChar", "tChar", "tPos"},
	"ScoringResult": {"edits", "size"},
	"Recording":     {"playedNotes", "computedEdits"},
}

var (
	metaOnce   sync.Once
	metaSchema *jsonschema.Schema
	metaErr    error

	defaultOnce   sync.Once
	defaultSchema *Schema
)

func compileMeta() (*jsonschema.Schema, error) {
	metaOnce.Do(func() {
		raw, err := schemaFS.ReadFile("schema/meta.json")
		if err != nil {
			metaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("meta.json", bytes.NewReader(raw)); err != nil {
			metaErr = fmt.Errorf("add meta schema: %w", err)
			return
		}
		metaSchema, metaErr = c.Compile("meta.json")
	})
	return metaSchema, metaErr
}

// ParseSchema validates a descriptor document and indexes it for decoding.
func ParseSchema(data []byte) (*Schema, error) {
	meta, err := compileMeta()
	if err != nil {
		return nil, fmt.Errorf("compile meta schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode schema descriptor: %w", err)
	}
	if err := meta.Validate(doc); err != nil {
		return nil, fmt.Errorf("schema descriptor invalid: %w", err)
	}

	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema descriptor: %w", err)
	}
	if err := s.index(); err != nil {
		return nil, err
	}
	return &s, nil
}

// DefaultSchema is the descriptor compiled into the client. Requests are always encoded with it.
func DefaultSchema() *Schema {
	defaultOnce.Do(func() {
		raw, err := schemaFS.ReadFile("schema/default.json")
		if err != nil {
			panic(err)
		}
		s, err := ParseSchema(raw)
		if err != nil {
			panic(fmt.Sprintf("embedded wire schema: %v", err))
		}
		defaultSchema = s
	})
	return defaultSchema
}

// DefaultSchemaJSON returns the embedded descriptor document.
func DefaultSchemaJSON() []byte {
	raw, _ := schemaFS.ReadFile("schema/default.json")
	return raw
}

func (s *Schema) index() error {
	s.byTag = make(map[string]map[int]string, len(s.Messages))
	for msg, fields := range s.Messages {
		tags := make(map[int]string, len(fields))
		for name, def := range fields {
			if prev, dup := tags[def.Tag]; dup {
				return fmt.Errorf("message %s: tag %d used by %s and %s", msg, def.Tag, prev, name)
			}
			if !s.knownType(def.Type) {
				return fmt.Errorf("message %s: field %s has unknown type %q", msg, name, def.Type)
			}
			tags[def.Tag] = name
		}
		s.byTag[msg] = tags
	}
	for msg, names := range requiredFields {
		fields, ok := s.Messages[msg]
		if !ok {
			return fmt.Errorf("schema lacks message %s", msg)
		}
		for _, n := range names {
			if _, ok := fields[n]; !ok {
				return fmt.Errorf("schema message %s lacks field %s", msg, n)
			}
		}
	}
	s.enumNames = make(map[string]map[int]string, len(s.Enums))
	for enum, values := range s.Enums {
		names := make(map[int]string, len(values))
		for name, v := range values {
			names[v] = name
		}
		s.enumNames[enum] = names
	}
	return nil
}

func (s *Schema) knownType(t string) bool {
	switch t {
	case TypeInt, TypeDouble:
		return true
	}
	if _, ok := s.Enums[t]; ok {
		return true
	}
	_, ok := s.Messages[t]
	return ok
}

func (s *Schema) isEnum(t string) bool {
	_, ok := s.Enums[t]
	return ok
}

func (s *Schema) field(msg, name string) (FieldDef, bool) {
	def, ok := s.Messages[msg][name]
	return def, ok
}

func (s *Schema) fieldByTag(msg string, tag int) (string, FieldDef, bool) {
	name, ok := s.byTag[msg][tag]
	if !ok {
		return "", FieldDef{}, false
	}
	return name, s.Messages[msg][name], true
}

func (s *Schema) enumValue(enum, name string) (int, bool) {
	v, ok := s.Enums[enum][name]
	return v, ok
}

func (s *Schema) enumName(enum string, v int) (string, bool) {
	n, ok := s.enumNames[enum][v]
	return n, ok
}
