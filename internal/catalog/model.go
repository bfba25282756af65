package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tuannm99/novarow/internal/row"
)

var (
	ErrNotFound = errors.New("catalog: schema not found")
	ErrInvalid  = errors.New("catalog: invalid schema")
)

// Catalog is a set of named row schemas kept in a YAML file:
//
//	schemas:
//	  person:
//	    fields:
//	      - {name: age, type: int32}
//	      - {name: tags, type: list, nullable: true, elem: {type: string}}
type Catalog struct {
	Schemas map[string]SchemaMeta `yaml:"schemas"`
}

type SchemaMeta struct {
	Fields []FieldMeta `yaml:"fields"`
}

// FieldMeta describes one field. Elem and Value default to nullable,
// top-level fields and struct children default to not null.
type FieldMeta struct {
	Name      string      `yaml:"name,omitempty"`
	Type      string      `yaml:"type"`
	Nullable  *bool       `yaml:"nullable,omitempty"`
	Precision int32       `yaml:"precision,omitempty"`
	Scale     *int32      `yaml:"scale,omitempty"`
	Elem      *FieldMeta  `yaml:"elem,omitempty"`
	Key       *FieldMeta  `yaml:"key,omitempty"`
	Value     *FieldMeta  `yaml:"value,omitempty"`
	Fields    []FieldMeta `yaml:"fields,omitempty"`
}

func New() *Catalog {
	return &Catalog{Schemas: make(map[string]SchemaMeta)}
}

// Load reads a catalog file. Every schema is validated up front.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	c := New()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if c.Schemas == nil {
		c.Schemas = make(map[string]SchemaMeta)
	}
	for _, name := range c.Names() {
		if _, err := c.Schema(name); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Save writes the catalog, creating the directory when needed.
func (c *Catalog) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}

func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Schemas))
	for n := range c.Schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Schema resolves the named schema into a row schema.
func (c *Catalog) Schema(name string) (row.Schema, error) {
	m, ok := c.Schemas[name]
	if !ok {
		return row.Schema{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	fields, err := toFields(m.Fields)
	if err != nil {
		return row.Schema{}, fmt.Errorf("schema %q: %w", name, err)
	}
	return row.NewSchema(fields...), nil
}

// Put stores s under name, replacing any previous schema.
func (c *Catalog) Put(name string, s row.Schema) {
	c.Schemas[name] = SchemaMeta{Fields: fromFields(s.Fields)}
}

func toFields(ms []FieldMeta) ([]row.Field, error) {
	if len(ms) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalid)
	}
	seen := make(map[string]bool, len(ms))
	out := make([]row.Field, 0, len(ms))
	for _, m := range ms {
		if m.Name == "" {
			return nil, fmt.Errorf("%w: field without a name", ErrInvalid)
		}
		if seen[m.Name] {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalid, m.Name)
		}
		seen[m.Name] = true
		f, err := toField(m, false)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", m.Name, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func toField(m FieldMeta, nullable bool) (row.Field, error) {
	if m.Nullable != nil {
		nullable = *m.Nullable
	}
	t, err := toType(m)
	if err != nil {
		return row.Field{}, err
	}
	return row.NewField(m.Name, t, nullable), nil
}

func toType(m FieldMeta) (row.DataType, error) {
	id, ok := row.TypeIDOf(m.Type)
	if !ok {
		return row.DataType{}, fmt.Errorf("%w: unknown type %q", ErrInvalid, m.Type)
	}
	switch id {
	case row.TypeDecimal:
		p, s := m.Precision, int32(row.DefaultScale)
		if p == 0 {
			p = row.MaxPrecision
		} else {
			s = 0
		}
		if m.Scale != nil {
			s = *m.Scale
		}
		if p < 1 || p > row.MaxPrecision || s < 0 || s > p {
			return row.DataType{}, fmt.Errorf("%w: decimal(%d,%d)", ErrInvalid, p, s)
		}
		return row.DecimalOf(p, s), nil
	case row.TypeList:
		if m.Elem == nil {
			return row.DataType{}, fmt.Errorf("%w: list needs elem", ErrInvalid)
		}
		elem, err := toField(named(*m.Elem, "item"), true)
		if err != nil {
			return row.DataType{}, fmt.Errorf("elem: %w", err)
		}
		return row.ListOfField(elem), nil
	case row.TypeMap:
		if m.Key == nil || m.Value == nil {
			return row.DataType{}, fmt.Errorf("%w: map needs key and value", ErrInvalid)
		}
		if m.Key.Nullable != nil && *m.Key.Nullable {
			return row.DataType{}, fmt.Errorf("%w: map keys cannot be nullable", ErrInvalid)
		}
		key, err := toField(named(*m.Key, "key"), false)
		if err != nil {
			return row.DataType{}, fmt.Errorf("key: %w", err)
		}
		val, err := toField(named(*m.Value, "value"), true)
		if err != nil {
			return row.DataType{}, fmt.Errorf("value: %w", err)
		}
		return row.MapOfFields(key, val), nil
	case row.TypeStruct:
		fields, err := toFields(m.Fields)
		if err != nil {
			return row.DataType{}, err
		}
		return row.StructOf(fields...), nil
	}
	return row.DataType{ID: id}, nil
}

func named(m FieldMeta, name string) FieldMeta {
	if m.Name == "" {
		m.Name = name
	}
	return m
}

func fromFields(fs []row.Field) []FieldMeta {
	out := make([]FieldMeta, 0, len(fs))
	for _, f := range fs {
		out = append(out, fromField(f, false))
	}
	return out
}

// fromField writes nullable only when it differs from the default.
func fromField(f row.Field, defaultNullable bool) FieldMeta {
	m := FieldMeta{Name: f.Name, Type: f.Type.ID.String()}
	if f.Nullable != defaultNullable {
		n := f.Nullable
		m.Nullable = &n
	}
	t := f.Type
	switch t.ID {
	case row.TypeDecimal:
		m.Precision = t.Precision
		s := t.Scale
		m.Scale = &s
	case row.TypeList:
		e := fromField(*t.Elem, true)
		e.Name = ""
		m.Elem = &e
	case row.TypeMap:
		k, v := fromField(*t.Key, false), fromField(*t.Value, true)
		k.Name, v.Name = "", ""
		m.Key, m.Value = &k, &v
	case row.TypeStruct:
		m.Fields = fromFields(t.Fields)
	}
	return m
}
