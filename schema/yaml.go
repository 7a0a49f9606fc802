package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/errors"
)

// Schema document layout:
//
//	name: frame
//	order: big              # default byte order, big or little
//	structs:
//	  item:
//	    - {name: b, type: uint32}
//	    - {name: c, type: float64, length: 2, order: little}
//	fields:
//	  - {name: a, type: uint32}
//	  - {name: items, type: item, length: 2}
//
// A type naming an entry of structs is a nested record; any other type is a
// primitive tag. A length turns the field into a fixed array.
type document struct {
	Name    string                `yaml:"name"`
	Order   string                `yaml:"order"`
	Structs map[string][]fieldDoc `yaml:"structs"`
	Fields  []fieldDoc            `yaml:"fields"`
}

type fieldDoc struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Length *int   `yaml:"length"`
	Order  string `yaml:"order"`
}

// LoadFile reads and parses a YAML schema file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "read schema file")
	}
	return ParseYAML(data)
}

// ParseYAML builds a schema from a YAML document. Named structs are built
// once and shared by every field that references them.
func ParseYAML(data []byte) (*Schema, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, errors.InvalidInput(errors.PhaseParse, "empty schema document")
		}
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "decode schema document")
	}

	order, err := parseOrder(doc.Order)
	if err != nil {
		return nil, errors.New(errors.PhaseParse, errors.KindInvalidInput).
			Path("order").
			Detail("%v", err).
			Build()
	}

	if len(doc.Fields) == 0 {
		return nil, errors.InvalidInput(errors.PhaseParse, "schema has no fields")
	}

	p := &yamlParser{
		defs:     doc.Structs,
		order:    order,
		built:    make(map[string]*Schema),
		visiting: make(map[string]bool),
	}
	name := doc.Name
	if name == "" {
		name = "root"
	}
	return p.build(name, doc.Fields, nil)
}

type yamlParser struct {
	defs     map[string][]fieldDoc
	order    structview.Endianness
	built    map[string]*Schema
	visiting map[string]bool
}

func (p *yamlParser) build(name string, docs []fieldDoc, path []string) (*Schema, error) {
	fields := make([]Field, 0, len(docs))
	for i, fd := range docs {
		fieldPath := append(append([]string(nil), path...), fd.Name)
		if fd.Name == "" {
			return nil, errors.New(errors.PhaseParse, errors.KindInvalidInput).
				Path(path...).
				Detail("field %d of %s has no name", i, name).
				Build()
		}
		f, err := p.field(fd, fieldPath)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return New(name, fields...), nil
}

func (p *yamlParser) field(fd fieldDoc, path []string) (Field, error) {
	if fd.Type == "" {
		return Field{}, errors.New(errors.PhaseParse, errors.KindInvalidInput).
			Path(path...).
			Detail("missing type").
			Build()
	}
	if fd.Length != nil && *fd.Length < 0 {
		return Field{}, errors.New(errors.PhaseParse, errors.KindInvalidInput).
			Path(path...).
			Value(*fd.Length).
			Detail("negative length %d", *fd.Length).
			Build()
	}

	if _, ok := p.defs[fd.Type]; ok {
		sub, err := p.resolve(fd.Type, path)
		if err != nil {
			return Field{}, err
		}
		if fd.Length != nil {
			return StructArray(fd.Name, sub, *fd.Length), nil
		}
		return Struct(fd.Name, sub), nil
	}

	order := p.order
	if fd.Order != "" {
		o, err := parseOrder(fd.Order)
		if err != nil {
			return Field{}, errors.New(errors.PhaseParse, errors.KindInvalidInput).
				Path(path...).
				Detail("%v", err).
				Build()
		}
		order = o
	}

	t := structview.ParseType(fd.Type)
	if fd.Length != nil {
		return Array(fd.Name, t, *fd.Length, order), nil
	}
	return Scalar(fd.Name, t, order), nil
}

func (p *yamlParser) resolve(name string, path []string) (*Schema, error) {
	if s, ok := p.built[name]; ok {
		return s, nil
	}
	if p.visiting[name] {
		return nil, errors.New(errors.PhaseParse, errors.KindInvalidInput).
			Path(path...).
			Detail("struct %q references itself", name).
			Build()
	}
	p.visiting[name] = true
	s, err := p.build(name, p.defs[name], path)
	delete(p.visiting, name)
	if err != nil {
		return nil, err
	}
	p.built[name] = s
	return s, nil
}

func parseOrder(s string) (structview.Endianness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "big", "be", "big-endian":
		return structview.BigEndian, nil
	case "little", "le", "little-endian":
		return structview.LittleEndian, nil
	default:
		return 0, fmt.Errorf("unknown byte order %q", s)
	}
}
