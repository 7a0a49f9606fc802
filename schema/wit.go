package schema

import (
	"strconv"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/errors"
)

// FromWIT converts a WIT record type into a packed schema with every scalar
// in the given byte order.
//
// Integer and float primitives map to scalars, nested records to nested
// schemas, and homogeneous tuples to fixed arrays. WIT's own canonical ABI
// alignment is not applied: the result is tightly packed.
func FromWIT(t wit.Type, order structview.Endianness) (*Schema, error) {
	c := &witConverter{order: order, built: make(map[*wit.TypeDef]*Schema)}
	td, rec, ok := asRecord(t)
	if !ok {
		return nil, errors.New(errors.PhaseSchema, errors.KindUnsupported).
			Detail("top-level WIT type must be a record, got %T", t).
			Build()
	}
	return c.record(td, rec, nil)
}

type witConverter struct {
	order structview.Endianness
	built map[*wit.TypeDef]*Schema
}

func asRecord(t wit.Type) (*wit.TypeDef, *wit.Record, bool) {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return nil, nil, false
	}
	switch k := td.Kind.(type) {
	case *wit.Record:
		return td, k, true
	case wit.Type:
		return asRecord(k)
	}
	return nil, nil, false
}

func (c *witConverter) record(td *wit.TypeDef, r *wit.Record, path []string) (*Schema, error) {
	if s, ok := c.built[td]; ok {
		return s, nil
	}

	name := "record"
	if td.Name != nil {
		name = *td.Name
	}

	fields := make([]Field, 0, len(r.Fields))
	for _, wf := range r.Fields {
		fieldPath := append(append([]string(nil), path...), wf.Name)
		f, err := c.field(wf.Name, wf.Type, fieldPath)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}

	s := New(name, fields...)
	c.built[td] = s
	return s, nil
}

func (c *witConverter) field(name string, t wit.Type, path []string) (Field, error) {
	if prim, ok := primitive(t); ok {
		return Scalar(name, prim, c.order), nil
	}

	if td, rec, ok := asRecord(t); ok {
		sub, err := c.record(td, rec, path)
		if err != nil {
			return Field{}, err
		}
		return Struct(name, sub), nil
	}

	if td, ok := t.(*wit.TypeDef); ok {
		switch k := td.Kind.(type) {
		case *wit.Tuple:
			return c.tuple(name, k, path)
		case wit.Type:
			return c.field(name, k, path)
		}
	}

	return Field{}, errors.New(errors.PhaseSchema, errors.KindUnsupported).
		Path(path...).
		Detail("WIT type %s has no fixed packed layout", witTypeName(t)).
		Build()
}

func (c *witConverter) tuple(name string, tup *wit.Tuple, path []string) (Field, error) {
	if len(tup.Types) == 0 {
		return Field{}, errors.New(errors.PhaseSchema, errors.KindUnsupported).
			Path(path...).
			Detail("empty tuple").
			Build()
	}

	n := len(tup.Types)
	if prim, ok := primitive(tup.Types[0]); ok {
		for i, et := range tup.Types[1:] {
			if p, ok := primitive(et); !ok || p != prim {
				return Field{}, heterogeneous(path, i+1)
			}
		}
		return Array(name, prim, n, c.order), nil
	}

	td, rec, ok := asRecord(tup.Types[0])
	if !ok {
		return Field{}, errors.New(errors.PhaseSchema, errors.KindUnsupported).
			Path(append(path, "[0]")...).
			Detail("tuple element %s has no fixed packed layout", witTypeName(tup.Types[0])).
			Build()
	}
	for i, et := range tup.Types[1:] {
		etd, _, ok := asRecord(et)
		if !ok || etd != td {
			return Field{}, heterogeneous(path, i+1)
		}
	}
	sub, err := c.record(td, rec, path)
	if err != nil {
		return Field{}, err
	}
	return StructArray(name, sub, n), nil
}

func heterogeneous(path []string, i int) *errors.Error {
	return errors.New(errors.PhaseSchema, errors.KindUnsupported).
		Path(append(append([]string(nil), path...), "["+strconv.Itoa(i)+"]")...).
		Detail("tuple elements must share one type").
		Build()
}

func primitive(t wit.Type) (structview.Type, bool) {
	switch v := t.(type) {
	case wit.U8:
		return structview.Uint8, true
	case wit.S8:
		return structview.Int8, true
	case wit.U16:
		return structview.Uint16, true
	case wit.S16:
		return structview.Int16, true
	case wit.U32:
		return structview.Uint32, true
	case wit.S32:
		return structview.Int32, true
	case wit.U64:
		return structview.Uint64, true
	case wit.S64:
		return structview.Int64, true
	case wit.F32:
		return structview.Float32, true
	case wit.F64:
		return structview.Float64, true
	case *wit.TypeDef:
		if k, ok := v.Kind.(wit.Type); ok {
			return primitive(k)
		}
	}
	return "", false
}

func witTypeName(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		switch v.Kind.(type) {
		case *wit.List:
			return "list"
		case *wit.Option:
			return "option"
		case *wit.Result:
			return "result"
		case *wit.Variant:
			return "variant"
		case *wit.Enum:
			return "enum"
		case *wit.Flags:
			return "flags"
		}
	}
	return "unknown"
}
