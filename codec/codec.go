package codec

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/errors"
	"github.com/wippyai/structview/registry"
	"github.com/wippyai/structview/schema"
)

// Decode reads one instance of s from buf starting at offset into target and
// returns it. Only fields declared by s are written; other keys in target are
// left alone and nested records and slices already present are reused.
// A nil target is allocated. A nil cursor is replaced by a local one.
//
// On success cur.Offset is offset + Measure(s, 0).
func Decode(s *schema.Schema, buf []byte, offset int, target structview.Record, cur *structview.Cursor) (structview.Record, error) {
	if cur == nil {
		cur = &structview.Cursor{}
	}
	if target == nil {
		target = make(structview.Record, len(s.Fields))
	}
	cur.Offset = offset
	if err := decodeFields(s, buf, target, cur, nil); err != nil {
		return target, err
	}
	return target, nil
}

func decodeFields(s *schema.Schema, buf []byte, rec structview.Record, cur *structview.Cursor, path []string) error {
	for _, f := range s.Fields {
		switch f.Kind {
		case schema.KindScalar:
			e, err := resolve(errors.PhaseDecode, f, path)
			if err != nil {
				return err
			}
			w := e.Width()
			if err := check(errors.PhaseDecode, buf, cur.Offset, w, path, f.Name); err != nil {
				return err
			}
			rec[f.Name] = e.Read(buf[cur.Offset:], f.Order)
			cur.Offset += w

		case schema.KindArray:
			e, err := resolve(errors.PhaseDecode, f, path)
			if err != nil {
				return err
			}
			n, err := length(errors.PhaseDecode, f, f.Length.LengthForRead(buf, cur), path)
			if err != nil {
				return err
			}
			w := e.Width() * n
			if err := check(errors.PhaseDecode, buf, cur.Offset, w, path, f.Name); err != nil {
				return err
			}
			rec[f.Name] = e.ReadArray(buf[cur.Offset:], f.Order, n, rec[f.Name])
			cur.Offset += w

		case schema.KindStruct:
			if err := nested(errors.PhaseDecode, f, path); err != nil {
				return err
			}
			sub, ok := rec[f.Name].(structview.Record)
			if !ok || sub == nil {
				sub = make(structview.Record, len(f.Struct.Fields))
			}
			if err := decodeFields(f.Struct, buf, sub, cur, join(path, f.Name)); err != nil {
				return err
			}
			rec[f.Name] = sub

		case schema.KindStructArray:
			if err := nested(errors.PhaseDecode, f, path); err != nil {
				return err
			}
			n, err := length(errors.PhaseDecode, f, f.Length.LengthForRead(buf, cur), path)
			if err != nil {
				return err
			}
			prev, _ := rec[f.Name].([]structview.Record)
			out := registry.Reuse(prev, n)
			for i := range out {
				if out[i] == nil {
					out[i] = make(structview.Record, len(f.Struct.Fields))
				}
				if err := decodeFields(f.Struct, buf, out[i], cur, join(path, f.Name, index(i))); err != nil {
					return err
				}
			}
			rec[f.Name] = out

		default:
			return badKind(errors.PhaseDecode, f, path)
		}
	}
	return nil
}

// Encode writes value as one instance of s into buf starting at offset.
// Missing or short primitive arrays are zero-filled; a missing scalar is a
// shape mismatch. A nil cursor is replaced by a local one.
//
// On success cur.Offset is offset + Measure(s, 0).
func Encode(s *schema.Schema, buf []byte, offset int, value structview.Record, cur *structview.Cursor) error {
	if cur == nil {
		cur = &structview.Cursor{}
	}
	cur.Offset = offset
	return encodeFields(s, buf, value, cur, nil)
}

func encodeFields(s *schema.Schema, buf []byte, rec map[string]any, cur *structview.Cursor, path []string) error {
	for _, f := range s.Fields {
		v := rec[f.Name]

		switch f.Kind {
		case schema.KindScalar:
			e, err := resolve(errors.PhaseEncode, f, path)
			if err != nil {
				return err
			}
			w := e.Width()
			if err := check(errors.PhaseEncode, buf, cur.Offset, w, path, f.Name); err != nil {
				return err
			}
			if v == nil {
				return errors.ShapeMismatch(errors.PhaseEncode, join(path, f.Name), "missing value for scalar field")
			}
			if !e.Write(buf[cur.Offset:], f.Order, v) {
				return errors.TypeMismatch(errors.PhaseEncode, join(path, f.Name), goType(v), string(f.Type))
			}
			cur.Offset += w

		case schema.KindArray:
			e, err := resolve(errors.PhaseEncode, f, path)
			if err != nil {
				return err
			}
			n, err := length(errors.PhaseEncode, f, f.Length.LengthForWrite(buf, cur, v), path)
			if err != nil {
				return err
			}
			w := e.Width() * n
			if err := check(errors.PhaseEncode, buf, cur.Offset, w, path, f.Name); err != nil {
				return err
			}
			if i, ok := e.WriteArray(buf[cur.Offset:], f.Order, n, v); !ok {
				return arrayMismatch(join(path, f.Name), i, v, f.Type)
			}
			cur.Offset += w

		case schema.KindStruct:
			if err := nested(errors.PhaseEncode, f, path); err != nil {
				return err
			}
			sub, ok := AsRecord(v)
			if !ok {
				return errors.TypeMismatch(errors.PhaseEncode, join(path, f.Name), goType(v), "record")
			}
			if err := encodeFields(f.Struct, buf, sub, cur, join(path, f.Name)); err != nil {
				return err
			}

		case schema.KindStructArray:
			if err := nested(errors.PhaseEncode, f, path); err != nil {
				return err
			}
			n, err := length(errors.PhaseEncode, f, f.Length.LengthForWrite(buf, cur, v), path)
			if err != nil {
				return err
			}
			elems, ok := Records(v)
			if !ok {
				return errors.TypeMismatch(errors.PhaseEncode, join(path, f.Name), goType(v), "record array")
			}
			for i := 0; i < n; i++ {
				var sub map[string]any
				if i < len(elems) {
					if sub, ok = AsRecord(elems[i]); !ok {
						return errors.TypeMismatch(errors.PhaseEncode, join(path, f.Name, index(i)), goType(elems[i]), "record")
					}
				}
				if err := encodeFields(f.Struct, buf, sub, cur, join(path, f.Name, index(i))); err != nil {
					return err
				}
			}

		default:
			return badKind(errors.PhaseEncode, f, path)
		}
	}
	return nil
}

// Measure returns the offset just past one instance of s placed at offset.
func Measure(s *schema.Schema, offset int) (int, error) {
	cur := &structview.Cursor{Offset: offset}
	if err := measureFields(s, cur, nil); err != nil {
		return 0, err
	}
	return cur.Offset, nil
}

// Size returns the encoded size of one instance of s.
func Size(s *schema.Schema) (int, error) {
	return Measure(s, 0)
}

func measureFields(s *schema.Schema, cur *structview.Cursor, path []string) error {
	for _, f := range s.Fields {
		switch f.Kind {
		case schema.KindScalar, schema.KindArray:
			e, err := resolve(errors.PhaseMeasure, f, path)
			if err != nil {
				return err
			}
			n := 1
			if f.Kind == schema.KindArray {
				if n, err = length(errors.PhaseMeasure, f, f.Length.LengthForRead(nil, cur), path); err != nil {
					return err
				}
			}
			cur.Offset += e.Width() * n

		case schema.KindStruct, schema.KindStructArray:
			if err := nested(errors.PhaseMeasure, f, path); err != nil {
				return err
			}
			n := 1
			if f.Kind == schema.KindStructArray {
				var err error
				if n, err = length(errors.PhaseMeasure, f, f.Length.LengthForRead(nil, cur), path); err != nil {
					return err
				}
			}
			for i := 0; i < n; i++ {
				if err := measureFields(f.Struct, cur, join(path, f.Name)); err != nil {
					return err
				}
			}

		default:
			return badKind(errors.PhaseMeasure, f, path)
		}
	}
	return nil
}

// AsRecord accepts the map forms a nested value may take. A nil value is an
// empty record.
func AsRecord(v any) (map[string]any, bool) {
	switch r := v.(type) {
	case nil:
		return nil, true
	case structview.Record:
		return r, true
	case map[string]any:
		return r, true
	}
	return nil, false
}

// Records converts a struct array value to a slice of elements. A nil value
// is an empty sequence.
func Records(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, true
	case []any:
		return s, true
	case []structview.Record:
		out := make([]any, len(s))
		for i, r := range s {
			out[i] = r
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(s))
		for i, r := range s {
			out[i] = r
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func resolve(phase errors.Phase, f schema.Field, path []string) (registry.Entry, error) {
	e, err := registry.Lookup(f.Type)
	if err != nil {
		return nil, errors.UnknownType(phase, join(path, f.Name), string(f.Type))
	}
	return e, nil
}

func length(phase errors.Phase, f schema.Field, n int, path []string) (int, error) {
	if n < 0 {
		return 0, errors.New(phase, errors.KindInvalidInput).
			Path(join(path, f.Name)...).
			Value(n).
			Detail("negative array length %d", n).
			Build()
	}
	return n, nil
}

func nested(phase errors.Phase, f schema.Field, path []string) error {
	if f.Struct == nil {
		return errors.New(phase, errors.KindInvalidInput).
			Path(join(path, f.Name)...).
			Detail("%s field has no nested schema", f.Kind).
			Build()
	}
	return nil
}

func check(phase errors.Phase, buf []byte, off, width int, path []string, name string) error {
	if off < 0 || off+width > len(buf) {
		return errors.OutOfBounds(phase, join(path, name), off, width, len(buf))
	}
	return nil
}

func badKind(phase errors.Phase, f schema.Field, path []string) error {
	return errors.New(phase, errors.KindUnsupported).
		Path(join(path, f.Name)...).
		Detail("field kind %s", f.Kind).
		Build()
}

func arrayMismatch(path []string, i int, v any, t structview.Type) error {
	if i < 0 {
		return errors.TypeMismatch(errors.PhaseEncode, path, goType(v), string(t)+" array")
	}
	return errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
		Path(append(path, index(i))...).
		WireType(string(t)).
		Detail("element is not numeric").
		Build()
}

func join(path []string, names ...string) []string {
	out := make([]string, 0, len(path)+len(names))
	out = append(out, path...)
	return append(out, names...)
}

func index(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func goType(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
