package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/codec"
	"github.com/wippyai/structview/schema"
)

func newMeasureCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "measure",
		Short: "Print the record stride and field layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.loadSchema()
			if err != nil {
				return err
			}
			return writeLayout(cmd.OutOrStdout(), s)
		},
	}
}

// writeLayout prints the stride followed by one line per top-level field.
func writeLayout(w io.Writer, s *schema.Schema) error {
	stride, err := codec.Size(s)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: stride %d\n", s.Name, stride)
	off := 0
	for _, f := range s.Fields {
		size, err := codec.Size(schema.New(f.Name, f))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %4d %4d  %-20s %s\n", off, size, f.Name, describe(f))
		off += size
	}
	return nil
}

func describe(f schema.Field) string {
	n, _ := f.FixedLen()
	switch f.Kind {
	case schema.KindScalar:
		return fmt.Sprintf("%s %s", f.Type, f.Order)
	case schema.KindArray:
		return fmt.Sprintf("%s[%d] %s", f.Type, n, f.Order)
	case schema.KindStruct:
		return f.Struct.Name
	case schema.KindStructArray:
		return fmt.Sprintf("%s[%d]", f.Struct.Name, n)
	}
	return f.Kind.String()
}

func newDumpCmd(o *options) *cobra.Command {
	var from, count int
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print records as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.close()
			return dump(cmd.OutOrStdout(), t, from, count)
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "first record index")
	cmd.Flags().IntVar(&count, "count", 0, "maximum records to print (0 for all)")
	return cmd
}

type dumpLine struct {
	Index  int            `json:"index"`
	Record map[string]any `json:"record"`
}

// plain rewrites a decoded record for JSON output. uint8 arrays would
// otherwise be encoded as base64 strings, and JSON has no NaN or infinity,
// so non-finite floats become the strings "NaN", "+Inf" and "-Inf".
func plain(rec structview.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		switch x := v.(type) {
		case []uint8:
			ints := make([]int, len(x))
			for i, b := range x {
				ints[i] = int(b)
			}
			out[k] = ints
		case float32:
			out[k] = jsonFloat(x)
		case float64:
			out[k] = jsonFloat(x)
		case []float32:
			fs := make([]any, len(x))
			for i, f := range x {
				fs[i] = jsonFloat(f)
			}
			out[k] = fs
		case []float64:
			fs := make([]any, len(x))
			for i, f := range x {
				fs[i] = jsonFloat(f)
			}
			out[k] = fs
		case structview.Record:
			out[k] = plain(x)
		case []structview.Record:
			rs := make([]map[string]any, len(x))
			for i, r := range x {
				rs[i] = plain(r)
			}
			out[k] = rs
		default:
			out[k] = v
		}
	}
	return out
}

func jsonFloat[F float32 | float64](v F) any {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return v
}

func dump(w io.Writer, t *table, from, count int) error {
	if from < 0 {
		return fmt.Errorf("negative start index %d", from)
	}
	enc := json.NewEncoder(w)
	for i := from; t.view.Contains(i); i++ {
		if count > 0 && i-from >= count {
			break
		}
		rec, _ := t.view.Get(i)
		if err := enc.Encode(dumpLine{Index: i, Record: plain(rec)}); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

func newExportCmd(o *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every record as a msgpack stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.close()

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := export(w, t)
			if err != nil {
				return err
			}
			o.logger.Debug("exported records", zap.Int("count", n), zap.String("out", out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func export(w io.Writer, t *table) (int, error) {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	n := 0
	for i, rec := range t.view.All() {
		if err := enc.Encode(map[string]any(rec)); err != nil {
			return n, fmt.Errorf("record %d: %w", i, err)
		}
		n++
	}
	return n, nil
}

func newSetCmd(o *options) *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "set field=value...",
		Short: "Update scalar fields of one record in a data file",
		Long: `Update scalar fields of one record in place. Nested fields are addressed
with dots.

Example:
  structview set -s frame.yaml -f frames.bin -i 3 id=7 header.flags=0x10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.wasmPath != "" {
				return fmt.Errorf("set works on data files only")
			}
			t, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.close()

			rec, ok := t.view.Get(index)
			if !ok {
				return fmt.Errorf("record %d out of range (table has %d)", index, t.view.Len())
			}
			for _, arg := range args {
				if err := assign(t.schema, rec, arg); err != nil {
					return err
				}
			}
			if err := t.view.Set(index, rec); err != nil {
				return err
			}
			return o.save(t)
		},
	}
	cmd.Flags().IntVarP(&index, "index", "i", 0, "record index")
	return cmd
}

// assign applies one path=value argument to rec.
func assign(s *schema.Schema, rec structview.Record, arg string) error {
	name, raw, ok := strings.Cut(arg, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected field=value, got %q", arg)
	}
	path := strings.Split(name, ".")
	for _, seg := range path[:len(path)-1] {
		f, ok := s.Field(seg)
		if !ok || f.Kind != schema.KindStruct {
			return fmt.Errorf("%s: %q is not a nested record", name, seg)
		}
		next, ok := rec[seg].(structview.Record)
		if !ok {
			next = structview.Record{}
			rec[seg] = next
		}
		s, rec = f.Struct, next
	}

	last := path[len(path)-1]
	f, ok := s.Field(last)
	if !ok {
		return fmt.Errorf("%s: no such field", name)
	}
	if f.Kind != schema.KindScalar {
		return fmt.Errorf("%s: only scalar fields can be set (field is %s)", name, f.Kind)
	}
	v, err := parseScalar(f.Type, raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	rec[last] = v
	return nil
}

// parseScalar parses raw as a value of type t. Integers accept Go literal
// prefixes (0x, 0o, 0b).
func parseScalar(t structview.Type, raw string) (any, error) {
	switch t {
	case structview.Uint8, structview.Uint16, structview.Uint32, structview.Uint64:
		v, err := strconv.ParseUint(raw, 0, bits(t))
		return v, err
	case structview.Int8, structview.Int16, structview.Int32, structview.Int64:
		v, err := strconv.ParseInt(raw, 0, bits(t))
		return v, err
	case structview.Float32, structview.Float64:
		v, err := strconv.ParseFloat(raw, bits(t))
		return v, err
	}
	return nil, fmt.Errorf("unknown type %q", t)
}

func bits(t structview.Type) int {
	switch t {
	case structview.Uint8, structview.Int8:
		return 8
	case structview.Uint16, structview.Int16:
		return 16
	case structview.Uint32, structview.Int32, structview.Float32:
		return 32
	}
	return 64
}
