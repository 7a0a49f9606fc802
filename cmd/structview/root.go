package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/codec"
	"github.com/wippyai/structview/compiler"
	"github.com/wippyai/structview/errors"
	"github.com/wippyai/structview/schema"
	"github.com/wippyai/structview/view"
	"github.com/wippyai/structview/wasmmem"
)

// options holds the flags shared by every command.
type options struct {
	schemaPath string
	dataPath   string
	wasmPath   string
	memory     string
	offset     uint32
	records    int
	generic    bool
	verbose    bool

	logger   *zap.Logger
	compiler *compiler.Compiler
}

func newRootCmd() *cobra.Command {
	o := &options{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:   "structview",
		Short: "Inspect and edit packed binary records",
		Long: `structview decodes tables of fixed-layout binary records described by a
YAML schema. Records are read from a data file or from the linear memory of a
WebAssembly module.

Example:
  structview dump -s particles.yaml -f particles.bin --count 10
  structview dump -s entry.yaml --wasm table.wasm --offset 1024 --records 16`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if o.verbose {
				l, err := zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("create logger: %w", err)
				}
				o.logger = l
			}
			compiler.SetLogger(o.logger)
			o.compiler = compiler.New(compiler.WithLogger(o.logger))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = o.logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&o.schemaPath, "schema", "s", "", "YAML schema file")
	flags.StringVarP(&o.dataPath, "file", "f", "", "binary data file")
	flags.StringVar(&o.wasmPath, "wasm", "", "WebAssembly module whose memory holds the records")
	flags.StringVar(&o.memory, "memory", "memory", "exported memory name (with --wasm)")
	flags.Uint32Var(&o.offset, "offset", 0, "byte offset of the first record")
	flags.IntVar(&o.records, "records", 0, "number of records in the table (default: as many as fit)")
	flags.BoolVar(&o.generic, "generic", false, "use the generic codec instead of compiled plans")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newMeasureCmd(o),
		newDumpCmd(o),
		newExportCmd(o),
		newSetCmd(o),
		newBrowseCmd(o),
		newSnapshotCmd(o),
	)
	return root
}

func (o *options) loadSchema() (*schema.Schema, error) {
	if o.schemaPath == "" {
		return nil, fmt.Errorf("a schema is required (-s)")
	}
	s, err := schema.LoadFile(o.schemaPath)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	o.logger.Debug("schema loaded",
		zap.String("path", o.schemaPath),
		zap.String("name", s.Name),
		zap.Int("fields", s.Len()),
	)
	return s, nil
}

func (o *options) viewOptions() []view.Option {
	opts := []view.Option{view.WithLogger(o.logger)}
	if o.compiler != nil {
		opts = append(opts, view.WithCompiler(o.compiler))
	}
	if o.generic {
		opts = append(opts, view.WithGeneric())
	}
	return opts
}

// table is an opened record source. data is the whole file for file
// sources and nil for module memory.
type table struct {
	schema *schema.Schema
	view   *view.View
	data   []byte
	close  func() error
}

func (o *options) open(ctx context.Context) (*table, error) {
	s, err := o.loadSchema()
	if err != nil {
		return nil, err
	}
	stride, err := codec.Size(s)
	if err != nil {
		return nil, err
	}
	if stride == 0 {
		return nil, fmt.Errorf("schema %q has no fields with a size", s.Name)
	}

	switch {
	case o.wasmPath != "" && o.dataPath != "":
		return nil, fmt.Errorf("--file and --wasm are mutually exclusive")

	case o.wasmPath != "":
		bin, err := os.ReadFile(o.wasmPath)
		if err != nil {
			return nil, fmt.Errorf("read module: %w", err)
		}
		mod, err := wasmmem.Instantiate(ctx, bin, o.memory)
		if err != nil {
			return nil, err
		}
		mem := mod.Memory()
		v, err := view.FromMemory(s, mem, o.offset, o.count(mem, stride), o.viewOptions()...)
		if err != nil {
			_ = mod.Close(ctx)
			return nil, err
		}
		return &table{schema: s, view: v, close: func() error { return mod.Close(ctx) }}, nil

	case o.dataPath != "":
		data, err := os.ReadFile(o.dataPath)
		if err != nil {
			return nil, fmt.Errorf("read data: %w", err)
		}
		mem := structview.Bytes(data)
		v, err := view.FromMemory(s, mem, o.offset, o.count(mem, stride), o.viewOptions()...)
		if err != nil {
			return nil, err
		}
		return &table{schema: s, view: v, data: data, close: func() error { return nil }}, nil
	}
	return nil, fmt.Errorf("a data source is required (-f or --wasm)")
}

func (o *options) count(mem structview.Memory, stride int) int {
	if o.records > 0 {
		return o.records
	}
	if o.offset >= mem.Size() {
		return 0
	}
	return int(mem.Size()-o.offset) / stride
}

// save writes a file-backed table back to disk.
func (o *options) save(t *table) error {
	if t.data == nil {
		return errors.InvalidInput(errors.PhaseView, "only file-backed tables can be saved")
	}
	info, err := os.Stat(o.dataPath)
	if err != nil {
		return err
	}
	return os.WriteFile(o.dataPath, t.data, info.Mode().Perm())
}
