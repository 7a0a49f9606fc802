package view

import (
	"iter"

	"go.uber.org/zap"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/codec"
	"github.com/wippyai/structview/compiler"
	"github.com/wippyai/structview/errors"
	"github.com/wippyai/structview/schema"
)

// View presents a buffer as a sequence of fixed-stride records.
// A View is not safe for concurrent use.
type View struct {
	schema *schema.Schema
	buf    []byte
	stride int
	length int

	bound  *compiler.Bound // nil when backed by the generic codec
	reuse  structview.Record
	logger *zap.Logger
}

type config struct {
	compiler *compiler.Compiler
	logger   *zap.Logger
	generic  bool
	reuse    bool
}

// Option configures a View.
type Option func(*config)

// WithReuse makes Get decode into one record owned by the view and return it
// on every call. The record is overwritten by the next Get.
func WithReuse() Option {
	return func(c *config) { c.reuse = true }
}

// WithGeneric backs the view with the generic codec instead of a compiled plan.
func WithGeneric() Option {
	return func(c *config) { c.generic = true }
}

// WithCompiler shares a compiler, and its plan cache, between views.
// Without it each view compiles its schema with a compiler of its own, so
// plans are released together with the view.
func WithCompiler(comp *compiler.Compiler) Option {
	return func(c *config) { c.compiler = comp }
}

// WithLogger sets the logger for view construction diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New creates a view of buf. The stride is the schema's encoded size; a
// trailing partial record is not addressable.
func New(s *schema.Schema, buf []byte, opts ...Option) (*View, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if s == nil {
		return nil, errors.InvalidInput(errors.PhaseView, "schema cannot be nil")
	}

	v := &View{schema: s, buf: buf, logger: cfg.logger}
	if cfg.generic {
		size, err := codec.Size(s)
		if err != nil {
			return nil, err
		}
		v.stride = size
	} else {
		comp := cfg.compiler
		if comp == nil {
			comp = compiler.New(compiler.WithLogger(cfg.logger))
		}
		plan, err := comp.Compile(s)
		if err != nil {
			return nil, err
		}
		v.stride = plan.Size()
		v.bound = plan.Bind(buf)
	}

	if v.stride == 0 {
		return nil, errors.New(errors.PhaseView, errors.KindInvalidInput).
			Detail("schema %q has zero stride", s.Name).
			Build()
	}
	v.length = len(buf) / v.stride
	if cfg.reuse {
		v.reuse = make(structview.Record, len(s.Fields))
	}

	cfg.logger.Debug("view created",
		zap.String("schema", s.Name),
		zap.Int("stride", v.stride),
		zap.Int("len", v.length),
		zap.Bool("compiled", v.bound != nil),
		zap.Bool("reuse", cfg.reuse),
	)
	return v, nil
}

// Alloc creates a view over a new zeroed buffer of count records.
func Alloc(s *schema.Schema, count int, opts ...Option) (*View, error) {
	if count < 0 {
		return nil, errors.New(errors.PhaseView, errors.KindInvalidInput).
			Value(count).
			Detail("negative record count %d", count).
			Build()
	}
	if s == nil {
		return nil, errors.InvalidInput(errors.PhaseView, "schema cannot be nil")
	}
	size, err := codec.Size(s)
	if err != nil {
		return nil, err
	}
	return New(s, make([]byte, count*size), opts...)
}

// FromMemory creates a view over count records starting at offset of mem.
// Writes through the view land in mem.
func FromMemory(s *schema.Schema, mem structview.Memory, offset uint32, count int, opts ...Option) (*View, error) {
	if count < 0 {
		return nil, errors.New(errors.PhaseView, errors.KindInvalidInput).
			Value(count).
			Detail("negative record count %d", count).
			Build()
	}
	if s == nil {
		return nil, errors.InvalidInput(errors.PhaseView, "schema cannot be nil")
	}
	size, err := codec.Size(s)
	if err != nil {
		return nil, err
	}
	total := uint64(count) * uint64(size)
	if uint64(offset)+total > uint64(mem.Size()) {
		return nil, errors.OutOfBounds(errors.PhaseView, nil, int(offset), int(total), int(mem.Size()))
	}
	buf, err := mem.Read(offset, uint32(total))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseView, errors.KindOutOfBounds, err, "read memory window")
	}
	return New(s, buf, opts...)
}

// Schema returns the record schema.
func (v *View) Schema() *schema.Schema { return v.schema }

// Buffer returns the backing buffer.
func (v *View) Buffer() []byte { return v.buf }

// Stride returns the size of one record in bytes.
func (v *View) Stride() int { return v.stride }

// Len returns the number of whole records in the buffer.
func (v *View) Len() int { return v.length }

// Contains reports whether i addresses a record.
func (v *View) Contains(i int) bool { return i >= 0 && i < v.length }

// Get decodes record i. It returns false when i is out of range, or when
// decoding fails, which only happens with a generic view whose custom
// LengthSource reports a different length on read than when the stride was
// measured. Such failures are logged.
func (v *View) Get(i int) (structview.Record, bool) {
	if !v.Contains(i) {
		return nil, false
	}
	rec, err := v.decode(i, v.reuse)
	if err != nil {
		v.logger.Warn("record decode failed",
			zap.String("schema", v.schema.Name),
			zap.Int("index", i),
			zap.Error(err),
		)
		return nil, false
	}
	return rec, true
}

// Set encodes value as record i. Out-of-range indexes are ignored.
func (v *View) Set(i int, value structview.Record) error {
	if !v.Contains(i) {
		return nil
	}
	off := i * v.stride
	if v.bound != nil {
		return v.bound.Encode(off, value, nil)
	}
	return codec.Encode(v.schema, v.buf, off, value, nil)
}

// All iterates over the records in index order. With WithReuse the yielded
// record is the same object on every step.
func (v *View) All() iter.Seq2[int, structview.Record] {
	return func(yield func(int, structview.Record) bool) {
		for i := 0; i < v.length; i++ {
			rec, ok := v.Get(i)
			if !ok || !yield(i, rec) {
				return
			}
		}
	}
}

func (v *View) decode(i int, target structview.Record) (structview.Record, error) {
	off := i * v.stride
	if v.bound != nil {
		return v.bound.Decode(off, target, nil)
	}
	return codec.Decode(v.schema, v.buf, off, target, nil)
}
