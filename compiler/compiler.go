package compiler

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/errors"
	"github.com/wippyai/structview/registry"
	"github.com/wippyai/structview/schema"
)

// Compiler turns schemas into Plans and caches them per schema pointer.
// It is safe for concurrent use.
type Compiler struct {
	cache   sync.Map // *schema.Schema -> *Plan
	logger  *zap.Logger
	aligned bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithAlignedAccess enables or disables the aligned fast path of bound plans.
// It is enabled by default.
func WithAlignedAccess(on bool) Option {
	return func(c *Compiler) { c.aligned = on }
}

// WithLogger sets the logger used for compile diagnostics. The package logger
// is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

func New(opts ...Option) *Compiler {
	c := &Compiler{aligned: true}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = Logger()
	}
	return c
}

// Compile returns the plan for s, building it on first use.
// Unknown type tags and arrays without a fixed length fail here.
func (c *Compiler) Compile(s *schema.Schema) (*Plan, error) {
	if s == nil {
		return nil, errors.InvalidInput(errors.PhaseCompile, "schema cannot be nil")
	}
	if cached, ok := c.cache.Load(s); ok {
		return cached.(*Plan), nil
	}

	p, err := c.compile(s)
	if err != nil {
		c.logger.Debug("compile failed", zap.String("schema", s.Name), zap.Error(err))
		return nil, err
	}

	actual, loaded := c.cache.LoadOrStore(s, p)
	if !loaded {
		c.logger.Debug("compiled schema",
			zap.String("schema", s.Name),
			zap.Int("fields", len(s.Fields)),
			zap.Int("size", p.size),
			zap.Int("fast_fields", p.fast),
			zap.Bool("aligned_access", c.aligned),
		)
	}
	return actual.(*Plan), nil
}

func (c *Compiler) compile(s *schema.Schema) (*Plan, error) {
	p := &Plan{
		schema: s,
		dec:    make([]decodeOp, 0, len(s.Fields)),
		enc:    make([]encodeOp, 0, len(s.Fields)),
	}

	rel := 0
	for _, f := range s.Fields {
		var (
			ops fieldOps
			err error
		)
		switch f.Kind {
		case schema.KindScalar:
			ops, err = c.compilePrimitive(f, rel, -1)
		case schema.KindArray:
			var n int
			if n, err = fixedLength(f); err == nil {
				ops, err = c.compilePrimitive(f, rel, n)
			}
		case schema.KindStruct:
			ops, err = c.compileStruct(f, rel, -1)
		case schema.KindStructArray:
			var n int
			if n, err = fixedLength(f); err == nil {
				ops, err = c.compileStruct(f, rel, n)
			}
		default:
			err = errors.New(errors.PhaseCompile, errors.KindUnsupported).
				Path(f.Name).
				Detail("field kind %s", f.Kind).
				Build()
		}
		if err != nil {
			return nil, err
		}

		p.dec = append(p.dec, ops.dec)
		p.enc = append(p.enc, ops.enc)
		p.fast += ops.fast
		rel += ops.size
	}
	p.size = rel
	return p, nil
}

// fieldOps is the compiled form of one field: closures addressing the field
// at a fixed offset from the record base, and the bytes it spans.
type fieldOps struct {
	dec  decodeOp
	enc  encodeOp
	size int
	fast int
}

func fixedLength(f schema.Field) (int, error) {
	n, ok := f.FixedLen()
	if !ok {
		return 0, errors.Unsupported(errors.PhaseCompile, []string{f.Name},
			"array length must be fixed to compile")
	}
	if n < 0 {
		return 0, errors.New(errors.PhaseCompile, errors.KindInvalidInput).
			Path(f.Name).
			Value(n).
			Detail("negative array length %d", n).
			Build()
	}
	return n, nil
}

// compilePrimitive builds ops for a scalar (n < 0) or a primitive array of n
// elements. This is the only place a type tag is dispatched on.
func (c *Compiler) compilePrimitive(f schema.Field, rel, n int) (fieldOps, error) {
	switch f.Type {
	case structview.Uint8:
		return primitiveOps(f, rel, n, registry.Uint8, generalAccess(registry.Uint8, f.Order), false), nil
	case structview.Int8:
		return primitiveOps(f, rel, n, registry.Int8, generalAccess(registry.Int8, f.Order), false), nil
	case structview.Uint16:
		a, fast := pick(registry.Uint16, f.Order, c.aligned, view16)
		return primitiveOps(f, rel, n, registry.Uint16, a, fast), nil
	case structview.Int16:
		a, fast := pick(registry.Int16, f.Order, c.aligned, view16)
		return primitiveOps(f, rel, n, registry.Int16, a, fast), nil
	case structview.Uint32:
		a, fast := pick(registry.Uint32, f.Order, c.aligned, view32)
		return primitiveOps(f, rel, n, registry.Uint32, a, fast), nil
	case structview.Int32:
		a, fast := pick(registry.Int32, f.Order, c.aligned, view32)
		return primitiveOps(f, rel, n, registry.Int32, a, fast), nil
	case structview.Float32:
		a, fast := pick(registry.Float32, f.Order, c.aligned, view32)
		return primitiveOps(f, rel, n, registry.Float32, a, fast), nil
	case structview.Uint64:
		a, fast := pick(registry.Uint64, f.Order, c.aligned, view64)
		return primitiveOps(f, rel, n, registry.Uint64, a, fast), nil
	case structview.Int64:
		a, fast := pick(registry.Int64, f.Order, c.aligned, view64)
		return primitiveOps(f, rel, n, registry.Int64, a, fast), nil
	case structview.Float64:
		a, fast := pick(registry.Float64, f.Order, c.aligned, view64)
		return primitiveOps(f, rel, n, registry.Float64, a, fast), nil
	default:
		return fieldOps{}, errors.UnknownType(errors.PhaseCompile, []string{f.Name}, string(f.Type))
	}
}

func (c *Compiler) compileStruct(f schema.Field, rel, n int) (fieldOps, error) {
	if f.Struct == nil {
		return fieldOps{}, errors.New(errors.PhaseCompile, errors.KindInvalidInput).
			Path(f.Name).
			Detail("%s field has no nested schema", f.Kind).
			Build()
	}
	sub, err := c.Compile(f.Struct)
	if err != nil {
		return fieldOps{}, prefix(err, f.Name)
	}
	if n < 0 {
		return structOps(f.Name, rel, sub), nil
	}
	return structArrayOps(f.Name, rel, n, sub), nil
}
