package wasmmem

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/errors"
)

// Memory adapts wazero guest linear memory to structview.Memory.
// Windows returned by Read alias guest memory; they are invalidated when the
// guest grows its memory, so views must be recreated after a grow.
type Memory struct {
	mem api.Memory
}

var _ structview.Memory = (*Memory)(nil)

// New wraps mem.
func New(mem api.Memory) *Memory {
	return &Memory{mem: mem}
}

func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseView, nil, int(offset), int(length), int(m.mem.Size()))
	}
	return data, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseView, nil, int(offset), len(data), int(m.mem.Size()))
	}
	return nil
}

func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// Module is an instantiated WebAssembly module with an exported memory.
type Module struct {
	runtime wazero.Runtime
	module  api.Module
	memory  *Memory
}

// Instantiate compiles and instantiates bin in a fresh runtime and wraps its
// exported memory called name ("memory" when empty). Active data segments are
// applied, so the memory holds the module's static data.
func Instantiate(ctx context.Context, bin []byte, name string) (*Module, error) {
	if name == "" {
		name = "memory"
	}
	r := wazero.NewRuntime(ctx)
	mod, err := r.Instantiate(ctx, bin)
	if err != nil {
		_ = r.Close(ctx)
		return nil, errors.Wrap(errors.PhaseView, errors.KindInvalidInput, err, "instantiate module")
	}
	mem := mod.ExportedMemory(name)
	if mem == nil {
		_ = r.Close(ctx)
		return nil, errors.New(errors.PhaseView, errors.KindInvalidInput).
			Detail("module does not export memory %q", name).
			Build()
	}
	return &Module{runtime: r, module: mod, memory: New(mem)}, nil
}

// Memory returns the exported memory.
func (m *Module) Memory() *Memory { return m.memory }

// Module returns the underlying wazero module.
func (m *Module) Module() api.Module { return m.module }

// Close releases the runtime and everything instantiated in it.
func (m *Module) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}
