// Package wasmmem exposes WebAssembly guest memory to structview.
//
// Memory wraps a wazero api.Memory so a view can decode and encode records
// laid out by a guest directly in its linear memory, with no copy:
//
//	mod, err := wasmmem.Instantiate(ctx, wasmBytes, "memory")
//	if err != nil {
//	    return err
//	}
//	defer mod.Close(ctx)
//
//	v, err := view.FromMemory(s, mod.Memory(), tableOffset, count)
package wasmmem
