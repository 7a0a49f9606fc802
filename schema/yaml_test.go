package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/errors"
)

const frameYAML = `
name: frame
order: big
structs:
  item:
    - {name: b, type: uint32}
    - {name: c, type: float64, length: 2, order: little}
fields:
  - {name: a, type: UInt32}
  - {name: c, type: float64}
  - {name: arr, type: float64, length: 5, order: little}
  - {name: items, type: item, length: 2}
  - {name: head, type: item}
`

func TestParseYAML(t *testing.T) {
	s, err := ParseYAML([]byte(frameYAML))
	require.NoError(t, err)

	assert.Equal(t, "frame", s.Name)
	require.Equal(t, 5, s.Len())

	a := s.Fields[0]
	assert.Equal(t, KindScalar, a.Kind)
	assert.Equal(t, structview.Uint32, a.Type, "tags are lowercased")
	assert.Equal(t, structview.BigEndian, a.Order)

	arr := s.Fields[2]
	assert.Equal(t, KindArray, arr.Kind)
	assert.Equal(t, structview.LittleEndian, arr.Order)
	n, _ := arr.FixedLen()
	assert.Equal(t, 5, n)

	items := s.Fields[3]
	assert.Equal(t, KindStructArray, items.Kind)
	n, _ = items.FixedLen()
	assert.Equal(t, 2, n)
	require.NotNil(t, items.Struct)
	assert.Equal(t, "item", items.Struct.Name)
	assert.Equal(t, structview.LittleEndian, items.Struct.Fields[1].Order)

	head := s.Fields[4]
	assert.Equal(t, KindStruct, head.Kind)
	assert.Same(t, items.Struct, head.Struct, "named structs are shared")
}

func TestParseYAML_UnknownTagDeferred(t *testing.T) {
	s, err := ParseYAML([]byte("fields:\n  - {name: x, type: uint128}\n"))
	require.NoError(t, err)
	assert.Equal(t, structview.Type("uint128"), s.Fields[0].Type)
	assert.Equal(t, "root", s.Name)
}

func TestParseYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"no fields", "name: x\n"},
		{"unknown key", "fields:\n  - {name: a, type: uint8, size: 3}\n"},
		{"missing name", "fields:\n  - {type: uint8}\n"},
		{"missing type", "fields:\n  - {name: a}\n"},
		{"negative length", "fields:\n  - {name: a, type: uint8, length: -1}\n"},
		{"bad order", "order: middle\nfields:\n  - {name: a, type: uint8}\n"},
		{"bad field order", "fields:\n  - {name: a, type: uint8, order: sideways}\n"},
		{"cycle", "structs:\n  a:\n    - {name: b, type: b}\n  b:\n    - {name: a, type: a}\nfields:\n  - {name: x, type: a}\n"},
		{"malformed", "fields: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindInvalidInput), "got %v", err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.yaml")
	require.NoError(t, os.WriteFile(path, []byte(frameYAML), 0o600))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "frame", s.Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
