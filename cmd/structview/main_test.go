package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/codec"
	"github.com/wippyai/structview/schema"
	"github.com/wippyai/structview/view"
)

const pointYAML = `
name: point
order: little
structs:
  meta:
    - {name: flags, type: uint8}
    - {name: tag, type: uint8, length: 3}
fields:
  - {name: id, type: uint32}
  - {name: x, type: float32}
  - {name: meta, type: meta}
`

// fixture writes the point schema and a data file holding count records.
func fixture(t *testing.T, count int) (schemaPath, dataPath string) {
	t.Helper()
	dir := t.TempDir()
	schemaPath = filepath.Join(dir, "point.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(pointYAML), 0o644))

	s, err := schema.ParseYAML([]byte(pointYAML))
	require.NoError(t, err)
	v, err := view.Alloc(s, count)
	require.NoError(t, err)
	for i := 0; i < count; i++ {
		require.NoError(t, v.Set(i, structview.Record{
			"id":   i + 1,
			"x":    float32(i) / 2,
			"meta": structview.Record{"flags": 1, "tag": []int{i, i + 1, i + 2}},
		}))
	}
	dataPath = filepath.Join(dir, "points.bin")
	require.NoError(t, os.WriteFile(dataPath, v.Buffer(), 0o644))
	return schemaPath, dataPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMeasure(t *testing.T) {
	schemaPath, _ := fixture(t, 0)
	out, err := execute(t, "measure", "-s", schemaPath)
	require.NoError(t, err)

	assert.Contains(t, out, "point: stride 12")
	assert.Contains(t, out, "uint32 little")
	assert.Contains(t, out, "meta")
}

func TestDump(t *testing.T) {
	schemaPath, dataPath := fixture(t, 3)

	for _, generic := range []bool{false, true} {
		args := []string{"dump", "-s", schemaPath, "-f", dataPath, "--from", "1", "--count", "1"}
		if generic {
			args = append(args, "--generic")
		}
		out, err := execute(t, args...)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 1)

		var line struct {
			Index  int            `json:"index"`
			Record map[string]any `json:"record"`
		}
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &line))
		assert.Equal(t, 1, line.Index)
		assert.Equal(t, float64(2), line.Record["id"])
		assert.Equal(t, 0.5, line.Record["x"])

		meta, ok := line.Record["meta"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, []any{float64(1), float64(2), float64(3)}, meta["tag"], "uint8 arrays print as numbers")
	}
}

func TestDump_All(t *testing.T) {
	schemaPath, dataPath := fixture(t, 4)
	out, err := execute(t, "dump", "-s", schemaPath, "-f", dataPath)
	require.NoError(t, err)

	sc := bufio.NewScanner(strings.NewReader(out))
	n := 0
	for sc.Scan() {
		n++
	}
	assert.Equal(t, 4, n)
}

func TestDump_Window(t *testing.T) {
	schemaPath, dataPath := fixture(t, 4)
	out, err := execute(t, "dump", "-s", schemaPath, "-f", dataPath, "--offset", "24", "--records", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `"index":0`)
	assert.Contains(t, out, `"id":3`)

	_, err = execute(t, "dump", "-s", schemaPath, "-f", dataPath, "--offset", "40", "--records", "1")
	assert.Error(t, err)
}

func TestSet(t *testing.T) {
	schemaPath, dataPath := fixture(t, 3)
	_, err := execute(t, "set", "-s", schemaPath, "-f", dataPath, "-i", "2", "id=0x63", "x=-1.5", "meta.flags=7")
	require.NoError(t, err)

	data, err := os.ReadFile(dataPath)
	require.NoError(t, err)
	s, err := schema.ParseYAML([]byte(pointYAML))
	require.NoError(t, err)

	rec, err := codec.Decode(s, data, 24, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), rec["id"])
	assert.Equal(t, float32(-1.5), rec["x"])
	meta := rec["meta"].(structview.Record)
	assert.Equal(t, uint8(7), meta["flags"])
	assert.Equal(t, []uint8{2, 3, 4}, meta["tag"], "unset fields are kept")

	other, err := codec.Decode(s, data, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), other["id"], "other records untouched")
}

func TestSet_Errors(t *testing.T) {
	schemaPath, dataPath := fixture(t, 2)
	tests := []struct {
		name string
		args []string
	}{
		{"missing value", []string{"-i", "0", "id"}},
		{"unknown field", []string{"-i", "0", "nope=1"}},
		{"not scalar", []string{"-i", "0", "meta=1"}},
		{"array", []string{"-i", "0", "meta.tag=1"}},
		{"not nested", []string{"-i", "0", "id.x=1"}},
		{"out of range value", []string{"-i", "0", "meta.flags=300"}},
		{"bad index", []string{"-i", "5", "id=1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"set", "-s", schemaPath, "-f", dataPath}, tt.args...)
			_, err := execute(t, args...)
			assert.Error(t, err)
		})
	}
}

func TestExport(t *testing.T) {
	schemaPath, dataPath := fixture(t, 3)
	out := filepath.Join(t.TempDir(), "points.msgpack")
	_, err := execute(t, "export", "-s", schemaPath, "-f", dataPath, "-o", out)
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	type point struct {
		ID uint32  `msgpack:"id"`
		X  float32 `msgpack:"x"`
	}
	dec := msgpack.NewDecoder(f)
	var got []point
	for {
		var p point
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else {
			require.NoError(t, err)
		}
		got = append(got, p)
	}
	assert.Equal(t, []point{{1, 0}, {2, 0.5}, {3, 1}}, got)
}

func TestSource_Errors(t *testing.T) {
	schemaPath, dataPath := fixture(t, 1)

	_, err := execute(t, "dump", "-f", dataPath)
	assert.ErrorContains(t, err, "schema is required")

	_, err = execute(t, "dump", "-s", schemaPath)
	assert.ErrorContains(t, err, "data source is required")

	_, err = execute(t, "dump", "-s", schemaPath, "-f", dataPath, "--wasm", dataPath)
	assert.ErrorContains(t, err, "mutually exclusive")
}

// One page of memory exported as "memory" with the big-endian uint32 42 at
// offset 16.
var tableModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x0b, 0x0a, 0x01, 0x00, 0x41, 0x10, 0x0b, 0x04, 0x00, 0x00, 0x00, 0x2a,
}

func TestDump_Wasm(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "entry.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte("name: entry\nfields:\n  - {name: id, type: uint32}\n"), 0o644))
	wasmPath := filepath.Join(dir, "table.wasm")
	require.NoError(t, os.WriteFile(wasmPath, tableModule, 0o644))

	out, err := execute(t, "dump", "-s", schemaPath, "--wasm", wasmPath, "--offset", "16", "--records", "2")
	require.NoError(t, err)
	assert.Equal(t, "{\"index\":0,\"record\":{\"id\":42}}\n{\"index\":1,\"record\":{\"id\":0}}\n", out)

	_, err = execute(t, "set", "-s", schemaPath, "--wasm", wasmPath, "id=1")
	assert.ErrorContains(t, err, "data files only")
}

func TestParseScalar(t *testing.T) {
	tests := []struct {
		typ  structview.Type
		raw  string
		want any
		ok   bool
	}{
		{structview.Uint8, "255", uint64(255), true},
		{structview.Uint8, "256", nil, false},
		{structview.Uint16, "0xffff", uint64(0xffff), true},
		{structview.Int8, "-128", int64(-128), true},
		{structview.Int32, "0b101", int64(5), true},
		{structview.Int64, "x", nil, false},
		{structview.Float32, "1.5", 1.5, true},
		{structview.Float64, "-2e3", -2000.0, true},
		{"bogus", "1", nil, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ)+"/"+tt.raw, func(t *testing.T) {
			got, err := parseScalar(tt.typ, tt.raw)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func keys(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "pgdown":
		return tea.KeyMsg{Type: tea.KeyPgDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func browseFixture(t *testing.T, count int) *browseModel {
	t.Helper()
	s, err := schema.ParseYAML([]byte(pointYAML))
	require.NoError(t, err)
	v, err := view.Alloc(s, count)
	require.NoError(t, err)
	for i := 0; i < count; i++ {
		require.NoError(t, v.Set(i, structview.Record{"id": i, "x": 0, "meta": structview.Record{"flags": 0}}))
	}
	return newBrowseModel(&table{schema: s, view: v}, "points.bin")
}

func TestBrowse_Navigation(t *testing.T) {
	m := browseFixture(t, 25)

	m.Update(keys("down"))
	m.Update(keys("down"))
	assert.Equal(t, 2, m.selected)

	m.Update(keys("up"))
	m.Update(keys("up"))
	m.Update(keys("up"))
	assert.Equal(t, 0, m.selected, "clamped at the first record")

	m.Update(keys("pgdown"))
	assert.Equal(t, defaultPageRows, m.selected)
	assert.Equal(t, 1, m.top, "selection scrolled into view")

	m.Update(keys("G"))
	assert.Equal(t, 24, m.selected)
	assert.Equal(t, 24-defaultPageRows+1, m.top)

	m.Update(keys("g"))
	assert.Equal(t, 0, m.selected)
	assert.Equal(t, 0, m.top)

	m.Update(tea.WindowSizeMsg{Width: 80, Height: 12})
	assert.Equal(t, 4, m.rows)

	assert.Contains(t, m.View(), "id=0 x=0")
	assert.Contains(t, m.View(), "25 records × 12 bytes")
}

func TestBrowse_Goto(t *testing.T) {
	m := browseFixture(t, 25)

	m.Update(keys(":"))
	require.True(t, m.jumping)
	m.Update(keys("q"))
	assert.True(t, m.jumping, "q types into the prompt")
	m.Update(keys("esc"))
	assert.False(t, m.jumping)

	m.Update(keys(":"))
	m.Update(keys("1"))
	m.Update(keys("7"))
	m.Update(keys("enter"))
	assert.False(t, m.jumping)
	assert.Equal(t, 17, m.selected)
	assert.Contains(t, m.View(), `"id": 17`)

	m.Update(keys(":"))
	m.Update(keys("9"))
	m.Update(keys("9"))
	m.Update(keys("enter"))
	assert.Equal(t, 17, m.selected)
	assert.Contains(t, m.status, "no record")

	_, cmd := m.Update(keys("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestBrowse_Empty(t *testing.T) {
	m := browseFixture(t, 0)
	m.Update(keys("G"))
	assert.Equal(t, 0, m.selected)
	assert.Contains(t, m.View(), "Table is empty")
}

func TestSnapshot(t *testing.T) {
	schemaPath, dataPath := fixture(t, 3)
	db := filepath.Join(t.TempDir(), "points.snap")
	original, err := os.ReadFile(dataPath)
	require.NoError(t, err)

	out, err := execute(t, "snapshot", "save", "-s", schemaPath, "-f", dataPath, "--db", db)
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = execute(t, "snapshot", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "point")

	_, err = execute(t, "set", "-s", schemaPath, "-f", dataPath, "-i", "0", "id=500")
	require.NoError(t, err)

	_, err = execute(t, "snapshot", "restore", "-s", schemaPath, "-f", dataPath, "--db", db, id)
	require.NoError(t, err)
	restored, err := os.ReadFile(dataPath)
	require.NoError(t, err)
	assert.Equal(t, original, restored)

	_, err = execute(t, "snapshot", "delete", "--db", db, id)
	require.NoError(t, err)
	_, err = execute(t, "snapshot", "delete", "--db", db, id)
	assert.Error(t, err)

	_, err = execute(t, "snapshot", "restore", "-s", schemaPath, "-f", dataPath, "--db", db, "nope")
	assert.ErrorContains(t, err, "invalid snapshot id")
}

const samplesYAML = `
name: sample
order: little
fields:
  - {name: x, type: float64}
  - {name: pair, type: float32, length: 2}
`

func TestDump_NonFinite(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "sample.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(samplesYAML), 0o644))

	s, err := schema.ParseYAML([]byte(samplesYAML))
	require.NoError(t, err)
	v, err := view.Alloc(s, 3)
	require.NoError(t, err)
	require.NoError(t, v.Set(0, structview.Record{"x": 1.5, "pair": []float32{0.25, 2}}))
	require.NoError(t, v.Set(1, structview.Record{"x": math.NaN(), "pair": []float32{float32(math.Inf(1)), 1}}))
	require.NoError(t, v.Set(2, structview.Record{"x": math.Inf(-1), "pair": []float32{float32(math.NaN()), -1}}))
	dataPath := filepath.Join(dir, "sample.bin")
	require.NoError(t, os.WriteFile(dataPath, v.Buffer(), 0o644))

	out, err := execute(t, "dump", "-s", schemaPath, "-f", dataPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	want := []map[string]any{
		{"x": 1.5, "pair": []any{0.25, 2.0}},
		{"x": "NaN", "pair": []any{"+Inf", 1.0}},
		{"x": "-Inf", "pair": []any{"NaN", -1.0}},
	}
	for i, l := range lines {
		var line struct {
			Index  int            `json:"index"`
			Record map[string]any `json:"record"`
		}
		require.NoError(t, json.Unmarshal([]byte(l), &line))
		assert.Equal(t, i, line.Index)
		assert.Equal(t, want[i], line.Record)
	}

	m := newBrowseModel(&table{schema: s, view: v}, "sample.bin")
	m.move(1)
	out = m.View()
	assert.Contains(t, out, `"x": "NaN"`)
	assert.NotContains(t, out, "unsupported value")
}
