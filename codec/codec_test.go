package codec

import (
	"encoding/binary"
	goerrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/errors"
	"github.com/wippyai/structview/schema"
)

var (
	be = structview.BigEndian
	le = structview.LittleEndian
)

func frameSchema() *schema.Schema {
	return schema.New("frame",
		schema.Scalar("a", structview.Uint32, be),
		schema.Scalar("c", structview.Float64, be),
		schema.Array("arr", structview.Float64, 5, le),
	)
}

func itemsSchema() *schema.Schema {
	item := schema.New("item",
		schema.Scalar("b", structview.Uint32, be),
		schema.Array("c", structview.Float64, 2, be),
	)
	return schema.New("outer", schema.StructArray("items", item, 2))
}

func TestFrameRoundTrip(t *testing.T) {
	s := frameSchema()
	value := structview.Record{
		"a":   uint32(100),
		"c":   -100.32,
		"arr": []float64{1.1, 1.2, 1.3, 1.4, 1.5},
	}

	size, err := Size(s)
	require.NoError(t, err)
	require.Equal(t, 52, size)

	buf := make([]byte, size)
	cur := &structview.Cursor{}
	require.NoError(t, Encode(s, buf, 0, value, cur))
	assert.Equal(t, 52, cur.Offset)

	assert.Equal(t, uint32(100), binary.BigEndian.Uint32(buf[0:]))
	assert.Equal(t, -100.32, math.Float64frombits(binary.BigEndian.Uint64(buf[4:])))
	assert.Equal(t, 1.1, math.Float64frombits(binary.LittleEndian.Uint64(buf[12:])))
	assert.Equal(t, 1.5, math.Float64frombits(binary.LittleEndian.Uint64(buf[44:])))

	got, err := Decode(s, buf, 0, nil, cur)
	require.NoError(t, err)
	assert.Equal(t, 52, cur.Offset)
	assert.Equal(t, value, got)
}

func TestNestedStructArray(t *testing.T) {
	s := itemsSchema()
	value := structview.Record{
		"items": []structview.Record{
			{"b": uint32(1), "c": []float64{0.5, 1.5}},
			{"b": uint32(2), "c": []float64{2.5, 3.5}},
		},
	}

	size, err := Size(s)
	require.NoError(t, err)
	require.Equal(t, 40, size)

	buf := make([]byte, size)
	cur := &structview.Cursor{}
	require.NoError(t, Encode(s, buf, 0, value, cur))
	assert.Equal(t, 40, cur.Offset)

	got, err := Decode(s, buf, 0, nil, cur)
	require.NoError(t, err)
	assert.Equal(t, 40, cur.Offset)
	assert.Equal(t, value, got)
}

func TestScalars(t *testing.T) {
	s := schema.New("scalars",
		schema.Scalar("a", structview.Uint32, le),
		schema.Scalar("b", structview.Uint32, be),
		schema.Scalar("c", structview.Float64, be),
		schema.Scalar("d", structview.Float32, le),
	)
	buf := make([]byte, 20)
	cur := &structview.Cursor{}
	require.NoError(t, Encode(s, buf, 0, structview.Record{"a": 100, "b": 200, "c": -100.32, "d": -200}, cur))

	assert.Equal(t, uint32(100), binary.LittleEndian.Uint32(buf[0:]))
	assert.Equal(t, uint32(200), binary.BigEndian.Uint32(buf[4:]))
	assert.Equal(t, -100.32, math.Float64frombits(binary.BigEndian.Uint64(buf[8:])))
	assert.Equal(t, float32(-200), math.Float32frombits(binary.LittleEndian.Uint32(buf[16:])))
	assert.Equal(t, 20, cur.Offset)

	got, err := Decode(s, buf, 0, structview.Record{}, cur)
	require.NoError(t, err)
	assert.Equal(t, structview.Record{"a": uint32(100), "b": uint32(200), "c": -100.32, "d": float32(-200)}, got)

	next, err := Measure(s, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, next)
}

func TestOffset(t *testing.T) {
	s := schema.New("one", schema.Scalar("a", structview.Uint8, be))
	buf := make([]byte, 5)
	cur := &structview.Cursor{}

	require.NoError(t, Encode(s, buf, 4, structview.Record{"a": 10}, cur))
	assert.Equal(t, byte(10), buf[4])
	assert.Equal(t, 5, cur.Offset)

	cur.Offset = 0
	got, err := Decode(s, buf, 4, nil, cur)
	require.NoError(t, err)
	assert.Equal(t, uint8(10), got["a"])
	assert.Equal(t, 5, cur.Offset)

	next, err := Measure(s, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, next)
}

func TestNestedStruct(t *testing.T) {
	s := schema.New("outer",
		schema.Scalar("a", structview.Uint8, be),
		schema.Struct("b", schema.New("inner", schema.Scalar("c", structview.Float64, be))),
	)
	buf := make([]byte, 9)
	value := structview.Record{"a": uint8(100), "b": structview.Record{"c": -10.2}}

	require.NoError(t, Encode(s, buf, 0, value, nil))
	assert.Equal(t, byte(100), buf[0])
	assert.Equal(t, -10.2, math.Float64frombits(binary.BigEndian.Uint64(buf[1:])))

	got, err := Decode(s, buf, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestFixedArrays(t *testing.T) {
	s := schema.New("arrays",
		schema.Array("a", structview.Uint32, 3, le),
		schema.Array("b", structview.Float64, 3, be),
	)
	buf := make([]byte, 36)
	cur := &structview.Cursor{}
	require.NoError(t, Encode(s, buf, 0, structview.Record{"a": []int{1, 2, 3}, "b": []any{1.1, 1.2, 1.3}}, cur))
	assert.Equal(t, 36, cur.Offset)
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(buf[8:]))
	assert.Equal(t, 1.3, math.Float64frombits(binary.BigEndian.Uint64(buf[28:])))

	got, err := Decode(s, buf, 0, nil, cur)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, got["a"])
	assert.Equal(t, []float64{1.1, 1.2, 1.3}, got["b"])
}

func TestEncode_ZeroFill(t *testing.T) {
	s := schema.New("z",
		schema.Array("short", structview.Int16, 4, be),
		schema.Array("missing", structview.Uint8, 2, be),
	)
	buf := []byte{9, 9, 9, 9, 9, 9, 9, 9, 9, 9}
	require.NoError(t, Encode(s, buf, 0, structview.Record{"short": []int16{-1}}, nil))
	assert.Equal(t, []byte{0xff, 0xff, 0, 0, 0, 0, 0, 0, 0, 0}, buf)
}

func TestDecode_PartialUpdate(t *testing.T) {
	s := itemsSchema()
	buf := make([]byte, 40)
	require.NoError(t, Encode(s, buf, 0, structview.Record{
		"items": []any{
			map[string]any{"b": 7, "c": []float64{1, 2}},
			map[string]any{"b": 8, "c": []float64{3, 4}},
		},
	}, nil))

	items := []structview.Record{{"other": true}, {}}
	cvals := make([]float64, 2)
	items[0]["c"] = cvals
	target := structview.Record{"extra": "keep", "items": items}

	got, err := Decode(s, buf, 0, target, nil)
	require.NoError(t, err)

	assert.Equal(t, "keep", got["extra"])
	out := got["items"].([]structview.Record)
	assert.Same(t, &items[0], &out[0], "slice reused")
	assert.Equal(t, true, out[0]["other"], "unrelated nested keys survive")
	assert.Equal(t, uint32(7), out[0]["b"])
	assert.Same(t, &cvals[0], &out[0]["c"].([]float64)[0], "primitive slice reused")
	assert.Equal(t, []float64{3, 4}, out[1]["c"])
}

func TestMixedEndianness(t *testing.T) {
	s := schema.New("mixed",
		schema.Scalar("be16", structview.Uint16, be),
		schema.Scalar("le16", structview.Uint16, le),
		schema.Scalar("be64", structview.Int64, be),
		schema.Scalar("le64", structview.Int64, le),
	)
	buf := make([]byte, 20)
	value := structview.Record{"be16": uint16(0x0102), "le16": uint16(0x0102), "be64": int64(-2), "le64": int64(1)}
	require.NoError(t, Encode(s, buf, 0, value, nil))

	assert.Equal(t, []byte{1, 2, 2, 1}, buf[:4])
	assert.Equal(t, byte(0xfe), buf[11])
	assert.Equal(t, byte(1), buf[12])

	got, err := Decode(s, buf, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestSharedCursor(t *testing.T) {
	s := schema.New("pair",
		schema.Scalar("x", structview.Uint16, be),
		schema.Scalar("y", structview.Uint16, be),
	)
	buf := make([]byte, 12)
	cur := &structview.Cursor{}
	for i := 0; i < 3; i++ {
		require.NoError(t, Encode(s, buf, cur.Offset, structview.Record{"x": i, "y": i * 10}, cur))
	}
	assert.Equal(t, 12, cur.Offset)

	cur.Offset = 0
	for i := 0; i < 3; i++ {
		rec, err := Decode(s, buf, cur.Offset, nil, cur)
		require.NoError(t, err)
		assert.Equal(t, uint16(i*10), rec["y"])
	}
}

func TestErrors(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		s := schema.New("u", schema.Scalar("x", "uint128", be))
		_, err := Size(s)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindUnknownType))

		_, err = Decode(s, make([]byte, 16), 0, nil, nil)
		assert.True(t, errors.IsKind(err, errors.KindUnknownType))
		err = Encode(s, make([]byte, 16), 0, structview.Record{"x": 1}, nil)
		assert.True(t, errors.IsKind(err, errors.KindUnknownType))
	})

	t.Run("out of bounds", func(t *testing.T) {
		s := frameSchema()
		_, err := Decode(s, make([]byte, 51), 0, nil, nil)
		require.Error(t, err)
		assert.True(t, goerrors.Is(err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindOutOfBounds}))

		err = Encode(s, make([]byte, 8), 0, structview.Record{"a": 1, "c": 2}, nil)
		require.Error(t, err)
		var se *errors.Error
		require.True(t, goerrors.As(err, &se))
		assert.Equal(t, errors.KindOutOfBounds, se.Kind)
		assert.Equal(t, []string{"c"}, se.Path)

		_, err = Decode(s, make([]byte, 52), -1, nil, nil)
		assert.True(t, errors.IsKind(err, errors.KindOutOfBounds))
	})

	t.Run("missing scalar", func(t *testing.T) {
		err := Encode(frameSchema(), make([]byte, 52), 0, structview.Record{"a": 1}, nil)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindShapeMismatch))
	})

	t.Run("missing struct array element", func(t *testing.T) {
		err := Encode(itemsSchema(), make([]byte, 40), 0, structview.Record{
			"items": []structview.Record{{"b": 1}},
		}, nil)
		require.Error(t, err)
		var se *errors.Error
		require.True(t, goerrors.As(err, &se))
		assert.Equal(t, errors.KindShapeMismatch, se.Kind)
		assert.Equal(t, "items[1].b", errors.JoinPath(se.Path))
	})

	t.Run("type mismatch", func(t *testing.T) {
		err := Encode(frameSchema(), make([]byte, 52), 0, structview.Record{"a": "100", "c": 1}, nil)
		assert.True(t, errors.IsKind(err, errors.KindTypeMismatch))

		err = Encode(frameSchema(), make([]byte, 52), 0, structview.Record{"a": 1, "c": 1, "arr": []any{1, "x"}}, nil)
		var se *errors.Error
		require.True(t, goerrors.As(err, &se))
		assert.Equal(t, errors.KindTypeMismatch, se.Kind)
		assert.Equal(t, "arr[1]", errors.JoinPath(se.Path))

		err = Encode(itemsSchema(), make([]byte, 40), 0, structview.Record{"items": 5}, nil)
		assert.True(t, errors.IsKind(err, errors.KindTypeMismatch))
	})

	t.Run("nil nested schema", func(t *testing.T) {
		s := schema.New("bad", schema.Struct("x", nil))
		_, err := Size(s)
		assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
	})
}

type prefixLength struct{}

func (prefixLength) LengthForRead(buf []byte, cur *structview.Cursor) int {
	if buf == nil {
		return 0
	}
	return int(buf[cur.Offset-1])
}

func (prefixLength) LengthForWrite(_ []byte, _ *structview.Cursor, v any) int {
	s, _ := v.([]uint8)
	return len(s)
}

func TestCustomLengthSource(t *testing.T) {
	s := schema.New("msg",
		schema.Scalar("n", structview.Uint8, be),
		schema.ArrayOf("body", structview.Uint8, prefixLength{}, be),
	)
	buf := make([]byte, 8)
	require.NoError(t, Encode(s, buf, 0, structview.Record{"n": 3, "body": []uint8{7, 8, 9}}, nil))

	got, err := Decode(s, buf, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint8{7, 8, 9}, got["body"])
}
