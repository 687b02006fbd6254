package mission

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testChunk struct {
	tag  string
	data []byte
}

// testMission lays out a mission file: sky object tokens at fixed offsets,
// chunk data, and a table of contents at the end.
type testMission struct {
	size   int
	tokens []int64
	chunks []testChunk
}

func (m testMission) bytes() []byte {
	buf := make([]byte, max(m.size, 8000))
	for _, off := range m.tokens {
		copy(buf[off:], skyObjVar)
	}

	type rec struct{ off, length int }
	recs := make([]rec, len(m.chunks))
	for i, c := range m.chunks {
		recs[i] = rec{len(buf), len(c.data)}
		buf = append(buf, c.data...)
	}

	binary.LittleEndian.PutUint32(buf, uint32(len(buf)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.chunks)))
	for i, c := range m.chunks {
		var tag [tocTagLen]byte
		copy(tag[:], c.tag)
		buf = append(buf, tag[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(recs[i].off))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(recs[i].length))
	}
	return buf
}

func objMap(thief2 bool) testChunk {
	data := bytes.Repeat([]byte("ObjMapData"), 40)
	if thief2 {
		copy(data[123:], "RopeyArrow")
	}
	return testChunk{tag: "OBJ_MAP", data: data}
}

// readAtRecorder remembers the furthest byte any ReadAt asked for.
type readAtRecorder struct {
	*bytes.Reader
	end int64
}

func (r *readAtRecorder) ReadAt(p []byte, off int64) (int, error) {
	r.end = max(r.end, off+int64(len(p)))
	return r.Reader.ReadAt(p, off)
}

// countingReader counts bytes handed out.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		mission testMission
		want    Result
	}{
		{
			name:    "old dark thief 2 shortcut",
			mission: testMission{tokens: []int64{760}, chunks: []testChunk{objMap(false)}},
			want:    Result{Game: Thief2},
		},
		{
			name:    "new dark thief 2",
			mission: testMission{tokens: []int64{7200}, chunks: []testChunk{objMap(true)}},
			want:    Result{NewDarkRequired: true, Game: Thief2},
		},
		{
			name:    "new dark thief 1 at alternate offset",
			mission: testMission{tokens: []int64{3050}, chunks: []testChunk{objMap(false)}},
			want:    Result{NewDarkRequired: true, Game: Thief1},
		},
		{
			name:    "old dark thief 2 from object map",
			mission: testMission{chunks: []testChunk{{tag: "BRLIST", data: []byte("x")}, objMap(true)}},
			want:    Result{Game: Thief2},
		},
		{
			name:    "old dark thief 1",
			mission: testMission{chunks: []testChunk{objMap(false)}},
			want:    Result{Game: Thief1},
		},
		{
			name:    "no object map",
			mission: testMission{tokens: []int64{7180}, chunks: []testChunk{{tag: "GAM_FILE", data: []byte("RopeyArrow")}}},
			want:    Result{NewDarkRequired: true},
		},
		{
			name:    "first object map wins",
			mission: testMission{chunks: []testChunk{objMap(false), objMap(true)}},
			want:    Result{Game: Thief1},
		},
		{
			name:    "token straddling window end",
			mission: testMission{tokens: []int64{845}, chunks: []testChunk{objMap(false)}},
			want:    Result{Game: Thief1},
		},
		{
			name:    "token outside every window",
			mission: testMission{tokens: []int64{5000}, chunks: []testChunk{objMap(true)}},
			want:    Result{Game: Thief2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mission.bytes()

			got, err := ClassifyReaderAt(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			got, err = ClassifyStream(iotest.OneByteReader(bytes.NewReader(data)), int64(len(data)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "forward-only")
		})
	}
}

func TestClassifyShortcutReadsOnlyFirstWindow(t *testing.T) {
	data := testMission{tokens: []int64{750}}.bytes()
	// A table of contents offset past the end would fail the object map walk.
	binary.LittleEndian.PutUint32(data, 0xffffffff)

	r := &readAtRecorder{Reader: bytes.NewReader(data)}
	got, err := ClassifyReaderAt(r)
	require.NoError(t, err)
	assert.Equal(t, Result{Game: Thief2}, got)
	assert.EqualValues(t, 850, r.end)

	c := &countingReader{r: bytes.NewReader(data)}
	got, err = ClassifyStream(c, 0)
	require.NoError(t, err)
	assert.Equal(t, Result{Game: Thief2}, got)
	assert.EqualValues(t, 850, c.n)
}

func TestForwardWindowsAscend(t *testing.T) {
	data := testMission{}.bytes()
	c := &countingReader{r: bytes.NewReader(data)}
	src := FromStream(c, 0)

	var consumed []int64
	for _, off := range src.probeOffsets() {
		w, err := src.window(off, probeWindow)
		require.NoError(t, err)
		require.Len(t, w, probeWindow)
		consumed = append(consumed, c.n)
	}
	assert.Equal(t, []int64{850, 3150, 7280}, consumed)
}

func TestClassifyShortFile(t *testing.T) {
	// Windows past the end are searched as far as they go.
	data := make([]byte, 800)
	copy(data[780:], skyObjVar)

	got, err := ClassifyReaderAt(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, Result{Game: Thief2}, got)

	got, err = ClassifyStream(bytes.NewReader(data), 0)
	require.NoError(t, err)
	assert.Equal(t, Result{Game: Thief2}, got)
}

func TestClassifyCorrupt(t *testing.T) {
	valid := testMission{chunks: []testChunk{objMap(true)}}.bytes()
	tocOffset := binary.LittleEndian.Uint32(valid)

	tests := []struct {
		name string
		data func() []byte
	}{
		{
			name: "shorter than the table of contents offset",
			data: func() []byte { return []byte{1, 2} },
		},
		{
			name: "table of contents offset past end",
			data: func() []byte {
				d := bytes.Clone(valid)
				binary.LittleEndian.PutUint32(d, uint32(len(d)))
				return d
			},
		},
		{
			name: "record runs past end",
			data: func() []byte { return bytes.Clone(valid[:len(valid)-5]) },
		},
		{
			name: "record count past end",
			data: func() []byte {
				d := bytes.Clone(valid)
				binary.LittleEndian.PutUint32(d[tocOffset:], 3)
				// Leave the first record a non-matching tag so the walk reaches the end.
				copy(d[tocOffset+4:], "BRLIST\x00")
				return d
			},
		},
		{
			name: "chunk past end",
			data: func() []byte {
				d := bytes.Clone(valid)
				binary.LittleEndian.PutUint32(d[tocOffset+4+tocTagLen+4:], 1<<30)
				return d
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.data()

			_, err := ClassifyReaderAt(bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrTruncatedOrCorruptMission)

			_, err = ClassifyStream(bytes.NewReader(data), 0)
			assert.ErrorIs(t, err, ErrTruncatedOrCorruptMission, "forward-only")
		})
	}
}

func TestClassifyLazyRecordChecks(t *testing.T) {
	// Records after the object map are never read.
	data := testMission{chunks: []testChunk{objMap(true)}}.bytes()
	tocOffset := binary.LittleEndian.Uint32(data)
	binary.LittleEndian.PutUint32(data[tocOffset:], 1000)

	got, err := ClassifyReaderAt(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, Result{Game: Thief2}, got)
}

func TestClassifyStreamOverBufferCap(t *testing.T) {
	tests := []struct {
		name    string
		mission testMission
		want    Result
	}{
		{
			name:    "marker present",
			mission: testMission{size: 20000, tokens: []int64{7180}, chunks: []testChunk{objMap(true)}},
			want:    Result{NewDarkRequired: true, Game: Thief2},
		},
		{
			name:    "marker absent",
			mission: testMission{size: 20000, tokens: []int64{3100}, chunks: []testChunk{objMap(false)}},
			want:    Result{NewDarkRequired: true, Game: Thief1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mission.bytes()
			got, err := ClassifyStream(bytes.NewReader(data), int64(len(data)), WithMaxBuffer(10000))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyStreamReadError(t *testing.T) {
	r := io.MultiReader(bytes.NewReader(make([]byte, 1000)), iotest.ErrReader(io.ErrClosedPipe))
	_, err := ClassifyStream(r, 0)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestClassifyFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "miss20.mis")
	data := testMission{tokens: []int64{7180}, chunks: []testChunk{objMap(true)}}.bytes()
	require.NoError(t, os.WriteFile(name, data, 0o644))

	got, err := ClassifyFile(name)
	require.NoError(t, err)
	assert.Equal(t, Result{NewDarkRequired: true, Game: Thief2}, got)

	_, err = ClassifyFile(filepath.Join(t.TempDir(), "missing.mis"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGameString(t *testing.T) {
	assert.Equal(t, "tdp", Thief1.String())
	assert.Equal(t, "tma", Thief2.String())
	assert.Equal(t, "unknown", GameUnknown.String())
}

func TestGrowHint(t *testing.T) {
	tests := []struct {
		name      string
		sizeHint  int64
		maxBuffer int64
		have      int
		want      int
	}{
		{name: "no hint", sizeHint: 0, maxBuffer: DefaultMaxBuffer, have: 7280, want: 0},
		{name: "small entry", sizeHint: 50000, maxBuffer: DefaultMaxBuffer, have: 7280, want: 50000 - 7280},
		{name: "inflated claim", sizeHint: 4 << 30, maxBuffer: DefaultMaxBuffer, have: 7280, want: maxPreGrow - 7280},
		{name: "low buffer cap", sizeHint: 4 << 30, maxBuffer: 10000, have: 7280, want: 10000 - 7280},
		{name: "already buffered", sizeHint: 5000, maxBuffer: DefaultMaxBuffer, have: 7280, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, growHint(tt.sizeHint, tt.maxBuffer, tt.have))
		})
	}
}

func TestClassifyStreamWithInflatedSizeHint(t *testing.T) {
	data := testMission{tokens: []int64{7200}, chunks: []testChunk{objMap(true)}}.bytes()
	got, err := ClassifyStream(bytes.NewReader(data), 4<<30)
	require.NoError(t, err)
	assert.Equal(t, Result{NewDarkRequired: true, Game: Thief2}, got)
}
