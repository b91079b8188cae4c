package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// sampleChunk returns float-like data with slowly varying values, which
// compresses well after shuffling.
func sampleChunk(n int) []byte {
	buf := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(1000+i/3))
	}
	return buf
}

func TestCodecRoundTrip(t *testing.T) {
	data := sampleChunk(4096)

	tests := []struct {
		name   string
		params Params
	}{
		{"zlib default", Params{ID: IDZlib}},
		{"zlib best", Params{ID: IDZlib, Level: 9}},
		{"gzip", Params{ID: IDGzip, Level: 1}},
		{"zstd default", Params{ID: IDZstd}},
		{"zstd level 19", Params{ID: IDZstd, Level: 19}},
		{"snappy", Params{ID: IDSnappy}},
		{"lz4 fast", Params{ID: IDLZ4}},
		{"lz4 hc", Params{ID: IDLZ4, Level: 9}},
		{"bz2", Params{ID: IDBZ2, Level: 1}},
		{"shuffle", Params{ID: IDShuffle, ElemSize: 4}},
		{"fletcher32", Params{ID: IDFletcher32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.params)
			require.NoError(t, err)
			require.Equal(t, tt.params.ID, c.ID())

			enc, err := c.Encode(data)
			require.NoError(t, err)

			dec, err := c.Decode(enc)
			require.NoError(t, err)
			require.Equal(t, data, dec)
		})
	}
}

func TestCompressorsShrinkRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte("nczarr chunk "), 1000)
	for _, id := range []string{IDZlib, IDGzip, IDZstd, IDSnappy, IDLZ4, IDBZ2} {
		t.Run(id, func(t *testing.T) {
			c, err := New(Params{ID: id})
			require.NoError(t, err)
			enc, err := c.Encode(data)
			require.NoError(t, err)
			require.Less(t, len(enc), len(data)/4)
		})
	}
}

func TestCodecEmptyInput(t *testing.T) {
	for _, id := range []string{IDZlib, IDGzip, IDZstd, IDSnappy, IDLZ4, IDBZ2} {
		t.Run(id, func(t *testing.T) {
			c, err := New(Params{ID: id})
			require.NoError(t, err)
			enc, err := c.Encode(nil)
			require.NoError(t, err)
			dec, err := c.Decode(enc)
			require.NoError(t, err)
			require.Empty(t, dec)
		})
	}
}

func TestCodecDecodeGarbage(t *testing.T) {
	garbage := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	for _, id := range []string{IDZlib, IDGzip, IDZstd, IDSnappy, IDLZ4, IDBZ2} {
		t.Run(id, func(t *testing.T) {
			c, err := New(Params{ID: id})
			require.NoError(t, err)
			_, err = c.Decode(garbage)
			require.Error(t, err)
		})
	}
}

func TestShuffleLayout(t *testing.T) {
	c, err := NewShuffleCodec(4)
	require.NoError(t, err)

	in := []byte{
		0xA1, 0xA2, 0xA3, 0xA4,
		0xB1, 0xB2, 0xB3, 0xB4,
		0xC1, 0xC2, 0xC3, 0xC4,
	}
	want := []byte{
		0xA1, 0xB1, 0xC1,
		0xA2, 0xB2, 0xC2,
		0xA3, 0xB3, 0xC3,
		0xA4, 0xB4, 0xC4,
	}
	got, err := c.Encode(in)
	require.NoError(t, err)
	require.Equal(t, want, got)

	back, err := c.Decode(got)
	require.NoError(t, err)
	require.Equal(t, in, back)

	_, err = c.Encode([]byte{1, 2, 3})
	require.Error(t, err)
	_, err = c.Decode([]byte{1, 2, 3})
	require.Error(t, err)

	_, err = NewShuffleCodec(0)
	require.Error(t, err)
}

func TestFletcher32(t *testing.T) {
	c := NewFletcher32Codec()

	enc, err := c.Encode([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	require.Len(t, enc, 7)
	// sum1 = 0x0201 + 0x03 = 0x0204, sum2 = 0x0201 + 0x0204 = 0x0405
	require.Equal(t, uint32(0x04050204), binary.LittleEndian.Uint32(enc[3:]))

	enc[0] ^= 0xff
	_, err = c.Decode(enc)
	require.Error(t, err)
	require.Contains(t, err.Error(), "checksum mismatch")

	_, err = c.Decode([]byte{1, 2})
	require.Error(t, err)
}

func TestPipelineOrder(t *testing.T) {
	data := sampleChunk(1024)

	p, err := Build([]Params{
		{ID: IDShuffle, ElemSize: 4},
		{ID: IDZstd, Level: 3},
		{ID: IDFletcher32},
	})
	require.NoError(t, err)
	require.Equal(t, 3, p.Len())
	require.Equal(t, "shuffle|zstd|fletcher32", p.String())

	enc, err := p.Encode(data)
	require.NoError(t, err)

	// The checksum is the outermost layer.
	_, err = NewFletcher32Codec().Decode(enc)
	require.NoError(t, err)

	dec, err := p.Decode(enc)
	require.NoError(t, err)
	require.Equal(t, data, dec)
}

func TestPipelineEmpty(t *testing.T) {
	data := []byte{1, 2, 3}

	p := NewPipeline()
	require.True(t, p.IsEmpty())
	require.Equal(t, "none", p.String())

	enc, err := p.Encode(data)
	require.NoError(t, err)
	require.Equal(t, data, enc)

	var nilPipeline *Pipeline
	require.True(t, nilPipeline.IsEmpty())
	require.Equal(t, 0, nilPipeline.Len())
	dec, err := nilPipeline.Decode(data)
	require.NoError(t, err)
	require.Equal(t, data, dec)
}

type failingCodec struct{}

func (failingCodec) ID() string                     { return "fail" }
func (failingCodec) Encode([]byte) ([]byte, error) { return nil, errors.New("boom") }
func (failingCodec) Decode([]byte) ([]byte, error) { return nil, errors.New("boom") }

func TestPipelineErrors(t *testing.T) {
	p := NewPipeline(NewSnappyCodec(), failingCodec{})

	_, err := p.Encode([]byte{1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "codec fail encode failed")

	_, err = p.Decode([]byte{1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "codec fail decode failed")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, []string{"bz2", "fletcher32", "gzip", "lz4", "shuffle", "snappy", "zlib", "zstd"}, r.IDs())

	_, err := r.New(Params{ID: "blosc"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown codec")

	_, err = r.New(Params{ID: IDShuffle})
	require.Error(t, err)

	r.Register("fail", func(Params) (Codec, error) { return failingCodec{}, nil })
	c, err := r.New(Params{ID: "fail"})
	require.NoError(t, err)
	require.Equal(t, "fail", c.ID())

	_, err = r.Build([]Params{{ID: IDZlib}, {ID: "nope"}})
	require.Error(t, err)
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Params
		wantErr bool
	}{
		{name: "null", input: "null", want: nil},
		{name: "empty", input: "  ", want: nil},
		{name: "single", input: `{"id":"zlib","level":5}`, want: []Params{{ID: "zlib", Level: 5}}},
		{
			name:  "list",
			input: `[{"id":"shuffle","elementsize":8},{"id":"zstd","level":3}]`,
			want:  []Params{{ID: "shuffle", ElemSize: 8}, {ID: "zstd", Level: 3}},
		},
		{name: "missing id", input: `{"level":5}`, wantErr: true},
		{name: "list missing id", input: `[{"id":"zlib"},{}]`, wantErr: true},
		{name: "malformed", input: `{"id":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSpec([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
