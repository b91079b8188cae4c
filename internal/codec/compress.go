package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifiers.
const (
	IDZlib       = "zlib"
	IDGzip       = "gzip"
	IDZstd       = "zstd"
	IDSnappy     = "snappy"
	IDLZ4        = "lz4"
	IDBZ2        = "bz2"
	IDShuffle    = "shuffle"
	IDFletcher32 = "fletcher32"
)

// ZlibCodec implements DEFLATE compression with a zlib header, the
// encoding netCDF's deflate filter and numcodecs' "zlib" produce.
//
// Compression levels:
//
//	1 = fastest compression, larger chunks
//	6 = balanced (default)
//	9 = best compression, slower
type ZlibCodec struct {
	level int
}

// NewZlibCodec creates a zlib codec. Levels outside 1-9 become 6.
func NewZlibCodec(level int) *ZlibCodec {
	if level < 1 || level > 9 {
		level = 6
	}
	return &ZlibCodec{level: level}
}

// ID implements Codec.
func (c *ZlibCodec) ID() string { return IDZlib }

// Encode implements Codec.
func (c *ZlibCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer creation failed: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("zlib compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib close failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (c *ZlibCodec) Decode(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib reader creation failed: %w", err)
	}
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib decompression failed: %w", err)
	}
	return out, nil
}

// GzipCodec implements GZIP compression (DEFLATE with gzip framing and CRC32).
type GzipCodec struct {
	level int
}

// NewGzipCodec creates a gzip codec. Levels outside 1-9 become 6.
func NewGzipCodec(level int) *GzipCodec {
	if level < 1 || level > 9 {
		level = 6
	}
	return &GzipCodec{level: level}
}

// ID implements Codec.
func (c *GzipCodec) ID() string { return IDGzip }

// Encode implements Codec.
func (c *GzipCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("gzip writer creation failed: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("gzip compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (c *GzipCodec) Decode(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader creation failed: %w", err)
	}
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip decompression failed: %w", err)
	}
	return out, nil
}

// ZstdCodec implements Zstandard compression. The encoder and decoder are
// created once and reused; both are safe for concurrent EncodeAll/DecodeAll.
type ZstdCodec struct {
	level int
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// NewZstdCodec creates a zstd codec. level follows the zstd command line
// scale; 0 selects the library default.
func NewZstdCodec(level int) (*ZstdCodec, error) {
	opts := []zstd.EOption{}
	if level > 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &ZstdCodec{level: level, enc: enc, dec: dec}, nil
}

// ID implements Codec.
func (c *ZstdCodec) ID() string { return IDZstd }

// Encode implements Codec.
func (c *ZstdCodec) Encode(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, nil), nil
}

// Decode implements Codec.
func (c *ZstdCodec) Decode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

// SnappyCodec implements snappy block compression.
type SnappyCodec struct{}

// NewSnappyCodec creates a snappy codec.
func NewSnappyCodec() *SnappyCodec { return &SnappyCodec{} }

// ID implements Codec.
func (c *SnappyCodec) ID() string { return IDSnappy }

// Encode implements Codec.
func (c *SnappyCodec) Encode(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

// Decode implements Codec.
func (c *SnappyCodec) Decode(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decompression failed: %w", err)
	}
	return out, nil
}

// LZ4Codec implements LZ4 frame compression.
type LZ4Codec struct {
	level int
}

// NewLZ4Codec creates an lz4 codec. level 0 is the fast compressor,
// 1-9 select the high compression levels.
func NewLZ4Codec(level int) *LZ4Codec {
	if level < 0 || level > 9 {
		level = 0
	}
	return &LZ4Codec{level: level}
}

// ID implements Codec.
func (c *LZ4Codec) ID() string { return IDLZ4 }

func (c *LZ4Codec) compressionLevel() lz4.CompressionLevel {
	if c.level == 0 {
		return lz4.Fast
	}
	return lz4.CompressionLevel(1 << (8 + c.level))
}

// Encode implements Codec.
func (c *LZ4Codec) Encode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(c.compressionLevel())); err != nil {
		return nil, fmt.Errorf("lz4 writer options: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (c *LZ4Codec) Decode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("lz4 decompression failed: %w", err)
	}
	return out, nil
}

// BZ2Codec implements BZIP2 compression. It gives better ratios than zlib
// at a much higher CPU cost.
type BZ2Codec struct {
	level int // block size in 100KB units (1-9)
}

// NewBZ2Codec creates a bzip2 codec. Levels outside 1-9 become 9.
func NewBZ2Codec(level int) *BZ2Codec {
	if level < 1 || level > 9 {
		level = 9
	}
	return &BZ2Codec{level: level}
}

// ID implements Codec.
func (c *BZ2Codec) ID() string { return IDBZ2 }

// Encode implements Codec.
func (c *BZ2Codec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: c.level})
	if err != nil {
		return nil, fmt.Errorf("bzip2 writer creation failed: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("bzip2 compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("bzip2 close failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (c *BZ2Codec) Decode(data []byte) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("bzip2 reader creation failed: %w", err)
	}
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("bzip2 decompression failed: %w", err)
	}
	return out, nil
}
