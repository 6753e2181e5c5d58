// Package codec adapts zstd streaming compression to the sector-oriented
// transfer pipeline: a writer that compresses as it's written to and a
// reader that decompresses as it's read from, neither of which closes the
// underlying sink on Close.
package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/chronos-imaging/chronos/cerrors"
	log "github.com/chronos-imaging/chronos/logger"
)

// MinLevel, MaxLevel, and DefaultLevel bound and default the compression
// level accepted by NewWriter. The source's compression adapter forwarded
// level 0 unchanged even though the underlying codec demands [1..22]; this
// adapter clamps instead.
const (
	MinLevel     = 1
	MaxLevel     = 22
	DefaultLevel = 3
)

// ClampLevel forces level into [MinLevel, MaxLevel]: 0 (the "unset"
// sentinel from a BackupJob that never specified one) becomes
// DefaultLevel, other values below MinLevel become MinLevel, and values
// above MaxLevel become MaxLevel.
func ClampLevel(level int) int {
	if level == 0 {
		return DefaultLevel
	}
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// zstdLevel maps a clamped 1..22 level onto the library's four encoder
// presets, spreading the range so higher numbers always compress at least
// as aggressively as lower ones.
func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 3:
		return zstd.SpeedFastest
	case level <= 9:
		return zstd.SpeedDefault
	case level <= 15:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// Writer compresses bytes written to it and forwards the compressed stream
// to an underlying sink, without ever closing that sink.
type Writer struct {
	enc *zstd.Encoder
}

// NewWriter wraps sink with a zstd encoder at the given (clamped) level.
func NewWriter(sink io.Writer, level int) (*Writer, error) {
	level = ClampLevel(level)
	enc, err := zstd.NewWriter(sink,
		zstd.WithEncoderLevel(zstdLevel(level)),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, cerrors.Wrap(cerrors.IoFailed, err)
	}
	return &Writer{enc: enc}, nil
}

// Write compresses p and forwards the result to the underlying sink.
func (w *Writer) Write(p []byte) (int, error) {
	return w.enc.Write(p)
}

// Close flushes and finalizes the compressed stream. It does not close the
// underlying sink; the caller owns that lifetime.
func (w *Writer) Close() error {
	return w.enc.Close()
}

// Reader decompresses bytes read from an underlying compressed source.
type Reader struct {
	dec *zstd.Decoder
}

// NewReader wraps source with a zstd decoder.
func NewReader(source io.Reader) (*Reader, error) {
	dec, err := zstd.NewReader(source, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, cerrors.Wrap(cerrors.IoFailed, err)
	}
	return &Reader{dec: dec}, nil
}

// Read decompresses from the underlying source into p.
func (r *Reader) Read(p []byte) (int, error) {
	return r.dec.Read(p)
}

// Close releases the decoder's internal resources. It does not close the
// underlying source.
func (r *Reader) Close() error {
	r.dec.Close()
	return nil
}

// RoundTrip compresses then decompresses data at level, returning the
// decompressed result; used by the headless self-test mode to verify the
// codec at every supported level.
func RoundTrip(data []byte, level int) ([]byte, error) {
	log.Tracef(">>>>> RoundTrip, len=%v, level=%v", len(data), level)
	defer log.Trace("<<<<< RoundTrip")

	var buf bytes.Buffer
	w, err := NewWriter(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, cerrors.Wrap(cerrors.IoFailed, err)
	}
	if err := w.Close(); err != nil {
		return nil, cerrors.Wrap(cerrors.IoFailed, err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.IoFailed, err)
	}
	return out, nil
}
