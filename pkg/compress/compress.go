// Package compress is the at-rest codec for stored report bodies.
//
// Report JSON is highly repetitive and compresses well. Gzip is the
// store default; ZSTD is available for denser archives. The algorithm
// actually applied is recorded next to each body, so decoding never
// depends on the codec's current configuration.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Algorithm identifies a body encoding.
type Algorithm string

const (
	AlgorithmZSTD Algorithm = "zstd"
	AlgorithmGzip Algorithm = "gzip"
	AlgorithmNone Algorithm = "none"
)

// MinBodySize is the size below which bodies are stored uncompressed.
// Under this, framing overhead eats the savings.
const MinBodySize = 256

// Codec encodes and decodes report bodies. A Codec is safe for
// concurrent use; ZSTD encoders and decoders are pooled.
type Codec struct {
	algorithm Algorithm

	encPool sync.Pool
	decPool sync.Pool
}

// NewCodec creates a codec that encodes with the given algorithm.
func NewCodec(algorithm Algorithm) *Codec {
	c := &Codec{algorithm: algorithm}
	c.encPool = sync.Pool{
		New: func() any {
			enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
			return enc
		},
	}
	c.decPool = sync.Pool{
		New: func() any {
			dec, _ := zstd.NewReader(nil)
			return dec
		},
	}
	return c
}

// Algorithm returns the algorithm this codec encodes with.
func (c *Codec) Algorithm() Algorithm {
	return c.algorithm
}

// Encode compresses a body and reports the algorithm that actually
// applied. Bodies under MinBodySize are passed through as
// AlgorithmNone.
func (c *Codec) Encode(body []byte) ([]byte, Algorithm, error) {
	if len(body) < MinBodySize || c.algorithm == AlgorithmNone {
		return body, AlgorithmNone, nil
	}

	switch c.algorithm {
	case AlgorithmZSTD:
		data, err := c.encodeZSTD(body)
		return data, AlgorithmZSTD, err
	case AlgorithmGzip:
		data, err := encodeGzip(body)
		return data, AlgorithmGzip, err
	default:
		return nil, c.algorithm, fmt.Errorf("unsupported compression algorithm: %s", c.algorithm)
	}
}

// Decode reverses Encode for a body stored under the given algorithm.
func (c *Codec) Decode(data []byte, algorithm Algorithm) ([]byte, error) {
	switch algorithm {
	case AlgorithmNone, "":
		return data, nil
	case AlgorithmZSTD:
		return c.decodeZSTD(data)
	case AlgorithmGzip:
		return decodeGzip(data)
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

func (c *Codec) encodeZSTD(body []byte) ([]byte, error) {
	enc := c.encPool.Get().(*zstd.Encoder)
	defer c.encPool.Put(enc)

	var buf bytes.Buffer
	enc.Reset(&buf)
	if _, err := enc.Write(body); err != nil {
		return nil, fmt.Errorf("zstd write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("zstd close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Codec) decodeZSTD(data []byte) ([]byte, error) {
	dec := c.decPool.Get().(*zstd.Decoder)
	defer c.decPool.Put(dec)

	if err := dec.Reset(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("zstd reset: %w", err)
	}
	body, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return body, nil
}

func encodeGzip(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeGzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip decode: %w", err)
	}
	return body, nil
}
