package compress

import (
	"bytes"
	"strings"
	"testing"
)

// body builds a payload large enough to clear the pass-through threshold.
func body(t *testing.T) []byte {
	t.Helper()
	b := []byte(`{"id":"r1","findings":{"critical":[],"positive":[{"title":"No known vulnerabilities"}]},` +
		strings.Repeat(`"pad":"report bodies repeat heavily and compress well",`, 20) +
		`"score":12}`)
	if len(b) < MinBodySize {
		t.Fatalf("fixture too small: %d bytes", len(b))
	}
	return b
}

func TestCodec_ZSTDRoundTrip(t *testing.T) {
	codec := NewCodec(AlgorithmZSTD)
	in := body(t)

	data, algo, err := codec.Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if algo != AlgorithmZSTD {
		t.Fatalf("applied algorithm = %s, want zstd", algo)
	}
	if len(data) >= len(in) {
		t.Errorf("encoded %d bytes from %d, expected shrinkage", len(data), len(in))
	}

	out, err := codec.Decode(data, algo)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Error("round trip altered the body")
	}
}

func TestCodec_GzipRoundTrip(t *testing.T) {
	codec := NewCodec(AlgorithmGzip)
	in := body(t)

	data, algo, err := codec.Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if algo != AlgorithmGzip {
		t.Fatalf("applied algorithm = %s, want gzip", algo)
	}

	out, err := codec.Decode(data, algo)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Error("round trip altered the body")
	}
}

func TestCodec_SmallBodyPassesThrough(t *testing.T) {
	codec := NewCodec(AlgorithmZSTD)
	in := []byte(`{"id":"tiny"}`)

	data, algo, err := codec.Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if algo != AlgorithmNone {
		t.Errorf("applied algorithm = %s, want none", algo)
	}
	if !bytes.Equal(data, in) {
		t.Error("pass-through changed the body")
	}

	out, err := codec.Decode(data, algo)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Error("round trip altered the body")
	}
}

func TestCodec_DecodeIgnoresConfiguredAlgorithm(t *testing.T) {
	in := body(t)
	data, algo, err := NewCodec(AlgorithmGzip).Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// A zstd-configured codec must still read gzip rows.
	out, err := NewCodec(AlgorithmZSTD).Decode(data, algo)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Error("cross-codec decode altered the body")
	}
}

func TestCodec_UnknownAlgorithm(t *testing.T) {
	codec := NewCodec(Algorithm("lz4"))
	if _, _, err := codec.Encode(body(t)); err == nil {
		t.Error("Encode accepted an unknown algorithm")
	}
	if _, err := codec.Decode([]byte("x"), Algorithm("lz4")); err == nil {
		t.Error("Decode accepted an unknown algorithm")
	}
}
