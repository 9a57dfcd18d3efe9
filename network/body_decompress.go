package network

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"github.com/klauspost/compress/zstd"
)

type decompressorFactory = func(io.Reader) (io.Reader, error)

var decompressors = map[string]decompressorFactory{
	"br": func(reader io.Reader) (io.Reader, error) {
		return brotli.NewReader(reader), nil
	},
	"deflate": func(reader io.Reader) (io.Reader, error) {
		return flate.NewReader(reader), nil
	},
	"gzip": func(reader io.Reader) (io.Reader, error) {
		return gzip.NewReader(reader)
	},
	"x-gzip": func(reader io.Reader) (io.Reader, error) {
		return gzip.NewReader(reader)
	},
	"zstd": func(reader io.Reader) (io.Reader, error) {
		decoder, err := zstd.NewReader(reader)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	},
}

// DecompressResponseBody decodes response body according to its
// Content-Encoding header.
func DecompressResponseBody(r *colly.Response) ([]byte, error) {
	if r.Headers == nil {
		return r.Body, nil
	}

	return DecompressBody(r.Headers.Get("content-encoding"), r.Body)
}

// DecompressBody decodes data encoded with given Content-Encoding value. When
// multiple encodings are listed, they are undone in reverse order.
func DecompressBody(encoding string, body []byte) ([]byte, error) {
	codings := strings.Split(encoding, ",")

	data := body
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.ToLower(strings.TrimSpace(codings[i]))
		if coding == "" || coding == "identity" {
			continue
		}

		factory, ok := decompressors[coding]
		if !ok {
			return nil, fmt.Errorf("unknown content-encoding: %s", coding)
		}

		decoded, err := decompressWith(data, factory)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s response: %s", coding, err)
		}

		data = decoded
	}

	return data, nil
}

func decompressWith(body []byte, factory decompressorFactory) ([]byte, error) {
	reader, err := factory(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}

	return io.ReadAll(reader)
}
