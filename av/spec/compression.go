package spec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func Compress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return data, nil

	case CompressionGzip:
		var buffer bytes.Buffer
		writer, _ := gzip.NewWriterLevel(&buffer, gzip.BestCompression)

		_, err := writer.Write(data)
		if err != nil {
			return nil, fmt.Errorf("failed to compress: %w", err)
		}

		err = writer.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to compress: %w", err)
		}

		return buffer.Bytes(), nil

	case CompressionZstd:
		writer, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return nil, fmt.Errorf("failed to compress: %w", err)
		}
		defer writer.Close()

		return writer.EncodeAll(data, nil), nil
	}

	return nil, fmt.Errorf("compression not supported (%v)", compression)
}

func Decompress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return data, nil

	case CompressionGzip:
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}
		defer reader.Close()

		result, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}

		return result, nil

	case CompressionZstd:
		reader, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}
		defer reader.Close()

		result, err := reader.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}

		return result, nil
	}

	return nil, fmt.Errorf("compression not supported (%v)", compression)
}
