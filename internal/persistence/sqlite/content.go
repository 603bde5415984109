package sqlite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ContentEncoding names how billboard content is stored in the content column.
type ContentEncoding string

const (
	EncodingIdentity ContentEncoding = "identity"
	EncodingZstd     ContentEncoding = "zstd"
	EncodingLZ4      ContentEncoding = "lz4"
)

// DefaultCompressionThreshold is the content size below which compression is skipped.
const DefaultCompressionThreshold = 1024

var errIncompressible = errors.New("content is incompressible")

// ParseContentEncoding accepts "zstd", "lz4", "identity" and "none".
func ParseContentEncoding(value string) (ContentEncoding, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none", string(EncodingIdentity):
		return EncodingIdentity, nil
	case string(EncodingZstd):
		return EncodingZstd, nil
	case string(EncodingLZ4):
		return EncodingLZ4, nil
	default:
		return "", fmt.Errorf("unsupported content encoding %q", value)
	}
}

// ContentCodec compresses billboard content before it is written and restores
// it on read. The zstd encoder and decoder are safe for concurrent use.
type ContentCodec struct {
	preferred ContentEncoding
	threshold int
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// NewContentCodec builds a codec that writes preferred for content of at least
// threshold bytes. Reads always understand every encoding.
func NewContentCodec(preferred ContentEncoding, threshold int) (*ContentCodec, error) {
	if _, err := ParseContentEncoding(string(preferred)); err != nil {
		return nil, err
	}
	if threshold < 0 {
		return nil, fmt.Errorf("compression threshold cannot be negative")
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &ContentCodec{
		preferred: preferred,
		threshold: threshold,
		encoder:   encoder,
		decoder:   decoder,
	}, nil
}

// IdentityCodec stores content uncompressed.
func IdentityCodec() *ContentCodec {
	codec, err := NewContentCodec(EncodingIdentity, 0)
	if err != nil {
		panic(err)
	}
	return codec
}

// Encode returns the stored form of content and the encoding used. Content that
// is small or does not shrink is stored as identity.
func (c *ContentCodec) Encode(content []byte) ([]byte, ContentEncoding, error) {
	if c.preferred == EncodingIdentity || len(content) < c.threshold || len(content) == 0 {
		return content, EncodingIdentity, nil
	}

	var (
		encoded []byte
		err     error
	)
	switch c.preferred {
	case EncodingZstd:
		encoded = c.encoder.EncodeAll(content, make([]byte, 0, len(content)))
		if len(encoded) >= len(content) {
			err = errIncompressible
		}
	case EncodingLZ4:
		encoded, err = compressLZ4(content)
	}

	if errors.Is(err, errIncompressible) {
		return content, EncodingIdentity, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("encode content with %s: %w", c.preferred, err)
	}
	return encoded, c.preferred, nil
}

// Decode restores content stored with encoding. size is the uncompressed length.
func (c *ContentCodec) Decode(stored []byte, encoding ContentEncoding, size int) ([]byte, error) {
	switch encoding {
	case EncodingIdentity, "":
		return stored, nil
	case EncodingZstd:
		content, err := c.decoder.DecodeAll(stored, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("decode zstd content: %w", err)
		}
		return content, nil
	case EncodingLZ4:
		content := make([]byte, size)
		n, err := lz4.UncompressBlock(stored, content)
		if err != nil {
			return nil, fmt.Errorf("decode lz4 content: %w", err)
		}
		if n != size {
			return nil, fmt.Errorf("decode lz4 content: got %d bytes, want %d", n, size)
		}
		return content, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// Close releases the zstd encoder and decoder.
func (c *ContentCodec) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

func compressLZ4(content []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(content)))
	n, err := lz4.CompressBlock(content, dst, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 || n >= len(content) {
		return nil, errIncompressible
	}
	return dst[:n], nil
}
