package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"

	"github.com/VanDung-dev/HieraChain-Parquet/data"
)

// Option validation errors
var (
	ErrUnsupportedCodec    = errors.New("unsupported compression codec")
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
	ErrUnsupportedVersion  = errors.New("unsupported format version")
	ErrUnknownField        = errors.New("unknown field")
)

// Encoding names accepted in WriteOptions.Encodings.
const (
	EncodingPlain                = "plain"
	EncodingDictionary           = "dictionary"
	EncodingDeltaBinaryPacked    = "delta_binary_packed"
	EncodingDeltaLengthByteArray = "delta_length_byte_array"
	EncodingDeltaByteArray       = "delta_byte_array"
)

// Defaults applied by DefaultWriteOptions.
const (
	DefaultEncoding          = EncodingPlain
	DefaultCompression       = "snappy"
	DefaultVersion           = "v2"
	DefaultMaxRowGroupLength = 64 * 1024 * 1024
	DefaultCreatedBy         = "hierachain-parquet"
)

var codecs = map[string]compress.Compression{
	"uncompressed": compress.Codecs.Uncompressed,
	"snappy":       compress.Codecs.Snappy,
	"gzip":         compress.Codecs.Gzip,
	"brotli":       compress.Codecs.Brotli,
	"zstd":         compress.Codecs.Zstd,
}

// encodingTypes lists the field types each encoding may be applied to.
var encodingTypes = map[string][]data.SemanticType{
	EncodingPlain:                {data.TypeInt64, data.TypeUint64, data.TypeBytes, data.TypeFixedBytes},
	EncodingDictionary:           {data.TypeInt64, data.TypeUint64, data.TypeBytes, data.TypeFixedBytes},
	EncodingDeltaBinaryPacked:    {data.TypeInt64, data.TypeUint64},
	EncodingDeltaLengthByteArray: {data.TypeBytes},
	EncodingDeltaByteArray:       {data.TypeBytes},
}

var parquetEncodings = map[string]parquet.Encoding{
	EncodingPlain:                parquet.Encodings.Plain,
	EncodingDeltaBinaryPacked:    parquet.Encodings.DeltaBinaryPacked,
	EncodingDeltaLengthByteArray: parquet.Encodings.DeltaLengthByteArray,
	EncodingDeltaByteArray:       parquet.Encodings.DeltaByteArray,
}

// WriteOptions are the file-wide settings embedded in the Parquet footer.
type WriteOptions struct {
	// Compression is the codec name applied to every column chunk.
	Compression string `yaml:"compression"`
	// Statistics enables min/max/null-count statistics per column chunk.
	Statistics bool `yaml:"statistics"`
	// Version is "v1" (format 1.0, data page v1) or "v2" (format 2.x,
	// data page v2).
	Version string `yaml:"version"`
	// Encodings overrides the default plain encoding per field name.
	Encodings map[string]string `yaml:"encodings,omitempty"`
	// MaxRowGroupLength bounds the rows of one batch.
	MaxRowGroupLength int64 `yaml:"max_row_group_length"`
	// CreatedBy is recorded in the footer.
	CreatedBy string `yaml:"created_by"`
}

// DefaultWriteOptions returns snappy, statistics on, format v2, plain
// encoding for every field.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		Compression:       DefaultCompression,
		Statistics:        true,
		Version:           DefaultVersion,
		MaxRowGroupLength: DefaultMaxRowGroupLength,
		CreatedBy:         DefaultCreatedBy,
	}
}

// Codec resolves the compression codec name.
func (o WriteOptions) Codec() (compress.Compression, error) {
	name := strings.ToLower(o.Compression)
	if name == "" {
		name = DefaultCompression
	}
	c, ok := codecs[name]
	if !ok {
		return compress.Codecs.Uncompressed, fmt.Errorf("%w: %q (supported: %s)",
			ErrUnsupportedCodec, o.Compression, strings.Join(CodecNames(), ", "))
	}
	return c, nil
}

// CodecNames lists the supported compression codec names.
func CodecNames() []string {
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (o WriteOptions) versions() (parquet.Version, parquet.DataPageVersion, error) {
	switch strings.ToLower(o.Version) {
	case "v1", "1", "1.0":
		return parquet.V1_0, parquet.DataPageV1, nil
	case "", "v2", "2", "2.0":
		return parquet.V2_LATEST, parquet.DataPageV2, nil
	default:
		return parquet.V1_0, parquet.DataPageV1, fmt.Errorf("%w: %q", ErrUnsupportedVersion, o.Version)
	}
}

// Validate checks the codec, format version and encoding overrides against
// schema without building an encoder.
func (o WriteOptions) Validate(schema *data.Schema) error {
	if _, err := o.Codec(); err != nil {
		return err
	}
	if _, _, err := o.versions(); err != nil {
		return err
	}
	_, err := resolveEncodings(schema, o.Encodings)
	return err
}

// resolveEncodings returns the encoding of every schema field, in schema
// order, after validating the override table.
func resolveEncodings(schema *data.Schema, overrides map[string]string) ([]string, error) {
	resolved := make([]string, schema.NumFields())
	for i := range resolved {
		resolved[i] = DefaultEncoding
	}

	for name, enc := range overrides {
		idx, ok := schema.Index(name)
		if !ok {
			return nil, fmt.Errorf("%w: encoding override for %q", ErrUnknownField, name)
		}
		enc = strings.ToLower(enc)
		allowed, ok := encodingTypes[enc]
		if !ok {
			return nil, fmt.Errorf("%w: %q for field %s", ErrUnsupportedEncoding, enc, name)
		}
		field := schema.Field(idx)
		if !slices.Contains(allowed, field.Type) {
			return nil, fmt.Errorf("%w: %s cannot encode %s field %s", ErrUnsupportedEncoding, enc, field.Type, name)
		}
		resolved[idx] = enc
	}

	return resolved, nil
}
