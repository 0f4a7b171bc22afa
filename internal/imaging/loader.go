package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode means the bytes are not a parsable image
	ErrDecode = errors.New("image decode failed")
	// ErrTooLarge means the payload exceeds the configured limits
	ErrTooLarge = errors.New("image exceeds size limit")
)

// RawImage is the decoded pixel grid plus container info.
// It is immutable after decode; detectors read it by shared reference.
type RawImage struct {
	Pixels   image.Image
	Width    int
	Height   int
	Format   string
	ByteSize int
}

// CaptureMetadata is the embedded-metadata projection of the same decode
// pass. Absent fields are legal; their absence is itself a forensic signal.
type CaptureMetadata struct {
	Format      string
	Mode        string
	Width       int
	Height      int
	HasEXIF     bool
	Software    string
	DeviceMake  string
	DeviceModel string
	DateTime    string
}

// Loader decodes uploaded bytes under configured resource limits
type Loader struct {
	maxBytes  int64
	maxPixels int64
}

// NewLoader creates a loader. maxBytes bounds the raw payload, maxPixels
// bounds the decoded grid (decompression-bomb protection).
func NewLoader(maxBytes, maxPixels int64) *Loader {
	return &Loader{maxBytes: maxBytes, maxPixels: maxPixels}
}

// Decode parses raw bytes into a RawImage and its CaptureMetadata in a
// single pass. The filename is an extension hint only and is never trusted.
func (l *Loader) Decode(data []byte, filename string) (*RawImage, *CaptureMetadata, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return nil, nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), l.maxBytes)
	}

	// Cheap header-only pass first so dimension limits apply before the
	// full pixel grid is allocated.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v (file %q)", ErrDecode, err, filename)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, nil, fmt.Errorf("%w: degenerate dimensions %dx%d", ErrDecode, cfg.Width, cfg.Height)
	}
	if l.maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > l.maxPixels {
		return nil, nil, fmt.Errorf("%w: %d pixels (max %d)", ErrTooLarge,
			int64(cfg.Width)*int64(cfg.Height), l.maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	raw := &RawImage{
		Pixels:   img,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Format:   format,
		ByteSize: len(data),
	}
	return raw, extractMetadata(data, raw), nil
}

// extractMetadata projects embedded metadata out of the already-read bytes.
// It never fails; a corrupt or missing metadata segment simply leaves the
// corresponding fields empty.
func extractMetadata(data []byte, raw *RawImage) *CaptureMetadata {
	meta := &CaptureMetadata{
		Format: raw.Format,
		Mode:   colorMode(raw.Pixels),
		Width:  raw.Width,
		Height: raw.Height,
	}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		// PNGs almost never carry EXIF, but generator tools tend to
		// leave their name in text chunks instead.
		if raw.Format == "png" {
			meta.Software = scanPNGTextChunks(data)
		}
		return meta
	}

	meta.HasEXIF = true
	meta.Software = exifString(x, exif.Software)
	meta.DeviceMake = exifString(x, exif.Make)
	meta.DeviceModel = exifString(x, exif.Model)
	meta.DateTime = exifString(x, exif.DateTime)
	return meta
}

func exifString(x *exif.Exif, field exif.FieldName) string {
	tag, err := x.Get(field)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(s), "\x00")
}

// scanPNGTextChunks walks tEXt/iTXt chunks looking for a software or
// generator keyword and returns its value when found.
func scanPNGTextChunks(data []byte) string {
	const pngHeaderLen = 8
	i := pngHeaderLen
	for i+8 <= len(data) {
		length := int(uint32(data[i])<<24 | uint32(data[i+1])<<16 | uint32(data[i+2])<<8 | uint32(data[i+3]))
		chunkType := string(data[i+4 : i+8])
		start := i + 8
		end := start + length
		if length < 0 || end > len(data) {
			break
		}
		if chunkType == "tEXt" || chunkType == "iTXt" {
			chunk := data[start:end]
			if sep := bytes.IndexByte(chunk, 0); sep > 0 {
				key := strings.ToLower(string(chunk[:sep]))
				if key == "software" || key == "parameters" || key == "comment" {
					value := string(bytes.Trim(chunk[sep+1:], "\x00"))
					if value != "" {
						return strings.TrimSpace(value)
					}
				}
			}
		}
		i = end + 4 // skip CRC
	}
	return ""
}

func colorMode(img image.Image) string {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.RGBA, *image.RGBA64:
		return "RGBA"
	case *image.NRGBA, *image.NRGBA64:
		return "RGBA"
	case *image.YCbCr:
		return "RGB"
	case *image.CMYK:
		return "CMYK"
	case *image.Paletted:
		return "P"
	default:
		return "RGB"
	}
}
