// Package assets implements the binary-asset policy for publishing:
// recognizing binary paths, data-URI handling, and size-bounded
// resize/re-encode of oversized images.
package assets

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	_ "image/gif"
	_ "image/png"
)

// binaryExtensions lists file extensions whose bytes are kept out of the
// ContentMap on import and treated as data-URI assets on publish.
var binaryExtensions = map[string]bool{
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".gif":   true,
	".webp":  true,
	".ico":   true,
	".bmp":   true,
	".tiff":  true,
	".avif":  true,
	".woff":  true,
	".woff2": true,
	".ttf":   true,
	".otf":   true,
	".eot":   true,
	".mp3":   true,
	".mp4":   true,
	".webm":  true,
	".pdf":   true,
	".zip":   true,
}

// IsBinaryPath reports whether a file path has a recognized binary extension.
func IsBinaryPath(p string) bool {
	return binaryExtensions[strings.ToLower(path.Ext(p))]
}

// SizeLimitError indicates a binary asset still over the size threshold
// after compression.
type SizeLimitError struct {
	Path  string
	Size  int64
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("asset %s is %d bytes after compression, limit is %d", e.Path, e.Size, e.Limit)
}

// TranscodeFunc resizes image bytes to fit maxDimension on the longest edge
// and re-encodes at the given quality. Stateless.
type TranscodeFunc func(data []byte, maxDimension, quality int) ([]byte, error)

// Policy applies the size/compression rules to asset content before publish.
type Policy struct {
	SizeLimit    int64
	MaxDimension int
	Quality      int
	Transcode    TranscodeFunc // defaults to the imaging-based transcoder
}

// Apply enforces the policy on a data-URI asset at assetPath. Content at or
// under the limit passes through unchanged; oversized content is transcoded
// once, and a *SizeLimitError is returned if the result still exceeds the
// limit. Non-data-URI content passes through untouched.
func (p Policy) Apply(assetPath, content string) (string, error) {
	mediaType, data, ok := DecodeDataURI(content)
	if !ok {
		return content, nil
	}
	if int64(len(data)) <= p.SizeLimit {
		return content, nil
	}

	transcode := p.Transcode
	if transcode == nil {
		transcode = TranscodeImage
	}

	resized, err := transcode(data, p.MaxDimension, p.Quality)
	if err != nil {
		return "", fmt.Errorf("transcode %s: %w", assetPath, err)
	}
	if int64(len(resized)) > p.SizeLimit {
		return "", &SizeLimitError{Path: assetPath, Size: int64(len(resized)), Limit: p.SizeLimit}
	}

	// Re-encoding always produces JPEG regardless of the source format.
	if mediaType != "" {
		mediaType = "image/jpeg"
	}
	return EncodeDataURI(mediaType, resized), nil
}

// DecodeDataURI splits a "data:<media>;base64,<payload>" string. ok is false
// for anything that is not a base64 data URI.
func DecodeDataURI(s string) (mediaType string, data []byte, ok bool) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, false
	}
	comma := strings.Index(s, ",")
	if comma < 0 {
		return "", nil, false
	}
	meta := s[len("data:"):comma]
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, false
	}
	payload, err := base64.StdEncoding.DecodeString(s[comma+1:])
	if err != nil {
		return "", nil, false
	}
	return strings.TrimSuffix(meta, ";base64"), payload, true
}

// EncodeDataURI builds a base64 data URI.
func EncodeDataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// TranscodeImage is the default TranscodeFunc: it bounds the longest edge at
// maxDimension (preserving aspect ratio), corrects EXIF orientation, and
// re-encodes as JPEG at the given quality.
func TranscodeImage(data []byte, maxDimension, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img = applyOrientation(img, readOrientation(data))

	bounds := img.Bounds()
	if bounds.Dx() > maxDimension || bounds.Dy() > maxDimension {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// readOrientation returns the EXIF orientation value, or 1 when absent.
func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// applyOrientation transforms an image according to EXIF orientation value.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
