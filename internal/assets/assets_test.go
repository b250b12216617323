package assets

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func TestIsBinaryPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"assets/logo.png", true},
		{"photo.JPG", true},
		{"fonts/site.woff2", true},
		{"docs/manual.pdf", true},
		{"index.html", false},
		{"posts/hello.md", false},
		{"style.css", false},
		{"no-extension", false},
	}
	for _, tc := range cases {
		if got := IsBinaryPath(tc.path); got != tc.want {
			t.Errorf("IsBinaryPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}
	uri := EncodeDataURI("image/png", raw)

	mediaType, data, ok := DecodeDataURI(uri)
	if !ok {
		t.Fatal("DecodeDataURI rejected its own output")
	}
	if mediaType != "image/png" {
		t.Errorf("media type = %q", mediaType)
	}
	if !bytes.Equal(data, raw) {
		t.Errorf("data = %v", data)
	}
}

func TestDecodeDataURIRejectsNonURIs(t *testing.T) {
	for _, s := range []string{
		"<html></html>",
		"data:image/png",                // no payload
		"data:image/png;base64,@@@@",    // bad base64
		"data:image/png;charset=x,aGk=", // not base64-flagged
	} {
		if _, _, ok := DecodeDataURI(s); ok {
			t.Errorf("DecodeDataURI(%q) accepted", s)
		}
	}
}

func TestPolicyPassThrough(t *testing.T) {
	policy := Policy{SizeLimit: 100}

	// Non-data-URI content is untouched whatever its size.
	text := string(make([]byte, 500))
	if got, err := policy.Apply("a.png", text); err != nil || got != text {
		t.Errorf("non-URI content modified: %v", err)
	}

	// Data-URI content at or under the limit is untouched.
	small := EncodeDataURI("image/png", make([]byte, 100))
	if got, err := policy.Apply("a.png", small); err != nil || got != small {
		t.Errorf("under-limit asset modified: %v", err)
	}
}

func TestPolicyTranscodesOversized(t *testing.T) {
	var calls int
	policy := Policy{
		SizeLimit:    10,
		MaxDimension: 800,
		Quality:      70,
		Transcode: func(data []byte, maxDimension, quality int) ([]byte, error) {
			calls++
			if maxDimension != 800 || quality != 70 {
				t.Errorf("transcode args = %d, %d", maxDimension, quality)
			}
			return []byte("tiny"), nil
		},
	}

	got, err := policy.Apply("a.png", EncodeDataURI("image/png", make([]byte, 50)))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if calls != 1 {
		t.Errorf("transcode calls = %d", calls)
	}

	mediaType, data, ok := DecodeDataURI(got)
	if !ok || string(data) != "tiny" {
		t.Fatalf("result = %q", got)
	}
	// Transcoding always yields JPEG.
	if mediaType != "image/jpeg" {
		t.Errorf("media type = %q", mediaType)
	}
}

func TestPolicyStillOversized(t *testing.T) {
	policy := Policy{
		SizeLimit: 10,
		Transcode: func(data []byte, maxDimension, quality int) ([]byte, error) {
			return data, nil
		},
	}

	_, err := policy.Apply("big.png", EncodeDataURI("image/png", make([]byte, 50)))

	var sizeErr *SizeLimitError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("err = %v, want SizeLimitError", err)
	}
	if sizeErr.Path != "big.png" || sizeErr.Size != 50 || sizeErr.Limit != 10 {
		t.Errorf("err = %+v", sizeErr)
	}
}

func TestPolicyTranscodeFailure(t *testing.T) {
	policy := Policy{
		SizeLimit: 10,
		Transcode: func(data []byte, maxDimension, quality int) ([]byte, error) {
			return nil, errors.New("corrupt image")
		},
	}
	if _, err := policy.Apply("bad.png", EncodeDataURI("image/png", make([]byte, 50))); err == nil {
		t.Fatal("transcode failure swallowed")
	}
}

// encodePNG renders a solid-color test image.
func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: 120, B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestTranscodeImageResizes(t *testing.T) {
	data := encodePNG(t, 400, 200)

	out, err := TranscodeImage(data, 100, 80)
	if err != nil {
		t.Fatalf("TranscodeImage: %v", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q", format)
	}
	// Longest edge bounded, aspect preserved.
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("dimensions = %dx%d, want 100x50", cfg.Width, cfg.Height)
	}
}

func TestTranscodeImageKeepsSmallDimensions(t *testing.T) {
	data := encodePNG(t, 60, 40)

	out, err := TranscodeImage(data, 100, 80)
	if err != nil {
		t.Fatalf("TranscodeImage: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 60 || cfg.Height != 40 {
		t.Errorf("dimensions = %dx%d, want 60x40", cfg.Width, cfg.Height)
	}
}

func TestTranscodeImageAcceptsJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 30, 30))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	if _, err := TranscodeImage(buf.Bytes(), 100, 80); err != nil {
		t.Errorf("TranscodeImage: %v", err)
	}
}

func TestTranscodeImageRejectsGarbage(t *testing.T) {
	if _, err := TranscodeImage([]byte("not an image"), 100, 80); err == nil {
		t.Error("garbage accepted")
	}
}
