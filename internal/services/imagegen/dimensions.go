package imagegen

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"
	"net/http"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxReferenceWidth bounds inlined reference images.
const maxReferenceWidth = 1024

// Dimensions reads the pixel size of an encoded image without decoding pixels.
func Dimensions(data []byte) (int, int, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// IsLandscape reports whether width/height is within tolerance of 16:9.
func IsLandscape(width, height int, tolerance float64) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	ratio := float64(width) / float64(height)
	return math.Abs(ratio-16.0/9.0) <= tolerance
}

// Extension maps sniffed image bytes to a file extension. Unknown data is png.
func Extension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}

// prepareReference downsizes wide reference images before they are inlined.
// Images that fail to decode are passed through untouched.
func prepareReference(data []byte) ([]byte, string) {
	mimeType := http.DetectContentType(data)
	width, height, ok := Dimensions(data)
	if !ok || width <= maxReferenceWidth {
		return data, mimeType
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, mimeType
	}
	targetHeight := int(math.Round(float64(height) * maxReferenceWidth / float64(width)))
	if targetHeight < 1 {
		targetHeight = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxReferenceWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return data, mimeType
	}
	return buf.Bytes(), "image/png"
}
