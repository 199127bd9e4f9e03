package gemini

import (
	"bytes"
	"fmt"
	"image"
	"net/http"

	"github.com/disintegration/imaging"

	// registered for imaging.Decode
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const jpegQuality = 90

// PrepareImage decodes an uploaded photo, scales it down so that its longest
// side is at most maxDim and re-encodes it as JPEG.
func PrepareImage(data []byte, maxDim int) (Image, error) {
	if len(data) == 0 {
		return Image{}, fmt.Errorf("empty image")
	}
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode %s image: %w", http.DetectContentType(data), err)
	}

	var dst image.Image = src
	b := src.Bounds()
	if maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim) {
		dst = imaging.Fit(src, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return Image{}, fmt.Errorf("failed to encode image: %w", err)
	}
	return Image{Data: buf.Bytes(), MIMEType: "image/jpeg"}, nil
}
