// Package imaging is the image recompression codec used by the pipeline's
// "optimize images" step. It never fails the caller: anything that cannot
// be decoded or does not shrink comes back unchanged.
package imaging

import (
	"bytes"
	"image"
	"image/jpeg"

	_ "image/gif" // Register GIF decoder
	_ "image/png" // Register PNG decoder

	"github.com/nfnt/resize"
)

// maxWidth is the widest an illustration is allowed to stay; e-reader
// screens don't benefit from more.
const maxWidth = 1200

const jpegQuality = 75

// Recompress re-encodes image bytes as a quality-75 JPEG, downscaling
// overly wide images first. The original bytes are returned whenever
// decoding or encoding fails, or when the recompressed result is not
// smaller than the input.
func Recompress(data []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	if img.Bounds().Dx() > maxWidth {
		img = resize.Resize(maxWidth, 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return data
	}
	if buf.Len() >= len(data) {
		return data
	}
	return buf.Bytes()
}
