// Package avatar downsizes user-uploaded profile images so only small,
// uniform thumbnails get stored and broadcast.
package avatar

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

// Side is the edge length of a stored avatar.
const Side = 64

var ErrBadImage = errors.New("invalid avatar image")

// Downscale takes a base64 data URI of any decodable image, resamples it to
// Side x Side and returns a PNG data URI.
func Downscale(dataURI string) (string, error) {
	_, b64, ok := strings.Cut(dataURI, "base64,")
	if !ok {
		return "", fmt.Errorf("%w: not a base64 data URI", ErrBadImage)
	}

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadImage, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, Side, Side))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return "", fmt.Errorf("encoding avatar: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
