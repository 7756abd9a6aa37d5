package scanner

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Decoder extracts QR payload text from a frame. The engine treats any
// error as "no decode this frame" and falls back to quality heuristics.
type Decoder interface {
	Decode(img image.Image) (string, error)
}

type qrDecoder struct {
	reader gozxing.Reader
}

// NewQRDecoder returns the default zxing-backed decoder.
func NewQRDecoder() Decoder {
	return &qrDecoder{reader: qrcode.NewQRCodeReader()}
}

func (d *qrDecoder) Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}
	result, err := d.reader.Decode(bmp, nil)
	if err != nil {
		return "", err
	}
	return result.GetText(), nil
}
