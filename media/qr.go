package media

import (
	"strings"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// QRDecoder locates and decodes a single QR payload in raw image bytes.
// When more than one code is present, OpenCV returns the first detection;
// that code wins. A decoder is not safe for concurrent use; each analysis
// worker owns one.
type QRDecoder struct {
	detector gocv.QRCodeDetector
}

// NewQRDecoder allocates an OpenCV QR detector. Close must be called when
// the owning worker exits.
func NewQRDecoder() *QRDecoder {
	return &QRDecoder{detector: gocv.NewQRCodeDetector()}
}

func (d *QRDecoder) Close() error {
	return d.detector.Close()
}

// Decode returns the decoded QR payload, or "" when the bytes are not a
// readable image or contain no scannable code. It never returns an error:
// corrupt input is indistinguishable from a marker-less photo to callers.
func (d *QRDecoder) Decode(imageBytes []byte) (payload string) {
	// OpenCV can throw on malformed input; treat that the same as no code
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("qr decode panicked, treating as no marker")
			payload = ""
		}
	}()

	if len(imageBytes) == 0 {
		return ""
	}

	img, err := gocv.IMDecode(imageBytes, gocv.IMReadColor)
	if err != nil || img.Empty() {
		return ""
	}
	defer img.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	return strings.TrimSpace(d.detector.DetectAndDecode(gray, &points, &straight))
}
