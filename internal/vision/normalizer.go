package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"anpr-locker/internal/config"
)

// Normalizer binarizes plate crops for OCR: grayscale, bilateral smoothing,
// Gaussian adaptive threshold, then a morphological close. Output has the
// same size as the input. Crops must not be empty.
type Normalizer struct {
	diameter   int
	sigmaColor float64
	sigmaSpace float64
	blockSize  int
	offset     float32
	kernelSize int
}

func NewNormalizer(cfg config.NormalizerConfig) *Normalizer {
	return &Normalizer{
		diameter:   cfg.Diameter,
		sigmaColor: cfg.SigmaColor,
		sigmaSpace: cfg.SigmaSpace,
		blockSize:  cfg.BlockSize,
		offset:     float32(cfg.Offset),
		kernelSize: cfg.KernelSize,
	}
}

func (n *Normalizer) Normalize(crop image.Image) (image.Image, error) {
	src, err := gocv.ImageToMatRGB(crop)
	if err != nil {
		return nil, fmt.Errorf("convert crop: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	smooth := gocv.NewMat()
	defer smooth.Close()
	gocv.BilateralFilter(gray, &smooth, n.diameter, n.sigmaColor, n.sigmaSpace)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.AdaptiveThreshold(smooth, &binary, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, n.blockSize, n.offset)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(n.kernelSize, n.kernelSize))
	defer kernel.Close()

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(binary, &closed, gocv.MorphClose, kernel)

	return closed.ToImage()
}
