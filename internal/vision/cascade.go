package vision

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"anpr-locker/internal/config"
	"anpr-locker/internal/domain/anpr"
)

var ErrCascadeNotFound = errors.New("cascade model not found")

// CascadeDetector finds plate candidates with a Haar cascade.
type CascadeDetector struct {
	classifier   gocv.CascadeClassifier
	scaleFactor  float64
	minNeighbors int
	log          zerolog.Logger
}

func NewCascadeDetector(cfg config.DetectorConfig, log zerolog.Logger) (*CascadeDetector, error) {
	if _, err := os.Stat(cfg.CascadePath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCascadeNotFound, cfg.CascadePath)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("load cascade %s: unreadable model", cfg.CascadePath)
	}

	return &CascadeDetector{
		classifier:   classifier,
		scaleFactor:  cfg.ScaleFactor,
		minNeighbors: cfg.MinNeighbors,
		log:          log,
	}, nil
}

// Detect runs the cascade on the grayscale version of frame.
func (d *CascadeDetector) Detect(frame anpr.Frame) []image.Rectangle {
	src, err := matOf(frame)
	if err != nil {
		d.log.Debug().Err(err).Msg("failed to read frame for detection")
		return nil
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	return d.classifier.DetectMultiScaleWithParams(gray, d.scaleFactor, d.minNeighbors, 0, image.Point{}, image.Point{})
}

func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}

// matOf returns a BGR Mat for frame that the caller must close.
func matOf(frame anpr.Frame) (gocv.Mat, error) {
	if f, ok := frame.(*Frame); ok {
		return f.mat.Clone(), nil
	}
	img, err := frame.Crop(frame.Bounds())
	if err != nil {
		return gocv.NewMat(), err
	}
	return gocv.ImageToMatRGB(img)
}
