// Package vision adapts OpenCV (gocv) to the acquisition domain: camera
// capture, frames with overlays, the cascade plate detector, the plate
// normalizer and the operator windows.
package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	colorBlue   = color.RGBA{B: 255, A: 255}
	colorRed    = color.RGBA{R: 255, A: 255}
	colorGreen  = color.RGBA{G: 255, A: 255}
	colorYellow = color.RGBA{R: 255, G: 255, A: 255}
)

// Frame is a BGR video frame owned by the caller until Close.
type Frame struct {
	mat gocv.Mat
}

func NewFrame(mat gocv.Mat) *Frame {
	return &Frame{mat: mat}
}

func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.mat.Cols(), f.mat.Rows())
}

// Crop copies box out of the frame so later overlays do not leak into it.
func (f *Frame) Crop(box image.Rectangle) (image.Image, error) {
	box = box.Intersect(f.Bounds())
	if box.Empty() {
		return nil, fmt.Errorf("crop %v outside frame %v", box, f.Bounds())
	}
	region := f.mat.Region(box)
	defer region.Close()

	owned := region.Clone()
	defer owned.Close()

	return owned.ToImage()
}

func (f *Frame) MarkScanning(box image.Rectangle) {
	gocv.Rectangle(&f.mat, box, colorBlue, 2)
	gocv.PutText(&f.mat, "Scanning...", image.Pt(box.Min.X, box.Min.Y-10), gocv.FontHersheySimplex, 0.8, colorRed, 2)
}

func (f *Frame) MarkPlate(box image.Rectangle, text, region string) {
	gocv.Rectangle(&f.mat, box, colorGreen, 2)
	gocv.PutText(&f.mat, "Plate: "+text, image.Pt(box.Min.X, box.Max.Y+30), gocv.FontHersheySimplex, 0.9, colorGreen, 2)
	gocv.PutText(&f.mat, "Region: "+region, image.Pt(box.Min.X, box.Max.Y+60), gocv.FontHersheySimplex, 0.9, colorYellow, 2)
}

func (f *Frame) MarkLocked(region string) {
	gocv.PutText(&f.mat, "Region Locked: "+region, image.Pt(10, 50), gocv.FontHersheySimplex, 1, colorGreen, 2)
}

func (f *Frame) Close() error {
	return f.mat.Close()
}
