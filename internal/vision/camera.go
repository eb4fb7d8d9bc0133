package vision

import (
	"errors"
	"fmt"
	"strconv"

	"gocv.io/x/gocv"

	"anpr-locker/internal/domain/anpr"
)

var (
	ErrCaptureUnavailable = errors.New("capture source unavailable")
	ErrNoFrame            = errors.New("no frame available")
)

// Camera is the capture source: a local device index, a stream URL or a
// video file.
type Camera struct {
	capture *gocv.VideoCapture
	device  string
}

func OpenCamera(device string) (*Camera, error) {
	var src interface{} = device
	if idx, err := strconv.Atoi(device); err == nil {
		src = idx
	}

	capture, err := gocv.OpenVideoCapture(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCaptureUnavailable, device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s", ErrCaptureUnavailable, device)
	}

	return &Camera{capture: capture, device: device}, nil
}

// Next reads one frame. It returns ErrNoFrame once the source stops
// producing frames.
func (c *Camera) Next() (anpr.Frame, error) {
	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoFrame, c.device)
	}
	return NewFrame(mat), nil
}

func (c *Camera) Close() error {
	return c.capture.Close()
}
