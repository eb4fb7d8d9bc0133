package vision

import (
	"image"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"anpr-locker/internal/config"
	"anpr-locker/internal/domain/anpr"
)

// Display shows the annotated stream, the latest candidate crop and reads
// operator keys. Windows must be driven from the goroutine that created them.
type Display struct {
	main   *gocv.Window
	crop   *gocv.Window
	waitMS int
	log    zerolog.Logger
}

func NewDisplay(cfg config.DisplayConfig, log zerolog.Logger) *Display {
	return &Display{
		main:   gocv.NewWindow(cfg.Window),
		crop:   gocv.NewWindow(cfg.CropWindow),
		waitMS: cfg.KeyWaitMS,
		log:    log,
	}
}

func (d *Display) Show(frame anpr.Frame) {
	if f, ok := frame.(*Frame); ok {
		d.main.IMShow(f.mat)
		return
	}
	mat, err := matOf(frame)
	if err != nil {
		d.log.Debug().Err(err).Msg("failed to render frame")
		return
	}
	defer mat.Close()
	d.main.IMShow(mat)
}

func (d *Display) ShowCrop(crop image.Image) {
	mat, err := gocv.ImageToMatRGB(crop)
	if err != nil {
		d.log.Debug().Err(err).Msg("failed to render crop")
		return
	}
	defer mat.Close()
	d.crop.IMShow(mat)
}

// PollKey waits briefly for a key press.
func (d *Display) PollKey() anpr.Command {
	return KeyCommand(d.main.WaitKey(d.waitMS))
}

func (d *Display) Close() error {
	d.crop.Close()
	return d.main.Close()
}

// KeyCommand maps a WaitKey result to an operator command.
func KeyCommand(key int) anpr.Command {
	if key < 0 {
		return anpr.CommandNone
	}
	switch key & 0xFF {
	case 'q':
		return anpr.CommandQuit
	case 'r':
		return anpr.CommandReset
	default:
		return anpr.CommandNone
	}
}
