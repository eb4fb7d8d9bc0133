package anpr

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// RegionCode is the two-character plate prefix identifying the issuing region.
type RegionCode string

type Resolution struct {
	Code   RegionCode `json:"code"`
	Region string     `json:"region"`
}

// Reading is one accepted plate. ID and ReadAt are only known for readings
// taken during this run; readings rebuilt from the log leave them nil.
type Reading struct {
	ID        *uuid.UUID      `json:"id,omitempty"`
	Text      string          `json:"text"`
	Code      RegionCode      `json:"code,omitempty"`
	Region    string          `json:"region"`
	ImagePath string          `json:"image_path"`
	Box       image.Rectangle `json:"-"`
	ReadAt    *time.Time      `json:"read_at,omitempty"`
}

// Lock is the region the acquisition machine has settled on.
type Lock struct {
	Code     RegionCode `json:"code"`
	Region   string     `json:"region"`
	Plate    string     `json:"plate"`
	LockedAt time.Time  `json:"locked_at"`
}

type FrameResult struct {
	Locked     bool
	Region     string
	Candidates int
	Evaluated  int
	Reading    *Reading
}

// Frame is one captured video frame. Crops must be independent of later
// overlay drawing on the frame.
type Frame interface {
	Bounds() image.Rectangle
	Crop(box image.Rectangle) (image.Image, error)
	MarkScanning(box image.Rectangle)
	MarkPlate(box image.Rectangle, text, region string)
	MarkLocked(region string)
	Close() error
}

// Command is an operator request read from the keyboard.
type Command int

const (
	CommandNone Command = iota
	CommandQuit
	CommandReset
)
