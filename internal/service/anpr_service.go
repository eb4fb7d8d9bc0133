package service

import (
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"anpr-locker/internal/domain/anpr"
)

// Detector proposes plate candidates on a frame, in detector order.
type Detector interface {
	Detect(frame anpr.Frame) []image.Rectangle
}

// Normalizer turns a colour plate crop into a binarized image for OCR.
type Normalizer interface {
	Normalize(crop image.Image) (image.Image, error)
}

type TextExtractor interface {
	Extract(img image.Image) (string, bool)
}

type Resolver interface {
	Resolve(text string) (anpr.Resolution, bool)
}

type ReadingStore interface {
	ImagePath(text string) string
	SaveImage(path string, img image.Image) error
	Append(reading anpr.Reading) error
}

// CropViewer receives every candidate crop before it is read.
type CropViewer interface {
	ShowCrop(crop image.Image)
}

type Stats struct {
	Frames     int64 `json:"frames"`
	Candidates int64 `json:"candidates"`
	Readings   int64 `json:"readings"`
	Resets     int64 `json:"resets"`
}

// ANPRService is the plate acquisition state machine. It is UNLOCKED until a
// candidate on some frame resolves to a known region, then LOCKED on that
// region until a requested reset is applied.
//
// ProcessFrame and ApplyPendingReset must be called from a single goroutine.
// Current, RequestReset, ResetPending and Stats may be called from any
// goroutine.
type ANPRService struct {
	detector   Detector
	normalizer Normalizer
	extractor  TextExtractor
	resolver   Resolver
	store      ReadingStore
	viewer     CropViewer
	log        zerolog.Logger
	now        func() time.Time

	mu           sync.Mutex
	lock         *anpr.Lock
	resetPending bool
	stats        Stats
}

func NewANPRService(
	detector Detector,
	normalizer Normalizer,
	extractor TextExtractor,
	resolver Resolver,
	store ReadingStore,
	log zerolog.Logger,
) *ANPRService {
	return &ANPRService{
		detector:   detector,
		normalizer: normalizer,
		extractor:  extractor,
		resolver:   resolver,
		store:      store,
		log:        log,
		now:        time.Now,
	}
}

func (s *ANPRService) SetCropViewer(v CropViewer) {
	s.viewer = v
}

func (s *ANPRService) Current() (anpr.Lock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lock == nil {
		return anpr.Lock{}, false
	}
	return *s.lock, true
}

// RequestReset asks for the lock to be cleared. It takes effect the next
// time ApplyPendingReset runs, never in the middle of a frame.
func (s *ANPRService) RequestReset() {
	s.mu.Lock()
	s.resetPending = true
	s.mu.Unlock()
	s.log.Info().Msg("reset requested")
}

func (s *ANPRService) ResetPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetPending
}

// ApplyPendingReset consumes a pending reset request, clearing the lock. It
// reports whether a request was pending.
func (s *ANPRService) ApplyPendingReset() bool {
	s.mu.Lock()
	if !s.resetPending {
		s.mu.Unlock()
		return false
	}
	prev := s.lock
	s.lock = nil
	s.resetPending = false
	s.stats.Resets++
	s.mu.Unlock()

	ev := s.log.Info()
	if prev != nil {
		ev = ev.Str("region", prev.Region).Str("plate", prev.Plate)
	}
	ev.Msg("lock reset, scanning resumed")
	return true
}

func (s *ANPRService) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ProcessFrame runs one acquisition cycle on frame and annotates it. When
// locked it only draws the locked region. Otherwise candidates are read in
// detector order and the first one that resolves wins; later candidates on
// the same frame are not evaluated.
func (s *ANPRService) ProcessFrame(frame anpr.Frame) anpr.FrameResult {
	s.mu.Lock()
	s.stats.Frames++
	lock := s.lock
	s.mu.Unlock()

	if lock != nil {
		frame.MarkLocked(lock.Region)
		return anpr.FrameResult{Locked: true, Region: lock.Region}
	}

	boxes := s.detector.Detect(frame)
	s.log.Debug().Int("candidates", len(boxes)).Msg("detected plate candidates")

	result := anpr.FrameResult{Candidates: len(boxes)}
	bounds := frame.Bounds()
	for _, box := range boxes {
		box = box.Intersect(bounds)
		if box.Empty() {
			continue
		}
		result.Evaluated++
		s.countCandidate()

		reading, crop, ok := s.read(frame, box)
		if !ok {
			frame.MarkScanning(box)
			continue
		}

		s.acquire(&reading, crop)
		frame.MarkPlate(box, reading.Text, reading.Region)
		result.Locked = true
		result.Region = reading.Region
		result.Reading = &reading
		return result
	}
	return result
}

func (s *ANPRService) countCandidate() {
	s.mu.Lock()
	s.stats.Candidates++
	s.mu.Unlock()
}

// read crops box and runs it through normalization, OCR and region lookup.
func (s *ANPRService) read(frame anpr.Frame, box image.Rectangle) (anpr.Reading, image.Image, bool) {
	crop, err := frame.Crop(box)
	if err != nil {
		s.log.Debug().Err(err).Msg("failed to crop candidate")
		return anpr.Reading{}, nil, false
	}
	if s.viewer != nil {
		s.viewer.ShowCrop(crop)
	}

	binary, err := s.normalizer.Normalize(crop)
	if err != nil {
		s.log.Debug().Err(err).Msg("failed to normalize candidate")
		return anpr.Reading{}, nil, false
	}

	text, ok := s.extractor.Extract(binary)
	if !ok {
		return anpr.Reading{}, nil, false
	}

	res, ok := s.resolver.Resolve(text)
	if !ok {
		s.log.Debug().Str("text", text).Msg("no region for plate text")
		return anpr.Reading{}, nil, false
	}

	id := uuid.New()
	return anpr.Reading{
		ID:     &id,
		Text:   text,
		Code:   res.Code,
		Region: res.Region,
		Box:    box,
	}, crop, true
}

// acquire locks on reading and persists it. The lock holds even when the
// image cannot be written; the log line is appended either way.
func (s *ANPRService) acquire(reading *anpr.Reading, crop image.Image) {
	now := s.now()
	reading.ReadAt = &now
	reading.ImagePath = s.store.ImagePath(reading.Text)

	s.mu.Lock()
	s.lock = &anpr.Lock{
		Code:     reading.Code,
		Region:   reading.Region,
		Plate:    reading.Text,
		LockedAt: now,
	}
	s.stats.Readings++
	s.mu.Unlock()

	s.log.Info().
		Str("reading_id", reading.ID.String()).
		Str("plate", reading.Text).
		Str("code", string(reading.Code)).
		Str("region", reading.Region).
		Msg("region locked")

	if err := s.store.SaveImage(reading.ImagePath, crop); err != nil {
		s.log.Error().
			Err(err).
			Str("plate", reading.Text).
			Str("path", reading.ImagePath).
			Msg("failed to save plate image")
	} else {
		s.log.Info().Str("path", reading.ImagePath).Msg("saved plate image")
	}

	if err := s.store.Append(*reading); err != nil {
		s.log.Error().
			Err(err).
			Str("plate", reading.Text).
			Msg("failed to append plate log")
	}
}
