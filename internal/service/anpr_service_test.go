package service

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"anpr-locker/internal/domain/anpr"
	"anpr-locker/internal/region"
)

type mark struct {
	kind   string
	box    image.Rectangle
	text   string
	region string
}

type fakeFrame struct {
	bounds  image.Rectangle
	crops   []image.Rectangle
	cropErr error
	marks   []mark
}

func newFrame() *fakeFrame {
	return &fakeFrame{bounds: image.Rect(0, 0, 640, 480)}
}

func (f *fakeFrame) Bounds() image.Rectangle { return f.bounds }

func (f *fakeFrame) Crop(box image.Rectangle) (image.Image, error) {
	f.crops = append(f.crops, box)
	if f.cropErr != nil {
		return nil, f.cropErr
	}
	// The crop keeps the box origin so fakes downstream can tell candidates apart.
	return image.NewGray(box), nil
}

func (f *fakeFrame) MarkScanning(box image.Rectangle) {
	f.marks = append(f.marks, mark{kind: "scanning", box: box})
}

func (f *fakeFrame) MarkPlate(box image.Rectangle, text, region string) {
	f.marks = append(f.marks, mark{kind: "plate", box: box, text: text, region: region})
}

func (f *fakeFrame) MarkLocked(region string) {
	f.marks = append(f.marks, mark{kind: "locked", region: region})
}

func (f *fakeFrame) Close() error { return nil }

type fakeDetector struct {
	boxes []image.Rectangle
	calls int
}

func (d *fakeDetector) Detect(anpr.Frame) []image.Rectangle {
	d.calls++
	return d.boxes
}

type passNormalizer struct {
	err error
}

func (n passNormalizer) Normalize(crop image.Image) (image.Image, error) {
	return crop, n.err
}

// boxExtractor returns the text registered for the crop's top-left corner.
type boxExtractor struct {
	texts map[image.Point]string
	seen  []image.Point
}

func (e *boxExtractor) Extract(img image.Image) (string, bool) {
	p := img.Bounds().Min
	e.seen = append(e.seen, p)
	text, ok := e.texts[p]
	return text, ok && text != ""
}

type fakeStore struct {
	mu       sync.Mutex
	saveErr  error
	saved    []string
	appended []anpr.Reading
}

func (s *fakeStore) ImagePath(text string) string { return "car/" + text + ".png" }

func (s *fakeStore) SaveImage(path string, _ image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, path)
	return s.saveErr
}

func (s *fakeStore) Append(r anpr.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, r)
	return nil
}

type recordingViewer struct {
	shown int
}

func (v *recordingViewer) ShowCrop(image.Image) { v.shown++ }

var (
	box1 = image.Rect(10, 10, 110, 40)
	box2 = image.Rect(200, 50, 300, 80)
	box3 = image.Rect(400, 300, 500, 330)
)

type harness struct {
	svc       *ANPRService
	detector  *fakeDetector
	extractor *boxExtractor
	store     *fakeStore
}

func newHarness(boxes []image.Rectangle, texts map[image.Point]string) *harness {
	h := &harness{
		detector:  &fakeDetector{boxes: boxes},
		extractor: &boxExtractor{texts: texts},
		store:     &fakeStore{},
	}
	h.svc = NewANPRService(h.detector, passNormalizer{}, h.extractor, region.Default(), h.store, zerolog.Nop())
	h.svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return h
}

func TestProcessFrameNoCandidates(t *testing.T) {
	h := newHarness(nil, nil)
	frame := newFrame()

	res := h.svc.ProcessFrame(frame)
	if res.Locked || res.Candidates != 0 || res.Reading != nil {
		t.Errorf("result = %+v, want unlocked with no candidates", res)
	}
	if len(frame.marks) != 0 {
		t.Errorf("marks = %+v, want none", frame.marks)
	}
	if _, ok := h.svc.Current(); ok {
		t.Error("locked after empty frame")
	}
}

func TestProcessFrameFirstResolvableCandidateWins(t *testing.T) {
	h := newHarness(
		[]image.Rectangle{box1, box2, box3},
		map[image.Point]string{
			box1.Min: "ZZ1234",
			box2.Min: "TN09BZ1111",
			box3.Min: "MH12AB1234",
		},
	)
	frame := newFrame()

	res := h.svc.ProcessFrame(frame)

	if !res.Locked || res.Region != "Tamil Nadu" {
		t.Fatalf("result = %+v, want locked on Tamil Nadu", res)
	}
	if res.Evaluated != 2 || res.Candidates != 3 {
		t.Errorf("evaluated %d of %d, want 2 of 3", res.Evaluated, res.Candidates)
	}
	if len(h.extractor.seen) != 2 {
		t.Errorf("extractor saw %d candidates, want 2", len(h.extractor.seen))
	}
	for _, c := range frame.crops {
		if c == box3 {
			t.Error("third candidate was cropped after a match")
		}
	}

	want := []mark{
		{kind: "scanning", box: box1},
		{kind: "plate", box: box2, text: "TN09BZ1111", region: "Tamil Nadu"},
	}
	if len(frame.marks) != len(want) {
		t.Fatalf("marks = %+v, want %+v", frame.marks, want)
	}
	for i := range want {
		if frame.marks[i] != want[i] {
			t.Errorf("mark[%d] = %+v, want %+v", i, frame.marks[i], want[i])
		}
	}

	lock, ok := h.svc.Current()
	if !ok || lock.Code != "TN" || lock.Plate != "TN09BZ1111" {
		t.Errorf("Current() = %+v, %v", lock, ok)
	}
}

func TestProcessFrameUnknownRegionStaysUnlocked(t *testing.T) {
	h := newHarness([]image.Rectangle{box1}, map[image.Point]string{box1.Min: "ZZ99"})
	frame := newFrame()

	res := h.svc.ProcessFrame(frame)
	if res.Locked {
		t.Fatalf("locked on unknown code: %+v", res)
	}
	if len(frame.marks) != 1 || frame.marks[0].kind != "scanning" {
		t.Errorf("marks = %+v, want one scanning mark", frame.marks)
	}
	if len(h.store.appended) != 0 || len(h.store.saved) != 0 {
		t.Error("persisted a reading for an unknown code")
	}
}

func TestProcessFrameUnusableCandidates(t *testing.T) {
	tests := []struct {
		name string
		text string
		crop error
		norm error
	}{
		{name: "empty OCR", text: ""},
		{name: "single char", text: "M"},
		{name: "crop error", text: "MH12", crop: errors.New("bad crop")},
		{name: "normalize error", text: "MH12", norm: errors.New("bad mat")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness([]image.Rectangle{box1}, map[image.Point]string{box1.Min: tt.text})
			h.svc.normalizer = passNormalizer{err: tt.norm}
			frame := newFrame()
			frame.cropErr = tt.crop

			res := h.svc.ProcessFrame(frame)
			if res.Locked {
				t.Fatalf("locked: %+v", res)
			}
			if len(frame.marks) != 1 || frame.marks[0].kind != "scanning" {
				t.Errorf("marks = %+v, want one scanning mark", frame.marks)
			}
		})
	}
}

func TestLockedFramesSkipDetection(t *testing.T) {
	h := newHarness([]image.Rectangle{box1}, map[image.Point]string{box1.Min: "GA07"})
	h.svc.ProcessFrame(newFrame())
	if h.detector.calls != 1 {
		t.Fatalf("detector calls = %d, want 1", h.detector.calls)
	}

	// Even a frame whose candidate would resolve elsewhere must not change the lock.
	h.extractor.texts[box1.Min] = "KA01"
	for i := 0; i < 5; i++ {
		frame := newFrame()
		res := h.svc.ProcessFrame(frame)
		if !res.Locked || res.Region != "Goa" {
			t.Fatalf("frame %d: result = %+v, want locked on Goa", i, res)
		}
		if len(frame.marks) != 1 || frame.marks[0] != (mark{kind: "locked", region: "Goa"}) {
			t.Errorf("frame %d: marks = %+v", i, frame.marks)
		}
		if len(frame.crops) != 0 {
			t.Errorf("frame %d: cropped while locked", i)
		}
	}
	if h.detector.calls != 1 {
		t.Errorf("detector calls = %d after locked frames, want 1", h.detector.calls)
	}
	if lock, _ := h.svc.Current(); lock.Region != "Goa" {
		t.Errorf("lock region = %q, want Goa", lock.Region)
	}
}

func TestResetTakesEffectOnlyWhenApplied(t *testing.T) {
	h := newHarness([]image.Rectangle{box1}, map[image.Point]string{box1.Min: "DL3C"})
	h.svc.ProcessFrame(newFrame())

	h.svc.RequestReset()
	if !h.svc.ResetPending() {
		t.Fatal("ResetPending() = false after RequestReset")
	}
	if _, ok := h.svc.Current(); !ok {
		t.Fatal("lock cleared before reset was applied")
	}
	if res := h.svc.ProcessFrame(newFrame()); !res.Locked {
		t.Fatal("frame processed unlocked before reset was applied")
	}

	if !h.svc.ApplyPendingReset() {
		t.Fatal("ApplyPendingReset() = false with pending request")
	}
	if _, ok := h.svc.Current(); ok {
		t.Fatal("still locked after reset")
	}
	if h.svc.ResetPending() {
		t.Error("reset flag not consumed")
	}
	if h.svc.ApplyPendingReset() {
		t.Error("second ApplyPendingReset() = true")
	}

	calls := h.detector.calls
	h.extractor.texts[box1.Min] = "UP32"
	res := h.svc.ProcessFrame(newFrame())
	if h.detector.calls != calls+1 {
		t.Error("detector not run after reset")
	}
	if !res.Locked || res.Region != "Uttar Pradesh" {
		t.Errorf("result after reset = %+v", res)
	}
	if st := h.svc.Stats(); st.Resets != 1 || st.Readings != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestPersistenceOnMatch(t *testing.T) {
	h := newHarness([]image.Rectangle{box1}, map[image.Point]string{box1.Min: "MH12AB1234"})
	res := h.svc.ProcessFrame(newFrame())

	if len(h.store.saved) != 1 || h.store.saved[0] != "car/MH12AB1234.png" {
		t.Errorf("saved = %v", h.store.saved)
	}
	if len(h.store.appended) != 1 {
		t.Fatalf("appended %d log lines, want 1", len(h.store.appended))
	}
	got := h.store.appended[0]
	if got.Text != "MH12AB1234" || got.Region != "Maharashtra" || got.ImagePath != "car/MH12AB1234.png" {
		t.Errorf("appended = %+v", got)
	}
	if got.ID == nil || got.ReadAt == nil {
		t.Fatalf("appended reading missing id or time: %+v", got)
	}
	if res.Reading == nil || res.Reading.ID == nil || *res.Reading.ID != *got.ID {
		t.Errorf("result reading = %+v, want id %s", res.Reading, got.ID)
	}
}

func TestImageWriteFailureStillLocksAndLogs(t *testing.T) {
	h := newHarness([]image.Rectangle{box1}, map[image.Point]string{box1.Min: "KL07"})
	h.store.saveErr = errors.New("disk full")

	res := h.svc.ProcessFrame(newFrame())
	if !res.Locked || res.Region != "Kerala" {
		t.Fatalf("result = %+v, want locked on Kerala", res)
	}
	if len(h.store.saved) != 1 {
		t.Errorf("image write attempts = %d, want 1", len(h.store.saved))
	}
	if len(h.store.appended) != 1 || h.store.appended[0].ImagePath != "car/KL07.png" {
		t.Errorf("appended = %+v", h.store.appended)
	}
}

func TestCandidatesClippedToFrame(t *testing.T) {
	outside := image.Rect(1000, 1000, 1100, 1040)
	straddling := image.Rect(600, 460, 700, 500)
	h := newHarness([]image.Rectangle{outside, straddling}, map[image.Point]string{})
	frame := newFrame()

	res := h.svc.ProcessFrame(frame)
	if res.Evaluated != 1 {
		t.Errorf("evaluated = %d, want 1", res.Evaluated)
	}
	want := image.Rect(600, 460, 640, 480)
	if len(frame.crops) != 1 || frame.crops[0] != want {
		t.Errorf("crops = %v, want [%v]", frame.crops, want)
	}
}

func TestCropViewerSeesEveryEvaluatedCandidate(t *testing.T) {
	h := newHarness(
		[]image.Rectangle{box1, box2},
		map[image.Point]string{box1.Min: "", box2.Min: "AS01"},
	)
	v := &recordingViewer{}
	h.svc.SetCropViewer(v)
	h.svc.ProcessFrame(newFrame())
	if v.shown != 2 {
		t.Errorf("viewer shown %d crops, want 2", v.shown)
	}
}

func TestConcurrentObservers(t *testing.T) {
	h := newHarness([]image.Rectangle{box1}, map[image.Point]string{box1.Min: "BR01"})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			h.svc.Current()
			h.svc.Stats()
			if i%50 == 0 {
				h.svc.RequestReset()
			}
		}
	}()
	for i := 0; i < 200; i++ {
		h.svc.ApplyPendingReset()
		h.svc.ProcessFrame(newFrame())
	}
	wg.Wait()

	if st := h.svc.Stats(); st.Frames != 200 {
		t.Errorf("frames = %d, want 200", st.Frames)
	}
}
