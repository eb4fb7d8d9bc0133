package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"anpr-locker/internal/domain/anpr"
)

const logSeparator = ", "

// ANPRRepository persists accepted readings as one image per plate plus a
// line in an append-only text log.
type ANPRRepository struct {
	captureDir string
	logPath    string
	imageExt   string

	mu sync.Mutex
}

func NewANPRRepository(captureDir, logPath, imageExt string) *ANPRRepository {
	if imageExt == "" {
		imageExt = ".png"
	}
	if !strings.HasPrefix(imageExt, ".") {
		imageExt = "." + imageExt
	}
	return &ANPRRepository{
		captureDir: captureDir,
		logPath:    logPath,
		imageExt:   imageExt,
	}
}

// EnsureDir creates the capture directory and its parents. It reports
// whether the directory had to be created.
func (r *ANPRRepository) EnsureDir() (bool, error) {
	if _, err := os.Stat(r.captureDir); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(r.captureDir, 0o755); err != nil {
		return false, fmt.Errorf("create capture dir: %w", err)
	}
	return true, nil
}

// ImagePath is where the image for plate text is stored. text must already
// be normalized.
func (r *ANPRRepository) ImagePath(text string) string {
	return filepath.Join(r.captureDir, text+r.imageExt)
}

func (r *ANPRRepository) SaveImage(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("save plate image: %w", err)
	}
	return nil
}

// Append writes one log line for reading. The log is opened in append mode
// on every call and never truncated.
func (r *ANPRRepository) Append(reading anpr.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open plate log: %w", err)
	}
	line := reading.Text + logSeparator + reading.Region + logSeparator + reading.ImagePath + "\n"
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("append plate log: %w", err)
	}
	return f.Close()
}

// List returns at most limit readings from the end of the log, oldest
// first. A limit of zero or less returns every reading. Malformed lines are
// skipped.
func (r *ANPRRepository) List(ctx context.Context, limit int) ([]anpr.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.logPath)
	if errors.Is(err, os.ErrNotExist) {
		return []anpr.Reading{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open plate log: %w", err)
	}
	defer f.Close()

	readings := make([]anpr.Reading, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reading, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		readings = append(readings, reading)
		if limit > 0 && len(readings) > limit {
			readings = readings[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read plate log: %w", err)
	}
	return readings, nil
}

func parseLine(line string) (anpr.Reading, bool) {
	parts := strings.SplitN(strings.TrimRight(line, "\r"), logSeparator, 3)
	if len(parts) != 3 || parts[0] == "" {
		return anpr.Reading{}, false
	}
	reading := anpr.Reading{
		Text:      parts[0],
		Region:    parts[1],
		ImagePath: parts[2],
	}
	if len(reading.Text) >= 2 {
		reading.Code = anpr.RegionCode(reading.Text[:2])
	}
	return reading, true
}
