// Package ocr reads plate text from normalized plate images with Tesseract.
package ocr

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"anpr-locker/internal/config"
	"anpr-locker/internal/utils"
)

// PlateChars is the character set the engine may emit.
const PlateChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type engine interface {
	SetImageFromBytes(data []byte) error
	Text() (string, error)
	Close() error
}

// Extractor holds one Tesseract client. It is not safe for concurrent use.
type Extractor struct {
	client engine
	log    zerolog.Logger
}

// tuner is the part of the Tesseract client that configures recognition.
type tuner interface {
	SetLanguage(langs ...string) error
	SetPageSegMode(mode gosseract.PageSegMode) error
	SetWhitelist(whitelist string) error
	SetVariable(key gosseract.SettableVariable, value string) error
}

func NewExtractor(cfg config.OCRConfig, log zerolog.Logger) (*Extractor, error) {
	client := gosseract.NewClient()
	if err := configure(client, cfg); err != nil {
		client.Close()
		return nil, err
	}
	return newExtractor(client, log), nil
}

func configure(client tuner, cfg config.OCRConfig) error {
	if err := client.SetLanguage(cfg.Language); err != nil {
		return fmt.Errorf("set OCR language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		return fmt.Errorf("set page segmentation mode: %w", err)
	}
	whitelist := cfg.Whitelist
	if whitelist == "" {
		whitelist = PlateChars
	}
	if err := client.SetWhitelist(whitelist); err != nil {
		return fmt.Errorf("set whitelist: %w", err)
	}

	// Plates are not dictionary words.
	for _, name := range []gosseract.SettableVariable{"load_system_dawg", "load_freq_dawg"} {
		if err := client.SetVariable(name, "false"); err != nil {
			return fmt.Errorf("set OCR variable %s: %w", name, err)
		}
	}
	return nil
}

func newExtractor(client engine, log zerolog.Logger) *Extractor {
	return &Extractor{client: client, log: log}
}

func (e *Extractor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Extract returns the alphanumeric text on img. ok is false when nothing
// usable was recognized, which callers treat as "try the next candidate".
func (e *Extractor) Extract(img image.Image) (string, bool) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		e.log.Debug().Err(err).Msg("failed to encode plate for OCR")
		return "", false
	}

	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		e.log.Debug().Err(err).Msg("failed to set OCR image")
		return "", false
	}

	raw, err := e.client.Text()
	if err != nil {
		e.log.Debug().Err(err).Msg("OCR failed")
		return "", false
	}

	text := utils.NormalizePlate(raw)
	e.log.Debug().Str("raw", raw).Str("text", text).Msg("extracted text")
	if text == "" {
		return "", false
	}
	return text, true
}
