// Package validate checks report submissions before they reach the
// matching engine.
package validate

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/kiranshivaraju/bugboard/internal/analysis"
	"github.com/kiranshivaraju/bugboard/pkg/models"
)

const (
	// MaxImages is the most attachments one report may carry.
	MaxImages = 5
	// MaxImageSize is the per-image limit in bytes.
	MaxImageSize = 5 << 20
)

var allowedMimeTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// FieldErrors maps a field name to what is wrong with it.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	return fmt.Sprintf("%d invalid field(s)", len(e))
}

// Required checks that s is non-empty after trimming whitespace.
func Required(name, s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New(name + " required")
	}
	return nil
}

// Email checks that s parses as a single bare address.
func Email(s string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil || addr.Name != "" {
		return errors.New("invalid email address")
	}
	return nil
}

// Images checks the attachment count, sizes and media types.
func Images(images []models.Attachment) error {
	if len(images) > MaxImages {
		return fmt.Errorf("at most %d images allowed", MaxImages)
	}
	for i, img := range images {
		if strings.TrimSpace(img.Path) == "" {
			return fmt.Errorf("image %d: path required", i)
		}
		if img.Size <= 0 || img.Size > MaxImageSize {
			return fmt.Errorf("image %d: size must be between 1 and %d bytes", i, MaxImageSize)
		}
		if !allowedMimeTypes[strings.ToLower(strings.TrimSpace(img.MimeType))] {
			return fmt.Errorf("image %d: only png, jpeg, gif and webp images allowed", i)
		}
	}
	return nil
}

// Report runs every field check and collects the failures. It returns nil
// when the submission is acceptable.
func Report(r models.NewReport) error {
	errs := FieldErrors{}
	check := func(field string, err error) {
		if err != nil {
			errs[field] = err.Error()
		}
	}

	check("team", Required("team", r.Team))
	// "/" and similar normalize to nothing.
	check("url", Required("url", analysis.NormalizeURL(r.URL)))
	check("description", Required("description", r.Description))
	if err := Required("email", r.Email); err != nil {
		check("email", err)
	} else {
		check("email", Email(r.Email))
	}
	check("images", Images(r.Images))

	if len(errs) == 0 {
		return nil
	}
	return errs
}
