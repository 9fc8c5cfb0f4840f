package models

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/productkeeper/internal/common"
)

const (
	MaxImages     = 5
	MaxImageBytes = 5 << 20
	MaxNameLength = 200
)

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// Validate checks the fields of a product about to be staged.
func (f Fields) Validate() error {
	name := strings.TrimSpace(f.Name)
	switch {
	case name == "":
		return fmt.Errorf("%w: product name is required", common.ErrValidation)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: product name longer than %d characters", common.ErrValidation, MaxNameLength)
	}
	return nil
}

// ValidateImages checks count, size and sniffed content type of every image
// and fills in ContentType from the payload. All problems are reported at
// once.
func ValidateImages(images []Image) error {
	var errs []error

	if len(images) > MaxImages {
		errs = append(errs, fmt.Errorf("at most %d images allowed, got %d", MaxImages, len(images)))
	}

	for i := range images {
		img := &images[i]
		label := img.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}

		if len(img.Data) == 0 {
			errs = append(errs, fmt.Errorf("image %s is empty", label))
			continue
		}
		if len(img.Data) > MaxImageBytes {
			errs = append(errs, fmt.Errorf("image %s exceeds %d bytes", label, MaxImageBytes))
			continue
		}

		ct := http.DetectContentType(img.Data)
		if _, ok := allowedImageTypes[ct]; !ok {
			errs = append(errs, fmt.Errorf("image %s has unsupported type %s", label, ct))
			continue
		}
		img.ContentType = ct
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", common.ErrValidation, errors.Join(errs...))
	}
	return nil
}
