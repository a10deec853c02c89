package files

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/platform/storage"
	"github.com/noodle-soup/noodle/internal/shared"
)

const brandingKey = "branding.json"

// Branding is the site design: an RGBA colour packed as 0xRRGGBBAA and the
// uid of the logo file.
type Branding struct {
	Color uint32    `json:"color"`
	Logo  uuid.UUID `json:"targetUid"`
}

// Branding returns the stored design.
func (s *Service) Branding(ctx context.Context) (Branding, error) {
	rc, err := s.store.Open(ctx, brandingKey)
	if errors.Is(err, storage.ErrNotFound) {
		return Branding{}, shared.ErrNotFound
	}
	if err != nil {
		return Branding{}, shared.NewStoreError("open branding", err)
	}
	defer rc.Close()
	var b Branding
	if err := json.NewDecoder(rc).Decode(&b); err != nil {
		return Branding{}, shared.NewStoreError("decode branding", err)
	}
	return b, nil
}

// SetBranding replaces the design. It needs UPDATE on every file, and the
// logo must be an existing image.
func (s *Service) SetBranding(ctx context.Context, actor int64, b Branding) (Branding, error) {
	if err := authz.RequireAll(ctx, s.authz, authz.File, authz.Update, actor); err != nil {
		return Branding{}, err
	}
	logo, err := s.repo.Get(ctx, b.Logo)
	if errors.Is(err, shared.ErrNotFound) {
		return Branding{}, shared.NewValidationError("targetUid", "notFound")
	}
	if err != nil {
		return Branding{}, err
	}
	if !strings.HasPrefix(logo.MimeType, "image/") {
		return Branding{}, shared.NewValidationError("targetUid", "notAnImage")
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return Branding{}, err
	}
	if _, err := s.store.Put(ctx, brandingKey, bytes.NewReader(raw), "application/json"); err != nil {
		return Branding{}, shared.NewStoreError("store branding", err)
	}
	return b, nil
}
