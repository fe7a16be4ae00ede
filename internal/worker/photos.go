package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"flierbuilder/internal/render"
	"flierbuilder/internal/storage"
)

const maxPhotoBytes = 5 << 20

type objectReader interface {
	ReadObject(ctx context.Context, objectKey string, limit int64) ([]byte, string, error)
}

// photoInliner resolves the photo names of a saved flier to data URIs so the
// printed page needs no network access.
type photoInliner struct {
	store     objectReader
	sessionID string
	photos    map[string]string

	mu      sync.Mutex
	missing []string
}

func newPhotoInliner(store objectReader, sessionID string, photos map[string]string) *photoInliner {
	return &photoInliner{store: store, sessionID: sessionID, photos: photos}
}

func (p *photoInliner) ResolvePhoto(ctx context.Context, path string) (string, error) {
	objectKey, ok := p.photos[path]
	if !ok {
		p.markMissing(path)
		return "", fmt.Errorf("%w: %q was never uploaded", render.ErrPhotoUnavailable, path)
	}
	if !storage.IsValidPhotoKey(p.sessionID, objectKey) {
		p.markMissing(path)
		return "", fmt.Errorf("%w: invalid object key for %q", render.ErrPhotoUnavailable, path)
	}
	data, contentType, err := p.store.ReadObject(ctx, objectKey, maxPhotoBytes)
	if err != nil {
		p.markMissing(path)
		if storage.IsNoSuchKey(err) || errors.Is(err, storage.ErrObjectTooLarge) {
			return "", fmt.Errorf("%w: %v", render.ErrPhotoUnavailable, err)
		}
		return "", fmt.Errorf("fetch photo %q: %w", path, err)
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		p.markMissing(path)
		return "", fmt.Errorf("%w: %q is %s", render.ErrPhotoUnavailable, path, contentType)
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data)), nil
}

func (p *photoInliner) markMissing(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.missing = append(p.missing, path)
}

// Missing lists the photo names that could not be inlined.
func (p *photoInliner) Missing() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.missing...)
}
