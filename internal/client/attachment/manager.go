// Package attachment manages product images across the sync boundary: it
// stores payloads against local or server owners, moves ownership when a
// create is confirmed, installs the server set after an update, and turns
// stored rows into displayable references.
//
// Mutating methods take the attachments repository of the caller so they join
// whatever transaction the caller is running.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/dmitrijs2005/productkeeper/internal/client/repositories/attachments"
	"github.com/dmitrijs2005/productkeeper/internal/filex"
	"github.com/dmitrijs2005/productkeeper/internal/logging"
)

// Handle is a displayable reference to one attachment. Handles backed by a
// local payload own a transient file; the caller must Release every handle
// it receives. Release is safe to call more than once.
type Handle struct {
	AttachmentID string
	Ref          string
	Name         string
	ContentType  string
	Origin       models.Origin

	once    sync.Once
	release func() error
	err     error
}

func (h *Handle) Release() error {
	h.once.Do(func() {
		if h.release != nil {
			h.err = h.release()
		}
	})
	return h.err
}

// ReleaseAll releases every handle and joins the errors.
func ReleaseAll(handles []*Handle) error {
	var errs []error
	for _, h := range handles {
		if err := h.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Manager struct {
	cacheDir string
	logger   logging.Logger
	live     atomic.Int64
}

// NewManager returns a Manager writing transient files under cacheDir,
// which is created when missing.
func NewManager(cacheDir string, logger logging.Logger) (*Manager, error) {
	dir, err := filex.EnsureDir(cacheDir)
	if err != nil {
		return nil, err
	}
	return &Manager{cacheDir: dir, logger: logger.With("module", "attachments")}, nil
}

// Attach stores one payload for owner. Local payloads start unsynced.
func (m *Manager) Attach(ctx context.Context, repo attachments.Repository, owner models.Identifier,
	et models.EntityType, img models.Image, origin models.Origin) (*models.Attachment, error) {
	a := &models.Attachment{
		Owner:       owner,
		EntityType:  et,
		Origin:      origin,
		Synced:      origin == models.OriginServer,
		Name:        img.Name,
		ContentType: img.ContentType,
		Data:        img.Data,
	}
	if err := repo.Insert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// AttachAll stores every image as a local payload for owner.
func (m *Manager) AttachAll(ctx context.Context, repo attachments.Repository, owner models.Identifier,
	et models.EntityType, images []models.Image) error {
	for _, img := range images {
		if _, err := m.Attach(ctx, repo, owner, et, img, models.OriginLocal); err != nil {
			return err
		}
	}
	return nil
}

// Rekey transfers every attachment of oldOwner to newOwner and marks them
// synced. It is used once, when a create is confirmed.
func (m *Manager) Rekey(ctx context.Context, repo attachments.Repository, oldOwner, newOwner models.Identifier,
	et models.EntityType) (int64, error) {
	n, err := repo.Rekey(ctx, oldOwner, newOwner, et)
	if err != nil {
		return 0, err
	}
	m.logger.Debug(ctx, "attachments rekeyed", "from", oldOwner.String(), "to", newOwner.String(), "count", n)
	return n, nil
}

// ReplaceAll drops every attachment of owner and installs refs as synced
// server attachments.
func (m *Manager) ReplaceAll(ctx context.Context, repo attachments.Repository, owner models.Identifier,
	et models.EntityType, refs []models.ImageRef) error {
	if _, err := repo.DeleteByOwner(ctx, owner, et); err != nil {
		return err
	}
	for _, ref := range refs {
		a := &models.Attachment{
			Owner:       owner,
			EntityType:  et,
			Origin:      models.OriginServer,
			Synced:      true,
			Name:        ref.Name,
			ContentType: ref.ContentType,
			URL:         ref.URL,
		}
		if err := repo.Insert(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) DeleteOwner(ctx context.Context, repo attachments.Repository, owner models.Identifier,
	et models.EntityType) (int64, error) {
	return repo.DeleteByOwner(ctx, owner, et)
}

// Pending returns the local, not yet synced attachments of owner.
func (m *Manager) Pending(ctx context.Context, repo attachments.Repository, owner models.Identifier,
	et models.EntityType) ([]models.Attachment, error) {
	rows, err := repo.ListByOwner(ctx, owner, et)
	if err != nil {
		return nil, err
	}
	var pending []models.Attachment
	for _, a := range rows {
		if a.Origin == models.OriginLocal && !a.Synced {
			pending = append(pending, a)
		}
	}
	return pending, nil
}

// PendingImages returns the payloads of Pending.
func (m *Manager) PendingImages(ctx context.Context, repo attachments.Repository, owner models.Identifier,
	et models.EntityType) ([]models.Image, error) {
	rows, err := m.Pending(ctx, repo, owner, et)
	if err != nil {
		return nil, err
	}
	return Images(rows), nil
}

// Images converts attachment rows into upload payloads.
func Images(rows []models.Attachment) []models.Image {
	if len(rows) == 0 {
		return nil
	}
	images := make([]models.Image, 0, len(rows))
	for _, a := range rows {
		images = append(images, models.Image{ClientRef: a.ID, Name: a.Name, ContentType: a.ContentType, Data: a.Data})
	}
	return images
}

// Carry re-attaches rows to owner as unsynced local payloads, keeping their
// ids. It preserves images staged while a request for owner was in flight.
func (m *Manager) Carry(ctx context.Context, repo attachments.Repository, owner models.Identifier,
	et models.EntityType, rows []models.Attachment) error {
	for _, a := range rows {
		if err := repo.Delete(ctx, a.ID); err != nil {
			return err
		}
		a.Owner = owner
		a.EntityType = et
		a.Origin = models.OriginLocal
		a.Synced = false
		if err := repo.Insert(ctx, &a); err != nil {
			return err
		}
	}
	return nil
}

// Materialize turns rows into handles. On failure every handle created so
// far is released and none are returned.
func (m *Manager) Materialize(ctx context.Context, rows []models.Attachment) ([]*Handle, error) {
	handles := make([]*Handle, 0, len(rows))
	for _, a := range rows {
		if err := ctx.Err(); err != nil {
			_ = ReleaseAll(handles)
			return nil, err
		}
		h, err := m.materializeOne(a)
		if err != nil {
			_ = ReleaseAll(handles)
			return nil, fmt.Errorf("materialize attachment %s: %w", a.ID, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// MaterializeOwner loads and materializes every attachment of owner.
func (m *Manager) MaterializeOwner(ctx context.Context, repo attachments.Repository, owner models.Identifier,
	et models.EntityType) ([]*Handle, error) {
	rows, err := repo.ListByOwner(ctx, owner, et)
	if err != nil {
		return nil, err
	}
	return m.Materialize(ctx, rows)
}

func (m *Manager) materializeOne(a models.Attachment) (*Handle, error) {
	h := &Handle{AttachmentID: a.ID, Name: a.Name, ContentType: a.ContentType, Origin: a.Origin}

	if a.URL != "" && len(a.Data) == 0 {
		h.Ref = a.URL
		return h, nil
	}

	path, err := filex.WriteTemp(m.cacheDir, "att", a.ContentType, a.Data)
	if err != nil {
		return nil, err
	}
	h.Ref = (&url.URL{Scheme: "file", Path: path}).String()

	m.live.Add(1)
	h.release = func() error {
		m.live.Add(-1)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return h, nil
}

// Live reports how many file-backed handles are currently unreleased.
func (m *Manager) Live() int64 {
	return m.live.Load()
}
