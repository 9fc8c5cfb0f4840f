// Package services holds the catalog server's business logic: validation,
// idempotent creates, image uploads and presigned image URLs.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/common"
	"github.com/dmitrijs2005/productkeeper/internal/dbx"
	"github.com/dmitrijs2005/productkeeper/internal/logging"
	"github.com/dmitrijs2005/productkeeper/internal/server/models"
	"github.com/dmitrijs2005/productkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	MaxImages     = 5
	MaxImageBytes = 5 << 20
	MaxNameLength = 200
)

// ImageStore keeps image bytes outside the database.
type ImageStore interface {
	Put(ctx context.Context, contentType string, data []byte) (string, error)
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys []string) error
}

type Fields struct {
	Name        string
	Brand       string
	CategoryID  string
	Description string
}

type Actor struct {
	Role string
	ID   string
}

type ImageUpload struct {
	// ClientRef identifies the upload on the sending client. Updates skip
	// uploads whose ClientRef the product already stores.
	ClientRef   string
	Name        string
	ContentType string
	Data        []byte
}

type CreateInput struct {
	// ClientRef makes the create idempotent: a second create with the same
	// ref returns the product stored by the first.
	ClientRef string
	Fields    Fields
	Actor     Actor
	Images    []ImageUpload
}

type UpdateInput struct {
	Fields Fields
	Actor  Actor
	Images []ImageUpload
}

type ImageURL struct {
	URL         string
	Name        string
	ContentType string
}

// ProductView is a stored product with presigned URLs for its images.
type ProductView struct {
	*models.Product
	Images []ImageURL
}

type CatalogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	images      ImageStore
	logger      logging.Logger
	now         func() time.Time
}

func NewCatalogService(db *sql.DB, repomanager repomanager.RepositoryManager, images ImageStore, logger logging.Logger) *CatalogService {
	return &CatalogService{
		db:          db,
		repomanager: repomanager,
		images:      images,
		logger:      logger.With("module", "catalog"),
		// postgres keeps microseconds
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func validateFields(f Fields) error {
	name := strings.TrimSpace(f.Name)
	switch {
	case name == "":
		return fmt.Errorf("%w: product name is required", common.ErrValidation)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: product name longer than %d characters", common.ErrValidation, MaxNameLength)
	}
	return nil
}

// validateImages checks every upload and fills in the sniffed content type.
func validateImages(images []ImageUpload, existing int) error {
	var errs []error
	if existing+len(images) > MaxImages {
		errs = append(errs, fmt.Errorf("product would have %d images, at most %d allowed", existing+len(images), MaxImages))
	}
	for i := range images {
		img := &images[i]
		switch {
		case len(img.Data) == 0:
			errs = append(errs, fmt.Errorf("image %q is empty", img.Name))
		case len(img.Data) > MaxImageBytes:
			errs = append(errs, fmt.Errorf("image %q is larger than %d bytes", img.Name, MaxImageBytes))
		default:
			ct := http.DetectContentType(img.Data)
			if !strings.HasPrefix(ct, "image/") {
				errs = append(errs, fmt.Errorf("image %q has content type %s", img.Name, ct))
				continue
			}
			img.ContentType = ct
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	return nil
}

// upload stores every image and returns their keys. On failure the objects
// uploaded so far are removed.
func (s *CatalogService) upload(ctx context.Context, images []ImageUpload) ([]string, error) {
	keys := make([]string, 0, len(images))
	for _, img := range images {
		key, err := s.images.Put(ctx, img.ContentType, img.Data)
		if err != nil {
			s.discard(ctx, keys)
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *CatalogService) discard(ctx context.Context, keys []string) {
	if err := s.images.Delete(ctx, keys); err != nil {
		s.logger.Warn(ctx, "orphaned image objects", "keys", keys, "error", err)
	}
}

func (s *CatalogService) insertImages(ctx context.Context, tx dbx.DBTX, productID string, images []ImageUpload, keys []string) error {
	repo := s.repomanager.Images(tx)
	pos, err := repo.NextPosition(ctx, productID)
	if err != nil {
		return err
	}
	ts := s.now()
	for i, img := range images {
		if err := repo.Insert(ctx, &models.Image{
			ID:          uuid.NewString(),
			ProductID:   productID,
			ClientRef:   img.ClientRef,
			Position:    pos + i,
			Name:        img.Name,
			ContentType: img.ContentType,
			StorageKey:  keys[i],
			CreatedAt:   ts,
		}); err != nil {
			return err
		}
	}
	return nil
}

// newUploads drops uploads whose ClientRef is already stored or repeated
// earlier in the same request. Uploads without a ClientRef are always new.
func newUploads(stored []*models.Image, uploads []ImageUpload) []ImageUpload {
	seen := make(map[string]bool, len(stored))
	for _, img := range stored {
		if img.ClientRef != "" {
			seen[img.ClientRef] = true
		}
	}
	fresh := make([]ImageUpload, 0, len(uploads))
	for _, u := range uploads {
		if u.ClientRef != "" {
			if seen[u.ClientRef] {
				continue
			}
			seen[u.ClientRef] = true
		}
		fresh = append(fresh, u)
	}
	return fresh
}

func (s *CatalogService) Create(ctx context.Context, in CreateInput) (*ProductView, error) {
	if err := errors.Join(validateFields(in.Fields), validateImages(in.Images, 0)); err != nil {
		return nil, err
	}

	if in.ClientRef != "" {
		p, err := s.repomanager.Products(s.db).GetByClientRef(ctx, in.ClientRef)
		if err == nil {
			s.logger.Info(ctx, "create replayed", "client_ref", in.ClientRef, "id", p.ID)
			return s.view(ctx, s.db, p)
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}

	keys, err := s.upload(ctx, in.Images)
	if err != nil {
		return nil, err
	}

	ts := s.now()
	p := &models.Product{
		ID:             uuid.NewString(),
		ClientRef:      in.ClientRef,
		Name:           strings.TrimSpace(in.Fields.Name),
		Brand:          in.Fields.Brand,
		CategoryID:     in.Fields.CategoryID,
		Description:    in.Fields.Description,
		CreatedByRole:  in.Actor.Role,
		CreatedByID:    in.Actor.ID,
		ModifiedByRole: in.Actor.Role,
		ModifiedByID:   in.Actor.ID,
		CreatedAt:      ts,
		LastModified:   ts,
		UpdatedAt:      ts,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Products(tx).Insert(ctx, p); err != nil {
			return err
		}
		return s.insertImages(ctx, tx, p.ID, in.Images, keys)
	})
	if err != nil {
		s.discard(ctx, keys)
		return nil, fmt.Errorf("error creating product: %w", err)
	}

	s.logger.Info(ctx, "product created", "id", p.ID, "images", len(keys))
	return s.view(ctx, s.db, p)
}

// Update overwrites the fields of id and appends the uploaded images to its
// stored set.
func (s *CatalogService) Update(ctx context.Context, id string, in UpdateInput) (*ProductView, error) {
	if err := validateFields(in.Fields); err != nil {
		return nil, err
	}

	existing, err := s.repomanager.Images(s.db).ListByProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	fresh := newUploads(existing, in.Images)
	if err := validateImages(fresh, len(existing)); err != nil {
		return nil, err
	}

	keys, err := s.upload(ctx, fresh)
	if err != nil {
		return nil, err
	}

	var p *models.Product
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Products(tx)
		var err error
		if p, err = repo.Get(ctx, id); err != nil {
			return err
		}
		ts := s.now()
		p.Name = strings.TrimSpace(in.Fields.Name)
		p.Brand = in.Fields.Brand
		p.CategoryID = in.Fields.CategoryID
		p.Description = in.Fields.Description
		p.ModifiedByRole = in.Actor.Role
		p.ModifiedByID = in.Actor.ID
		p.LastModified = ts
		p.UpdatedAt = ts
		if err := repo.Update(ctx, p); err != nil {
			return err
		}
		return s.insertImages(ctx, tx, id, fresh, keys)
	})
	if err != nil {
		s.discard(ctx, keys)
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error updating product: %w", err)
	}

	s.logger.Info(ctx, "product updated", "id", id, "images_added", len(keys), "images_replayed", len(in.Images)-len(fresh))
	return s.view(ctx, s.db, p)
}

// Delete removes id and its images. Returns common.ErrNotFound when the
// product does not exist.
func (s *CatalogService) Delete(ctx context.Context, id string, actor Actor) error {
	var keys []string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		imgs, err := s.repomanager.Images(tx).ListByProduct(ctx, id)
		if err != nil {
			return err
		}
		for _, img := range imgs {
			keys = append(keys, img.StorageKey)
		}
		return s.repomanager.Products(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.discard(ctx, keys)
	s.logger.Info(ctx, "product deleted", "id", id, "by_role", actor.Role, "by_id", actor.ID)
	return nil
}

// ListProducts returns every product, most recently updated first.
func (s *CatalogService) ListProducts(ctx context.Context) ([]*ProductView, error) {
	var (
		products []*models.Product
		images   []*models.Image
	)
	err := dbx.WithReadTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if products, err = s.repomanager.Products(tx).List(ctx); err != nil {
			return err
		}
		images, err = s.repomanager.Images(tx).ListAll(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	byProduct := make(map[string][]*models.Image, len(products))
	for _, img := range images {
		byProduct[img.ProductID] = append(byProduct[img.ProductID], img)
	}

	views := make([]*ProductView, 0, len(products))
	for _, p := range products {
		v, err := s.presign(ctx, p, byProduct[p.ID])
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return s.repomanager.Categories(s.db).List(ctx)
}

func (s *CatalogService) view(ctx context.Context, db dbx.DBTX, p *models.Product) (*ProductView, error) {
	imgs, err := s.repomanager.Images(db).ListByProduct(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return s.presign(ctx, p, imgs)
}

func (s *CatalogService) presign(ctx context.Context, p *models.Product, imgs []*models.Image) (*ProductView, error) {
	v := &ProductView{Product: p, Images: make([]ImageURL, 0, len(imgs))}
	for _, img := range imgs {
		u, err := s.images.URL(ctx, img.StorageKey)
		if err != nil {
			return nil, err
		}
		v.Images = append(v.Images, ImageURL{URL: u, Name: img.Name, ContentType: img.ContentType})
	}
	return v, nil
}
