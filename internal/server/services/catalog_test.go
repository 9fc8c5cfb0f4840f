package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/productkeeper/internal/common"
	"github.com/dmitrijs2005/productkeeper/internal/dbx"
	"github.com/dmitrijs2005/productkeeper/internal/logging"
	"github.com/dmitrijs2005/productkeeper/internal/server/models"
	"github.com/dmitrijs2005/productkeeper/internal/server/repositories/categories"
	"github.com/dmitrijs2005/productkeeper/internal/server/repositories/images"
	"github.com/dmitrijs2005/productkeeper/internal/server/repositories/products"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// memRepos keeps every table in memory; the DBTX handle is ignored so the
// sqlmock connection only sees BEGIN/COMMIT/ROLLBACK.
type memRepos struct {
	products   map[string]*models.Product
	images     []*models.Image
	categories []*models.Category

	insertErr error
}

func newMemRepos() *memRepos {
	return &memRepos{products: map[string]*models.Product{}}
}

func (m *memRepos) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepos) Products(dbx.DBTX) products.Repository        { return memProducts{m} }
func (m *memRepos) Images(dbx.DBTX) images.Repository            { return memImages{m} }
func (m *memRepos) Categories(dbx.DBTX) categories.Repository    { return memCategories{m} }

type memProducts struct{ m *memRepos }

func (r memProducts) Insert(_ context.Context, p *models.Product) error {
	if r.m.insertErr != nil {
		return r.m.insertErr
	}
	cp := *p
	r.m.products[p.ID] = &cp
	return nil
}

func (r memProducts) Get(_ context.Context, id string) (*models.Product, error) {
	p, ok := r.m.products[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memProducts) GetByClientRef(_ context.Context, ref string) (*models.Product, error) {
	for _, p := range r.m.products {
		if p.ClientRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memProducts) Update(_ context.Context, p *models.Product) error {
	if _, ok := r.m.products[p.ID]; !ok {
		return common.ErrNotFound
	}
	cp := *p
	r.m.products[p.ID] = &cp
	return nil
}

func (r memProducts) Delete(_ context.Context, id string) error {
	if _, ok := r.m.products[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.m.products, id)
	kept := r.m.images[:0]
	for _, img := range r.m.images {
		if img.ProductID != id {
			kept = append(kept, img)
		}
	}
	r.m.images = kept
	return nil
}

func (r memProducts) List(context.Context) ([]*models.Product, error) {
	out := make([]*models.Product, 0, len(r.m.products))
	for _, p := range r.m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

type memImages struct{ m *memRepos }

func (r memImages) Insert(_ context.Context, img *models.Image) error {
	r.m.images = append(r.m.images, img)
	return nil
}

func (r memImages) ListByProduct(_ context.Context, productID string) ([]*models.Image, error) {
	var out []*models.Image
	for _, img := range r.m.images {
		if img.ProductID == productID {
			out = append(out, img)
		}
	}
	return out, nil
}

func (r memImages) ListAll(context.Context) ([]*models.Image, error) { return r.m.images, nil }

func (r memImages) NextPosition(ctx context.Context, productID string) (int, error) {
	imgs, _ := r.ListByProduct(ctx, productID)
	return len(imgs), nil
}

type memCategories struct{ m *memRepos }

func (r memCategories) List(context.Context) ([]*models.Category, error) { return r.m.categories, nil }

type fakeImageStore struct {
	objects map[string][]byte
	seq     int
	putErr  error
	deleted []string
}

func (f *fakeImageStore) Put(_ context.Context, _ string, data []byte) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.seq++
	key := fmt.Sprintf("k%d", f.seq)
	f.objects[key] = data
	return key, nil
}

func (f *fakeImageStore) URL(_ context.Context, key string) (string, error) {
	return "https://s3.test/" + key, nil
}

func (f *fakeImageStore) Delete(_ context.Context, keys []string) error {
	for _, k := range keys {
		delete(f.objects, k)
		f.deleted = append(f.deleted, k)
	}
	return nil
}

type fixture struct {
	svc   *CatalogService
	repos *memRepos
	store *fakeImageStore
	mock  sqlmock.Sqlmock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repos := newMemRepos()
	store := &fakeImageStore{objects: map[string][]byte{}}
	return &fixture{
		svc:   NewCatalogService(db, repos, store, logging.Nop()),
		repos: repos,
		store: store,
		mock:  mock,
	}
}

func (f *fixture) expectTx() {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
}

func TestCreate_StoresProductAndImages(t *testing.T) {
	f := newFixture(t)
	f.expectTx()

	v, err := f.svc.Create(context.Background(), CreateInput{
		ClientRef: "l1",
		Fields:    Fields{Name: " Widget ", Brand: "Acme"},
		Actor:     Actor{Role: "employee", ID: "u1"},
		Images:    []ImageUpload{{Name: "a.png", Data: pngBytes}},
	})
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, "Widget", v.Name)
	assert.Equal(t, "employee", v.CreatedByRole)
	assert.Equal(t, v.CreatedAt, v.UpdatedAt)
	assert.Equal(t, []ImageURL{{URL: "https://s3.test/k1", Name: "a.png", ContentType: "image/png"}}, v.Images)
	assert.Len(t, f.repos.products, 1)
}

func TestCreate_ReplayedClientRefReturnsOriginal(t *testing.T) {
	f := newFixture(t)
	f.expectTx()

	in := CreateInput{ClientRef: "l1", Fields: Fields{Name: "Widget"}, Images: []ImageUpload{{Name: "a.png", Data: pngBytes}}}
	first, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)

	second, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.repos.products, 1)
	assert.Len(t, f.store.objects, 1, "a replay must not upload again")
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   CreateInput
	}{
		{name: "missing name", in: CreateInput{Fields: Fields{Name: "  "}}},
		{name: "text as image", in: CreateInput{Fields: Fields{Name: "W"}, Images: []ImageUpload{{Name: "a.txt", Data: []byte("hello")}}}},
		{name: "empty image", in: CreateInput{Fields: Fields{Name: "W"}, Images: []ImageUpload{{Name: "a.png"}}}},
		{name: "too many", in: CreateInput{Fields: Fields{Name: "W"}, Images: make([]ImageUpload, MaxImages+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Empty(t, f.repos.products)
			assert.Empty(t, f.store.objects)
		})
	}
}

func TestCreate_FailedInsertRemovesUploadedObjects(t *testing.T) {
	f := newFixture(t)
	f.repos.insertErr = errors.New("db down")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Create(context.Background(), CreateInput{Fields: Fields{Name: "W"}, Images: []ImageUpload{{Name: "a.png", Data: pngBytes}}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrValidation)
	assert.Empty(t, f.store.objects)
	assert.Equal(t, []string{"k1"}, f.store.deleted)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreate_UploadFailureStopsBeforeInsert(t *testing.T) {
	f := newFixture(t)
	f.store.putErr = errors.New("s3 down")

	_, err := f.svc.Create(context.Background(), CreateInput{Fields: Fields{Name: "W"}, Images: []ImageUpload{{Name: "a.png", Data: pngBytes}}})
	assert.ErrorContains(t, err, "s3 down")
	assert.Empty(t, f.repos.products)
}

func TestUpdate_OverwritesFieldsAndAppendsImages(t *testing.T) {
	f := newFixture(t)
	f.expectTx()
	f.expectTx()

	created, err := f.svc.Create(context.Background(), CreateInput{
		Fields: Fields{Name: "Widget", Brand: "Acme"},
		Actor:  Actor{Role: "employee", ID: "u1"},
		Images: []ImageUpload{{Name: "a.png", Data: pngBytes}},
	})
	require.NoError(t, err)

	f.svc.now = func() time.Time { return created.UpdatedAt.Add(time.Minute) }
	updated, err := f.svc.Update(context.Background(), created.ID, UpdateInput{
		Fields: Fields{Name: "Widget Pro"},
		Actor:  Actor{Role: "admin", ID: "a1"},
		Images: []ImageUpload{{Name: "b.png", Data: pngBytes}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Widget Pro", updated.Name)
	assert.Empty(t, updated.Brand)
	assert.Equal(t, "employee", updated.CreatedByRole)
	assert.Equal(t, "admin", updated.ModifiedByRole)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	require.Len(t, updated.Images, 2)
	assert.Equal(t, "b.png", updated.Images[1].Name)
	assert.Equal(t, 1, f.repos.images[1].Position)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdate_RepeatedImageRefsStoredOnce(t *testing.T) {
	f := newFixture(t)
	f.expectTx()
	f.expectTx()
	f.expectTx()

	created, err := f.svc.Create(context.Background(), CreateInput{Fields: Fields{Name: "Widget"}})
	require.NoError(t, err)

	in := UpdateInput{
		Fields: Fields{Name: "Widget"},
		Images: []ImageUpload{
			{ClientRef: "att-1", Name: "a.png", Data: pngBytes},
			{ClientRef: "att-1", Name: "a.png", Data: pngBytes},
			{Name: "plain.png", Data: pngBytes},
		},
	}
	first, err := f.svc.Update(context.Background(), created.ID, in)
	require.NoError(t, err)
	require.Len(t, first.Images, 2)

	in.Images = in.Images[:1]
	again, err := f.svc.Update(context.Background(), created.ID, in)
	require.NoError(t, err)
	require.Len(t, again.Images, 2)
	assert.Len(t, f.store.objects, 2)
	assert.Equal(t, "att-1", f.repos.images[0].ClientRef)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdate_MissingProduct(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Update(context.Background(), "nope", UpdateInput{Fields: Fields{Name: "W"}, Images: []ImageUpload{{Name: "a.png", Data: pngBytes}}})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, f.store.objects)
}

func TestUpdate_ImageRoomCountsStoredImages(t *testing.T) {
	f := newFixture(t)
	f.expectTx()

	uploads := make([]ImageUpload, MaxImages)
	for i := range uploads {
		uploads[i] = ImageUpload{Name: fmt.Sprintf("%d.png", i), Data: pngBytes}
	}
	created, err := f.svc.Create(context.Background(), CreateInput{Fields: Fields{Name: "W"}, Images: uploads})
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), created.ID, UpdateInput{Fields: Fields{Name: "W"}, Images: uploads[:1]})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestDelete_RemovesObjectsAfterCommit(t *testing.T) {
	f := newFixture(t)
	f.expectTx()
	f.expectTx()

	created, err := f.svc.Create(context.Background(), CreateInput{Fields: Fields{Name: "W"}, Images: []ImageUpload{{Name: "a.png", Data: pngBytes}}})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), created.ID, Actor{Role: "admin"}))
	assert.Empty(t, f.repos.products)
	assert.Empty(t, f.store.objects)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	assert.ErrorIs(t, f.svc.Delete(context.Background(), created.ID, Actor{}), common.ErrNotFound)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestListProductsAndCategories(t *testing.T) {
	f := newFixture(t)
	f.expectTx()
	f.expectTx()

	a, err := f.svc.Create(context.Background(), CreateInput{Fields: Fields{Name: "A"}, Images: []ImageUpload{{Name: "a.png", Data: pngBytes}}})
	require.NoError(t, err)
	f.svc.now = func() time.Time { return a.UpdatedAt.Add(time.Second) }
	b, err := f.svc.Create(context.Background(), CreateInput{Fields: Fields{Name: "B"}})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	list, err := f.svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Empty(t, list[0].Images)
	assert.Len(t, list[1].Images, 1)

	f.repos.categories = []*models.Category{{ID: "tools", Name: "Tools"}}
	cats, err := f.svc.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}
