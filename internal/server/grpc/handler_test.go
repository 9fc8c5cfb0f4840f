package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/common"
	"github.com/dmitrijs2005/productkeeper/internal/logging"
	"github.com/dmitrijs2005/productkeeper/internal/rpc"
	"github.com/dmitrijs2005/productkeeper/internal/server/models"
	"github.com/dmitrijs2005/productkeeper/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeCatalog struct {
	createIn services.CreateInput
	updateID string
	updateIn services.UpdateInput
	deleteID string
	actor    services.Actor

	view       *services.ProductView
	views      []*services.ProductView
	categories []*models.Category
	err        error
	panicOn    string
}

func (f *fakeCatalog) Create(_ context.Context, in services.CreateInput) (*services.ProductView, error) {
	if f.panicOn == "create" {
		panic("boom")
	}
	f.createIn = in
	return f.view, f.err
}

func (f *fakeCatalog) Update(_ context.Context, id string, in services.UpdateInput) (*services.ProductView, error) {
	f.updateID, f.updateIn = id, in
	return f.view, f.err
}

func (f *fakeCatalog) Delete(_ context.Context, id string, actor services.Actor) error {
	f.deleteID, f.actor = id, actor
	return f.err
}

func (f *fakeCatalog) ListProducts(context.Context) ([]*services.ProductView, error) {
	return f.views, f.err
}

func (f *fakeCatalog) ListCategories(context.Context) ([]*models.Category, error) {
	return f.categories, f.err
}

func sampleView() *services.ProductView {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &services.ProductView{
		Product: &models.Product{
			ID: "p1", Name: "Widget", Brand: "Acme",
			CreatedByRole: "employee", CreatedByID: "u1", ModifiedByRole: "admin", ModifiedByID: "a1",
			CreatedAt: ts, LastModified: ts, UpdatedAt: ts,
		},
		Images: []services.ImageURL{{URL: "https://s3.test/k1", Name: "a.png", ContentType: "image/png"}},
	}
}

func newClient(t *testing.T, fc *fakeCatalog) *rpc.CatalogClient {
	t.Helper()
	return rpc.NewCatalogClient(startBufconn(t, NewGRPCServer("", logging.Nop(), fc)))
}

func TestCreateProduct_PassesRequestThrough(t *testing.T) {
	fc := &fakeCatalog{view: sampleView()}
	client := newClient(t, fc)

	resp, err := client.CreateProduct(context.Background(), &rpc.CreateProductRequest{
		ClientRef:     "l1",
		ProductFields: rpc.ProductFields{Name: "Widget", Brand: "Acme"},
		Actor:         rpc.Actor{Role: "employee", ID: "u1"},
		Images:        []rpc.Image{{ClientRef: "att-1", Name: "a.png", Data: []byte{1, 2}}},
	})
	require.NoError(t, err)

	assert.Equal(t, services.CreateInput{
		ClientRef: "l1",
		Fields:    services.Fields{Name: "Widget", Brand: "Acme"},
		Actor:     services.Actor{Role: "employee", ID: "u1"},
		Images:    []services.ImageUpload{{ClientRef: "att-1", Name: "a.png", Data: []byte{1, 2}}},
	}, fc.createIn)

	p := resp.Product
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, rpc.Actor{Role: "admin", ID: "a1"}, p.ModifiedBy)
	assert.Equal(t, []rpc.ImageRef{{URL: "https://s3.test/k1", Name: "a.png", ContentType: "image/png"}}, p.Images)
	assert.True(t, p.UpdatedAt.Equal(sampleView().UpdatedAt))
}

func TestUpdateAndDelete(t *testing.T) {
	fc := &fakeCatalog{view: sampleView()}
	client := newClient(t, fc)

	_, err := client.UpdateProduct(context.Background(), &rpc.UpdateProductRequest{ID: "p1", ProductFields: rpc.ProductFields{Name: "Widget Pro"}})
	require.NoError(t, err)
	assert.Equal(t, "p1", fc.updateID)
	assert.Equal(t, "Widget Pro", fc.updateIn.Fields.Name)
	assert.Nil(t, fc.updateIn.Images)

	_, err = client.DeleteProduct(context.Background(), &rpc.DeleteProductRequest{ID: "p1", Actor: rpc.Actor{Role: "admin", ID: "a1"}})
	require.NoError(t, err)
	assert.Equal(t, "p1", fc.deleteID)
	assert.Equal(t, services.Actor{Role: "admin", ID: "a1"}, fc.actor)

	_, err = client.UpdateProduct(context.Background(), &rpc.UpdateProductRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = client.DeleteProduct(context.Background(), &rpc.DeleteProductRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestErrorsMapToCodes(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{err: fmt.Errorf("%w: name", common.ErrValidation), code: codes.InvalidArgument},
		{err: common.ErrNotFound, code: codes.NotFound},
		{err: errors.New("db down"), code: codes.Internal},
		{err: context.DeadlineExceeded, code: codes.DeadlineExceeded},
	}

	fc := &fakeCatalog{}
	client := newClient(t, fc)

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			fc.err = tt.err
			_, err := client.DeleteProduct(context.Background(), &rpc.DeleteProductRequest{ID: "p1"})
			assert.Equal(t, tt.code, status.Code(err))
		})
	}

	fc.err = errors.New("secret dsn in message")
	_, err := client.ListProducts(context.Background(), &rpc.ListProductsRequest{})
	assert.NotContains(t, status.Convert(err).Message(), "secret")
}

func TestListProductsAndCategories(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fc := &fakeCatalog{
		views:      []*services.ProductView{sampleView()},
		categories: []*models.Category{{ID: "tools", Name: "Tools", LastModified: ts, UpdatedAt: ts}},
	}
	client := newClient(t, fc)

	products, err := client.ListProducts(context.Background(), &rpc.ListProductsRequest{})
	require.NoError(t, err)
	require.Len(t, products.Products, 1)
	assert.Equal(t, "Widget", products.Products[0].Name)

	cats, err := client.ListCategories(context.Background(), &rpc.ListCategoriesRequest{})
	require.NoError(t, err)
	require.Len(t, cats.Categories, 1)
	assert.Equal(t, "Tools", cats.Categories[0].Name)
}

func TestRecoveryInterceptor(t *testing.T) {
	client := newClient(t, &fakeCatalog{panicOn: "create"})

	_, err := client.CreateProduct(context.Background(), &rpc.CreateProductRequest{})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestLoggingInterceptor_PassesResult(t *testing.T) {
	s := NewGRPCServer("", logging.Nop(), &fakeCatalog{})
	info := &grpc.UnaryServerInfo{FullMethod: rpc.MethodListProducts}

	resp, err := s.loggingInterceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return "resp", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "resp", resp)

	_, err = s.loggingInterceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.Internal, "x")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}
