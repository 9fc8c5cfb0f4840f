package rpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type echoCatalog struct {
	UnimplementedCatalogServer
	lastCreate *CreateProductRequest
}

func (e *echoCatalog) CreateProduct(ctx context.Context, in *CreateProductRequest) (*CreateProductResponse, error) {
	e.lastCreate = in
	return &CreateProductResponse{Product: Product{ID: "srv-" + in.ClientRef, ProductFields: in.ProductFields}}, nil
}

func dial(t *testing.T, srv CatalogServer, opts ...grpc.ServerOption) *CatalogClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(opts...)
	RegisterCatalogServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewCatalogClient(conn)
}

func TestCodecRegistered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)

	b, err := c.Marshal(&DeleteProductRequest{ID: "p1", Actor: Actor{Role: "admin", ID: "a1"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p1","actor":{"role":"admin","id":"a1"}}`, string(b))
}

func TestCatalogClient_RoundTrip(t *testing.T) {
	srv := &echoCatalog{}
	client := dial(t, srv)

	resp, err := client.CreateProduct(context.Background(), &CreateProductRequest{
		ClientRef:     "l1",
		ProductFields: ProductFields{Name: "Widget", Brand: "Acme"},
		Images:        []Image{{Name: "a.png", ContentType: "image/png", Data: []byte{1, 2, 3}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-l1", resp.Product.ID)
	assert.Equal(t, "Widget", resp.Product.Name)

	require.NotNil(t, srv.lastCreate)
	assert.Equal(t, []byte{1, 2, 3}, srv.lastCreate.Images[0].Data)
}

func TestCatalogClient_UnimplementedAndInterceptor(t *testing.T) {
	var seen []string
	interceptor := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		seen = append(seen, info.FullMethod)
		return handler(ctx, req)
	}
	client := dial(t, &echoCatalog{}, grpc.UnaryInterceptor(interceptor))

	_, err := client.ListCategories(context.Background(), &ListCategoriesRequest{})
	require.Equal(t, codes.Unimplemented, status.Code(err))

	_, err = client.DeleteProduct(context.Background(), &DeleteProductRequest{ID: "x"})
	require.Equal(t, codes.Unimplemented, status.Code(err))

	assert.Equal(t, []string{MethodListCategories, MethodDeleteProduct}, seen)
}
