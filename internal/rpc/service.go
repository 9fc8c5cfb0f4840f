package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "productkeeper.Catalog"

const (
	MethodCreateProduct  = "/" + ServiceName + "/CreateProduct"
	MethodUpdateProduct  = "/" + ServiceName + "/UpdateProduct"
	MethodDeleteProduct  = "/" + ServiceName + "/DeleteProduct"
	MethodListProducts   = "/" + ServiceName + "/ListProducts"
	MethodListCategories = "/" + ServiceName + "/ListCategories"
)

// CatalogServer is implemented by the catalog service.
type CatalogServer interface {
	CreateProduct(context.Context, *CreateProductRequest) (*CreateProductResponse, error)
	UpdateProduct(context.Context, *UpdateProductRequest) (*UpdateProductResponse, error)
	DeleteProduct(context.Context, *DeleteProductRequest) (*DeleteProductResponse, error)
	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
	ListCategories(context.Context, *ListCategoriesRequest) (*ListCategoriesResponse, error)
}

// UnimplementedCatalogServer answers every method with codes.Unimplemented.
type UnimplementedCatalogServer struct{}

func (UnimplementedCatalogServer) CreateProduct(context.Context, *CreateProductRequest) (*CreateProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateProduct not implemented")
}

func (UnimplementedCatalogServer) UpdateProduct(context.Context, *UpdateProductRequest) (*UpdateProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateProduct not implemented")
}

func (UnimplementedCatalogServer) DeleteProduct(context.Context, *DeleteProductRequest) (*DeleteProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteProduct not implemented")
}

func (UnimplementedCatalogServer) ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListProducts not implemented")
}

func (UnimplementedCatalogServer) ListCategories(context.Context, *ListCategoriesRequest) (*ListCategoriesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListCategories not implemented")
}

func unaryHandler[Req, Resp any](method string, call func(CatalogServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CatalogServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateProduct", Handler: unaryHandler(MethodCreateProduct, CatalogServer.CreateProduct)},
		{MethodName: "UpdateProduct", Handler: unaryHandler(MethodUpdateProduct, CatalogServer.UpdateProduct)},
		{MethodName: "DeleteProduct", Handler: unaryHandler(MethodDeleteProduct, CatalogServer.DeleteProduct)},
		{MethodName: "ListProducts", Handler: unaryHandler(MethodListProducts, CatalogServer.ListProducts)},
		{MethodName: "ListCategories", Handler: unaryHandler(MethodListCategories, CatalogServer.ListCategories)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "productkeeper/catalog",
}

func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&catalogServiceDesc, srv)
}

// CatalogClient calls the catalog service with the JSON codec.
type CatalogClient struct {
	cc grpc.ClientConnInterface
}

func NewCatalogClient(cc grpc.ClientConnInterface) *CatalogClient {
	return &CatalogClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogClient) CreateProduct(ctx context.Context, in *CreateProductRequest, opts ...grpc.CallOption) (*CreateProductResponse, error) {
	return invoke[CreateProductResponse](ctx, c.cc, MethodCreateProduct, in, opts)
}

func (c *CatalogClient) UpdateProduct(ctx context.Context, in *UpdateProductRequest, opts ...grpc.CallOption) (*UpdateProductResponse, error) {
	return invoke[UpdateProductResponse](ctx, c.cc, MethodUpdateProduct, in, opts)
}

func (c *CatalogClient) DeleteProduct(ctx context.Context, in *DeleteProductRequest, opts ...grpc.CallOption) (*DeleteProductResponse, error) {
	return invoke[DeleteProductResponse](ctx, c.cc, MethodDeleteProduct, in, opts)
}

func (c *CatalogClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	return invoke[ListProductsResponse](ctx, c.cc, MethodListProducts, in, opts)
}

func (c *CatalogClient) ListCategories(ctx context.Context, in *ListCategoriesRequest, opts ...grpc.CallOption) (*ListCategoriesResponse, error) {
	return invoke[ListCategoriesResponse](ctx, c.cc, MethodListCategories, in, opts)
}
