package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/productkeeper/internal/common"
	"github.com/dmitrijs2005/productkeeper/internal/rpc"
	"github.com/dmitrijs2005/productkeeper/internal/server/models"
	"github.com/dmitrijs2005/productkeeper/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors onto gRPC codes. Internal details are not
// sent to the client.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, "product not found")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) CreateProduct(ctx context.Context, req *rpc.CreateProductRequest) (*rpc.CreateProductResponse, error) {

	v, err := s.catalog.Create(ctx, services.CreateInput{
		ClientRef: req.ClientRef,
		Fields:    fromRPCFields(req.ProductFields),
		Actor:     fromRPCActor(req.Actor),
		Images:    fromRPCImages(req.Images),
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return &rpc.CreateProductResponse{Product: toRPCProduct(v)}, nil

}

func (s *GRPCServer) UpdateProduct(ctx context.Context, req *rpc.UpdateProductRequest) (*rpc.UpdateProductResponse, error) {

	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "product id is required")
	}

	v, err := s.catalog.Update(ctx, req.ID, services.UpdateInput{
		Fields: fromRPCFields(req.ProductFields),
		Actor:  fromRPCActor(req.Actor),
		Images: fromRPCImages(req.Images),
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return &rpc.UpdateProductResponse{Product: toRPCProduct(v)}, nil

}

func (s *GRPCServer) DeleteProduct(ctx context.Context, req *rpc.DeleteProductRequest) (*rpc.DeleteProductResponse, error) {

	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "product id is required")
	}

	if err := s.catalog.Delete(ctx, req.ID, fromRPCActor(req.Actor)); err != nil {
		return nil, toStatus(err)
	}

	return &rpc.DeleteProductResponse{}, nil

}

func (s *GRPCServer) ListProducts(ctx context.Context, req *rpc.ListProductsRequest) (*rpc.ListProductsResponse, error) {

	views, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &rpc.ListProductsResponse{Products: make([]rpc.Product, 0, len(views))}
	for _, v := range views {
		resp.Products = append(resp.Products, toRPCProduct(v))
	}
	return resp, nil

}

func (s *GRPCServer) ListCategories(ctx context.Context, req *rpc.ListCategoriesRequest) (*rpc.ListCategoriesResponse, error) {

	cats, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &rpc.ListCategoriesResponse{Categories: make([]rpc.Category, 0, len(cats))}
	for _, c := range cats {
		resp.Categories = append(resp.Categories, toRPCCategory(c))
	}
	return resp, nil

}

func fromRPCFields(f rpc.ProductFields) services.Fields {
	return services.Fields{Name: f.Name, Brand: f.Brand, CategoryID: f.CategoryID, Description: f.Description}
}

func fromRPCActor(a rpc.Actor) services.Actor {
	return services.Actor{Role: a.Role, ID: a.ID}
}

func fromRPCImages(images []rpc.Image) []services.ImageUpload {
	if len(images) == 0 {
		return nil
	}
	out := make([]services.ImageUpload, 0, len(images))
	for _, img := range images {
		out = append(out, services.ImageUpload{ClientRef: img.ClientRef, Name: img.Name, ContentType: img.ContentType, Data: img.Data})
	}
	return out
}

func toRPCProduct(v *services.ProductView) rpc.Product {
	p := rpc.Product{
		ID: v.ID,
		ProductFields: rpc.ProductFields{
			Name:        v.Name,
			Brand:       v.Brand,
			CategoryID:  v.CategoryID,
			Description: v.Description,
		},
		Images:       make([]rpc.ImageRef, 0, len(v.Images)),
		CreatedBy:    rpc.Actor{Role: v.CreatedByRole, ID: v.CreatedByID},
		ModifiedBy:   rpc.Actor{Role: v.ModifiedByRole, ID: v.ModifiedByID},
		CreatedAt:    v.CreatedAt,
		LastModified: v.LastModified,
		UpdatedAt:    v.UpdatedAt,
	}
	for _, img := range v.Images {
		p.Images = append(p.Images, rpc.ImageRef{URL: img.URL, Name: img.Name, ContentType: img.ContentType})
	}
	return p
}

func toRPCCategory(c *models.Category) rpc.Category {
	return rpc.Category{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		LastModified: c.LastModified,
		UpdatedAt:    c.UpdatedAt,
	}
}
