package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/dmitrijs2005/productkeeper/internal/common"
	"github.com/dmitrijs2005/productkeeper/internal/logging"
	"github.com/dmitrijs2005/productkeeper/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const DefaultRequestTimeout = 10 * time.Second

type GRPCGateway struct {
	conn    *grpc.ClientConn
	catalog *rpc.CatalogClient
	health  healthpb.HealthClient
	timeout time.Duration
	logger  logging.Logger
}

// NewGRPCGateway connects lazily to addr; the first call dials.
func NewGRPCGateway(addr string, timeout time.Duration, logger logging.Logger, opts ...grpc.DialOption) (*GRPCGateway, error) {
	g := &GRPCGateway{timeout: timeout, logger: logger.With("module", "gateway")}
	if g.timeout <= 0 {
		g.timeout = DefaultRequestTimeout
	}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(g.loggingInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	g.conn = conn
	g.catalog = rpc.NewCatalogClient(conn)
	g.health = healthpb.NewHealthClient(conn)
	return g, nil
}

func (g *GRPCGateway) Close() error {
	return g.conn.Close()
}

func (g *GRPCGateway) loggingInterceptor(ctx context.Context, method string, req, reply any,
	cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	start := time.Now()
	err := invoker(ctx, method, req, reply, cc, opts...)
	g.logger.Debug(ctx, "rpc", "method", method, "code", status.Code(err).String(), "elapsed", time.Since(start))
	return err
}

func (g *GRPCGateway) Create(ctx context.Context, req CreateRequest) (*RemoteProduct, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.catalog.CreateProduct(ctx, &rpc.CreateProductRequest{
		ClientRef:     req.LocalID,
		ProductFields: toRPCFields(req.Fields),
		Actor:         toRPCActor(req.Actor),
		Images:        toRPCImages(req.Images),
	})
	if err != nil {
		return nil, mapError("create", err)
	}
	return fromRPCProduct(resp.Product), nil
}

func (g *GRPCGateway) Update(ctx context.Context, serverID string, req UpdateRequest) (*RemoteProduct, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.catalog.UpdateProduct(ctx, &rpc.UpdateProductRequest{
		ID:            serverID,
		ProductFields: toRPCFields(req.Fields),
		Actor:         toRPCActor(req.Actor),
		Images:        toRPCImages(req.Images),
	})
	if err != nil {
		err = mapError("update", err)
		// the product vanished remotely, nothing left to overwrite
		if errors.Is(err, common.ErrNotFound) {
			return nil, &RejectionError{Code: codes.NotFound.String(), Message: "product " + serverID + " no longer exists"}
		}
		return nil, err
	}
	return fromRPCProduct(resp.Product), nil
}

func (g *GRPCGateway) Delete(ctx context.Context, serverID string, actor models.Actor) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.catalog.DeleteProduct(ctx, &rpc.DeleteProductRequest{ID: serverID, Actor: toRPCActor(actor)})
	return mapError("delete", err)
}

func (g *GRPCGateway) ListProducts(ctx context.Context) ([]RemoteProduct, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.catalog.ListProducts(ctx, &rpc.ListProductsRequest{})
	if err != nil {
		return nil, mapError("list products", err)
	}
	out := make([]RemoteProduct, 0, len(resp.Products))
	for _, p := range resp.Products {
		out = append(out, *fromRPCProduct(p))
	}
	return out, nil
}

func (g *GRPCGateway) ListCategories(ctx context.Context) ([]models.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.catalog.ListCategories(ctx, &rpc.ListCategoriesRequest{})
	if err != nil {
		return nil, mapError("list categories", err)
	}
	out := make([]models.Category, 0, len(resp.Categories))
	for _, c := range resp.Categories {
		out = append(out, models.Category{
			ID:           c.ID,
			Name:         c.Name,
			Description:  c.Description,
			LastModified: c.LastModified.UTC(),
			UpdatedAt:    c.UpdatedAt.UTC(),
		})
	}
	return out, nil
}

// Ping asks the standard health service whether the catalog is serving.
func (g *GRPCGateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.health.Check(ctx, &healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil {
		return mapError("ping", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("ping: %w: status %s", ErrConnectivity, resp.GetStatus())
	}
	return nil
}

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %v", op, ErrConnectivity, err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w: %v", op, ErrConnectivity, err)
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted,
		codes.Aborted, codes.Internal, codes.Unknown:
		return fmt.Errorf("%s: %w: %s", op, ErrConnectivity, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%s: %w: %s", op, common.ErrNotFound, st.Message())
	default:
		return &RejectionError{Code: st.Code().String(), Message: st.Message()}
	}
}

func toRPCFields(f models.Fields) rpc.ProductFields {
	return rpc.ProductFields{Name: f.Name, Brand: f.Brand, CategoryID: f.CategoryID, Description: f.Description}
}

func toRPCActor(a models.Actor) rpc.Actor {
	return rpc.Actor{Role: string(a.Role), ID: a.ID}
}

func toRPCImages(images []models.Image) []rpc.Image {
	if len(images) == 0 {
		return nil
	}
	out := make([]rpc.Image, 0, len(images))
	for _, img := range images {
		out = append(out, rpc.Image{ClientRef: img.ClientRef, Name: img.Name, ContentType: img.ContentType, Data: img.Data})
	}
	return out
}

func fromRPCProduct(p rpc.Product) *RemoteProduct {
	rp := &RemoteProduct{
		ServerID: p.ID,
		Fields: models.Fields{
			Name:        p.Name,
			Brand:       p.Brand,
			CategoryID:  p.CategoryID,
			Description: p.Description,
		},
		LastModified: p.LastModified.UTC(),
		UpdatedAt:    p.UpdatedAt.UTC(),
	}
	for _, img := range p.Images {
		rp.Images = append(rp.Images, models.ImageRef{URL: img.URL, Name: img.Name, ContentType: img.ContentType})
	}
	return rp
}
