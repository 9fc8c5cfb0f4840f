// Package grpc exposes the catalog service over gRPC with the JSON codec,
// next to the standard health service clients probe for connectivity.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/productkeeper/internal/logging"
	"github.com/dmitrijs2005/productkeeper/internal/rpc"
	"github.com/dmitrijs2005/productkeeper/internal/server/models"
	"github.com/dmitrijs2005/productkeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Catalog is the business API the handlers call.
type Catalog interface {
	Create(ctx context.Context, in services.CreateInput) (*services.ProductView, error)
	Update(ctx context.Context, id string, in services.UpdateInput) (*services.ProductView, error)
	Delete(ctx context.Context, id string, actor services.Actor) error
	ListProducts(ctx context.Context) ([]*services.ProductView, error)
	ListCategories(ctx context.Context) ([]*models.Category, error)
}

type GRPCServer struct {
	rpc.UnimplementedCatalogServer
	address string
	catalog Catalog
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, catalog Catalog) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		catalog: catalog,
	}
}

// newServer builds the grpc.Server with every service registered.
func (s *GRPCServer) newServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.loggingInterceptor))
	rpc.RegisterCatalogServer(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv, hs
}

// Run serves until ctx is canceled, then drains in-flight calls.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv, hs := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping gRPC server...")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
