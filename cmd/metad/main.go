// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Command metad is the metadata transaction core's process entrypoint: it
// wires the KV facade, lock registry, id allocator, backup coordinator and
// host reporter into a single process and serves gRPC health checks against
// them. Registering the metadata API's own RPC methods needs the storage
// engine's wire schema, which this module doesn't own -- see DESIGN.md --
// so the service struct built here is what a real registration would be
// handed.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/config"
	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/cubefs/graphmeta/internal/kvstore"
	"github.com/cubefs/graphmeta/internal/meta/backup"
	"github.com/cubefs/graphmeta/internal/meta/hosts"
	"github.com/cubefs/graphmeta/internal/meta/idalloc"
	"github.com/cubefs/graphmeta/internal/meta/lock"
	"github.com/cubefs/graphmeta/internal/meta/processor"
	"github.com/cubefs/graphmeta/internal/meta/processors"
	"github.com/cubefs/graphmeta/internal/meta/store"
	"github.com/cubefs/graphmeta/internal/metrics"
)

// Config is the process's on-disk configuration, loaded from a flat JSON
// file (metad.json unless the -f flag names another).
type Config struct {
	GrpcBindPort    uint32    `json:"grpc_bind_port"`
	MetricsBindPort uint32    `json:"metrics_bind_port"`
	LogLevel        log.Level `json:"log_level"`
	GitInfoSHA      string    `json:"git_info_sha"`
	RaftPeers       []string  `json:"raft_peers"`
}

// service bundles every concrete request processor plus the store they
// share, mirroring the teacher's Server struct.
type service struct {
	store  *store.Store
	space  *processors.SpaceProcessor
	schema *processors.SchemaProcessor
	hosts  *processors.HostsProcessor
	backup *processors.BackupProcessor
}

func newService(cfg *Config) *service {
	engine := kvstore.NewMemEngine(cfg.RaftPeers...)
	s := store.New(engine)
	locks := lock.NewRegistry()
	base := processor.NewBase(s, locks)
	ids := idalloc.New(s, locks)
	reporter := hosts.New(s, hosts.DefaultThresholds, cfg.GitInfoSHA)
	backupCoord := backup.New(base, s, backup.NewFakeAdminClient(), noopExporter{}, reporter)

	return &service{
		store:  s,
		space:  processors.NewSpaceProcessor(base, ids, nowMillis),
		schema: processors.NewSchemaProcessor(base, ids),
		hosts:  processors.NewHostsProcessor(base, reporter),
		backup: processors.NewBackupProcessor(backupCoord),
	}
}

// Check implements grpc_health_v1.HealthServer: SERVING while this process
// holds raft leadership of the reserved partition, NOT_SERVING otherwise.
func (s *service) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if s.store.IsLeader() {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	return &grpc_health_v1.HealthCheckResponse{Status: st}, nil
}

func (s *service) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	return status.Error(codes.Unimplemented, "watch is not supported")
}

func main() {
	config.Init("f", "", "metad.json")

	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		log.Fatal(errors.Detail(err))
	}
	if cfg.GrpcBindPort == 0 {
		cfg.GrpcBindPort = 9500
	}
	if cfg.MetricsBindPort == 0 {
		cfg.MetricsBindPort = 9501
	}
	log.SetOutputLevel(cfg.LogLevel)

	svc := newService(cfg)

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(tracerInterceptor, metrics.GRPCMetrics.UnaryServerInterceptor()))
	grpc_health_v1.RegisterHealthServer(grpcServer, svc)
	metrics.GRPCMetrics.InitializeMetrics(grpcServer)

	lis, err := net.Listen("tcp", ":"+strconv.Itoa(int(cfg.GrpcBindPort)))
	if err != nil {
		log.Fatalf("listen failed: %s", err)
	}

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Errorf("grpc server stopped: %s", err)
		}
	}()
	log.Infof("metad listening on :%d", cfg.GrpcBindPort)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	go func() {
		addr := ":" + strconv.Itoa(int(cfg.MetricsBindPort))
		if err := http.ListenAndServe(addr, metricsMux); err != nil {
			log.Errorf("metrics server stopped: %s", err)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	<-ch

	grpcServer.GracefulStop()
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// tracerInterceptor starts (or continues) a trace span per RPC, mirroring
// the teacher's unaryInterceptorWithTracer.
func tracerInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if reqID := md.Get("x-request-id"); len(reqID) > 0 {
			_, ctx = trace.StartSpanFromContextWithTraceID(ctx, info.FullMethod, reqID[0])
			return handler(ctx, req)
		}
	}
	trace.SpanFromContextSafe(ctx)
	return handler(ctx, req)
}

// noopExporter is the meta keyspace exporter used when no real SST export
// facility is configured; it reports success with no files, letting
// CreateBackup exercise its full protocol in a process with no real engine.
type noopExporter struct{}

func (noopExporter) Export(context.Context, string) ([]string, error) { return nil, nil }
