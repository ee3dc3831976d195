// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package loggingtest runs an in-process fake of the Cloud Logging API.
//
// The fake implements the WriteLogEntries RPC over a bufconn listener and
// records every entry it receives. Pass Server.ClientOptions to
// gcloudlog.WithClientOptions (or logging.NewClient) to route a real client
// to it:
//
//	srv := loggingtest.NewServer(t)
//	h, err := gcloudlog.NewHandler(ctx, "sandbox",
//		gcloudlog.WithClientOptions(srv.ClientOptions()...),
//		gcloudlog.WithTransportName("sync"),
//	)
package loggingtest

import (
	"context"
	"maps"
	"net"
	"sync"
	"testing"

	"cloud.google.com/go/logging/apiv2/loggingpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
)

const bufSize = 1 << 20

// Server is a fake LoggingServiceV2. It is safe for concurrent use.
type Server struct {
	loggingpb.UnimplementedLoggingServiceV2Server

	listener *bufconn.Listener
	server   *grpc.Server
	conn     *grpc.ClientConn

	mu       sync.Mutex
	requests []*loggingpb.WriteLogEntriesRequest
	writeErr error
	changed  chan struct{}
}

// NewServer starts a fake server and registers its shutdown with t.Cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s, err := Start()
	if err != nil {
		t.Fatalf("start fake logging server: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// Start starts a fake server. The caller must Close it.
func Start() (*Server, error) {
	s := &Server{
		listener: bufconn.Listen(bufSize),
		server:   grpc.NewServer(),
		changed:  make(chan struct{}),
	}
	loggingpb.RegisterLoggingServiceV2Server(s.server, s)
	go func() {
		_ = s.server.Serve(s.listener)
	}()

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return s.listener.DialContext(ctx)
	}
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer),
	)
	if err != nil {
		s.server.Stop()
		_ = s.listener.Close()
		return nil, err
	}
	s.conn = conn
	return s, nil
}

// ClientOptions returns options that connect a Cloud Logging client to s.
func (s *Server) ClientOptions() []option.ClientOption {
	return []option.ClientOption{option.WithGRPCConn(s.conn)}
}

// Close stops the server and its client connection.
func (s *Server) Close() {
	_ = s.conn.Close()
	s.server.Stop()
	_ = s.listener.Close()
}

// SetWriteError makes subsequent WriteLogEntries calls fail with err. A nil
// err restores normal operation.
func (s *Server) SetWriteError(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

// WriteLogEntries records req.
func (s *Server) WriteLogEntries(_ context.Context, req *loggingpb.WriteLogEntriesRequest) (*loggingpb.WriteLogEntriesResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	s.requests = append(s.requests, proto.Clone(req).(*loggingpb.WriteLogEntriesRequest))
	close(s.changed)
	s.changed = make(chan struct{})
	return &loggingpb.WriteLogEntriesResponse{}, nil
}

// DeleteLog accepts every request.
func (s *Server) DeleteLog(context.Context, *loggingpb.DeleteLogRequest) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

// Requests returns copies of the WriteLogEntries requests received so far.
func (s *Server) Requests() []*loggingpb.WriteLogEntriesRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*loggingpb.WriteLogEntriesRequest, len(s.requests))
	for i, r := range s.requests {
		out[i] = proto.Clone(r).(*loggingpb.WriteLogEntriesRequest)
	}
	return out
}

// Entries returns copies of every entry received so far. Entry log names and
// resources are filled from the enclosing request when unset.
func (s *Server) Entries() []*loggingpb.LogEntry {
	var out []*loggingpb.LogEntry
	for _, req := range s.Requests() {
		for _, e := range req.GetEntries() {
			if e.GetLogName() == "" {
				e.LogName = req.GetLogName()
			}
			if e.GetResource() == nil {
				e.Resource = req.GetResource()
			}
			if len(req.GetLabels()) > 0 {
				labels := make(map[string]string, len(req.GetLabels())+len(e.GetLabels()))
				maps.Copy(labels, req.GetLabels())
				maps.Copy(labels, e.GetLabels())
				e.Labels = labels
			}
			out = append(out, e)
		}
	}
	return out
}

// EntriesWithMessage returns the received entries whose jsonPayload message
// equals msg. The client library may write its own diagnostic entries, so
// tests usually select by message.
func (s *Server) EntriesWithMessage(msg string) []*loggingpb.LogEntry {
	var out []*loggingpb.LogEntry
	for _, e := range s.Entries() {
		if Payload(e)["message"] == msg {
			out = append(out, e)
		}
	}
	return out
}

// WaitForMessage blocks until an entry with message msg arrives or ctx is
// done.
func (s *Server) WaitForMessage(ctx context.Context, msg string) (*loggingpb.LogEntry, error) {
	for {
		s.mu.Lock()
		changed := s.changed
		s.mu.Unlock()

		if entries := s.EntriesWithMessage(msg); len(entries) > 0 {
			return entries[0], nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Payload returns the jsonPayload of e as a map, or nil when e carries no
// JSON payload.
func Payload(e *loggingpb.LogEntry) map[string]any {
	if p := e.GetJsonPayload(); p != nil {
		return p.AsMap()
	}
	return nil
}
