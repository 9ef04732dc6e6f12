package grpcgateway

import (
	"io"
	"log"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/mtste/engine/transport"
)

// ControlServer is the bidirectional-stream service, handwritten in the
// same shape protoc-gen-go-grpc would emit (the teacher's
// internal/api/grpc_service.go does the same to avoid a protobuf
// toolchain dependency for a control plane that's really just JSON).
type ControlServer interface {
	Stream(ControlStreamServer) error
}

type ControlStreamServer interface {
	Send(*transport.Out) error
	Recv() (*transport.In, error)
	grpc.ServerStream
}

type controlStreamServer struct {
	grpc.ServerStream
}

func (x *controlStreamServer) Send(m *transport.Out) error {
	return x.ServerStream.SendMsg(m)
}

func (x *controlStreamServer) Recv() (*transport.In, error) {
	m := new(transport.In)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func controlStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ControlServer).Stream(&controlStreamServer{stream})
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: "mtste.Control",
	HandlerType: (*ControlServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       controlStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "transport/grpcgateway/control.proto",
}

func registerControlServer(s *grpc.Server, srv ControlServer) {
	s.RegisterService(&controlServiceDesc, srv)
}

// Gateway implements ControlServer over a transport.Hub.
type Gateway struct {
	hub *transport.Hub
}

func New(hub *transport.Hub) *Gateway {
	return &Gateway{hub: hub}
}

type grpcClient struct {
	stream ControlStreamServer
	mu     sync.Mutex
}

func (c *grpcClient) Send(out transport.Out) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.Send(&out)
}

func (c *grpcClient) Close() error { return nil }

func (g *Gateway) Stream(stream ControlStreamServer) error {
	c := &grpcClient{stream: stream}
	g.hub.AddClient(c)
	defer g.hub.RemoveClient(c)

	ctx := stream.Context()
	for {
		in, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if in == nil {
			continue
		}
		if err := g.hub.Dispatch(ctx, c.Send, *in); err != nil {
			log.Printf("grpcgateway: dispatch %s: %v", in.Kind, err)
		}
	}
}

// Serve starts a gRPC server on addr using the JSON codec, the same
// unix-socket/named-pipe addressing scheme as the teacher's
// startGRPCServer + listenGRPC.
func Serve(addr string, hub *transport.Hub) error {
	lis, err := listen(addr)
	if err != nil {
		return err
	}

	server := grpc.NewServer(
		grpc.Creds(insecure.NewCredentials()),
		grpc.ForceServerCodec(jsonCodec{}),
	)
	registerControlServer(server, New(hub))
	return server.Serve(lis)
}

// DefaultAddr returns the platform-appropriate default control socket,
// matching the teacher's unix:///tmp/aiwisper-grpc.sock /
// npipe:\\.\pipe\aiwisper-grpc split.
func DefaultAddr() string {
	if runtime.GOOS == "windows" {
		return `npipe:\\.\pipe\mtste-grpc`
	}
	return "unix:///tmp/mtste-grpc.sock"
}

func listen(addr string) (net.Listener, error) {
	switch {
	case strings.HasPrefix(addr, "unix:"):
		path := strings.TrimPrefix(addr, "unix:")
		if err := removeIfExists(path); err != nil {
			return nil, err
		}
		return net.Listen("unix", path)
	case strings.HasPrefix(addr, "npipe:"):
		return listenPipe(strings.TrimPrefix(addr, "npipe:"))
	default:
		return net.Listen("tcp", addr)
	}
}

func removeIfExists(path string) error {
	if path == "" {
		return status.Error(codes.InvalidArgument, "empty socket path")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
