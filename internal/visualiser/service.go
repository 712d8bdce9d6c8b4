package visualiser

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/spraypaint/internal/events"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "spraypaint.visualiser.v1.EventStream"

// SubscribeMethod is the full method path of the event stream.
const SubscribeMethod = "/" + ServiceName + "/Subscribe"

// EventStreamServer is the server side of the event stream service.
//
// The request is a Struct with optional fields:
//
//	kinds   list of event kind names ("spawn", "rig_create", ...); empty means all
//	client  free-form client label used in logs
//
// Every response is one event encoded by EventToStruct.
type EventStreamServer interface {
	Subscribe(req *structpb.Struct, stream grpc.ServerStream) error
}

// ServiceDesc describes the event stream service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EventStreamServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "spraypaint/visualiser.proto",
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(EventStreamServer).Subscribe(req, stream)
}

// RegisterService registers srv on a gRPC server.
func RegisterService(g grpc.ServiceRegistrar, srv EventStreamServer) {
	g.RegisterService(&ServiceDesc, srv)
}

// ClientStream is a render client's view of the event stream.
type ClientStream struct {
	stream grpc.ClientStream
}

// Subscribe opens an event stream on cc. With no kinds every event is
// delivered.
func Subscribe(ctx context.Context, cc grpc.ClientConnInterface, client string, kinds ...events.Kind) (*ClientStream, error) {
	stream, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], SubscribeMethod)
	if err != nil {
		return nil, err
	}

	names := make([]interface{}, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	req, err := structpb.NewStruct(map[string]interface{}{
		"client": client,
		"kinds":  names,
	})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &ClientStream{stream: stream}, nil
}

// Recv blocks for the next event.
func (c *ClientStream) Recv() (*structpb.Struct, error) {
	msg := new(structpb.Struct)
	if err := c.stream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
