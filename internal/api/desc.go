package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "mailcore.v1.MessageService"

// Method names.
const (
	MethodStatus       = "Status"
	MethodMarkSeen     = "MarkSeen"
	MethodStar         = "Star"
	MethodDelete       = "Delete"
	MethodInfo         = "Info"
	MethodSummary      = "Summary"
	MethodReceipt      = "Receipt"
	MethodHousekeeping = "Housekeeping"
	MethodEmptyServer  = "EmptyServer"
	MethodWatchEvents  = "WatchEvents"
)

type unaryFunc func(s *MessageService, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

// messageServer is the method set RegisterService checks for.
type messageServer interface {
	Status(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	MarkSeen(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Star(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Info(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Summary(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Receipt(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Housekeeping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	EmptyServer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	WatchEvents(in *structpb.Struct, stream grpc.ServerStream) error
}

// ServiceDesc describes MessageService. Requests and responses are
// google.protobuf.Struct values.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*messageServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodStatus, (*MessageService).Status),
		unary(MethodMarkSeen, (*MessageService).MarkSeen),
		unary(MethodStar, (*MessageService).Star),
		unary(MethodDelete, (*MessageService).Delete),
		unary(MethodInfo, (*MessageService).Info),
		unary(MethodSummary, (*MessageService).Summary),
		unary(MethodReceipt, (*MessageService).Receipt),
		unary(MethodHousekeeping, (*MessageService).Housekeeping),
		unary(MethodEmptyServer, (*MessageService).EmptyServer),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    MethodWatchEvents,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(structpb.Struct)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return srv.(*MessageService).WatchEvents(in, stream)
		},
	}},
	Metadata: "mailcore/v1/message.proto",
}

// Register adds the service to srv.
func Register(srv grpc.ServiceRegistrar, svc *MessageService) {
	srv.RegisterService(&ServiceDesc, svc)
}

func unary(name string, call unaryFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*MessageService)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}
