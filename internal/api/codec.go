package api

import (
	"math"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/mailcore/internal/bus"
	"github.com/matheus3301/mailcore/internal/errs"
	"github.com/matheus3301/mailcore/internal/message"
)

// toStatus maps error kinds to gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch errs.Code(err) {
	case errs.CodeInvalidIdentity:
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	case errs.CodeNotFound:
		return grpcstatus.Error(codes.NotFound, err.Error())
	default:
		return grpcstatus.Error(codes.Internal, err.Error())
	}
}

func reply(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return s, nil
}

func toU32(v *structpb.Value) (uint32, bool) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	f := n.NumberValue
	if f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		return 0, false
	}
	return uint32(f), true
}

func u32Arg(in *structpb.Struct, key string) (uint32, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return 0, grpcstatus.Errorf(codes.InvalidArgument, "missing %q", key)
	}
	n, ok := toU32(v)
	if !ok {
		return 0, grpcstatus.Errorf(codes.InvalidArgument, "%q must be an unsigned integer", key)
	}
	return n, nil
}

func optU32Arg(in *structpb.Struct, key string, def uint32) (uint32, error) {
	if _, ok := in.GetFields()[key]; !ok {
		return def, nil
	}
	return u32Arg(in, key)
}

func idsArg(in *structpb.Struct, key string) ([]message.MsgID, error) {
	list := in.GetFields()[key].GetListValue()
	if list == nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "%q must be a list of message ids", key)
	}
	ids := make([]message.MsgID, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		n, ok := toU32(v)
		if !ok {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "%q contains an invalid id", key)
		}
		ids = append(ids, message.MsgID(n))
	}
	return ids, nil
}

func stringArg(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func boolArg(in *structpb.Struct, key string) bool {
	return in.GetFields()[key].GetBoolValue()
}

func idList(ids []message.MsgID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}

func eventToStruct(evt bus.Event) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":    evt.ID,
		"kind":  evt.Kind,
		"ts_ms": evt.Timestamp.UnixMilli(),
	}
	if ref, ok := evt.Payload.(bus.MsgRef); ok {
		fields["chat_id"] = uint32(ref.ChatID)
		fields["msg_id"] = uint32(ref.MsgID)
	}
	return structpb.NewStruct(fields)
}
