package api

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/mailcore/internal/bus"
	"github.com/matheus3301/mailcore/internal/ingest"
	"github.com/matheus3301/mailcore/internal/message"
	"github.com/matheus3301/mailcore/internal/retention"
	"github.com/matheus3301/mailcore/internal/status"
	"github.com/matheus3301/mailcore/internal/stock"
	"github.com/matheus3301/mailcore/internal/store"
)

// MessageService exposes the message core to local clients.
type MessageService struct {
	account   string
	startedAt time.Time
	db        *store.DB
	bus       *bus.Bus
	machine   *status.Machine
	info      *status.Info
	pipeline  *retention.Pipeline
	router    *ingest.Router
	stock     stock.Translator
}

// NewMessageService creates the service.
func NewMessageService(
	account string,
	db *store.DB,
	b *bus.Bus,
	machine *status.Machine,
	info *status.Info,
	pipeline *retention.Pipeline,
	router *ingest.Router,
	tr stock.Translator,
) *MessageService {
	return &MessageService{
		account:   account,
		startedAt: time.Now(),
		db:        db,
		bus:       b,
		machine:   machine,
		info:      info,
		pipeline:  pipeline,
		router:    router,
		stock:     tr,
	}
}

// Status reports counters of the account. With "older_than_seconds" set it
// also estimates how many messages a retention run would remove.
func (s *MessageService) Status(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	total, err := s.db.RealMessageCount(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	deaddrop, err := s.db.DeaddropMessageCount(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	fields := map[string]any{
		"account":        s.account,
		"uptime_ms":      time.Since(s.startedAt).Milliseconds(),
		"messages":       total,
		"deaddrop":       deaddrop,
		"dropped_events": s.bus.Dropped(),
	}
	if _, ok := in.GetFields()["older_than_seconds"]; ok {
		secs, err := u32Arg(in, "older_than_seconds")
		if err != nil {
			return nil, err
		}
		n, err := s.db.EstimateDeletionCount(ctx, boolArg(in, "from_server"), int64(secs), 0)
		if err != nil {
			return nil, toStatus(err)
		}
		fields["deletable"] = n
	}
	return reply(fields)
}

func (s *MessageService) MarkSeen(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ids, err := idsArg(in, "ids")
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"ok": s.machine.MarkSeen(ctx, ids)})
}

func (s *MessageService) Star(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ids, err := idsArg(in, "ids")
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"ok": s.machine.Star(ctx, ids, boolArg(in, "star"))})
}

func (s *MessageService) Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ids, err := idsArg(in, "ids")
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"ok": s.pipeline.DeleteMsgs(ctx, ids)})
}

func (s *MessageService) Info(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := u32Arg(in, "id")
	if err != nil {
		return nil, err
	}
	text, err := s.info.MsgInfo(ctx, message.MsgID(id))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"text": text})
}

// Summary renders the chat-list label of a message.
func (s *MessageService) Summary(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := u32Arg(in, "id")
	if err != nil {
		return nil, err
	}
	approx, err := optU32Arg(in, "approx_chars", message.SummaryCharacters)
	if err != nil {
		return nil, err
	}

	msg, err := s.db.LoadMessage(ctx, message.MsgID(id))
	if err != nil {
		return nil, toStatus(err)
	}
	chat := message.ChatInfo{ID: msg.ChatID}
	if c, err := s.db.GetChat(ctx, msg.ChatID); err != nil {
		return nil, toStatus(err)
	} else if c != nil {
		chat = *c
	}
	contact, err := s.db.GetContact(ctx, msg.FromID)
	if err != nil {
		return nil, toStatus(err)
	}

	lot := message.FillLot(ctx, msg, chat, contact, s.stock)
	if int(approx) != message.SummaryCharacters {
		lot.Text2 = message.SummaryText(ctx, msg.Viewtype, msg.Text, msg.Params, int(approx), s.stock)
	}
	return reply(map[string]any{
		"text1":         lot.Text1,
		"text1_meaning": int(lot.Text1Meaning),
		"text2":         lot.Text2,
		"timestamp":     lot.Timestamp,
		"state":         lot.State.String(),
	})
}

// Receipt injects a read receipt as if it arrived from the transport.
func (s *MessageService) Receipt(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	from, err := u32Arg(in, "from")
	if err != nil {
		return nil, err
	}
	sent, err := optU32Arg(in, "sent", uint32(time.Now().Unix()))
	if err != nil {
		return nil, err
	}
	sig := ingest.ReceiptSignal{
		From:          message.ContactID(from),
		RFC724Mid:     stringArg(in, "mid"),
		SentTimestamp: int64(sent),
	}
	return reply(map[string]any{"fired": s.router.Receipt(ctx, sig)})
}

func (s *MessageService) Housekeeping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	sweep, err := s.pipeline.Housekeeping(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{
		"messages":  sweep.Messages,
		"receipts":  sweep.Receipts,
		"locations": sweep.Locations,
	})
}

func (s *MessageService) EmptyServer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	flags, err := u32Arg(in, "flags")
	if err != nil {
		return nil, err
	}
	if flags&^(retention.EmptyMvbox|retention.EmptyInbox) != 0 || flags == 0 {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "unknown flags %#x", flags)
	}
	if err := s.pipeline.EmptyServer(ctx, flags); err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"ok": true})
}

// WatchEvents streams bus events whose kind starts with "prefix"
// (default "msg") until the client goes away.
func (s *MessageService) WatchEvents(in *structpb.Struct, stream grpc.ServerStream) error {
	prefix := stringArg(in, "prefix")
	if prefix == "" {
		prefix = "msg"
	}
	if strings.HasPrefix(prefix, "transport.") || strings.HasPrefix("transport.", prefix) {
		return grpcstatus.Error(codes.InvalidArgument, "transport signals are internal")
	}
	ch, unsub := s.bus.Subscribe(prefix, 64)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			out, err := eventToStruct(evt)
			if err != nil {
				return grpcstatus.Errorf(codes.Internal, "encode event: %v", err)
			}
			if err := stream.SendMsg(out); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}
