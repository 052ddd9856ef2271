package api

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/mailcore/internal/message"
)

// Client calls MessageService over a gRPC connection.
type Client struct {
	cc     grpc.ClientConnInterface
	closer io.Closer
}

// Dial connects to the daemon listening on socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient("unix://"+socketPath, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", socketPath, err)
	}
	return &Client{cc: conn, closer: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close closes a connection opened by Dial.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// Call invokes a unary method with the given fields.
func (c *Client) Call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) callOK(ctx context.Context, method string, fields map[string]any) (bool, error) {
	out, err := c.Call(ctx, method, fields)
	if err != nil {
		return false, err
	}
	return out.GetFields()["ok"].GetBoolValue(), nil
}

func (c *Client) MarkSeen(ctx context.Context, ids []message.MsgID) (bool, error) {
	return c.callOK(ctx, MethodMarkSeen, map[string]any{"ids": idList(ids)})
}

func (c *Client) Star(ctx context.Context, ids []message.MsgID, star bool) (bool, error) {
	return c.callOK(ctx, MethodStar, map[string]any{"ids": idList(ids), "star": star})
}

func (c *Client) Delete(ctx context.Context, ids []message.MsgID) (bool, error) {
	return c.callOK(ctx, MethodDelete, map[string]any{"ids": idList(ids)})
}

func (c *Client) Info(ctx context.Context, id message.MsgID) (string, error) {
	out, err := c.Call(ctx, MethodInfo, map[string]any{"id": uint32(id)})
	if err != nil {
		return "", err
	}
	return out.GetFields()["text"].GetStringValue(), nil
}

// Receipt reports whether the receipt marked a message as read.
func (c *Client) Receipt(ctx context.Context, from message.ContactID, mid string) (bool, error) {
	out, err := c.Call(ctx, MethodReceipt, map[string]any{"from": uint32(from), "mid": mid})
	if err != nil {
		return false, err
	}
	return out.GetFields()["fired"].GetBoolValue(), nil
}

// WatchEvents streams events with the given kind prefix until ctx ends.
// fn is called for every event; a non-nil return stops the stream.
func (c *Client) WatchEvents(ctx context.Context, prefix string, fn func(*structpb.Struct) error) error {
	desc := &ServiceDesc.Streams[0]
	stream, err := c.cc.NewStream(ctx, desc, fullMethod(MethodWatchEvents))
	if err != nil {
		return err
	}
	in, err := structpb.NewStruct(map[string]any{"prefix": prefix})
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		evt := new(structpb.Struct)
		if err := stream.RecvMsg(evt); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
}
