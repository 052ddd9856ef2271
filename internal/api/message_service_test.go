package api

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/mailcore/internal/bus"
	"github.com/matheus3301/mailcore/internal/ingest"
	"github.com/matheus3301/mailcore/internal/jobs"
	"github.com/matheus3301/mailcore/internal/mdn"
	"github.com/matheus3301/mailcore/internal/message"
	"github.com/matheus3301/mailcore/internal/retention"
	"github.com/matheus3301/mailcore/internal/status"
	"github.com/matheus3301/mailcore/internal/stock"
	"github.com/matheus3301/mailcore/internal/store"
)

type fixture struct {
	db     *store.DB
	client *Client
	chat   message.ChatID
	peer   message.ContactID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zap.NewNop()
	b := bus.New()
	queue := jobs.NewQueue(db, log)
	machine := status.NewMachine(db, b, queue, log, nil)
	pipeline := retention.NewPipeline(db, queue, b, log, nil, retention.Config{})
	router := ingest.NewRouter(db, b, mdn.NewEngine(db, log, nil), machine, log)
	svc := NewMessageService("test", db, b, machine, status.NewInfo(db), pipeline, router, stock.NewTable())

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	peer, err := db.CreateContact(ctx, message.ContactInfo{Name: "Alice Liddell", Addr: "alice@example.org"})
	require.NoError(t, err)
	chat, err := db.CreateChat(ctx, message.ChatInfo{Type: message.ChattypeGroup, Name: "friends"})
	require.NoError(t, err)
	require.NoError(t, db.AddChatMember(ctx, chat, message.ContactIDSelf))
	require.NoError(t, db.AddChatMember(ctx, chat, peer))

	return &fixture{db: db, client: NewClient(conn), chat: chat, peer: peer}
}

func (f *fixture) save(t *testing.T, m *message.Message) message.MsgID {
	t.Helper()
	m.ChatID = f.chat
	id, err := f.db.SaveMessage(context.Background(), m)
	require.NoError(t, err)
	return id
}

func code(err error) codes.Code {
	return grpcstatus.Code(err)
}

func TestMarkSeenAndStar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.save(t, &message.Message{FromID: f.peer, State: message.InFresh, Text: "hi"})

	ok, err := f.client.MarkSeen(ctx, []message.MsgID{id})
	require.NoError(t, err)
	assert.True(t, ok)
	m, err := f.db.LoadMessage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, message.InSeen, m.State)

	ok, err = f.client.Star(ctx, []message.MsgID{id}, true)
	require.NoError(t, err)
	assert.True(t, ok)
	m, _ = f.db.LoadMessage(ctx, id)
	assert.True(t, m.Starred)

	ok, err = f.client.MarkSeen(ctx, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidArguments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.client.Call(ctx, MethodMarkSeen, map[string]any{"ids": "12"})
	assert.Equal(t, codes.InvalidArgument, code(err))
	_, err = f.client.Call(ctx, MethodInfo, map[string]any{"id": -1})
	assert.Equal(t, codes.InvalidArgument, code(err))
	_, err = f.client.Call(ctx, MethodInfo, map[string]any{"id": 1.5})
	assert.Equal(t, codes.InvalidArgument, code(err))
	_, err = f.client.Info(ctx, message.MsgIDDayMarker)
	assert.Equal(t, codes.InvalidArgument, code(err), "special ids are rejected")
	_, err = f.client.Info(ctx, 4242)
	assert.Equal(t, codes.NotFound, code(err))
	_, err = f.client.Call(ctx, MethodEmptyServer, map[string]any{"flags": 8})
	assert.Equal(t, codes.InvalidArgument, code(err))
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := message.New(message.ViewtypeImage)
	m.FromID = f.peer
	m.State = message.InFresh
	m.Text = "look   at\nthis"
	m.TimestampSort = 1234
	id := f.save(t, m)

	out, err := f.client.Call(ctx, MethodSummary, map[string]any{"id": uint32(id)})
	require.NoError(t, err)
	fields := out.GetFields()
	assert.Equal(t, "Alice", fields["text1"].GetStringValue())
	assert.Equal(t, float64(message.MeaningText1Username), fields["text1_meaning"].GetNumberValue())
	assert.Equal(t, "Image – look at this", fields["text2"].GetStringValue())
	assert.Equal(t, float64(1234), fields["timestamp"].GetNumberValue())
	assert.Equal(t, "Fresh", fields["state"].GetStringValue())
}

func TestReceiptInfoAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.save(t, &message.Message{
		FromID: message.ContactIDSelf, State: message.OutDelivered, RFC724Mid: "Mr.api@example.org",
	})

	// Self plus one peer: a single receipt reaches the quorum.
	fired, err := f.client.Receipt(ctx, f.peer, "Mr.api@example.org")
	require.NoError(t, err)
	assert.True(t, fired)

	info, err := f.client.Info(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, info, "State: Read")
	assert.Contains(t, info, "Alice Liddell (alice@example.org)")

	ok, err := f.client.Delete(ctx, []message.MsgID{id})
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := f.client.Call(ctx, MethodStatus, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, float64(0), out.GetFields()["messages"].GetNumberValue())
	assert.Equal(t, "test", out.GetFields()["account"].GetStringValue())

	out, err = f.client.Call(ctx, MethodHousekeeping, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), out.GetFields()["messages"].GetNumberValue())
}

func TestWatchEvents(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id := f.save(t, &message.Message{FromID: f.peer, State: message.InFresh})

	got := make(chan *structpb.Struct, 1)
	stop := errors.New("stop")
	done := make(chan error, 1)
	go func() {
		done <- f.client.WatchEvents(ctx, "msgs.", func(evt *structpb.Struct) error {
			got <- evt
			return stop
		})
	}()

	// The subscription is set up asynchronously; retry until an event arrives.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case evt := <-got:
			assert.Equal(t, bus.KindMsgsChanged, evt.GetFields()["kind"].GetStringValue())
			assert.ErrorIs(t, <-done, stop)
			return
		case <-ticker.C:
			_, _ = f.client.Star(ctx, []message.MsgID{id}, true)
		case <-ctx.Done():
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestWatchEventsRejectsTransport(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := f.client.WatchEvents(ctx, "transport.", func(*structpb.Struct) error { return nil })
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, code(err))
	assert.True(t, strings.Contains(err.Error(), "internal"))
}
