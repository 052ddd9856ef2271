package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheus3301/mailcore/internal/bus"
	"github.com/matheus3301/mailcore/internal/jobs"
	"github.com/matheus3301/mailcore/internal/mdn"
	"github.com/matheus3301/mailcore/internal/message"
	"github.com/matheus3301/mailcore/internal/status"
	"github.com/matheus3301/mailcore/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fixture struct {
	db     *store.DB
	bus    *bus.Bus
	router *Router
	peer   message.ContactID
	chat   message.ChatID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testDB(t)
	b := bus.New()
	machine := status.NewMachine(db, b, jobs.NewQueue(db, zap.NewNop()), zap.NewNop(), nil)
	r := NewRouter(db, b, mdn.NewEngine(db, zap.NewNop(), nil), machine, zap.NewNop())

	peer, err := db.CreateContact(ctx, message.ContactInfo{Addr: "bob@example.org"})
	require.NoError(t, err)
	chat, err := db.CreateChat(ctx, message.ChatInfo{Type: message.ChattypeSingle})
	require.NoError(t, err)
	require.NoError(t, db.AddChatMember(ctx, chat, message.ContactIDSelf))
	require.NoError(t, db.AddChatMember(ctx, chat, peer))
	return &fixture{db: db, bus: b, router: r, peer: peer, chat: chat}
}

func (f *fixture) outgoing(t *testing.T, mid string, state message.State) message.MsgID {
	t.Helper()
	id, err := f.db.SaveMessage(context.Background(), &message.Message{
		ChatID: f.chat, FromID: message.ContactIDSelf, State: state, RFC724Mid: mid,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) load(t *testing.T, id message.MsgID) *message.Message {
	t.Helper()
	m, err := f.db.LoadMessage(context.Background(), id)
	require.NoError(t, err)
	return m
}

func waitFor(t *testing.T, ch <-chan bus.Event, kind string) bus.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Kind == kind {
				return evt
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s", kind)
		}
	}
}

func TestReceiptPublishesRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.outgoing(t, "Mr.a@example.org", message.OutDelivered)
	ch, unsub := f.bus.Subscribe("msg", 10)
	defer unsub()

	require.True(t, f.router.Receipt(ctx, ReceiptSignal{From: f.peer, RFC724Mid: "Mr.a@example.org", SentTimestamp: 10}))
	evt := waitFor(t, ch, bus.KindMsgRead)
	assert.Equal(t, bus.MsgRef{ChatID: f.chat, MsgID: id}, evt.Payload)
	waitFor(t, ch, bus.KindMsgsChanged)

	assert.False(t, f.router.Receipt(ctx, ReceiptSignal{From: f.peer, RFC724Mid: "Mr.a@example.org", SentTimestamp: 10}))
}

func TestRouterConsumesTransportSignals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent := f.outgoing(t, "Mr.s@example.org", message.OutPreparing)
	delivered := f.outgoing(t, "Mr.d@example.org", message.OutPending)
	failed := f.outgoing(t, "Mr.f@example.org", message.OutPending)
	read := f.outgoing(t, "Mr.r@example.org", message.OutDelivered)

	ch, unsub := f.bus.Subscribe("msg", 32)
	defer unsub()
	f.router.Start(ctx)
	defer f.router.Stop()

	f.bus.Emit(KindSent, SentSignal{MsgID: sent})
	evt := waitFor(t, ch, bus.KindMsgsChanged)
	assert.Equal(t, bus.MsgRef{ChatID: f.chat, MsgID: sent}, evt.Payload)

	f.bus.Emit(KindDelivered, AckSignal{MsgID: delivered})
	waitFor(t, ch, bus.KindMsgDelivered)

	f.bus.Emit(KindFailed, FailureSignal{MsgID: failed, Error: "mailbox full"})
	waitFor(t, ch, bus.KindMsgFailed)

	f.bus.Emit(KindUID, UIDSignal{RFC724Mid: "Mr.r@example.org", Folder: "Sent", UID: 44})
	f.bus.Emit("transport.unknown", nil)
	f.bus.Emit(KindReceipt, "not a receipt")
	f.bus.Emit(KindReceipt, ReceiptSignal{From: f.peer, RFC724Mid: "Mr.r@example.org", SentTimestamp: 1})
	waitFor(t, ch, bus.KindMsgRead)

	assert.Equal(t, message.OutPending, f.load(t, sent).State)
	assert.Equal(t, message.OutDelivered, f.load(t, delivered).State)
	m := f.load(t, failed)
	assert.Equal(t, message.OutFailed, m.State)
	assert.Equal(t, "mailbox full", m.Error())
	m = f.load(t, read)
	assert.Equal(t, message.OutMdnRcvd, m.State)
	assert.Equal(t, "Sent", m.ServerFolder)
	assert.Equal(t, uint32(44), m.ServerUID)
}
