package mdn

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheus3301/mailcore/internal/message"
	"github.com/matheus3301/mailcore/internal/metrics"
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
	engine *Engine
	peers  []message.ContactID
}

// newFixture creates n peers.
func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	db := testDB(t)
	f := &fixture{db: db, engine: NewEngine(db, zap.NewNop(), metrics.New())}
	for i := 0; i < n; i++ {
		id, err := db.CreateContact(context.Background(), message.ContactInfo{Addr: "peer" + string(rune('a'+i)) + "@example.org"})
		require.NoError(t, err)
		f.peers = append(f.peers, id)
	}
	return f
}

func (f *fixture) chat(t *testing.T, typ message.Chattype, members ...message.ContactID) message.ChatID {
	t.Helper()
	ctx := context.Background()
	id, err := f.db.CreateChat(ctx, message.ChatInfo{Type: typ})
	require.NoError(t, err)
	require.NoError(t, f.db.AddChatMember(ctx, id, message.ContactIDSelf))
	for _, m := range members {
		require.NoError(t, f.db.AddChatMember(ctx, id, m))
	}
	return id
}

func (f *fixture) outgoing(t *testing.T, chat message.ChatID, mid string, state message.State) message.MsgID {
	t.Helper()
	id, err := f.db.SaveMessage(context.Background(), &message.Message{
		ChatID:    chat,
		FromID:    message.ContactIDSelf,
		Viewtype:  message.ViewtypeText,
		State:     state,
		RFC724Mid: mid,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) state(t *testing.T, id message.MsgID) message.State {
	t.Helper()
	m, err := f.db.LoadMessage(context.Background(), id)
	require.NoError(t, err)
	return m.State
}

func (f *fixture) evidence(t *testing.T, id message.MsgID) int {
	t.Helper()
	n, err := f.db.CountEvidence(context.Background(), id)
	require.NoError(t, err)
	return n
}

func TestGroupQuorum(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	chat := f.chat(t, message.ChattypeGroup, f.peers...)
	id := f.outgoing(t, chat, "Mr.group@example.org", message.OutDelivered)
	a, b, c := f.peers[0], f.peers[1], f.peers[2]

	// 4 members including self need 2 receipts.
	_, _, fired := f.engine.FromExt(ctx, a, "Mr.group@example.org", 100)
	assert.False(t, fired)
	assert.Equal(t, message.OutDelivered, f.state(t, id))

	_, _, fired = f.engine.FromExt(ctx, a, "Mr.group@example.org", 101)
	assert.False(t, fired, "duplicate receipt must not count")
	assert.Equal(t, 1, f.evidence(t, id))

	gotChat, gotMsg, fired := f.engine.FromExt(ctx, b, "Mr.group@example.org", 102)
	require.True(t, fired)
	assert.Equal(t, chat, gotChat)
	assert.Equal(t, id, gotMsg)
	assert.Equal(t, message.OutMdnRcvd, f.state(t, id))

	_, _, fired = f.engine.FromExt(ctx, c, "Mr.group@example.org", 103)
	assert.False(t, fired, "quorum fires once")
	_, _, fired = f.engine.FromExt(ctx, b, "Mr.group@example.org", 104)
	assert.False(t, fired)
	assert.Equal(t, 3, f.evidence(t, id), "late receipts are still recorded")
}

func TestGroupQuorumRoundsDown(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	chat := f.chat(t, message.ChattypeVerifiedGroup, f.peers...)
	id := f.outgoing(t, chat, "Mr.five@example.org", message.OutPending)

	// 5 members need (5+1)/2 = 3.
	for i, peer := range f.peers[:2] {
		_, _, fired := f.engine.FromExt(ctx, peer, "Mr.five@example.org", int64(i))
		assert.False(t, fired)
	}
	_, _, fired := f.engine.FromExt(ctx, f.peers[2], "Mr.five@example.org", 3)
	assert.True(t, fired)
	assert.Equal(t, message.OutMdnRcvd, f.state(t, id))
}

func TestSingleChatFiresImmediately(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	chat := f.chat(t, message.ChattypeSingle, f.peers[0])
	id := f.outgoing(t, chat, "Mr.single@example.org", message.OutDelivered)

	gotChat, gotMsg, fired := f.engine.FromExt(ctx, f.peers[0], "Mr.single@example.org", 5)
	require.True(t, fired)
	assert.Equal(t, chat, gotChat)
	assert.Equal(t, id, gotMsg)
	assert.Equal(t, message.OutMdnRcvd, f.state(t, id))

	_, _, fired = f.engine.FromExt(ctx, f.peers[0], "Mr.single@example.org", 5)
	assert.False(t, fired, "redelivery must not fire again")
	assert.Equal(t, 1, f.evidence(t, id))
}

func TestIgnoredReceipts(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	chat := f.chat(t, message.ChattypeSingle, f.peers[0])
	id := f.outgoing(t, chat, "Mr.x@example.org", message.OutDelivered)

	for _, tc := range []struct {
		name string
		from message.ContactID
		mid  string
	}{
		{"empty mid", f.peers[0], ""},
		{"self", message.ContactIDSelf, "Mr.x@example.org"},
		{"device", message.ContactIDDevice, "Mr.x@example.org"},
		{"unknown mid", f.peers[0], "Mr.unknown@example.org"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			chatID, msgID, fired := f.engine.FromExt(ctx, tc.from, tc.mid, 1)
			assert.False(t, fired)
			assert.Zero(t, chatID)
			assert.Zero(t, msgID)
		})
	}
	assert.Equal(t, message.OutDelivered, f.state(t, id))
	assert.Zero(t, f.evidence(t, id))
}

func TestResolvesOldestOwnMessage(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	chat := f.chat(t, message.ChattypeSingle, f.peers[0])

	// An incoming copy with the same mid must be ignored.
	_, err := f.db.SaveMessage(ctx, &message.Message{
		ChatID: chat, FromID: f.peers[0], State: message.InFresh, RFC724Mid: "Mr.dup@example.org",
	})
	require.NoError(t, err)
	first := f.outgoing(t, chat, "Mr.dup@example.org", message.OutDelivered)
	second := f.outgoing(t, chat, "Mr.dup@example.org", message.OutDelivered)

	_, got, fired := f.engine.FromExt(ctx, f.peers[0], "Mr.dup@example.org", 1)
	require.True(t, fired)
	assert.Equal(t, first, got)
	assert.Equal(t, message.OutDelivered, f.state(t, second))
}

func TestTerminalStateStillRecordsEvidence(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	chat := f.chat(t, message.ChattypeSingle, f.peers[0])
	id := f.outgoing(t, chat, "Mr.failed@example.org", message.OutFailed)

	_, _, fired := f.engine.FromExt(ctx, f.peers[0], "Mr.failed@example.org", 9)
	assert.False(t, fired)
	assert.Equal(t, message.OutFailed, f.state(t, id))
	assert.Equal(t, 1, f.evidence(t, id))
}

func TestStateWriteFailureKeepsEvidence(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	chat := f.chat(t, message.ChattypeSingle, f.peers[0])
	id := f.outgoing(t, chat, "Mr.boom@example.org", message.OutDelivered)

	_, err := f.db.Exec(`CREATE TRIGGER fail_state BEFORE UPDATE OF state ON msgs
		BEGIN SELECT RAISE(ABORT, 'boom'); END`)
	require.NoError(t, err)

	_, _, fired := f.engine.FromExt(ctx, f.peers[0], "Mr.boom@example.org", 1)
	assert.False(t, fired, "failed write must not signal")
	assert.Equal(t, message.OutDelivered, f.state(t, id))
	assert.Equal(t, 1, f.evidence(t, id))

	_, err = f.db.Exec(`DROP TRIGGER fail_state`)
	require.NoError(t, err)

	_, _, fired = f.engine.FromExt(ctx, f.peers[0], "Mr.boom@example.org", 1)
	assert.True(t, fired, "redelivery re-evaluates the quorum")
	assert.Equal(t, message.OutMdnRcvd, f.state(t, id))
}

func TestReadReceipts(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	chat := f.chat(t, message.ChattypeGroup, f.peers...)
	id := f.outgoing(t, chat, "Mr.list@example.org", message.OutDelivered)

	f.engine.FromExt(ctx, f.peers[2], "Mr.list@example.org", 300)
	f.engine.FromExt(ctx, f.peers[0], "Mr.list@example.org", 100)

	got, err := f.engine.ReadReceipts(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, f.peers[0], got[0].ContactID)
	assert.Equal(t, int64(100), got[0].TimestampSent)
	assert.Equal(t, f.peers[2], got[1].ContactID)
}
