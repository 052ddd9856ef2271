package retention

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/mailcore/internal/errs"
	"github.com/matheus3301/mailcore/internal/jobs"
	"github.com/matheus3301/mailcore/internal/message"
)

// Remote is the mail server side of the account.
type Remote interface {
	Delete(ctx context.Context, folder string, uid uint32, mid string) error
	MarkSeen(ctx context.Context, folder string, uid uint32) error
	Empty(ctx context.Context, flags uint32) error
}

// Detached is the Remote of an account without a server connection. Every
// operation succeeds locally, so server copies are simply forgotten.
type Detached struct {
	Logger *zap.Logger
}

func (d Detached) Delete(_ context.Context, folder string, uid uint32, mid string) error {
	d.Logger.Debug("no server attached, skipping delete",
		zap.String("folder", folder), zap.Uint32("uid", uid), zap.String("mid", mid))
	return nil
}

func (d Detached) MarkSeen(_ context.Context, folder string, uid uint32) error {
	d.Logger.Debug("no server attached, skipping mark-seen", zap.String("folder", folder), zap.Uint32("uid", uid))
	return nil
}

func (d Detached) Empty(_ context.Context, flags uint32) error {
	d.Logger.Debug("no server attached, skipping empty", zap.Uint32("flags", flags))
	return nil
}

// Register binds the housekeeping and server jobs to r.
func (p *Pipeline) Register(r *jobs.Runner, remote Remote) {
	r.Register(jobs.Housekeeping, jobs.HandlerFunc(func(ctx context.Context, _ jobs.Job) error {
		_, err := p.Housekeeping(ctx)
		return err
	}))
	r.Register(jobs.DeleteMsgOnImap, jobs.HandlerFunc(func(ctx context.Context, j jobs.Job) error {
		return p.deleteOnServer(ctx, remote, message.MsgID(j.ForeignID))
	}))
	r.Register(jobs.MarkseenMsgOnImap, jobs.HandlerFunc(func(ctx context.Context, j jobs.Job) error {
		return p.markSeenOnServer(ctx, remote, message.MsgID(j.ForeignID))
	}))
	r.Register(jobs.EmptyServer, jobs.HandlerFunc(func(ctx context.Context, j jobs.Job) error {
		return remote.Empty(ctx, j.ForeignID)
	}))
}

// deleteOnServer removes the server copy of id. When other rows still
// reference the same server message, id is only unlinked; the copy goes
// away with the last of them.
func (p *Pipeline) deleteOnServer(ctx context.Context, remote Remote, id message.MsgID) error {
	msg, err := p.loadForRemote(ctx, id)
	if err != nil || msg == nil {
		return err
	}
	log := p.logger.With(zap.Stringer("msg_id", id), zap.String("mid", msg.RFC724Mid))

	if msg.RFC724Mid != "" {
		linked, err := p.db.RFC724MidCount(ctx, msg.RFC724Mid)
		if err != nil {
			return err
		}
		if linked > 1 {
			log.Info("server message still referenced, unlinking only", zap.Int("references", linked))
			return p.db.UnlinkMessage(ctx, id)
		}
	}

	if msg.ServerUID != 0 {
		if err := remote.Delete(ctx, msg.ServerFolder, msg.ServerUID, msg.RFC724Mid); err != nil {
			return fmt.Errorf("delete %s on server: %w", id, err)
		}
		p.metrics.Deletion("remote", 1)
		log.Info("message deleted on server", zap.String("folder", msg.ServerFolder), zap.Uint32("uid", msg.ServerUID))
	}
	return p.db.UnlinkMessage(ctx, id)
}

func (p *Pipeline) markSeenOnServer(ctx context.Context, remote Remote, id message.MsgID) error {
	msg, err := p.loadForRemote(ctx, id)
	if err != nil || msg == nil || msg.ServerUID == 0 {
		return err
	}
	if err := remote.MarkSeen(ctx, msg.ServerFolder, msg.ServerUID); err != nil {
		return fmt.Errorf("mark %s seen on server: %w", id, err)
	}
	return nil
}

// loadForRemote returns nil without error for messages that are gone.
func (p *Pipeline) loadForRemote(ctx context.Context, id message.MsgID) (*message.Message, error) {
	if id.IsSpecial() {
		return nil, nil
	}
	msg, err := p.db.LoadMessage(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	return msg, err
}
