// Package syncer pushes the local mutation queues to the remote catalog and
// pulls reference data back.
//
// A pass drains the queues in a fixed order: adds, then updates, then
// deletes, then the pull. Each confirmed entry is applied in its own local
// transaction which writes the canonical record and removes the queue entry
// together, so an interrupted pass leaves every entry either fully applied or
// still queued.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/attachment"
	"github.com/dmitrijs2005/productkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/dmitrijs2005/productkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/productkeeper/internal/client/store"
	"github.com/dmitrijs2005/productkeeper/internal/common"
	"github.com/dmitrijs2005/productkeeper/internal/logging"
)

type Options struct {
	// RetryRejected resends entries an earlier pass saw rejected.
	RetryRejected bool
}

type Reconciler struct {
	store        *store.Store
	gw           gateway.Gateway
	att          *attachment.Manager
	logger       logging.Logger
	pullProducts bool
	now          func() time.Time
}

// NewReconciler builds a reconciler. With pullProducts set, the pull phase
// also refreshes confirmed products that have nothing queued locally.
func NewReconciler(s *store.Store, gw gateway.Gateway, att *attachment.Manager, logger logging.Logger, pullProducts bool) *Reconciler {
	return &Reconciler{
		store:        s,
		gw:           gw,
		att:          att,
		logger:       logger.With("module", "reconciler"),
		pullProducts: pullProducts,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run performs one pass. The returned error is reserved for failures that
// stop the pass as a whole (a canceled context or an unreadable queue);
// per-entry outcomes are reported in the Result.
func (r *Reconciler) Run(ctx context.Context, opts Options) (Result, error) {
	res := Result{Passes: 1, StartedAt: r.now()}

	phases := []func(context.Context, Options, *Result) error{r.pushAdds, r.pushUpdates, r.pushDeletes}
	for _, phase := range phases {
		if err := phase(ctx, opts, &res); err != nil {
			res.FinishedAt = r.now()
			return res, err
		}
	}

	if res.Offline {
		res.PullErr = fmt.Errorf("pull skipped: %w", gateway.ErrConnectivity)
	} else {
		r.pull(ctx, &res)
	}

	res.FinishedAt = r.now()
	if err := r.store.Repos().Metadata.SetTime(ctx, metadata.KeyLastSyncAt, res.FinishedAt); err != nil {
		return res, err
	}

	r.logger.Info(ctx, "sync pass finished",
		"added", res.Added, "updated", res.Updated, "deleted", res.Deleted,
		"deferred", res.Deferred, "errors", len(res.Errors), "blocked", len(res.Blocked),
		"elapsed", res.Duration())
	return res, nil
}

// skip reports whether an entry should not be sent this pass.
func (r *Reconciler) skip(opts Options, res *Result, kind EntryKind, id models.Identifier, rejected bool, lastError string) bool {
	if rejected && !opts.RetryRejected {
		res.Blocked = append(res.Blocked, EntryError{Kind: kind, ID: id, Err: errors.New(lastError)})
		return true
	}
	if res.Offline {
		res.Deferred++
		return true
	}
	return false
}

// fail records a failed remote call. Rejections are flagged on the entry so
// later automatic passes leave it alone.
func (r *Reconciler) fail(ctx context.Context, res *Result, kind EntryKind, id models.Identifier, err error,
	mark func(ctx context.Context, repos *store.Repositories, reason string) error) {
	if gateway.IsRetryable(err) {
		r.logger.Warn(ctx, "remote unreachable, entry kept", "kind", string(kind), "id", id.String(), "error", err)
		res.Offline = true
		res.Deferred++
		return
	}

	res.Errors = append(res.Errors, EntryError{Kind: kind, ID: id, Err: err})
	if !errors.Is(err, gateway.ErrRejected) {
		r.logger.Error(ctx, "entry failed", "kind", string(kind), "id", id.String(), "error", err)
		return
	}

	r.logger.Warn(ctx, "entry rejected", "kind", string(kind), "id", id.String(), "error", err)
	markErr := r.store.Update(ctx, func(ctx context.Context, repos *store.Repositories) error {
		return mark(ctx, repos, err.Error())
	})
	if markErr != nil && !errors.Is(markErr, common.ErrNotFound) {
		r.logger.Error(ctx, "failed to flag rejected entry", "id", id.String(), "error", markErr)
	}
}

func (r *Reconciler) pushAdds(ctx context.Context, opts Options, res *Result) error {
	adds, err := r.store.Repos().Adds.List(ctx)
	if err != nil {
		return err
	}

	for _, add := range adds {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := models.LocalID(add.LocalID)
		if r.skip(opts, res, KindAdd, id, add.Rejected, add.LastError) {
			continue
		}

		sent, err := r.att.Pending(ctx, r.store.Repos().Attachments, id, models.EntityProduct)
		if err != nil {
			return err
		}

		remote, err := r.gw.Create(ctx, gateway.CreateRequest{
			LocalID: add.LocalID,
			Fields:  add.Fields,
			Actor:   add.Actor,
			Images:  attachment.Images(sent),
		})
		if err != nil {
			r.fail(ctx, res, KindAdd, id, err, func(ctx context.Context, repos *store.Repositories, reason string) error {
				return repos.Adds.MarkRejected(ctx, add.LocalID, reason)
			})
			continue
		}

		if err := r.store.Update(ctx, func(ctx context.Context, repos *store.Repositories) error {
			return r.confirmAdd(ctx, repos, add, sent, remote)
		}); err != nil {
			res.Errors = append(res.Errors, EntryError{Kind: KindAdd, ID: id, Err: err})
			continue
		}
		res.Added++
	}
	return nil
}

// confirmAdd applies a confirmed create. Edits staged while the request was
// in flight survive as a pending update of the new server id; a local
// discard in the meantime becomes a tombstone.
func (r *Reconciler) confirmAdd(ctx context.Context, repos *store.Repositories, sentAdd models.PendingAdd,
	sent []models.Attachment, remote *gateway.RemoteProduct) error {
	local := models.LocalID(sentAdd.LocalID)
	server := models.ServerID(remote.ServerID)

	if err := repos.Products.Upsert(ctx, remote.Canonical()); err != nil {
		return err
	}

	current, err := repos.Adds.Get(ctx, sentAdd.LocalID)
	if errors.Is(err, common.ErrNotFound) {
		return repos.Deletes.Put(ctx, &models.PendingDelete{
			ServerID:  remote.ServerID,
			Actor:     sentAdd.Actor,
			DeletedAt: r.now(),
		})
	}
	if err != nil {
		return err
	}

	late, err := r.lateAttachments(ctx, repos, local, sent)
	if err != nil {
		return err
	}
	if _, err := r.att.Rekey(ctx, repos.Attachments, local, server, models.EntityProduct); err != nil {
		return err
	}
	if err := r.att.Carry(ctx, repos.Attachments, server, models.EntityProduct, late); err != nil {
		return err
	}

	if current.Fields != sentAdd.Fields || !current.UpdatedAt.Equal(sentAdd.UpdatedAt) || len(late) > 0 {
		if err := repos.Updates.Put(ctx, &models.PendingUpdate{
			ServerID:     remote.ServerID,
			Fields:       current.Fields,
			Actor:        current.Actor,
			LastModified: current.LastModified,
			UpdatedAt:    current.UpdatedAt,
		}); err != nil {
			return err
		}
	}

	return repos.Adds.Delete(ctx, sentAdd.LocalID)
}

// lateAttachments returns the unsynced local attachments of owner that were
// not part of the request.
func (r *Reconciler) lateAttachments(ctx context.Context, repos *store.Repositories, owner models.Identifier,
	sent []models.Attachment) ([]models.Attachment, error) {
	pending, err := r.att.Pending(ctx, repos.Attachments, owner, models.EntityProduct)
	if err != nil {
		return nil, err
	}
	sentIDs := make(map[string]bool, len(sent))
	for _, a := range sent {
		sentIDs[a.ID] = true
	}
	var late []models.Attachment
	for _, a := range pending {
		if !sentIDs[a.ID] {
			late = append(late, a)
		}
	}
	return late, nil
}

func (r *Reconciler) pushUpdates(ctx context.Context, opts Options, res *Result) error {
	updates, err := r.store.Repos().Updates.List(ctx)
	if err != nil {
		return err
	}

	for _, upd := range updates {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := models.ServerID(upd.ServerID)
		if r.skip(opts, res, KindUpdate, id, upd.Rejected, upd.LastError) {
			continue
		}

		sent, err := r.att.Pending(ctx, r.store.Repos().Attachments, id, models.EntityProduct)
		if err != nil {
			return err
		}

		remote, err := r.gw.Update(ctx, upd.ServerID, gateway.UpdateRequest{
			Fields: upd.Fields,
			Actor:  upd.Actor,
			Images: attachment.Images(sent),
		})
		if err != nil {
			r.fail(ctx, res, KindUpdate, id, err, func(ctx context.Context, repos *store.Repositories, reason string) error {
				return repos.Updates.MarkRejected(ctx, upd.ServerID, reason)
			})
			continue
		}

		if err := r.store.Update(ctx, func(ctx context.Context, repos *store.Repositories) error {
			return r.confirmUpdate(ctx, repos, upd, sent, remote)
		}); err != nil {
			res.Errors = append(res.Errors, EntryError{Kind: KindUpdate, ID: id, Err: err})
			continue
		}
		res.Updated++
	}
	return nil
}

// confirmUpdate applies a confirmed update. A pending update restaged while
// the request was in flight stays queued for the next pass.
func (r *Reconciler) confirmUpdate(ctx context.Context, repos *store.Repositories, sentUpd models.PendingUpdate,
	sent []models.Attachment, remote *gateway.RemoteProduct) error {
	id := models.ServerID(sentUpd.ServerID)

	if err := repos.Products.Upsert(ctx, remote.Canonical()); err != nil {
		return err
	}

	late, err := r.lateAttachments(ctx, repos, id, sent)
	if err != nil {
		return err
	}
	if err := r.att.ReplaceAll(ctx, repos.Attachments, id, models.EntityProduct, remote.Images); err != nil {
		return err
	}
	if err := r.att.Carry(ctx, repos.Attachments, id, models.EntityProduct, late); err != nil {
		return err
	}

	current, err := repos.Updates.Get(ctx, sentUpd.ServerID)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if current.Fields != sentUpd.Fields || !current.UpdatedAt.Equal(sentUpd.UpdatedAt) || len(late) > 0 {
		return nil
	}
	return repos.Updates.Delete(ctx, sentUpd.ServerID)
}

func (r *Reconciler) pushDeletes(ctx context.Context, opts Options, res *Result) error {
	deletes, err := r.store.Repos().Deletes.List(ctx)
	if err != nil {
		return err
	}

	for _, del := range deletes {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := models.ServerID(del.ServerID)
		if r.skip(opts, res, KindDelete, id, del.Rejected, del.LastError) {
			continue
		}

		err := r.gw.Delete(ctx, del.ServerID, del.Actor)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			r.fail(ctx, res, KindDelete, id, err, func(ctx context.Context, repos *store.Repositories, reason string) error {
				return repos.Deletes.MarkRejected(ctx, del.ServerID, reason)
			})
			continue
		}
		if err != nil {
			r.logger.Debug(ctx, "product already gone remotely", "id", id.String())
		}

		if err := r.store.Update(ctx, func(ctx context.Context, repos *store.Repositories) error {
			if err := repos.Products.Delete(ctx, del.ServerID); err != nil {
				return err
			}
			if _, err := r.att.DeleteOwner(ctx, repos.Attachments, id, models.EntityProduct); err != nil {
				return err
			}
			if err := repos.Updates.Delete(ctx, del.ServerID); err != nil {
				return err
			}
			return repos.Deletes.Delete(ctx, del.ServerID)
		}); err != nil {
			res.Errors = append(res.Errors, EntryError{Kind: KindDelete, ID: id, Err: err})
			continue
		}
		res.Deleted++
	}
	return nil
}

// pull refreshes the category cache and, when enabled, the confirmed
// products. Its failures never fail the pass.
func (r *Reconciler) pull(ctx context.Context, res *Result) {
	cats, err := r.gw.ListCategories(ctx)
	if err != nil {
		r.pullFailed(ctx, res, err)
		return
	}

	var remote []gateway.RemoteProduct
	if r.pullProducts {
		if remote, err = r.gw.ListProducts(ctx); err != nil {
			r.pullFailed(ctx, res, err)
			return
		}
	}

	err = r.store.Update(ctx, func(ctx context.Context, repos *store.Repositories) error {
		if err := repos.Categories.ReplaceAll(ctx, cats); err != nil {
			return err
		}
		if r.pullProducts {
			if err := r.refreshProducts(ctx, repos, remote); err != nil {
				return err
			}
		}
		return repos.Metadata.SetTime(ctx, metadata.KeyLastPullAt, r.now())
	})
	if err != nil {
		r.pullFailed(ctx, res, err)
		return
	}
	res.Pulled = true
}

func (r *Reconciler) pullFailed(ctx context.Context, res *Result, err error) {
	if gateway.IsRetryable(err) {
		res.Offline = true
	}
	res.PullErr = err
	r.logger.Warn(ctx, "pull failed", "error", err)
}

// refreshProducts mirrors the remote product list into the main table,
// leaving alone every product with a queued local mutation.
func (r *Reconciler) refreshProducts(ctx context.Context, repos *store.Repositories, remote []gateway.RemoteProduct) error {
	busy := make(map[string]bool)
	updates, err := repos.Updates.List(ctx)
	if err != nil {
		return err
	}
	for _, u := range updates {
		busy[u.ServerID] = true
	}
	deletes, err := repos.Deletes.List(ctx)
	if err != nil {
		return err
	}
	for _, d := range deletes {
		busy[d.ServerID] = true
	}

	present := make(map[string]bool, len(remote))
	for _, p := range remote {
		present[p.ServerID] = true
		if busy[p.ServerID] {
			continue
		}
		if err := repos.Products.Upsert(ctx, p.Canonical()); err != nil {
			return err
		}
		if err := r.att.ReplaceAll(ctx, repos.Attachments, models.ServerID(p.ServerID), models.EntityProduct, p.Images); err != nil {
			return err
		}
	}

	local, err := repos.Products.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range local {
		if present[p.ServerID] || busy[p.ServerID] {
			continue
		}
		if err := repos.Products.Delete(ctx, p.ServerID); err != nil {
			return err
		}
		if _, err := r.att.DeleteOwner(ctx, repos.Attachments, models.ServerID(p.ServerID), models.EntityProduct); err != nil {
			return err
		}
	}
	return nil
}
