// Package services contains the application services of the catalog client.
// ProductService is the single entry point the UI uses to stage changes,
// read the composed product list and drive synchronization.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/attachment"
	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/dmitrijs2005/productkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/productkeeper/internal/client/store"
	"github.com/dmitrijs2005/productkeeper/internal/client/syncer"
	"github.com/dmitrijs2005/productkeeper/internal/client/view"
	"github.com/dmitrijs2005/productkeeper/internal/common"
	"github.com/dmitrijs2005/productkeeper/internal/logging"
)

type MutationKind string

const (
	MutationAdd    MutationKind = "add"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Mutation is one user change. ID is empty for adds.
type Mutation struct {
	Kind   MutationKind
	ID     models.Identifier
	Fields models.Fields
	Images []models.Image
	Actor  models.Actor
}

// Status is a snapshot of the local queues and sync bookkeeping.
type Status struct {
	store.Stats
	Online     bool
	Syncing    bool
	LastSyncAt time.Time
	LastPullAt time.Time
}

// ProductService defines the operations offered to the UI.
//
// Stage validates and records a change locally; it never talks to the
// remote side. LoadView returns a page the caller must Release.
type ProductService interface {
	Stage(ctx context.Context, m Mutation) (models.Identifier, error)
	LoadView(ctx context.Context, req view.PageRequest) (*view.View, error)
	TriggerSync(ctx context.Context, opts syncer.Options) (syncer.Result, error)
	Categories(ctx context.Context) ([]models.Category, error)
	Status(ctx context.Context) (Status, error)
}

// Syncer is the part of syncer.Engine the service depends on.
type Syncer interface {
	Trigger(ctx context.Context, opts syncer.Options) (syncer.Result, error)
	Request(ctx context.Context)
	Running() bool
}

type productService struct {
	store    *store.Store
	att      *attachment.Manager
	composer *view.Composer
	sync     Syncer
	online   func() bool
	logger   logging.Logger
	now      func() time.Time
}

// NewProductService wires the service. online reports whether the remote
// side is currently reachable; staged changes request a sync only then.
func NewProductService(s *store.Store, att *attachment.Manager, composer *view.Composer, sync Syncer,
	online func() bool, logger logging.Logger) ProductService {
	return &productService{
		store:    s,
		att:      att,
		composer: composer,
		sync:     sync,
		online:   online,
		logger:   logger.With("module", "products"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *productService) Stage(ctx context.Context, m Mutation) (models.Identifier, error) {
	if err := validate(m); err != nil {
		return models.Identifier{}, err
	}

	var id models.Identifier
	err := s.store.Update(ctx, func(ctx context.Context, r *store.Repositories) error {
		var err error
		switch m.Kind {
		case MutationAdd:
			id, err = s.stageAdd(ctx, r, m)
		case MutationUpdate:
			id, err = s.stageUpdate(ctx, r, m)
		case MutationDelete:
			id, err = s.stageDelete(ctx, r, m)
		}
		return err
	})
	if err != nil {
		return models.Identifier{}, err
	}

	s.logger.Info(ctx, "mutation staged", "kind", string(m.Kind), "id", id.String())
	if s.online() {
		s.sync.Request(ctx)
	}
	return id, nil
}

func validate(m Mutation) error {
	switch m.Kind {
	case MutationAdd:
		if !m.ID.IsZero() {
			return fmt.Errorf("%w: new products get their id when staged", common.ErrValidation)
		}
	case MutationUpdate, MutationDelete:
		if !m.ID.IsLocal() && !m.ID.IsServer() {
			return fmt.Errorf("%w: %s needs a product id", common.ErrValidation, m.Kind)
		}
		if m.Kind == MutationDelete {
			return nil
		}
	default:
		return fmt.Errorf("%w: unknown mutation %q", common.ErrValidation, m.Kind)
	}

	return errors.Join(m.Fields.Validate(), models.ValidateImages(m.Images))
}

// state reports where a server id currently sits in its lifecycle.
func state(ctx context.Context, r *store.Repositories, serverID string) (models.State, error) {
	if _, err := r.Deletes.Get(ctx, serverID); err == nil {
		return models.StatePendingDelete, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return "", err
	}
	if _, err := r.Updates.Get(ctx, serverID); err == nil {
		return models.StatePendingUpdate, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return "", err
	}
	if _, err := r.Products.Get(ctx, serverID); err != nil {
		return "", err
	}
	return models.StateCanonical, nil
}

func (s *productService) checkImageRoom(ctx context.Context, r *store.Repositories, owner models.Identifier, adding int) error {
	if adding == 0 {
		return nil
	}
	existing, err := r.Attachments.ListByOwner(ctx, owner, models.EntityProduct)
	if err != nil {
		return err
	}
	if len(existing)+adding > models.MaxImages {
		return fmt.Errorf("%w: product would have %d images, at most %d allowed",
			common.ErrValidation, len(existing)+adding, models.MaxImages)
	}
	return nil
}

func (s *productService) stageAdd(ctx context.Context, r *store.Repositories, m Mutation) (models.Identifier, error) {
	if _, err := models.Transition(models.StateNone, models.EventStageAdd); err != nil {
		return models.Identifier{}, err
	}
	now := s.now()
	add := &models.PendingAdd{Fields: m.Fields, Actor: m.Actor, CreatedAt: now, LastModified: now, UpdatedAt: now}
	if err := r.Adds.Put(ctx, add); err != nil {
		return models.Identifier{}, err
	}
	id := models.LocalID(add.LocalID)
	return id, s.att.AttachAll(ctx, r.Attachments, id, models.EntityProduct, m.Images)
}

func (s *productService) stageUpdate(ctx context.Context, r *store.Repositories, m Mutation) (models.Identifier, error) {
	now := s.now()

	if m.ID.IsLocal() {
		add, err := r.Adds.Get(ctx, m.ID.Value)
		if err != nil {
			return m.ID, err
		}
		if _, err := models.Transition(models.StatePendingAdd, models.EventStageUpdate); err != nil {
			return m.ID, err
		}
		if err := s.checkImageRoom(ctx, r, m.ID, len(m.Images)); err != nil {
			return m.ID, err
		}
		add.Fields = m.Fields
		add.Actor = m.Actor
		add.LastModified = now
		add.UpdatedAt = now
		add.Rejected = false
		add.LastError = ""
		if err := r.Adds.Put(ctx, add); err != nil {
			return m.ID, err
		}
		return m.ID, s.att.AttachAll(ctx, r.Attachments, m.ID, models.EntityProduct, m.Images)
	}

	from, err := state(ctx, r, m.ID.Value)
	if err != nil {
		return m.ID, err
	}
	if _, err := models.Transition(from, models.EventStageUpdate); err != nil {
		return m.ID, err
	}
	if err := s.checkImageRoom(ctx, r, m.ID, len(m.Images)); err != nil {
		return m.ID, err
	}
	if err := r.Updates.Put(ctx, &models.PendingUpdate{
		ServerID:     m.ID.Value,
		Fields:       m.Fields,
		Actor:        m.Actor,
		LastModified: now,
		UpdatedAt:    now,
	}); err != nil {
		return m.ID, err
	}
	return m.ID, s.att.AttachAll(ctx, r.Attachments, m.ID, models.EntityProduct, m.Images)
}

func (s *productService) stageDelete(ctx context.Context, r *store.Repositories, m Mutation) (models.Identifier, error) {
	if m.ID.IsLocal() {
		if _, err := r.Adds.Get(ctx, m.ID.Value); err != nil {
			return m.ID, err
		}
		if _, err := models.Transition(models.StatePendingAdd, models.EventStageDelete); err != nil {
			return m.ID, err
		}
		if err := r.Adds.Delete(ctx, m.ID.Value); err != nil {
			return m.ID, err
		}
		_, err := s.att.DeleteOwner(ctx, r.Attachments, m.ID, models.EntityProduct)
		return m.ID, err
	}

	from, err := state(ctx, r, m.ID.Value)
	if err != nil {
		return m.ID, err
	}
	if _, err := models.Transition(from, models.EventStageDelete); err != nil {
		return m.ID, err
	}
	if err := r.Updates.Delete(ctx, m.ID.Value); err != nil {
		return m.ID, err
	}
	return m.ID, r.Deletes.Put(ctx, &models.PendingDelete{ServerID: m.ID.Value, Actor: m.Actor, DeletedAt: s.now()})
}

func (s *productService) LoadView(ctx context.Context, req view.PageRequest) (*view.View, error) {
	return s.composer.Compose(ctx, req)
}

func (s *productService) TriggerSync(ctx context.Context, opts syncer.Options) (syncer.Result, error) {
	return s.sync.Trigger(ctx, opts)
}

func (s *productService) Categories(ctx context.Context) ([]models.Category, error) {
	return s.store.Repos().Categories.List(ctx)
}

func (s *productService) Status(ctx context.Context) (Status, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{Stats: stats, Online: s.online(), Syncing: s.sync.Running()}

	md := s.store.Repos().Metadata
	if st.LastSyncAt, err = md.GetTime(ctx, metadata.KeyLastSyncAt); err != nil {
		return Status{}, err
	}
	if st.LastPullAt, err = md.GetTime(ctx, metadata.KeyLastPullAt); err != nil {
		return Status{}, err
	}
	return st, nil
}
