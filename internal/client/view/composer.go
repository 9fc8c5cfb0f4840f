package view

import (
	"context"
	"sort"
	"strings"

	"github.com/dmitrijs2005/productkeeper/internal/client/attachment"
	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/dmitrijs2005/productkeeper/internal/client/store"
	"golang.org/x/sync/errgroup"
)

const materializeWorkers = 4

type Composer struct {
	store   *store.Store
	att     *attachment.Manager
	perPage int
}

func NewComposer(s *store.Store, att *attachment.Manager, perPage int) *Composer {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &Composer{store: s, att: att, perPage: perPage}
}

// Compose builds one page from a single consistent snapshot of the store.
// Image handles are created after the snapshot is closed, only for the
// rows on the page.
func (c *Composer) Compose(ctx context.Context, req PageRequest) (*View, error) {
	perPage := req.PerPage
	if perPage <= 0 {
		perPage = c.perPage
	}

	v := &View{PerPage: perPage}
	var pageAttachments [][]models.Attachment

	err := c.store.View(ctx, func(ctx context.Context, r *store.Repositories) error {
		rows, cats, err := c.load(ctx, r)
		if err != nil {
			return err
		}
		rows = filter(rows, req.Filter)
		order(rows)

		var start, end int
		v.Page, v.TotalPages, start, end, v.Pages = paginate(len(rows), req.Page, perPage)
		v.Total = len(rows)
		v.Rows = rows[start:end]
		v.Categories = cats

		pageAttachments = make([][]models.Attachment, len(v.Rows))
		for i, row := range v.Rows {
			if pageAttachments[i], err = r.Attachments.ListByOwner(ctx, row.ID, models.EntityProduct); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := c.materialize(ctx, v, pageAttachments); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Composer) load(ctx context.Context, r *store.Repositories) ([]Row, []models.Category, error) {
	main, err := r.Products.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	adds, err := r.Adds.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	updates, err := r.Updates.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	deletes, err := r.Deletes.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	cats, err := r.Categories.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	catNames := make(map[string]string, len(cats))
	for _, cat := range cats {
		catNames[cat.ID] = cat.Name
	}
	tombstoned := make(map[string]bool, len(deletes))
	for _, d := range deletes {
		tombstoned[d.ServerID] = true
	}
	staged := make(map[string]models.PendingUpdate, len(updates))
	for _, u := range updates {
		staged[u.ServerID] = u
	}

	rows := make([]Row, 0, len(main)+len(adds))
	for _, p := range main {
		if tombstoned[p.ServerID] {
			continue
		}
		row := Row{
			ID:        models.ServerID(p.ServerID),
			State:     models.StateCanonical,
			Fields:    p.Fields,
			Synced:    true,
			CreatedAt: p.LastModified,
			UpdatedAt: p.UpdatedAt,
		}
		if u, ok := staged[p.ServerID]; ok {
			row.State = models.StatePendingUpdate
			row.Fields = u.Fields
			row.Synced = false
			row.Rejected = u.Rejected
			row.LastError = u.LastError
			row.UpdatedAt = u.UpdatedAt
		}
		row.CategoryName = catNames[row.Fields.CategoryID]
		rows = append(rows, row)
	}

	for _, a := range adds {
		rows = append(rows, Row{
			ID:           models.LocalID(a.LocalID),
			State:        models.StatePendingAdd,
			Fields:       a.Fields,
			CategoryName: catNames[a.Fields.CategoryID],
			Rejected:     a.Rejected,
			LastError:    a.LastError,
			CreatedAt:    a.CreatedAt,
			UpdatedAt:    a.UpdatedAt,
		})
	}
	return rows, cats, nil
}

func filter(rows []Row, term string) []Row {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return rows
	}
	out := rows[:0]
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.Fields.Name), term) ||
			strings.Contains(strings.ToLower(r.CategoryName), term) {
			out = append(out, r)
		}
	}
	return out
}

// order puts pending adds first, oldest first, then everything else with
// the most recently updated on top.
func order(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		ai, aj := rows[i].State == models.StatePendingAdd, rows[j].State == models.StatePendingAdd
		switch {
		case ai && aj:
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		case ai != aj:
			return ai
		case !rows[i].UpdatedAt.Equal(rows[j].UpdatedAt):
			return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
		default:
			return rows[i].ID.Value < rows[j].ID.Value
		}
	})
}

func (c *Composer) materialize(ctx context.Context, v *View, pageAttachments [][]models.Attachment) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(materializeWorkers)

	for i := range v.Rows {
		g.Go(func() error {
			handles, err := c.att.Materialize(gctx, pageAttachments[i])
			if err != nil {
				return err
			}
			v.Rows[i].Images = handles
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		_ = v.Release()
		return err
	}
	return nil
}
