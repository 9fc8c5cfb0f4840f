package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/dmitrijs2005/productkeeper/internal/client/services"
	"github.com/dmitrijs2005/productkeeper/internal/client/syncer"
	"github.com/dmitrijs2005/productkeeper/internal/client/view"
)

var (
	ErrNoProductID     = errors.New("product id or row number required")
	ErrNotListed       = errors.New("product is not on the current page, run list first")
	ErrUnknownCategory = errors.New("unknown category")
)

// List shows one page. The first argument is taken as the page number when
// it is numeric; the rest is the filter.
func (a *App) List(ctx context.Context, args []string) error {
	req := view.PageRequest{Page: 1}
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			req.Page = n
			args = args[1:]
		}
	}
	req.Filter = strings.Join(args, " ")

	v, err := a.products.LoadView(ctx, req)
	if err != nil {
		return err
	}
	a.setCurrent(v)
	a.render(v)
	return nil
}

func (a *App) render(v *view.View) {
	if v.Total == 0 {
		fmt.Fprintln(a.out, "No products.")
		return
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tBRAND\tCATEGORY\tSTATE\tIMAGES")
	for i, r := range v.Rows {
		state := string(r.State)
		if r.Rejected {
			state += " (rejected: " + r.LastError + ")"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			i+1, r.ID, r.Fields.Name, r.Fields.Brand, r.CategoryName, state, len(r.Images))
	}
	_ = tw.Flush()

	pages := make([]string, 0, len(v.Pages))
	for _, p := range v.Pages {
		if p == v.Page {
			pages = append(pages, fmt.Sprintf("[%d]", p))
			continue
		}
		pages = append(pages, strconv.Itoa(p))
	}
	fmt.Fprintf(a.out, "Page %d of %d, %d products. Pages: %s\n", v.Page, v.TotalPages, v.Total, strings.Join(pages, " "))
}

// Show prints one product of the current page together with the references
// of its images: a URL for stored images, a file:// path for local ones.
func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrNoProductID
	}
	id, row, err := a.resolveRow(args[0])
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("%w: %s", ErrNotListed, id)
	}

	fmt.Fprintf(a.out, "%s  %s\n", row.ID, row.Fields.Name)
	fmt.Fprintf(a.out, "  brand:       %s\n", row.Fields.Brand)
	fmt.Fprintf(a.out, "  category:    %s\n", row.CategoryName)
	fmt.Fprintf(a.out, "  state:       %s\n", row.State)
	if row.Fields.Description != "" {
		fmt.Fprintf(a.out, "  description: %s\n", row.Fields.Description)
	}
	if len(row.Images) == 0 {
		fmt.Fprintln(a.out, "  no images")
		return nil
	}
	fmt.Fprintln(a.out, "  images:")
	for i, h := range row.Images {
		fmt.Fprintf(a.out, "    %d. %s (%s, %s) %s\n", i+1, h.Name, h.ContentType, h.Origin, h.Ref)
	}
	return nil
}

// resolveRow maps a row number on the current page or a printed identifier
// to the product it refers to. The row is nil when the id is not listed.
func (a *App) resolveRow(arg string) (models.Identifier, *view.Row, error) {
	v := a.currentView()

	if n, err := strconv.Atoi(arg); err == nil {
		if v == nil || n < 1 || n > len(v.Rows) {
			return models.Identifier{}, nil, fmt.Errorf("%w: no row %d", ErrNotListed, n)
		}
		return v.Rows[n-1].ID, &v.Rows[n-1], nil
	}

	id, err := models.ParseIdentifier(arg)
	if err != nil {
		return models.Identifier{}, nil, err
	}
	if v != nil {
		for i := range v.Rows {
			if v.Rows[i].ID == id {
				return id, &v.Rows[i], nil
			}
		}
	}
	return id, nil, nil
}

func (a *App) Add(ctx context.Context, args []string) error {
	var (
		f     models.Fields
		paths []string
		err   error
	)
	if len(args) > 0 {
		f, paths, err = a.fieldsFromArgs(ctx, models.Fields{}, args)
	} else {
		f, paths, err = a.promptFields(ctx, models.Fields{})
	}
	if err != nil {
		return err
	}

	images, err := readImages(paths)
	if err != nil {
		return err
	}

	id, err := a.products.Stage(ctx, services.Mutation{
		Kind:   services.MutationAdd,
		Fields: f,
		Images: images,
		Actor:  a.config.Actor(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Product staged with id %s\n", id)
	return nil
}

func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrNoProductID
	}
	id, row, err := a.resolveRow(args[0])
	if err != nil {
		return err
	}
	if row == nil {
		return ErrNotListed
	}

	var paths []string
	f := row.Fields
	if len(args) > 1 {
		f, paths, err = a.fieldsFromArgs(ctx, f, args[1:])
	} else {
		f, paths, err = a.promptFields(ctx, f)
	}
	if err != nil {
		return err
	}

	images, err := readImages(paths)
	if err != nil {
		return err
	}

	if _, err := a.products.Stage(ctx, services.Mutation{
		Kind:   services.MutationUpdate,
		ID:     id,
		Fields: f,
		Images: images,
		Actor:  a.config.Actor(),
	}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Changes to %s staged\n", id)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrNoProductID
	}
	id, _, err := a.resolveRow(args[0])
	if err != nil {
		return err
	}
	if _, err := a.products.Stage(ctx, services.Mutation{
		Kind:  services.MutationDelete,
		ID:    id,
		Actor: a.config.Actor(),
	}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Delete of %s staged\n", id)
	return nil
}

// Sync pushes queued changes now. With --retry, previously rejected
// entries are resent too.
func (a *App) Sync(ctx context.Context, args []string) error {
	var opts syncer.Options
	for _, arg := range args {
		switch arg {
		case "--retry", "-r":
			opts.RetryRejected = true
		default:
			return fmt.Errorf("unknown sync option %q", arg)
		}
	}

	res, err := a.products.TriggerSync(ctx, opts)
	if err != nil {
		return err
	}
	a.printResult(res)
	return nil
}

func (a *App) printResult(res syncer.Result) {
	fmt.Fprintf(a.out, "Sync finished in %s: %d added, %d updated, %d deleted\n",
		res.Duration().Round(time.Millisecond), res.Added, res.Updated, res.Deleted)
	if res.Offline {
		fmt.Fprintf(a.out, "Server unreachable, %d changes left queued\n", res.Deferred)
	}
	for _, e := range res.Errors {
		fmt.Fprintln(a.out, "  failed:", e.Error())
	}
	for _, e := range res.Blocked {
		fmt.Fprintln(a.out, "  blocked:", e.Error())
	}
	if len(res.Blocked) > 0 {
		fmt.Fprintln(a.out, "Edit blocked products or run sync --retry to resend them")
	}
	if res.PullErr != nil {
		fmt.Fprintln(a.out, "Refresh skipped:", res.PullErr.Error())
	}
}

func (a *App) Categories(ctx context.Context) error {
	cats, err := a.products.Categories(ctx)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		fmt.Fprintln(a.out, "No categories cached yet, sync while online to fetch them.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Description)
	}
	return tw.Flush()
}

func (a *App) Status(ctx context.Context) error {
	st, err := a.products.Status(ctx)
	if err != nil {
		return err
	}
	mode := "offline"
	if st.Online {
		mode = "online"
	}
	fmt.Fprintf(a.out, "Mode: %s\n", mode)
	fmt.Fprintf(a.out, "Products: %d\n", st.Products)
	fmt.Fprintf(a.out, "Pending: %d adds, %d updates, %d deletes\n", st.PendingAdds, st.PendingUpdates, st.PendingDeletes)
	fmt.Fprintf(a.out, "Syncing: %t\n", st.Syncing)
	fmt.Fprintf(a.out, "Last sync: %s\n", formatTime(st.LastSyncAt))
	fmt.Fprintf(a.out, "Last refresh: %s\n", formatTime(st.LastPullAt))
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}

// fieldsFromArgs overlays name=value pairs on base. image=<path> pairs are
// returned separately and category values may be a name or an id.
func (a *App) fieldsFromArgs(ctx context.Context, base models.Fields, args []string) (models.Fields, []string, error) {
	pairs, paths := splitPairs(args)
	f, err := base.ApplyPairs(pairs)
	if err != nil {
		return base, nil, err
	}
	if f.CategoryID != base.CategoryID {
		if f.CategoryID, err = a.resolveCategory(ctx, f.CategoryID); err != nil {
			return base, nil, err
		}
	}
	return f, paths, nil
}

// promptFields asks for every field, keeping base values on empty answers.
func (a *App) promptFields(ctx context.Context, base models.Fields) (models.Fields, []string, error) {
	f := base
	var err error
	if f.Name, err = GetTextWithDefault(a.reader, "Name", base.Name, a.out); err != nil {
		return base, nil, err
	}
	if f.Brand, err = GetTextWithDefault(a.reader, "Brand", base.Brand, a.out); err != nil {
		return base, nil, err
	}
	category, err := GetTextWithDefault(a.reader, "Category (name or id)", base.CategoryID, a.out)
	if err != nil {
		return base, nil, err
	}
	if category != base.CategoryID {
		if category, err = a.resolveCategory(ctx, category); err != nil {
			return base, nil, err
		}
	}
	f.CategoryID = category

	description, err := GetMultiline(a.reader, "Description (empty keeps the current one)", a.out)
	if err != nil {
		return base, nil, err
	}
	if description != "" {
		f.Description = description
	}

	paths, err := GetSimpleText(a.reader, "Image files, comma separated (optional)", a.out)
	if err != nil {
		return base, nil, err
	}
	return f, splitList(paths), nil
}

// resolveCategory accepts a category id or a case-insensitive name. An empty
// value clears the category.
func (a *App) resolveCategory(ctx context.Context, v string) (string, error) {
	if v == "" {
		return "", nil
	}
	cats, err := a.products.Categories(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range cats {
		if c.ID == v {
			return c.ID, nil
		}
	}
	for _, c := range cats {
		if strings.EqualFold(c.Name, v) {
			return c.ID, nil
		}
	}
	// the cache may be empty while offline; keep the raw value
	if len(cats) == 0 {
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, v)
}
