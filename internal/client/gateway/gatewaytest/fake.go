// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/dmitrijs2005/productkeeper/internal/common"
)

// Fake behaves like the remote catalog: creates are idempotent on the local
// id, updates append images not stored before under the same ClientRef,
// deletes of unknown ids answer not found.
type Fake struct {
	mu sync.Mutex

	products   map[string]*gateway.RemoteProduct
	byRef      map[string]string
	imageRefs  map[string]map[string]bool
	categories []models.Category
	seq        int

	offline bool
	// Reject maps a local or server id onto the rejection returned for it.
	reject map[string]error
	calls  []string

	// BeforeReply, when set, runs after a push is applied remotely and before
	// the reply is returned.
	BeforeReply func(op, id string)
}

func New() *Fake {
	return &Fake{
		products:  make(map[string]*gateway.RemoteProduct),
		byRef:     make(map[string]string),
		imageRefs: make(map[string]map[string]bool),
		reject:    make(map[string]error),
	}
}

func (f *Fake) SetOffline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = v
}

func (f *Fake) Reject(id, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reject[id] = &gateway.RejectionError{Code: "InvalidArgument", Message: message}
}

func (f *Fake) ClearReject(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reject, id)
}

func (f *Fake) SetCategories(cats ...models.Category) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories = cats
}

// Seed stores p as if another client had created it.
func (f *Fake) Seed(p gateway.RemoteProduct) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.products[p.ServerID] = &cp
}

func (f *Fake) Product(serverID string) (gateway.RemoteProduct, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[serverID]
	if !ok {
		return gateway.RemoteProduct{}, false
	}
	return *p, true
}

func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.products)
}

// Calls returns the operations received so far, e.g. "create:<local id>".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// PushCalls counts create, update and delete calls.
func (f *Fake) PushCalls() int {
	n := 0
	for _, c := range f.Calls() {
		switch c[:6] {
		case "create", "update", "delete":
			n++
		}
	}
	return n
}

func (f *Fake) enter(op, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+":"+id)
	if f.offline {
		return fmt.Errorf("%s: %w", op, gateway.ErrConnectivity)
	}
	if err, ok := f.reject[id]; ok {
		return err
	}
	return nil
}

func (f *Fake) reply(op, id string) {
	if f.BeforeReply != nil {
		f.BeforeReply(op, id)
	}
}

func imageRefs(serverID string, start int, images []models.Image) []models.ImageRef {
	refs := make([]models.ImageRef, 0, len(images))
	for i, img := range images {
		refs = append(refs, models.ImageRef{
			URL:         "https://images.test/" + serverID + "/" + strconv.Itoa(start+i) + "-" + img.Name,
			Name:        img.Name,
			ContentType: img.ContentType,
		})
	}
	return refs
}

// unseen drops images whose ClientRef serverID already stores. Callers hold
// f.mu.
func (f *Fake) unseen(serverID string, images []models.Image) []models.Image {
	stored := f.imageRefs[serverID]
	var out []models.Image
	for _, img := range images {
		if img.ClientRef != "" && stored[img.ClientRef] {
			continue
		}
		out = append(out, img)
	}
	return out
}

func (f *Fake) remember(serverID string, images []models.Image) {
	if f.imageRefs[serverID] == nil {
		f.imageRefs[serverID] = make(map[string]bool)
	}
	for _, img := range images {
		if img.ClientRef != "" {
			f.imageRefs[serverID][img.ClientRef] = true
		}
	}
}

func (f *Fake) Create(ctx context.Context, req gateway.CreateRequest) (*gateway.RemoteProduct, error) {
	if err := f.enter("create", req.LocalID); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if id, ok := f.byRef[req.LocalID]; ok {
		p := *f.products[id]
		f.mu.Unlock()
		f.reply("create", req.LocalID)
		return &p, nil
	}
	f.seq++
	now := time.Now().UTC().Truncate(time.Millisecond)
	id := strconv.Itoa(100 + f.seq)
	p := &gateway.RemoteProduct{
		ServerID:     id,
		Fields:       req.Fields,
		Images:       imageRefs(id, 0, req.Images),
		LastModified: now,
		UpdatedAt:    now,
	}
	f.products[id] = p
	f.byRef[req.LocalID] = id
	f.remember(id, req.Images)
	out := *p
	f.mu.Unlock()

	f.reply("create", req.LocalID)
	return &out, nil
}

func (f *Fake) Update(ctx context.Context, serverID string, req gateway.UpdateRequest) (*gateway.RemoteProduct, error) {
	if err := f.enter("update", serverID); err != nil {
		return nil, err
	}

	f.mu.Lock()
	p, ok := f.products[serverID]
	if !ok {
		f.mu.Unlock()
		return nil, &gateway.RejectionError{Code: "NotFound", Message: "product " + serverID + " no longer exists"}
	}
	p.Fields = req.Fields
	fresh := f.unseen(serverID, req.Images)
	f.remember(serverID, fresh)
	p.Images = append(p.Images, imageRefs(serverID, len(p.Images), fresh)...)
	p.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	p.LastModified = p.UpdatedAt
	out := *p
	f.mu.Unlock()

	f.reply("update", serverID)
	return &out, nil
}

func (f *Fake) Delete(ctx context.Context, serverID string, actor models.Actor) error {
	if err := f.enter("delete", serverID); err != nil {
		return err
	}

	f.mu.Lock()
	_, ok := f.products[serverID]
	delete(f.products, serverID)
	f.mu.Unlock()

	if !ok {
		return fmt.Errorf("delete: %w", common.ErrNotFound)
	}
	f.reply("delete", serverID)
	return nil
}

func (f *Fake) ListProducts(ctx context.Context) ([]gateway.RemoteProduct, error) {
	if err := f.enter("list_products", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]gateway.RemoteProduct, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServerID < out[j].ServerID })
	return out, nil
}

func (f *Fake) ListCategories(ctx context.Context) ([]models.Category, error) {
	if err := f.enter("list_categories", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Category(nil), f.categories...), nil
}

func (f *Fake) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return gateway.ErrConnectivity
	}
	return nil
}

var _ gateway.Gateway = (*Fake)(nil)
