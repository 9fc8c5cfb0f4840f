// Package view composes the product list shown to the user from the
// confirmed records and the pending queues.
package view

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/attachment"
	"github.com/dmitrijs2005/productkeeper/internal/client/models"
)

const (
	DefaultPerPage = 5
	pageWindow     = 5
)

type PageRequest struct {
	// Page is 1-based; out of range values are clamped.
	Page    int
	PerPage int
	// Filter matches product or category names, case-insensitively.
	Filter string
}

// Row is one logical product as the user currently sees it.
type Row struct {
	ID           models.Identifier
	State        models.State
	Fields       models.Fields
	CategoryName string
	Synced       bool
	Rejected     bool
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Images       []*attachment.Handle
}

// View is one composed page. It owns the image handles of its rows and
// must be released once it is no longer displayed.
type View struct {
	Rows       []Row
	Page       int
	PerPage    int
	Total      int
	TotalPages int
	// Pages lists the page numbers to offer for navigation.
	Pages      []int
	Categories []models.Category

	once sync.Once
	err  error
}

func (v *View) Release() error {
	if v == nil {
		return nil
	}
	v.once.Do(func() {
		var handles []*attachment.Handle
		for _, r := range v.Rows {
			handles = append(handles, r.Images...)
		}
		v.err = attachment.ReleaseAll(handles)
	})
	return v.err
}

// paginate clamps page and returns the slice bounds plus the page window.
func paginate(total, page, perPage int) (clamped, totalPages, start, end int, window []int) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	totalPages = (total + perPage - 1) / perPage
	clamped = page
	if clamped > totalPages {
		clamped = totalPages
	}
	if clamped < 1 {
		clamped = 1
	}

	start = (clamped - 1) * perPage
	if start > total {
		start = total
	}
	end = start + perPage
	if end > total {
		end = total
	}

	first := max(1, clamped-pageWindow/2)
	last := min(totalPages, first+pageWindow-1)
	if last-first < pageWindow-1 {
		first = max(1, last-pageWindow+1)
	}
	for p := first; p <= last; p++ {
		window = append(window, p)
	}
	return clamped, totalPages, start, end, window
}
