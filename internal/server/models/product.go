// Package models defines server-side data models persisted in the database.
package models

import "time"

// Product is the canonical catalog record.
type Product struct {
	ID string
	// ClientRef is the id the creating client used locally. It makes a
	// retried create return the product stored by the first attempt.
	ClientRef   string
	Name        string
	Brand       string
	CategoryID  string
	Description string

	CreatedByRole  string
	CreatedByID    string
	ModifiedByRole string
	ModifiedByID   string

	CreatedAt    time.Time
	LastModified time.Time
	UpdatedAt    time.Time
}

// Image describes an image stored in object storage under StorageKey.
//
// ClientRef is the uploading client's attachment id; an upload repeated
// with the same ClientRef is stored once.
type Image struct {
	ID          string
	ProductID   string
	ClientRef   string
	Position    int
	Name        string
	ContentType string
	StorageKey  string
	CreatedAt   time.Time
}

type Category struct {
	ID           string
	Name         string
	Description  string
	LastModified time.Time
	UpdatedAt    time.Time
}
