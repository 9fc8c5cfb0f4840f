package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Fields are the user-editable attributes of a product.
type Fields struct {
	Name        string `json:"name"`
	Brand       string `json:"brand"`
	CategoryID  string `json:"category_id"`
	Description string `json:"description"`
}

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Actor is who staged a mutation; the remote side records it as creator or
// last modifier.
type Actor struct {
	Role Role   `json:"role"`
	ID   string `json:"id"`
}

// Product is a confirmed (canonical) record mirrored from the server.
type Product struct {
	ServerID     string
	Fields       Fields
	LastModified time.Time
	UpdatedAt    time.Time
}

// PendingAdd is a product created offline and not yet confirmed.
type PendingAdd struct {
	LocalID      string
	Fields       Fields
	Actor        Actor
	CreatedAt    time.Time
	LastModified time.Time
	UpdatedAt    time.Time
	Rejected     bool
	LastError    string
}

// PendingUpdate is a staged overwrite of a confirmed product. There is at
// most one per ServerID.
type PendingUpdate struct {
	ServerID     string
	Fields       Fields
	Actor        Actor
	LastModified time.Time
	UpdatedAt    time.Time
	Rejected     bool
	LastError    string
}

// PendingDelete is a tombstone for a confirmed product.
type PendingDelete struct {
	ServerID  string
	Actor     Actor
	DeletedAt time.Time
	Rejected  bool
	LastError string
}

// Category is a read-only reference record cached for display and filtering.
type Category struct {
	ID           string
	Name         string
	Description  string
	LastModified time.Time
	UpdatedAt    time.Time
}

var ErrIncorrectFieldPair = errors.New("field must be name=value")

// ApplyPairs overlays "key=value" pairs on f. Recognised keys are name,
// brand, category and description.
func (f Fields) ApplyPairs(pairs []string) (Fields, error) {
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			return f, fmt.Errorf("%w: %q", ErrIncorrectFieldPair, p)
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "name":
			f.Name = value
		case "brand":
			f.Brand = value
		case "category", "category_id":
			f.CategoryID = value
		case "description":
			f.Description = value
		default:
			return f, fmt.Errorf("%w: unknown field %q", ErrIncorrectFieldPair, key)
		}
	}
	return f, nil
}
