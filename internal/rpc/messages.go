package rpc

import "time"

type Actor struct {
	Role string `json:"role"`
	ID   string `json:"id"`
}

// Image is an image payload uploaded with a create or update. ClientRef
// lets the service recognize an upload it already stored.
type Image struct {
	ClientRef   string `json:"client_ref,omitempty"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// ImageRef points at an image stored by the service.
type ImageRef struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
}

type ProductFields struct {
	Name        string `json:"name"`
	Brand       string `json:"brand"`
	CategoryID  string `json:"category_id"`
	Description string `json:"description"`
}

type Product struct {
	ID string `json:"id"`
	ProductFields
	Images       []ImageRef `json:"images"`
	CreatedBy    Actor      `json:"created_by"`
	ModifiedBy   Actor      `json:"modified_by"`
	CreatedAt    time.Time  `json:"created_at"`
	LastModified time.Time  `json:"last_modified"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Category struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	LastModified time.Time `json:"last_modified"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateProductRequest carries ClientRef, the client's local id, so a
// create retried after a lost response returns the original product.
type CreateProductRequest struct {
	ClientRef string `json:"client_ref"`
	ProductFields
	Actor  Actor   `json:"actor"`
	Images []Image `json:"images"`
}

type CreateProductResponse struct {
	Product Product `json:"product"`
}

// UpdateProductRequest overwrites the fields of ID and appends Images to its
// stored set.
type UpdateProductRequest struct {
	ID string `json:"id"`
	ProductFields
	Actor  Actor   `json:"actor"`
	Images []Image `json:"images"`
}

type UpdateProductResponse struct {
	Product Product `json:"product"`
}

type DeleteProductRequest struct {
	ID    string `json:"id"`
	Actor Actor  `json:"actor"`
}

type DeleteProductResponse struct{}

type ListProductsRequest struct{}

type ListProductsResponse struct {
	Products []Product `json:"products"`
}

type ListCategoriesRequest struct{}

type ListCategoriesResponse struct {
	Categories []Category `json:"categories"`
}
