package models

import "time"

type EntityType string

const EntityProduct EntityType = "product"

// Origin records where an attachment payload came from.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginServer Origin = "server"
)

// Attachment is an image owned by exactly one record, addressed by the
// owner identifier plus entity type. Local attachments carry the raw bytes,
// server ones a remote reference.
type Attachment struct {
	ID          string
	Owner       Identifier
	EntityType  EntityType
	Origin      Origin
	Synced      bool
	Name        string
	ContentType string
	Data        []byte
	URL         string
	CreatedAt   time.Time
}

// Image is an image payload supplied by the user when staging a mutation.
// ClientRef is set to the attachment id once the payload is stored, so the
// remote can drop a resend of the same image.
type Image struct {
	ClientRef   string
	Name        string
	ContentType string
	Data        []byte
}

// ImageRef is an image already stored by the remote side.
type ImageRef struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
}
