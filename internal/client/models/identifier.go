// Package models defines the client-side catalog records, their identifiers
// and the lifecycle rules shared by the local store, the reconciler and the
// view composer.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// IDKind tells which side of the sync boundary minted an identifier.
type IDKind int

const (
	KindLocal IDKind = iota + 1
	KindServer
)

var ErrInvalidIdentifier = errors.New("identifier must look like local:<id> or server:<id>")

// Identifier is either a Local id (assigned offline, only valid until the
// create is confirmed) or a Server id (assigned by the remote source of
// truth). Identifiers of different kinds never compare equal.
type Identifier struct {
	Kind  IDKind
	Value string
}

func LocalID(v string) Identifier  { return Identifier{Kind: KindLocal, Value: v} }
func ServerID(v string) Identifier { return Identifier{Kind: KindServer, Value: v} }

func (id Identifier) IsLocal() bool  { return id.Kind == KindLocal && id.Value != "" }
func (id Identifier) IsServer() bool { return id.Kind == KindServer && id.Value != "" }
func (id Identifier) IsZero() bool   { return id.Value == "" }

func (id Identifier) String() string {
	switch id.Kind {
	case KindLocal:
		return "local:" + id.Value
	case KindServer:
		return "server:" + id.Value
	default:
		return ""
	}
}

// ParseIdentifier reverses Identifier.String.
func ParseIdentifier(s string) (Identifier, error) {
	kind, value, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || value == "" {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	switch kind {
	case "local":
		return LocalID(value), nil
	case "server":
		return ServerID(value), nil
	default:
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
}
