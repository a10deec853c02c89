package groups

import (
	"fmt"
	"strings"
)

// MaxList caps group listings.
const MaxList = 1024

// Kind classifies a group.
type Kind string

const (
	KindOrganization Kind = "organization"
	KindLearning     Kind = "learning"
	KindContact      Kind = "contact"
	// KindRole groups back a role and are managed through the roles API.
	KindRole Kind = "role"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindOrganization, KindLearning, KindContact, KindRole:
		return true
	}
	return false
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	v := Kind(strings.ToLower(string(text)))
	if !v.Valid() {
		return fmt.Errorf("groups: unknown kind %q", text)
	}
	*k = v
	return nil
}

// Group is a named set of users, optionally nested under a parent.
type Group struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Shortname string `json:"shortname"`
	Kind      Kind   `json:"kind"`
	Parent    *int64 `json:"parent,omitempty"`
}

// Input is the mutable part of a group.
type Input struct {
	Name      string `json:"name" validate:"required,max=255"`
	Shortname string `json:"shortname" validate:"max=64"`
	Kind      Kind   `json:"kind" validate:"required"`
	Parent    *int64 `json:"parent" validate:"omitempty,gt=0"`
}

// Member is a user in a group.
type Member struct {
	ID        int64  `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
}
