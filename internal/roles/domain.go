package roles

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/noodle-soup/noodle/internal/authz"
)

// MaxList caps role listings.
const MaxList = 1024

// Role is a named bundle of permissions. Every role owns exactly one group
// of kind role whose members mirror the role's members.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	GroupID     int64        `json:"groupId"`
	Permissions []Permission `json:"permissions"`
}

// Permission grants Ops on Subject. Without IDs it applies to every
// instance of Subject, otherwise to each listed instance.
type Permission struct {
	Subject authz.ResourceType `json:"subject"`
	Ops     authz.Operations   `json:"ops"`
	IDs     IDList             `json:"ids,omitempty"`
}

// Input is the mutable part of a role.
type Input struct {
	Name        string       `json:"name" validate:"required,max=255"`
	Permissions []Permission `json:"permissions"`
}

// Member is a user holding a role.
type Member struct {
	ID        int64  `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
}

// IDList holds resource ids in textual form. It decodes both JSON numbers
// and strings so integer and uuid keyed types share one representation.
type IDList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *IDList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(IDList, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n int64
		if err := json.Unmarshal(item, &n); err != nil {
			return fmt.Errorf("roles: id %s is neither string nor integer", item)
		}
		out = append(out, strconv.FormatInt(n, 10))
	}
	*l = out
	return nil
}

// grants expands a permission into grant rows for roleID.
func (p Permission) grants(roleID int64) ([]authz.Grant, error) {
	if len(p.IDs) == 0 {
		return []authz.Grant{{Subject: authz.RoleSubject(roleID), Ops: p.Ops}}, nil
	}
	out := make([]authz.Grant, 0, len(p.IDs))
	for _, raw := range p.IDs {
		id, err := p.Subject.ParseID(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, authz.Grant{Subject: authz.RoleSubject(roleID), ResourceID: id, Ops: p.Ops})
	}
	return out, nil
}
