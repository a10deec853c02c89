package authz

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ResourceType is the closed set of permission-checkable entity kinds.
type ResourceType int

const (
	User ResourceType = iota
	Role
	Group
	File
	Course
	Template
	ContentSection
	ContentElement

	resourceTypeCount
)

// IDKind is the Go type of a resource's primary key.
type IDKind int

const (
	IntID IDKind = iota
	UUIDID
)

type resourceInfo struct {
	name   string // JSON and URL name
	table  string // unquoted entity table name
	idKind IDKind
}

var resources = [resourceTypeCount]resourceInfo{
	User:           {name: "user", table: "user"},
	Role:           {name: "role", table: "role"},
	Group:          {name: "group", table: "group"},
	File:           {name: "file", table: "file", idKind: UUIDID},
	Course:         {name: "course", table: "course"},
	Template:       {name: "template", table: "template"},
	ContentSection: {name: "contentSection", table: "content_section"},
	ContentElement: {name: "contentElement", table: "content_element"},
}

// ResourceTypes lists every resource type in declaration order.
func ResourceTypes() []ResourceType {
	types := make([]ResourceType, 0, resourceTypeCount)
	for rt := ResourceType(0); rt < resourceTypeCount; rt++ {
		types = append(types, rt)
	}
	return types
}

// Valid reports whether rt is a declared resource type.
func (rt ResourceType) Valid() bool { return rt >= 0 && rt < resourceTypeCount }

func (rt ResourceType) info() resourceInfo {
	if !rt.Valid() {
		panic(fmt.Sprintf("authz: unknown resource type %d", int(rt)))
	}
	return resources[rt]
}

func (rt ResourceType) String() string {
	if !rt.Valid() {
		return "ResourceType(" + strconv.Itoa(int(rt)) + ")"
	}
	return resources[rt].name
}

// TableName is the entity table backing rt.
func (rt ResourceType) TableName() string { return rt.info().table }

// QuotedTable is TableName quoted for interpolation into SQL.
func (rt ResourceType) QuotedTable() string { return `"` + rt.info().table + `"` }

// PermissionTable is the grant table for rt.
func (rt ResourceType) PermissionTable() string { return rt.info().table + "_permissions" }

// IDKind reports the key type of rt.
func (rt ResourceType) IDKind() IDKind { return rt.info().idKind }

// ParseID converts a textual id into the key type of rt.
func (rt ResourceType) ParseID(s string) (any, error) {
	switch rt.IDKind() {
	case UUIDID:
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("authz: %s id %q: %w", rt, s, err)
		}
		return id, nil
	default:
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("authz: %s id %q: %w", rt, s, err)
		}
		return id, nil
	}
}

func (rt ResourceType) checkID(id any) error {
	switch id.(type) {
	case int64:
		if rt.IDKind() == IntID {
			return nil
		}
	case uuid.UUID:
		if rt.IDKind() == UUIDID {
			return nil
		}
	}
	return fmt.Errorf("authz: %T is not a %s id", id, rt)
}

// ParseResourceType looks up a resource type by its name.
func ParseResourceType(name string) (ResourceType, error) {
	for rt, info := range resources {
		if info.name == name {
			return ResourceType(rt), nil
		}
	}
	return 0, fmt.Errorf("authz: unknown resource type %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (rt ResourceType) MarshalText() ([]byte, error) {
	if !rt.Valid() {
		return nil, fmt.Errorf("authz: unknown resource type %d", int(rt))
	}
	return []byte(rt.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (rt *ResourceType) UnmarshalText(text []byte) error {
	parsed, err := ParseResourceType(string(text))
	if err != nil {
		return err
	}
	*rt = parsed
	return nil
}
