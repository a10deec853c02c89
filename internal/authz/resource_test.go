package authz

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryResourceTypeIsRegistered(t *testing.T) {
	seen := map[string]bool{}
	for _, rt := range ResourceTypes() {
		info := resources[rt]
		require.NotEmpty(t, info.name, "resource type %d has no name", rt)
		require.NotEmpty(t, info.table, "resource type %d has no table", rt)
		assert.False(t, seen[info.name], "duplicate name %s", info.name)
		seen[info.name] = true

		q := queries[rt]
		assert.Contains(t, q.hasAll, rt.PermissionTable())
		assert.Contains(t, q.hasID, rt.PermissionTable())
		assert.Contains(t, q.permittedIDs, rt.PermissionTable())
		assert.Contains(t, q.insertGrant, rt.PermissionTable())
	}
	assert.Len(t, ResourceTypes(), int(resourceTypeCount))
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "course", Course.TableName())
	assert.Equal(t, "content_section_permissions", ContentSection.PermissionTable())
	assert.Equal(t, `"user"`, User.QuotedTable())
	assert.Equal(t, "group_permissions", Group.PermissionTable())
}

func TestQueryShapes(t *testing.T) {
	all := PermissionAllQuery(Course)
	assert.Contains(t, all, "$2::int::bit(16) & p.permission) <> B'0'::bit(16)")
	assert.Contains(t, all, "p.resource_id IS NULL")
	assert.NotContains(t, all, "$3")

	id := PermissionIDQuery(Course)
	assert.Contains(t, id, "(p.resource_id = $3 OR p.resource_id IS NULL)")
	assert.Contains(t, id, "ur.user_id = $1")

	assert.Contains(t, queries[Course].permittedIDs, "SELECT DISTINCT p.resource_id")
	assert.Contains(t, queries[Course].permittedIDs, "p.resource_id IS NOT NULL")
}

func TestParseResourceType(t *testing.T) {
	rt, err := ParseResourceType("contentElement")
	require.NoError(t, err)
	assert.Equal(t, ContentElement, rt)

	_, err = ParseResourceType("course; DROP TABLE role")
	assert.Error(t, err)

	var decoded struct {
		Subject ResourceType `json:"subject"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"subject":"template"}`), &decoded))
	assert.Equal(t, Template, decoded.Subject)

	out, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, `{"subject":"template"}`, string(out))
}

func TestParseID(t *testing.T) {
	id, err := Course.ParseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	uid := uuid.New()
	fid, err := File.ParseID(uid.String())
	require.NoError(t, err)
	assert.Equal(t, uid, fid)

	_, err = File.ParseID("42")
	assert.Error(t, err)
	_, err = Course.ParseID("abc")
	assert.Error(t, err)
}

func TestCheckIDMatchesKind(t *testing.T) {
	assert.NoError(t, Course.checkID(int64(1)))
	assert.Error(t, Course.checkID(1))
	assert.Error(t, Course.checkID(uuid.New()))
	assert.NoError(t, File.checkID(uuid.New()))
	assert.Error(t, File.checkID(int64(1)))
}

func TestInvalidResourceTypeString(t *testing.T) {
	assert.True(t, strings.HasPrefix(ResourceType(99).String(), "ResourceType("))
	assert.False(t, ResourceType(99).Valid())
	assert.Panics(t, func() { _ = ResourceType(99).TableName() })
}
