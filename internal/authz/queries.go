package authz

import "fmt"

// Every statement below is built once from the closed resource table, so no
// runtime string ever reaches a table position.

// subjectPredicate matches grants held by $1 directly or through a role.
const subjectPredicate = `(p.user_id = $1 OR ur.user_id = $1)
  AND ($2::int::bit(16) & p.permission) <> B'0'::bit(16)`

type queryTemplates struct {
	hasAll       string
	hasID        string
	permittedIDs string
	insertGrant  string
	deleteGrant  string
	listGrants   string
	listBySubj   string
}

var queries [resourceTypeCount]queryTemplates

func init() {
	for _, rt := range ResourceTypes() {
		queries[rt] = buildQueries(rt.PermissionTable())
	}
	for rt, q := range queries {
		if q.hasAll == "" || q.hasID == "" || q.permittedIDs == "" ||
			q.insertGrant == "" || q.deleteGrant == "" || q.listGrants == "" || q.listBySubj == "" {
			panic(fmt.Sprintf("authz: incomplete query set for resource type %d", rt))
		}
	}
}

func buildQueries(table string) queryTemplates {
	from := fmt.Sprintf(`FROM %s p
LEFT JOIN user_has_role ur ON ur.role_id = p.role_id
WHERE %s`, table, subjectPredicate)

	return queryTemplates{
		hasAll: `SELECT EXISTS (SELECT 1 ` + from + `
  AND p.resource_id IS NULL)`,
		hasID: `SELECT EXISTS (SELECT 1 ` + from + `
  AND (p.resource_id = $3 OR p.resource_id IS NULL))`,
		permittedIDs: `SELECT DISTINCT p.resource_id ` + from + `
  AND p.resource_id IS NOT NULL`,
		insertGrant: fmt.Sprintf(`INSERT INTO %s (role_id, user_id, resource_id, permission)
VALUES ($1, $2, $3, $4::int::bit(16))`, table),
		deleteGrant: fmt.Sprintf(`DELETE FROM %s
WHERE role_id IS NOT DISTINCT FROM $1
  AND user_id IS NOT DISTINCT FROM $2
  AND resource_id IS NOT DISTINCT FROM $3`, table),
		listGrants: fmt.Sprintf(`SELECT role_id, user_id, resource_id, permission::int
FROM %s
WHERE resource_id IS NOT DISTINCT FROM $1
ORDER BY role_id NULLS LAST, user_id NULLS LAST`, table),
		listBySubj: fmt.Sprintf(`SELECT role_id, user_id, resource_id, permission::int
FROM %s
WHERE role_id IS NOT DISTINCT FROM $1
  AND user_id IS NOT DISTINCT FROM $2
ORDER BY resource_id NULLS FIRST`, table),
	}
}

// PermissionIDQuery returns the instance-scoped check for rt. Placeholders are
// $1 user id, $2 operation mask and $3 resource id.
func PermissionIDQuery(rt ResourceType) string { return queries[rt].hasID }

// PermissionAllQuery returns the type-wide check for rt. Placeholders are $1
// user id and $2 operation mask.
func PermissionAllQuery(rt ResourceType) string { return queries[rt].hasAll }
