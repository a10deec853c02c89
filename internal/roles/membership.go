package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/noodle-soup/noodle/internal/platform/db"
	"github.com/noodle-soup/noodle/internal/shared"
)

// Membership owns both halves of a role assignment: the user_has_role row
// and the user_in_group row for the role's group. Callers never write one
// relation without the other. Run it over a pgx.Tx.
type Membership struct {
	db db.DBTX
}

// NewMembership binds a Membership to conn.
func NewMembership(conn db.DBTX) *Membership {
	return &Membership{db: conn}
}

func (m *Membership) groupOf(ctx context.Context, roleID int64) (int64, error) {
	var groupID int64
	err := m.db.QueryRow(ctx, `SELECT "group" FROM role WHERE id = $1`, roleID).Scan(&groupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrNotFound
	}
	if err != nil {
		return 0, shared.NewStoreError("role group", err)
	}
	return groupID, nil
}

// AddUsers assigns the role to every user. Existing assignments are kept.
func (m *Membership) AddUsers(ctx context.Context, roleID int64, userIDs []int64) error {
	groupID, err := m.groupOf(ctx, roleID)
	if err != nil {
		return err
	}
	return m.insertUsers(ctx, roleID, groupID, userIDs)
}

func (m *Membership) insertUsers(ctx context.Context, roleID, groupID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	if _, err := m.db.Exec(ctx, `INSERT INTO user_has_role (user_id, role_id)
SELECT u, $2 FROM unnest($1::bigint[]) AS u
ON CONFLICT DO NOTHING`, userIDs, roleID); err != nil {
		return writeError("assign role", err)
	}
	if _, err := m.db.Exec(ctx, `INSERT INTO user_in_group (user_id, group_id)
SELECT u, $2 FROM unnest($1::bigint[]) AS u
ON CONFLICT DO NOTHING`, userIDs, groupID); err != nil {
		return writeError("join role group", err)
	}
	return nil
}

// ReplaceUsers makes userIDs the exact member set of the role.
func (m *Membership) ReplaceUsers(ctx context.Context, roleID int64, userIDs []int64) error {
	groupID, err := m.groupOf(ctx, roleID)
	if err != nil {
		return err
	}
	if _, err := m.db.Exec(ctx, `DELETE FROM user_has_role WHERE role_id = $1`, roleID); err != nil {
		return shared.NewStoreError("clear role users", err)
	}
	if _, err := m.db.Exec(ctx, `DELETE FROM user_in_group WHERE group_id = $1`, groupID); err != nil {
		return shared.NewStoreError("clear role group", err)
	}
	return m.insertUsers(ctx, roleID, groupID, userIDs)
}

// RemoveUsers unassigns the role from the given users.
func (m *Membership) RemoveUsers(ctx context.Context, roleID int64, userIDs []int64) error {
	groupID, err := m.groupOf(ctx, roleID)
	if err != nil {
		return err
	}
	if _, err := m.db.Exec(ctx, `DELETE FROM user_has_role WHERE role_id = $1 AND user_id = ANY($2)`, roleID, userIDs); err != nil {
		return shared.NewStoreError("unassign role", err)
	}
	if _, err := m.db.Exec(ctx, `DELETE FROM user_in_group WHERE group_id = $1 AND user_id = ANY($2)`, groupID, userIDs); err != nil {
		return shared.NewStoreError("leave role group", err)
	}
	return nil
}

// AssignRoles gives the user every listed role.
func (m *Membership) AssignRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return nil
	}
	if _, err := m.db.Exec(ctx, `INSERT INTO user_has_role (user_id, role_id)
SELECT $1, r FROM unnest($2::bigint[]) AS r
ON CONFLICT DO NOTHING`, userID, roleIDs); err != nil {
		return writeError("assign roles", err)
	}
	if _, err := m.db.Exec(ctx, `INSERT INTO user_in_group (user_id, group_id)
SELECT $1, role."group" FROM role WHERE role.id = ANY($2)
ON CONFLICT DO NOTHING`, userID, roleIDs); err != nil {
		return writeError("join role groups", err)
	}
	return nil
}

// UnassignRoles removes the listed roles from the user.
func (m *Membership) UnassignRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if _, err := m.db.Exec(ctx, `DELETE FROM user_has_role WHERE user_id = $1 AND role_id = ANY($2)`, userID, roleIDs); err != nil {
		return shared.NewStoreError("unassign roles", err)
	}
	if _, err := m.db.Exec(ctx, `DELETE FROM user_in_group
WHERE user_id = $1 AND group_id IN (SELECT "group" FROM role WHERE id = ANY($2))`, userID, roleIDs); err != nil {
		return shared.NewStoreError("leave role groups", err)
	}
	return nil
}

// ReplaceRoles makes roleIDs the exact role set of the user. The groups of
// the previous roles are left before the new ones are joined.
func (m *Membership) ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if _, err := m.db.Exec(ctx, `DELETE FROM user_in_group
WHERE user_id = $1 AND group_id IN (
  SELECT role."group" FROM user_has_role JOIN role ON role.id = user_has_role.role_id
  WHERE user_has_role.user_id = $1)`, userID); err != nil {
		return shared.NewStoreError("leave role groups", err)
	}
	if _, err := m.db.Exec(ctx, `DELETE FROM user_has_role WHERE user_id = $1`, userID); err != nil {
		return shared.NewStoreError("clear user roles", err)
	}
	return m.AssignRoles(ctx, userID, roleIDs)
}

func writeError(op string, err error) error {
	if db.IsForeignKeyViolation(err) {
		return shared.ErrNotFound
	}
	return shared.NewStoreError(op, err)
}
