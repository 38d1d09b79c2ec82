package timeplus

import (
	"context"
	"fmt"
)

// SetupStreams creates all streams required by the monitoring engine.
// The status stream is append-only; everything that carries state lives in
// mutable streams keyed by id so that updates are atomic per row.
func (c *Client) SetupStreams(ctx context.Context) error {
	if err := c.CreateStream(ctx, StatusesStream, GetStatusesSchema()); err != nil {
		return err
	}

	mutables := []struct {
		name   string
		schema []Column
	}{
		{TargetsStream, GetTargetsSchema()},
		{PoliciesStream, GetPoliciesSchema()},
		{TriggersStream, GetTriggersSchema()},
		{AlertsStream, GetAlertsSchema()},
		{UsersStream, GetUsersSchema()},
		{GroupsStream, GetGroupsSchema()},
	}

	for _, m := range mutables {
		if err := c.EnsureMutableStream(ctx, m.name, m.schema, []string{"id"}); err != nil {
			return fmt.Errorf("failed to ensure mutable stream %s: %w", m.name, err)
		}
	}

	return nil
}
