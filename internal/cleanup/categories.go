package cleanup

import (
	"fmt"

	"github.com/mwhitver/tablevault/internal/model"
)

// categories is the static catalog of deletable data classes. The engine
// never deletes outside a category's declared table, regardless of caller
// input.
var categories = []model.CleanupCategory{
	{
		ID:          "activity_logs",
		Name:        "Activity logs",
		Description: "Audit trail entries recorded for user and admin actions",
		Dangerous:   false,
		Icon:        "history",
		SupportsFilter: model.CleanupFilterSupport{
			Company: true,
			User:    true,
			Date:    true,
		},
		Table: "activity_log",
	},
	{
		ID:          "stale_notifications",
		Name:        "Stale notifications",
		Description: "Queued notifications that were never delivered",
		Dangerous:   false,
		Icon:        "bell-off",
		SupportsFilter: model.CleanupFilterSupport{
			Date: true,
		},
		Table: "notification_queue",
		Scope: "sent = 0",
	},
	{
		ID:             "orphaned_profiles",
		Name:           "Orphaned user profiles",
		Description:    "Profiles whose company was removed",
		Dangerous:      true,
		Icon:           "user-x",
		SupportsFilter: model.CleanupFilterSupport{},
		Table:          "user_profiles",
		Scope:          "company_id IS NULL",
	},
	{
		ID:          "email_templates",
		Name:        "Email templates",
		Description: "Custom per-company email templates",
		Dangerous:   true,
		Icon:        "mail",
		SupportsFilter: model.CleanupFilterSupport{
			Company: true,
		},
		Table: "email_templates",
	},
}

var categoriesByID = func() map[string]model.CleanupCategory {
	m := make(map[string]model.CleanupCategory, len(categories))
	for _, c := range categories {
		m[c.ID] = c
	}
	return m
}()

// Categories returns the catalog in declaration order.
func Categories() []model.CleanupCategory {
	out := make([]model.CleanupCategory, len(categories))
	copy(out, categories)
	return out
}

// CategoryByID looks up a catalog entry; unknown IDs are a validation error.
func CategoryByID(id string) (model.CleanupCategory, error) {
	c, ok := categoriesByID[id]
	if !ok {
		return model.CleanupCategory{}, model.Validation(fmt.Sprintf("unknown cleanup category: %s", id))
	}
	return c, nil
}
