package registry

import (
	"fmt"

	"github.com/mwhitver/tablevault/internal/model"
)

// Table describes one logical table the console can back up, restore, or
// clean. Columns are listed in a stable order; PrimaryKey must appear in
// Columns. UpdatedAtColumn drives incremental backups and may be empty for
// append-only tables, in which case CreatedAtColumn is used instead.
type Table struct {
	Name            string
	Columns         []string
	PrimaryKey      string
	UpdatedAtColumn string
	CreatedAtColumn string
	CompanyColumn   string
	UserColumn      string
}

// ModifiedColumn returns the column compared against a previous backup's end
// time for incremental backups.
func (t Table) ModifiedColumn() string {
	if t.UpdatedAtColumn != "" {
		return t.UpdatedAtColumn
	}
	return t.CreatedAtColumn
}

var tables = []Table{
	{
		Name:            "companies",
		Columns:         []string{"id", "name", "plan", "created_at", "updated_at"},
		PrimaryKey:      "id",
		UpdatedAtColumn: "updated_at",
		CreatedAtColumn: "created_at",
	},
	{
		Name:            "user_profiles",
		Columns:         []string{"id", "company_id", "user_id", "email", "full_name", "role", "created_at", "updated_at"},
		PrimaryKey:      "id",
		UpdatedAtColumn: "updated_at",
		CreatedAtColumn: "created_at",
		CompanyColumn:   "company_id",
		UserColumn:      "user_id",
	},
	{
		Name:            "modules",
		Columns:         []string{"id", "name", "description", "enabled", "created_at", "updated_at"},
		PrimaryKey:      "id",
		UpdatedAtColumn: "updated_at",
		CreatedAtColumn: "created_at",
	},
	{
		Name:            "roles",
		Columns:         []string{"id", "company_id", "name", "permissions", "created_at", "updated_at"},
		PrimaryKey:      "id",
		UpdatedAtColumn: "updated_at",
		CreatedAtColumn: "created_at",
		CompanyColumn:   "company_id",
	},
	{
		Name:            "email_templates",
		Columns:         []string{"id", "company_id", "template_key", "subject", "body", "created_at", "updated_at"},
		PrimaryKey:      "id",
		UpdatedAtColumn: "updated_at",
		CreatedAtColumn: "created_at",
		CompanyColumn:   "company_id",
	},
	{
		Name:            "landing_content",
		Columns:         []string{"id", "section", "content", "published", "created_at", "updated_at"},
		PrimaryKey:      "id",
		UpdatedAtColumn: "updated_at",
		CreatedAtColumn: "created_at",
	},
	{
		Name:            "activity_log",
		Columns:         []string{"id", "company_id", "user_id", "action", "details", "created_at"},
		PrimaryKey:      "id",
		CreatedAtColumn: "created_at",
		CompanyColumn:   "company_id",
		UserColumn:      "user_id",
	},
	{
		Name:            "notification_queue",
		Columns:         []string{"id", "user_id", "payload", "sent", "created_at"},
		PrimaryKey:      "id",
		CreatedAtColumn: "created_at",
		UserColumn:      "user_id",
	},
}

var byName = func() map[string]Table {
	m := make(map[string]Table, len(tables))
	for _, t := range tables {
		m[t.Name] = t
	}
	return m
}()

// IsValidTable reports whether name is cataloged.
func IsValidTable(name string) bool {
	_, ok := byName[name]
	return ok
}

// ListTables returns all cataloged table names in declaration order.
func ListTables() []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

// Lookup returns the table description for name. Unknown names are a
// validation error, never a crash.
func Lookup(name string) (Table, error) {
	t, ok := byName[name]
	if !ok {
		return Table{}, model.Validation(fmt.Sprintf("unknown table: %s", name))
	}
	return t, nil
}

// ValidateAll checks every name in the list against the catalog and requires
// the list to be non-empty.
func ValidateAll(names []string) error {
	if len(names) == 0 {
		return model.Validation("table list must not be empty")
	}
	for _, n := range names {
		if !IsValidTable(n) {
			return model.Validation(fmt.Sprintf("unknown table: %s", n))
		}
	}
	return nil
}
