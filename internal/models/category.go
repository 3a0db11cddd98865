package models

// SentinelCategoryID is the id and key of the non-deletable default
// category. Every video without an explicit category falls back to it.
const SentinelCategoryID = "all"

// Category groups videos under a stable machine key.
type Category struct {
	ID    ID     `db:"id" json:"id"`
	Key   string `db:"key" json:"key"`
	Name  string `db:"name" json:"name"`
	Icon  string `db:"icon" json:"icon"`
	Color string `db:"color" json:"color"`
}

// TableName returns the table name for Category.
func (Category) TableName() string {
	return "categories"
}

// IsSentinel reports whether the category is the default "all" category.
func (c *Category) IsSentinel() bool {
	return c.ID == SentinelCategoryID
}

// DefaultCategories returns the seed rows written on first run. The
// sentinel category is always first.
func DefaultCategories() []Category {
	return []Category{
		{ID: SentinelCategoryID, Key: "all", Name: "All", Icon: "grid", Color: "#64748B"},
		{ID: "family", Key: "family", Name: "Family", Icon: "home", Color: "#F59E0B"},
		{ID: "travel", Key: "travel", Name: "Travel", Icon: "plane", Color: "#3B82F6"},
		{ID: "friends", Key: "friends", Name: "Friends", Icon: "users", Color: "#10B981"},
		{ID: "milestones", Key: "milestones", Name: "Milestones", Icon: "flag", Color: "#EF4444"},
	}
}
