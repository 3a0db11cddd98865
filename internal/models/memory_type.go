package models

// CustomMemoryType is a user-defined memory type. It carries no foreign
// keys; core memories reference it softly through their type id. The
// store does not enforce the reference and never cleans up annotations
// whose type is deleted, matching the historical on-disk data.
type CustomMemoryType struct {
	ID    ID     `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Icon  string `db:"icon" json:"icon"`
	Color string `db:"color" json:"color"`
}

// TableName returns the table name for CustomMemoryType.
func (CustomMemoryType) TableName() string {
	return "custom_memory_types"
}

// MemoryTypeKind discriminates built-in from user-defined types.
type MemoryTypeKind int

const (
	TypeBuiltin MemoryTypeKind = iota
	TypeCustom
)

// MemoryTypeRef is a tagged reference to either a built-in type or a
// CustomMemoryType row. The stored column is the bare id; the kind is
// recovered by checking the id against the built-in table.
type MemoryTypeRef struct {
	Kind MemoryTypeKind
	ID   string
}

// BuiltinMemoryTypes is the fixed in-code type table. Custom types are
// resolved as the union of this table and the custom_memory_types rows.
var BuiltinMemoryTypes = []CustomMemoryType{
	{ID: "joy", Name: "Joy", Icon: "sun", Color: "#FACC15"},
	{ID: "love", Name: "Love", Icon: "heart", Color: "#F472B6"},
	{ID: "adventure", Name: "Adventure", Icon: "compass", Color: "#38BDF8"},
	{ID: "achievement", Name: "Achievement", Icon: "trophy", Color: "#A78BFA"},
}

// IsBuiltinType reports whether id names a built-in memory type.
func IsBuiltinType(id string) bool {
	for _, t := range BuiltinMemoryTypes {
		if string(t.ID) == id {
			return true
		}
	}
	return false
}

// ParseTypeRef classifies a stored type id as built-in or custom.
func ParseTypeRef(id string) MemoryTypeRef {
	if IsBuiltinType(id) {
		return MemoryTypeRef{Kind: TypeBuiltin, ID: id}
	}
	return MemoryTypeRef{Kind: TypeCustom, ID: id}
}
