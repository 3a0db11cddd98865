package models

import "time"

// CoreMemory is a short user annotation attached 1:1 to a video.
// Its primary key is the video id; deleting the video removes it.
type CoreMemory struct {
	VideoID   ID     `db:"video_id" json:"video_id"`
	Note      string `db:"note" json:"note"`
	Color     string `db:"color" json:"color"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	TypeID    string `db:"type_id" json:"type_id"`
}

// TableName returns the table name for CoreMemory.
func (CoreMemory) TableName() string {
	return "core_memories"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (c *CoreMemory) CreatedAtTime() time.Time {
	return time.Unix(c.CreatedAt, 0)
}

// TypeRef returns the memory type reference encoded in TypeID.
func (c *CoreMemory) TypeRef() MemoryTypeRef {
	return ParseTypeRef(c.TypeID)
}
