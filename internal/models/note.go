package models

import "time"

// Note is a user-owned text record. The API calls these "files".
type Note struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title     string    `json:"title" gorm:"type:varchar(100);not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	OwnerID   string    `json:"owner" gorm:"type:varchar(36);not null;index:idx_notes_owner_created,priority:1"`
	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_notes_owner_created,priority:2,sort:desc"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NotePatch carries the mutable fields of a Note. Nil fields are left unchanged.
type NotePatch struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}
