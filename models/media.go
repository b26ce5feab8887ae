package models

import "time"

// Media records an uploaded file stored under the media directory.
type Media struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	FilePath    string    `gorm:"size:1024;not null" json:"-"`
	URL         string    `gorm:"size:1024;not null" json:"url"`
	ContentType string    `gorm:"size:128" json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// All lists every model for migrations.
func All() []interface{} {
	return []interface{}{&User{}, &Post{}, &Comment{}, &Media{}}
}
