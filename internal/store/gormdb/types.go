package gormdb

import (
	"time"

	"github.com/shaibs3/canvascache/internal/db_model"
	"gorm.io/datatypes"
)

// Table and column names follow the original database.db layout so existing files stay readable.

type GormSnapshot struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	Course    string         `gorm:"not null;uniqueIndex:idx_teacher_course"`
	Teacher   string         `gorm:"not null;uniqueIndex:idx_teacher_course"`
	Content   datatypes.JSON `gorm:"not null"`
	APIKey    string         `gorm:"column:apikey;not null"`
	CanvasURL string         `gorm:"column:canvasurl;not null"`
	CourseID  string         `gorm:"column:courseid;not null"`
	CreatedAt time.Time      `gorm:"column:createdAt"`
	UpdatedAt time.Time      `gorm:"column:updatedAt"`
}

func (GormSnapshot) TableName() string {
	return "modules"
}

// GormPage.ModuleID is an upstream item id; there is no foreign key on purpose.
type GormPage struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	ModuleID  int64  `gorm:"column:module_id;not null;index"`
	Title     string `gorm:"not null"`
	Type      string `gorm:"not null"`
	Content   string
	CreatedAt time.Time `gorm:"column:createdAt"`
}

func (GormPage) TableName() string {
	return "module_pages"
}

// GormFile.PageID is an upstream item id; there is no foreign key on purpose.
type GormFile struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	PageID    int64     `gorm:"column:page_id;not null;index"`
	Title     string    `gorm:"not null"`
	File      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"column:createdAt"`
}

func (GormFile) TableName() string {
	return "module_files"
}

func (s GormSnapshot) toRecord() *db_model.ModuleSnapshot {
	return &db_model.ModuleSnapshot{
		ID:        s.ID,
		Course:    s.Course,
		Teacher:   s.Teacher,
		Content:   []byte(s.Content),
		APIKey:    s.APIKey,
		CanvasURL: s.CanvasURL,
		CourseID:  s.CourseID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (p GormPage) toRecord() db_model.PageRecord {
	return db_model.PageRecord{
		ID:        p.ID,
		ModuleID:  p.ModuleID,
		Title:     p.Title,
		Type:      p.Type,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
	}
}

func (f GormFile) toRecord() db_model.FileRecord {
	return db_model.FileRecord{
		ID:        f.ID,
		PageID:    f.PageID,
		Title:     f.Title,
		File:      f.File,
		CreatedAt: f.CreatedAt,
	}
}
