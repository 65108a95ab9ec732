package db_model

import "time"

// ModuleSnapshot is one tracked (teacher, course) pair and its last fetched module tree
type ModuleSnapshot struct {
	ID        int64     `json:"id"`
	Course    string    `json:"course"`
	Teacher   string    `json:"teacher"`
	Content   []byte    `json:"-"`
	APIKey    string    `json:"-"`
	CanvasURL string    `json:"canvasurl"`
	CourseID  string    `json:"courseid"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PageRecord is a page fetched for a module item.
// ModuleID holds the upstream item id, not a ModuleSnapshot id.
type PageRecord struct {
	ID        int64     `json:"id"`
	ModuleID  int64     `json:"module_id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// FileRecord is a downloadable file found as a File item or linked from a page.
// PageID holds the upstream item id of that item or page.
type FileRecord struct {
	ID        int64     `json:"id"`
	PageID    int64     `json:"page_id"`
	Title     string    `json:"title"`
	File      string    `json:"file"`
	CreatedAt time.Time `json:"createdAt"`
}
