package canvas

// Module is one category of a course's module list
type Module struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Items    []Item `json:"items"`
}

// Item is a leaf entry inside a module
type Item struct {
	ID       int64  `json:"id"`
	ModuleID int64  `json:"module_id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	URL      string `json:"url"`
}

// Item types the walk acts on
const (
	ItemTypePage = "Page"
	ItemTypeFile = "File"
)

// Tree is a module list as returned by the modules endpoint.
// Raw is the compacted upstream body and is what gets persisted.
type Tree struct {
	Raw     []byte
	Modules []Module
}

// Page is the subset of a wiki page we keep
type Page struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// File is the subset of a file's metadata we keep
type File struct {
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
}
