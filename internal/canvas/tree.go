package canvas

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
)

// FileEndpointAttr marks an anchor whose target is an API-backed file
const FileEndpointAttr = "data-api-endpoint"

// ParseTree decodes a module list and keeps a compacted copy of the raw bytes
func ParseTree(raw []byte) (Tree, error) {
	var modules []Module
	if err := json.Unmarshal(raw, &modules); err != nil {
		return Tree{}, fmt.Errorf("failed to decode module tree: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return Tree{}, fmt.Errorf("failed to compact module tree: %w", err)
	}
	return Tree{Raw: buf.Bytes(), Modules: modules}, nil
}

// Items flattens the tree, category by category
func (t Tree) Items() []Item {
	var items []Item
	for _, m := range t.Modules {
		items = append(items, m.Items...)
	}
	return items
}

// ItemIDs returns every item id referenced by a stored tree, in tree order.
// Page and file rows are keyed by these ids, so this is what purges run against.
func ItemIDs(raw []byte) ([]int64, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	tree, err := ParseTree(raw)
	if err != nil {
		return nil, err
	}
	items := tree.Items()
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids, nil
}

// ExtractFileEndpoints returns the file endpoint of every marked anchor in body
func ExtractFileEndpoints(body string) ([]string, error) {
	if !strings.Contains(body, FileEndpointAttr) {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page body: %w", err)
	}
	var endpoints []string
	doc.Find("a[" + FileEndpointAttr + "]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(FileEndpointAttr); ok && strings.TrimSpace(v) != "" {
			endpoints = append(endpoints, strings.TrimSpace(v))
		}
	})
	return endpoints, nil
}
