package registry

import (
	"context"
	"encoding/json"
	"fmt"
)

// FindPagesUsing scans every page version's definition JSON for an instance
// referencing (pluginID, componentID) and returns the distinct owning pages.
// The reverse index is rebuilt on demand; no coherence protocol is needed
// because version rows are append-only.
func (s *Store) FindPagesUsing(ctx context.Context, pluginID, componentID string) ([]PageRef, error) {
	rows, err := s.db.QueryContext(ctx, s.q.Q(`
		SELECT pv.page_definition, p.id, p.page_name, p.site_id
		FROM page_version pv
		JOIN page p ON p.id = pv.page_id`))
	if err != nil {
		return nil, fmt.Errorf("scan page versions: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var refs []PageRef

	for rows.Next() {
		var definition, pageID, pageName, siteID string
		if err := rows.Scan(&definition, &pageID, &pageName, &siteID); err != nil {
			return nil, fmt.Errorf("scan version row: %w", err)
		}
		if seen[pageID] {
			continue
		}
		if definitionReferences(definition, pluginID, componentID) {
			seen[pageID] = true
			refs = append(refs, PageRef{PageID: pageID, PageName: pageName, SiteID: siteID})
		}
	}
	return refs, rows.Err()
}

// definitionReferences walks the decoded JSON generically looking for a node
// carrying the matching pluginId/componentId pair. Walking the raw shape
// keeps the registry independent of the page tree types.
func definitionReferences(definition, pluginID, componentID string) bool {
	var root any
	if err := json.Unmarshal([]byte(definition), &root); err != nil {
		return false
	}
	return walkForReference(root, pluginID, componentID)
}

func walkForReference(node any, pluginID, componentID string) bool {
	switch v := node.(type) {
	case map[string]any:
		p, _ := v["pluginId"].(string)
		c, _ := v["componentId"].(string)
		if p == pluginID && c == componentID {
			return true
		}
		for _, child := range v {
			if walkForReference(child, pluginID, componentID) {
				return true
			}
		}
	case []any:
		for _, child := range v {
			if walkForReference(child, pluginID, componentID) {
				return true
			}
		}
	}
	return false
}
