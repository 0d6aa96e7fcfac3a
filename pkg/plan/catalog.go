package plan

import (
	"strings"

	"github.com/weftlabs/weft/pkg/common"
)

// NameCatalog indexes node names for case-insensitive lookup. It satisfies
// Catalog and also feeds the intent classifier's name table.
type NameCatalog struct {
	byName map[string]catalogEntry
	byType map[string][]string
}

type catalogEntry struct {
	nodeType  string
	canonical string
}

// NewNameCatalog indexes the given nodes. Later nodes never displace earlier
// ones under the same lowercased name, so lookup is deterministic for a
// fixed node order.
func NewNameCatalog(nodes []common.Node) *NameCatalog {
	c := &NameCatalog{
		byName: make(map[string]catalogEntry),
		byType: make(map[string][]string),
	}
	for _, n := range nodes {
		name := n.Name()
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, exists := c.byName[key]; !exists {
			c.byName[key] = catalogEntry{nodeType: n.Type, canonical: name}
		}
		c.byType[n.Type] = append(c.byType[n.Type], name)
	}
	return c
}

func (c *NameCatalog) FindName(name string) (string, string, bool) {
	e, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", "", false
	}
	return e.nodeType, e.canonical, true
}

// NamesByType returns the full name table, suitable for the intent
// classifier's catalog argument.
func (c *NameCatalog) NamesByType() map[string][]string {
	return c.byType
}
