package ingest

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/weftlabs/weft/pkg/common"
)

// SubjectBuilder assembles the subject graph from extracted mentions. One
// product node per distinct reviewed product; users, ratings, issues and
// features hang off it per review.
type SubjectBuilder struct {
	newID func() string

	snap     common.Snapshot
	products map[string]string // lowercased product name -> node id
	shared   map[string]string // reusable issue/feature/user nodes by key
}

func NewSubjectBuilder() *SubjectBuilder {
	return &SubjectBuilder{
		newID: func() string {
			id, err := gonanoid.New()
			if err != nil {
				panic(fmt.Sprintf("nanoid: %v", err))
			}
			return id
		},
		products: make(map[string]string),
		shared:   make(map[string]string),
	}
}

// WithIDGenerator overrides node id generation. Tests use a counter to keep
// snapshots reproducible.
func (b *SubjectBuilder) WithIDGenerator(gen func() string) *SubjectBuilder {
	b.newID = gen
	return b
}

// Add appends one file's mentions to the graph under construction.
func (b *SubjectBuilder) Add(file string, mentions []Mention) {
	for _, m := range mentions {
		if m.Product == "" {
			continue
		}
		productID := b.productNode(m.Product, file)
		src := common.SourceRef{File: file, RecordID: productID}

		if m.User != "" {
			userID := b.sharedNode(common.TypeUser, m.User, src)
			b.edge(common.EdgeReviewedBy, productID, userID, src)
		}
		if m.Rating > 0 {
			ratingID := b.newID()
			b.snap.Nodes = append(b.snap.Nodes, common.Node{
				ID:   ratingID,
				Type: common.TypeRating,
				Attributes: map[string]any{
					"name":  fmt.Sprintf("%.0f stars", m.Rating),
					"value": m.Rating,
				},
				Origin: common.OriginSubject,
				Source: src,
			})
			b.edge(common.EdgeHasRating, productID, ratingID, src)
		}
		for _, issue := range m.Issues {
			issueID := b.sharedNode(common.TypeIssue, issue, src)
			b.edge(common.EdgeHasIssue, productID, issueID, src)
		}
		for _, feature := range m.Features {
			featureID := b.sharedNode(common.TypeFeature, feature, src)
			b.edge(common.EdgeHasFeature, productID, featureID, src)
		}
	}
}

// Snapshot returns the accumulated subject graph.
func (b *SubjectBuilder) Snapshot() common.Snapshot {
	return b.snap
}

func (b *SubjectBuilder) productNode(name, file string) string {
	key := strings.ToLower(name)
	if id, ok := b.products[key]; ok {
		return id
	}
	id := b.newID()
	b.products[key] = id
	b.snap.Nodes = append(b.snap.Nodes, common.Node{
		ID:         id,
		Type:       common.TypeProduct,
		Attributes: map[string]any{"name": name},
		Origin:     common.OriginSubject,
		Source:     common.SourceRef{File: file, RecordID: id},
	})
	return id
}

// sharedNode deduplicates users, issues and features by name so repeated
// complaints converge on one node.
func (b *SubjectBuilder) sharedNode(nodeType, name string, src common.SourceRef) string {
	key := nodeType + "|" + strings.ToLower(name)
	if id, ok := b.shared[key]; ok {
		return id
	}
	id := b.newID()
	b.shared[key] = id
	b.snap.Nodes = append(b.snap.Nodes, common.Node{
		ID:         id,
		Type:       nodeType,
		Attributes: map[string]any{"name": name},
		Origin:     common.OriginSubject,
		Source:     src,
	})
	return id
}

func (b *SubjectBuilder) edge(edgeType, from, to string, src common.SourceRef) {
	b.snap.Edges = append(b.snap.Edges, common.Edge{
		Type:   edgeType,
		From:   from,
		To:     to,
		Source: src,
	})
}
