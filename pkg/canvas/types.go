package canvas

import (
	"strings"
	"time"
)

// ItemKind represents the category of a canvas item with predefined constants for type safety
type ItemKind string

const (
	KindPerson ItemKind = "person"
	KindPlace  ItemKind = "place"
	KindThing  ItemKind = "thing"
	KindEvent  ItemKind = "event"
	KindNote   ItemKind = "note"
)

// DefaultKind is assigned to items auto-created from unresolved title mentions.
const DefaultKind = KindNote

// Valid reports whether the kind is one of the closed set of item kinds.
func (k ItemKind) Valid() bool {
	switch k {
	case KindPerson, KindPlace, KindThing, KindEvent, KindNote:
		return true
	}
	return false
}

// Position is a point on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Item is a canonical addressable thing on a canvas. Links never cross the
// ScopeID boundary.
type Item struct {
	ID        string    `json:"id"`
	ScopeID   string    `json:"scopeId"`
	Title     string    `json:"title"`
	Kind      ItemKind  `json:"kind"`
	Position  Position  `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Link is a directed edge between two items in the same scope, carrying a
// snippet of the text surrounding the mention that produced it.
type Link struct {
	SourceID  string    `json:"sourceId"`
	TargetID  string    `json:"targetId"`
	Snippet   string    `json:"snippet,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// MentionKind distinguishes the two ways a mention can address its target.
type MentionKind string

const (
	MentionByID    MentionKind = "ById"
	MentionByTitle MentionKind = "ByTitle"
)

// Mention is a parse result, never persisted. Start and End are half-open
// byte offsets into the source text.
type Mention struct {
	Kind  MentionKind `json:"kind"`
	Value string      `json:"value"`
	Start int         `json:"startIndex"`
	End   int         `json:"endIndex"`
}

// Key returns the deduplication identity of a mention: id mentions compare
// byte-for-byte, title mentions after simple lowercase folding.
func (m Mention) Key() string {
	if m.Kind == MentionByID {
		return "id:" + m.Value
	}
	return "title:" + strings.ToLower(m.Value)
}

// ResolutionResult reports one distinct, resolved mention from a
// reconciliation pass, in first-occurrence order.
type ResolutionResult struct {
	TargetID string `json:"targetEntityId"`
	Title    string `json:"title"`
	Created  bool   `json:"created"`
}
