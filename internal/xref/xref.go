// Package xref maps message ids cited by an analysis back to messages.
package xref

import (
	"github.com/MikeSquared-Agency/convoscope/internal/analysis"
	"github.com/MikeSquared-Agency/convoscope/internal/conversation"
)

// Location is where a message sits in the rendered conversation.
type Location struct {
	MessageID int                  `json:"messageId"`
	Position  int                  `json:"position"`
	Message   conversation.Message `json:"message"`
}

// Index is a read-only id lookup built once per conversation.
type Index struct {
	byID map[int]Location
	n    int
}

// NewIndex builds an index over conv. A nil conversation yields an empty
// index. If ids repeat, the first occurrence wins.
func NewIndex(conv *conversation.Conversation) *Index {
	idx := &Index{byID: make(map[int]Location)}
	if conv == nil {
		return idx
	}
	idx.n = len(conv.Messages)
	for i, m := range conv.Messages {
		if _, ok := idx.byID[m.ID]; ok {
			continue
		}
		idx.byID[m.ID] = Location{MessageID: m.ID, Position: i, Message: m}
	}
	return idx
}

// Resolve looks up a message by id. ok is false for ids that do not exist,
// which is a normal outcome.
func (x *Index) Resolve(id int) (Location, bool) {
	if x == nil {
		return Location{}, false
	}
	loc, ok := x.byID[id]
	return loc, ok
}

// Len is the number of messages in the indexed conversation.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return x.n
}

// LinkedAnnotation is an annotation with its ids split into resolvable
// links and dangling references.
type LinkedAnnotation struct {
	Text     string     `json:"text"`
	Links    []Location `json:"links"`
	Dangling []int      `json:"dangling,omitempty"`
}

// ResolveAnnotation resolves every id of a. Unknown ids are collected in
// Dangling and otherwise ignored.
func (x *Index) ResolveAnnotation(a analysis.Annotation) LinkedAnnotation {
	out := LinkedAnnotation{Text: a.Text, Links: []Location{}}
	for _, id := range a.MessageIDs {
		if loc, ok := x.Resolve(id); ok {
			out.Links = append(out.Links, loc)
			continue
		}
		out.Dangling = append(out.Dangling, id)
	}
	return out
}

// LinkedBotAnalysis is BotResponseAnalysis with resolved links.
type LinkedBotAnalysis struct {
	FollowsACPFormat bool               `json:"followsAcpFormat"`
	Strengths        []LinkedAnnotation `json:"strengths"`
	Weaknesses       []LinkedAnnotation `json:"weaknesses"`
	ImprovementTips  []LinkedAnnotation `json:"improvementTips"`
}

// LinkedResult is what the presentation layer renders for an analysis.
type LinkedResult struct {
	*analysis.Result
	Linked        *LinkedBotAnalysis `json:"linkedBotResponseAnalysis,omitempty"`
	DanglingCount int                `json:"danglingCount"`
}

// LinkResult resolves every annotation in r against the index.
func (x *Index) LinkResult(r *analysis.Result) LinkedResult {
	out := LinkedResult{Result: r}
	if r == nil || r.BotResponseAnalysis == nil {
		return out
	}
	b := r.BotResponseAnalysis
	link := func(anns []analysis.Annotation) []LinkedAnnotation {
		linked := make([]LinkedAnnotation, 0, len(anns))
		for _, a := range anns {
			la := x.ResolveAnnotation(a)
			out.DanglingCount += len(la.Dangling)
			linked = append(linked, la)
		}
		return linked
	}
	out.Linked = &LinkedBotAnalysis{
		FollowsACPFormat: b.FollowsACPFormat,
		Strengths:        link(b.Strengths),
		Weaknesses:       link(b.Weaknesses),
		ImprovementTips:  link(b.ImprovementTips),
	}
	return out
}
