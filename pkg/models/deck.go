package models

// State keys written by the built-in deck pipeline. The seed keys are
// populated from the submission request; the rest are stage outputs.
const (
	StateKeyTopic        = "topic"
	StateKeyRequirements = "requirements"
	StateKeyPlan         = "plan"
	StateKeyResearch     = "research"
	StateKeySlides       = "slides"
	StateKeyLayout       = "layout"
	StateKeyReview       = "review"
)

// DeckRequirements carries the caller-supplied generation parameters that
// seed the workflow state.
type DeckRequirements struct {
	Audience  string `json:"audience,omitempty"`
	Tone      string `json:"tone,omitempty"`
	Language  string `json:"language,omitempty"`
	MaxSlides int    `json:"max_slides,omitempty"`
}

// DeckPlan is the outline produced by the plan stage.
type DeckPlan struct {
	Title       string        `json:"title"`
	Sections    []DeckSection `json:"sections"`
	SlideBudget int           `json:"slide_budget"`
}

// DeckSection is one thematic block of the planned deck.
type DeckSection struct {
	Heading    string `json:"heading"`
	Intent     string `json:"intent,omitempty"`
	SlideCount int    `json:"slide_count"`
}

// ResearchNotes is the enrichment produced by the research stage, keyed by
// section heading.
type ResearchNotes struct {
	Sections map[string][]string `json:"sections"`
}

// Slide is one slide descriptor produced by the content stage.
type Slide struct {
	Title      string   `json:"title"`
	Bullets    []string `json:"bullets"`
	Notes      string   `json:"notes,omitempty"`
	Section    string   `json:"section,omitempty"`
	LayoutHint string   `json:"layout_hint,omitempty"`
}

// DeckLayout is the per-slide layout assignment produced by the layout stage.
type DeckLayout struct {
	Theme  string   `json:"theme"`
	Slides []string `json:"slides"` // layout name per slide, index-aligned
}

// ReviewReport is the quality report produced by the review stage.
type ReviewReport struct {
	Approved bool     `json:"approved"`
	Score    float64  `json:"score"`
	Findings []string `json:"findings,omitempty"`
}
