package models

import "fmt"

// SourceName identifies the provider a template came from
type SourceName string

const (
	SourceImgflip      SourceName = "imgflip"
	SourceReddit       SourceName = "reddit"
	SourceKnowYourMeme SourceName = "knowyourmeme"
	SourceAll          SourceName = "all"
)

// Valid reports whether s is a known source or the "all" selector.
func (s SourceName) Valid() bool {
	switch s {
	case SourceImgflip, SourceReddit, SourceKnowYourMeme, SourceAll:
		return true
	}
	return false
}

// Template represents a meme template fetched from an external source
type Template struct {
	TemplateID string     `json:"template_id"`
	Name       string     `json:"name"`
	ImageURL   string     `json:"image_url"`
	PanelCount int        `json:"panel_count"`
	Characters []string   `json:"characters"`
	Tags       []string   `json:"tags,omitempty"`
	Source     SourceName `json:"source"`
	Popularity float64    `json:"popularity"`
}

// PanelKeys returns the caption keys for the template, panel_1..panel_N.
func (t Template) PanelKeys() []string {
	n := t.PanelCount
	if n < 1 {
		n = 1
	}
	keys := make([]string, n)
	for i := range keys {
		keys[i] = PanelKey(i + 1)
	}
	return keys
}

// PanelKey returns the caption key for the 1-based panel index.
func PanelKey(i int) string {
	return fmt.Sprintf("panel_%d", i)
}

// Variation is one generated caption set for a template
type Variation struct {
	VariationID   int               `json:"variation_id"`
	Captions      map[string]string `json:"captions"`
	ViralityScore float64           `json:"virality_score"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
}

// TemplateResult bundles a template with its generated variations. The
// average score is derived from the variations and is only changed through
// SetVariations and AddVariation.
type TemplateResult struct {
	Template
	Variations           []Variation `json:"variations"`
	AverageViralityScore float64     `json:"average_virality_score"`
}

// NewTemplateResult returns a result for t holding the given variations.
func NewTemplateResult(t Template, variations []Variation) TemplateResult {
	r := TemplateResult{Template: t}
	r.SetVariations(variations)
	return r
}

// SetVariations replaces the variation list and recomputes the average.
func (r *TemplateResult) SetVariations(variations []Variation) {
	if variations == nil {
		variations = []Variation{}
	}
	r.Variations = variations
	r.recompute()
}

// AddVariation appends v and recomputes the average.
func (r *TemplateResult) AddVariation(v Variation) {
	r.Variations = append(r.Variations, v)
	r.recompute()
}

func (r *TemplateResult) recompute() {
	if len(r.Variations) == 0 {
		r.AverageViralityScore = 0
		return
	}
	var sum float64
	for _, v := range r.Variations {
		sum += v.ViralityScore
	}
	r.AverageViralityScore = sum / float64(len(r.Variations))
}

// CaptionSet is the output of a caption generator for one variation
type CaptionSet struct {
	Captions map[string]string
	Method   string
	Keywords []string
}
