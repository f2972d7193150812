package models

// HumorStyle selects the tone of generated captions
type HumorStyle string

const (
	StyleSarcastic      HumorStyle = "sarcastic"
	StyleGenZSlang      HumorStyle = "gen_z_slang"
	StyleWholesome      HumorStyle = "wholesome"
	StyleDarkHumor      HumorStyle = "dark_humor"
	StyleCorporateIrony HumorStyle = "corporate_irony"
)

// HumorStyles lists every accepted style.
var HumorStyles = []HumorStyle{
	StyleSarcastic,
	StyleGenZSlang,
	StyleWholesome,
	StyleDarkHumor,
	StyleCorporateIrony,
}

// GenerationRequest represents a request to generate caption variations
type GenerationRequest struct {
	Topic                 string     `json:"topic"`
	Style                 HumorStyle `json:"style"`
	MaxTemplates          int        `json:"max_templates"`
	VariationsPerTemplate int        `json:"variations_per_template"`
	TemplateID            string     `json:"template_id,omitempty"`
	Source                SourceName `json:"source,omitempty"`
}

// ApplyDefaults fills optional fields left empty by the client.
func (r *GenerationRequest) ApplyDefaults() {
	if r.Style == "" {
		r.Style = StyleSarcastic
	}
	if r.Source == "" {
		r.Source = SourceImgflip
	}
}

// SubmitResult is returned to the client after a job is accepted
type SubmitResult struct {
	JobID               string    `json:"job_id"`
	Status              JobStatus `json:"status"`
	EstimatedCompletion int       `json:"estimated_completion_time"`
}
