package providers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/s9b/memenem-backend/internal/models"
)

// maxCaptionRunes bounds a single panel caption
const maxCaptionRunes = 200

var stylePrompts = map[models.HumorStyle]string{
	models.StyleSarcastic:      "Write sarcastic, witty meme captions that are relatable but cynical.",
	models.StyleGenZSlang:      "Write meme captions in Gen Z slang and internet speak (no cap, fr fr, hits different, it's giving).",
	models.StyleWholesome:      "Write wholesome, positive meme captions that are uplifting and heartwarming.",
	models.StyleDarkHumor:      "Write darkly humorous meme captions that are edgy but never offensive.",
	models.StyleCorporateIrony: "Write meme captions that ironically use corporate jargon and business buzzwords.",
}

// captionPrompt asks a model for one caption per panel as a JSON object
func captionPrompt(topic string, style models.HumorStyle, tmpl models.Template, keywords []string) string {
	instruction, ok := stylePrompts[style]
	if !ok {
		instruction = stylePrompts[models.StyleSarcastic]
	}

	keys := tmpl.PanelKeys()
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	if len(keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(keywords, ", "))
	}
	fmt.Fprintf(&b, "Meme template: %s (%d panels)\n", tmpl.Name, len(keys))
	if len(tmpl.Tags) > 0 {
		fmt.Fprintf(&b, "Template tags: %s\n", strings.Join(tmpl.Tags, ", "))
	}
	fmt.Fprintf(&b, "\nReturn only a JSON object with exactly these keys: %s. ", strings.Join(keys, ", "))
	b.WriteString("Each value is the caption for that panel, punchy and under 80 characters.")
	return b.String()
}

// captionSchema is the JSON schema of the object captionPrompt asks for
func captionSchema(tmpl models.Template) map[string]any {
	keys := tmpl.PanelKeys()
	props := make(map[string]any, len(keys))
	for _, k := range keys {
		props[k] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             keys,
		"additionalProperties": false,
	}
}

// parseCaptions decodes a model reply into panel captions. Replies wrapped
// in markdown fences are accepted. Every panel key must be present.
func parseCaptions(reply string, tmpl models.Template) (map[string]string, error) {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, errors.New("empty reply")
	}

	var raw map[string]string
	if err := json.Unmarshal([]byte(reply), &raw); err != nil {
		return nil, fmt.Errorf("reply is not a caption object: %w", err)
	}

	captions := make(map[string]string, tmpl.PanelCount)
	for _, k := range tmpl.PanelKeys() {
		text := cleanCaption(raw[k])
		if text == "" {
			return nil, fmt.Errorf("reply is missing %s", k)
		}
		captions[k] = text
	}
	return captions, nil
}

// cleanCaption strips surrounding quotes and whitespace and truncates long text
func cleanCaption(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"'“”‘’")
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > maxCaptionRunes {
		text = string(r[:maxCaptionRunes-3]) + "..."
	}
	return text
}
