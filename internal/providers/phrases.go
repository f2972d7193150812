package providers

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/s9b/memenem-backend/internal/models"
)

var stylePhrases = map[models.HumorStyle][]string{
	models.StyleSarcastic: {
		"Oh great, another {topic}",
		"Because {topic} is exactly what we needed",
		"Nothing says fun like {topic}",
		"Me pretending to care about {topic}",
		"That moment when {topic} happens",
		"Ah yes, {topic}, my favorite",
		"When someone mentions {topic} and you're like...",
		"*{topic} exists*\nMe: Why though?",
	},
	models.StyleGenZSlang: {
		"{topic} hits different fr fr",
		"POV: {topic} and you're not having it",
		"This {topic} is sending me",
		"Not the {topic} again bestie",
		"{topic} really said 'im about to end this whole vibe'",
		"Me when {topic}: that's sus ngl",
		"{topic} is giving main character energy",
		"No cap, {topic} is not it chief",
	},
	models.StyleWholesome: {
		"When {topic} brings everyone together",
		"The joy of {topic} never gets old",
		"Sometimes {topic} is exactly what we need",
		"Grateful for moments like {topic}",
		"Nothing beats the feeling of {topic}",
		"When {topic} makes your day better",
		"The simple pleasure of {topic}",
		"Spreading love through {topic}",
	},
	models.StyleDarkHumor: {
		"When {topic} but make it existential crisis",
		"Me accepting that {topic} is just life now",
		"The void stares back but at least there's {topic}",
		"Another day, another {topic} to question reality",
		"Embracing the chaos of {topic}",
		"When {topic} meets your abandonment issues",
		"Plot twist: {topic} was the real villain",
		"Me and {topic} against my mental health",
	},
	models.StyleCorporateIrony: {
		"Let's circle back on this {topic} initiative",
		"This {topic} is a real game-changer for our synergy",
		"We need to leverage {topic} for maximum ROI",
		"Taking {topic} to the next level of innovation",
		"Streamlining our {topic} workflow for optimal output",
		"Let's drill down into the {topic} metrics",
		"Moving the needle on {topic} deliverables",
		"Pivoting our {topic} strategy for scalability",
	},
}

var keywordFollowUps = []string{
	"*{keyword} intensifies*",
	"Classic {keyword} moment",
	"{Keyword}: 'Am I a joke to you?'",
}

// PhraseCaptioner fills canned phrases with the topic. It never fails and is
// the last link of a CaptionChain.
type PhraseCaptioner struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPhraseCaptioner creates a phrase captioner. A nil rnd uses a randomly
// seeded source.
func NewPhraseCaptioner(rnd *rand.Rand) *PhraseCaptioner {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &PhraseCaptioner{rnd: rnd}
}

func (p *PhraseCaptioner) Name() string {
	return "template"
}

// Generate picks a phrase for the style and spreads its lines over the
// template panels. Panels left over get further phrases.
func (p *PhraseCaptioner) Generate(_ context.Context, topic string, style models.HumorStyle, tmpl models.Template) (*models.CaptionSet, error) {
	keywords := models.Keywords(topic)
	phrases, ok := stylePhrases[style]
	if !ok {
		phrases = stylePhrases[models.StyleSarcastic]
	}
	topic = strings.TrimSpace(topic)

	p.mu.Lock()
	defer p.mu.Unlock()

	lines := p.phraseLines(phrases, topic, keywords)
	keys := tmpl.PanelKeys()
	captions := make(map[string]string, len(keys))
	for i, k := range keys {
		switch {
		case i == len(keys)-1 && len(lines) > 1:
			captions[k] = cleanCaption(strings.Join(lines, " "))
			lines = nil
		case len(lines) > 0:
			captions[k] = cleanCaption(lines[0])
			lines = lines[1:]
		default:
			extra := p.phraseLines(phrases, topic, nil)
			captions[k] = cleanCaption(strings.Join(extra, " "))
		}
	}
	return &models.CaptionSet{Captions: captions, Method: p.Name(), Keywords: keywords}, nil
}

// phraseLines returns a filled phrase split into lines. Short phrases get a
// keyword follow-up line when keywords are known.
func (p *PhraseCaptioner) phraseLines(phrases []string, topic string, keywords []string) []string {
	phrase := strings.ReplaceAll(phrases[p.rnd.IntN(len(phrases))], "{topic}", topic)
	lines := strings.Split(phrase, "\n")

	if len(keywords) > 0 && len(strings.Fields(phrase)) < 8 {
		kw := keywords[0]
		followUp := keywordFollowUps[p.rnd.IntN(len(keywordFollowUps))]
		followUp = strings.ReplaceAll(followUp, "{keyword}", kw)
		followUp = strings.ReplaceAll(followUp, "{Keyword}", strings.ToUpper(kw[:1])+kw[1:])
		lines = append(lines, followUp)
	}
	return lines
}
