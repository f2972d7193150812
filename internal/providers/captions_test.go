package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s9b/memenem-backend/internal/models"
)

func twoPanel() models.Template {
	return models.Template{
		TemplateID: "imgflip_181913649",
		Name:       "Drake Hotline Bling",
		PanelCount: 2,
		Tags:       []string{"meme", "reaction"},
		Popularity: 40,
	}
}

func TestParseCaptions(t *testing.T) {
	tmpl := twoPanel()

	captions, err := parseCaptions("```json\n{\"panel_1\": \"\\\"Monday\\\"\", \"panel_2\": \"  coffee  \"}\n```", tmpl)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"panel_1": "Monday", "panel_2": "coffee"}, captions)

	_, err = parseCaptions(`{"panel_1": "only one"}`, tmpl)
	assert.ErrorContains(t, err, "panel_2")

	_, err = parseCaptions("not json", tmpl)
	assert.Error(t, err)

	_, err = parseCaptions("   ", tmpl)
	assert.EqualError(t, err, "empty reply")
}

func TestCleanCaption_Truncates(t *testing.T) {
	long := strings.Repeat("a", 250)
	got := cleanCaption(long)
	assert.Equal(t, maxCaptionRunes, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestCaptionPrompt(t *testing.T) {
	prompt := captionPrompt("Monday morning meetings", models.StyleCorporateIrony, twoPanel(), []string{"monday", "morning"})
	assert.Contains(t, prompt, "corporate jargon")
	assert.Contains(t, prompt, "Topic: Monday morning meetings")
	assert.Contains(t, prompt, "Keywords: monday, morning")
	assert.Contains(t, prompt, "panel_1, panel_2")

	schema := captionSchema(twoPanel())
	assert.Equal(t, []string{"panel_1", "panel_2"}, schema["required"])
}

func TestPhraseCaptioner_FillsEveryPanel(t *testing.T) {
	p := NewPhraseCaptioner(rand.New(rand.NewPCG(1, 2)))

	for _, panels := range []int{1, 2, 3, 4} {
		tmpl := twoPanel()
		tmpl.PanelCount = panels
		for _, style := range models.HumorStyles {
			set, err := p.Generate(context.Background(), "Monday morning meetings", style, tmpl)
			require.NoError(t, err)
			assert.Equal(t, "template", set.Method)
			assert.Len(t, set.Captions, panels)
			for _, key := range tmpl.PanelKeys() {
				assert.NotEmpty(t, set.Captions[key], "style %s panel %s", style, key)
			}
			assert.Contains(t, set.Captions["panel_1"], "Monday morning meetings")
		}
	}
}

func TestPhraseCaptioner_UnknownStyle(t *testing.T) {
	p := NewPhraseCaptioner(nil)
	set, err := p.Generate(context.Background(), "cats", models.HumorStyle("absurdist"), twoPanel())
	require.NoError(t, err)
	assert.Len(t, set.Captions, 2)
}

type fakeCaptioner struct {
	name string
	err  error
	hang bool

	mu    sync.Mutex
	calls int
}

func (f *fakeCaptioner) Name() string { return f.name }

func (f *fakeCaptioner) Generate(ctx context.Context, topic string, _ models.HumorStyle, tmpl models.Template) (*models.CaptionSet, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	captions := make(map[string]string)
	for _, k := range tmpl.PanelKeys() {
		captions[k] = f.name + " " + topic
	}
	return &models.CaptionSet{Captions: captions, Method: f.name}, nil
}

func (f *fakeCaptioner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestCaptionChain_CallTimeoutFallsThrough(t *testing.T) {
	slow := &fakeCaptioner{name: "slow", hang: true}
	secondary := &fakeCaptioner{name: "secondary"}
	chain := NewCaptionChain(BreakerConfig{CallTimeout: 20 * time.Millisecond}, nil, zerolog.Nop(), slow, secondary)

	set, err := chain.Generate(context.Background(), "cats", models.StyleWholesome, twoPanel())
	require.NoError(t, err)
	assert.Equal(t, "secondary", set.Method)
	assert.Equal(t, 1, slow.callCount())
}

func TestCaptionChain_FirstSuccessWins(t *testing.T) {
	primary := &fakeCaptioner{name: "primary"}
	secondary := &fakeCaptioner{name: "secondary"}
	chain := NewCaptionChain(BreakerConfig{}, nil, zerolog.Nop(), primary, secondary)

	set, err := chain.Generate(context.Background(), "cats", models.StyleWholesome, twoPanel())
	require.NoError(t, err)
	assert.Equal(t, "primary", set.Method)
	assert.Equal(t, 0, secondary.callCount())
	assert.Equal(t, []string{"primary", "secondary"}, chain.Providers())
}

func TestCaptionChain_FallsThrough(t *testing.T) {
	primary := &fakeCaptioner{name: "primary", err: errors.New("quota exceeded")}
	secondary := &fakeCaptioner{name: "secondary"}
	chain := NewCaptionChain(BreakerConfig{}, nil, zerolog.Nop(), primary, secondary)

	set, err := chain.Generate(context.Background(), "cats", models.StyleWholesome, twoPanel())
	require.NoError(t, err)
	assert.Equal(t, "secondary", set.Method)
}

func TestCaptionChain_BreakerOpensAndFallsBack(t *testing.T) {
	flaky := &fakeCaptioner{name: "flaky", err: errors.New("upstream 500")}
	chain := NewCaptionChain(BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Hour}, nil, zerolog.Nop(), flaky)

	for i := 0; i < 5; i++ {
		set, err := chain.Generate(context.Background(), "cats", models.StyleSarcastic, twoPanel())
		require.NoError(t, err)
		assert.Equal(t, "template", set.Method)
	}

	assert.Equal(t, 2, flaky.callCount(), "open breaker stops calling the provider")
	assert.Equal(t, "open", chain.BreakerStates()["flaky"])
}

func TestCaptionChain_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &fakeCaptioner{name: "primary", err: context.Canceled}
	chain := NewCaptionChain(BreakerConfig{}, nil, zerolog.Nop(), primary)

	_, err := chain.Generate(ctx, "cats", models.StyleSarcastic, twoPanel())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", chain.BreakerStates()["primary"])
}

func TestHeuristicScorer_Score(t *testing.T) {
	scorer := NewHeuristicScorer()
	tmpl := twoPanel()
	tmpl.Tags = []string{"meme", "work"}
	captions := map[string]string{"panel_1": "Monday again", "panel_2": "coffee please"}

	// popularity 16 + length 37.6 + keywords 9 + familiarity 10.8 + style 2
	score, err := scorer.Score(context.Background(), tmpl, captions, models.StyleSarcastic, "Monday morning meetings")
	require.NoError(t, err)
	assert.InDelta(t, 75.4, score, 1e-9)

	darker, err := scorer.Score(context.Background(), tmpl, captions, models.StyleDarkHumor, "Monday morning meetings")
	require.NoError(t, err)
	assert.InDelta(t, 73.4, darker, 1e-9)
}

func TestHeuristicScorer_Clamps(t *testing.T) {
	scorer := NewHeuristicScorer()

	tmpl := twoPanel()
	tmpl.Popularity = 0
	tmpl.Tags = nil
	long := map[string]string{"panel_1": strings.Repeat("x", 150), "panel_2": strings.Repeat("y", 150)}
	low, err := scorer.Score(context.Background(), tmpl, long, models.StyleDarkHumor, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, low)

	tmpl.Popularity = 100
	tmpl.Tags = []string{"monday"}
	short := map[string]string{"panel_1": "monday coffee meeting vibe", "panel_2": ""}
	high, err := scorer.Score(context.Background(), tmpl, short, models.StyleSarcastic, "monday")
	require.NoError(t, err)
	assert.Equal(t, 100.0, high)
}

func TestKeywordMatch(t *testing.T) {
	assert.Equal(t, 0.0, keywordMatch(nil, "", ""))
	assert.InDelta(t, 0.5, keywordMatch([]string{"cat", "dog"}, "my cat", ""), 1e-9)
	assert.InDelta(t, 0.3, keywordMatch(nil, "monday coffee zoom vibe", ""), 1e-9)
	assert.Equal(t, 1.0, keywordMatch([]string{"cat"}, "cat monday", ""))
}

const openAIReply = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1767225600,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": %q}
  }]
}`

func TestOpenAICaptioner_Generate(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, openAIReply, `{"panel_1": "New sprint", "panel_2": "Same bugs"}`)
	}))
	defer server.Close()

	captioner, err := NewOpenAICaptioner("test-key", "", server.URL)
	require.NoError(t, err)

	set, err := captioner.Generate(context.Background(), "Monday morning meetings", models.StyleSarcastic, twoPanel())
	require.NoError(t, err)
	assert.Equal(t, "openai", set.Method)
	assert.Equal(t, map[string]string{"panel_1": "New sprint", "panel_2": "Same bugs"}, set.Captions)
	assert.Equal(t, []string{"monday", "morning", "meetings"}, set.Keywords)

	assert.Contains(t, body, "meme_captions")
	assert.Contains(t, body, DefaultOpenAIModel)
}

func TestOpenAICaptioner_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "boom", "type": "server_error"}}`)
	}))
	defer server.Close()

	captioner, err := NewOpenAICaptioner("test-key", "gpt-4o", server.URL)
	require.NoError(t, err)

	_, err = captioner.Generate(context.Background(), "cats", models.StyleSarcastic, twoPanel())
	assert.Error(t, err)
}

func TestOpenAICaptioner_RequiresKey(t *testing.T) {
	_, err := NewOpenAICaptioner("", "", "")
	assert.Error(t, err)
}

func TestGeminiCaptioner_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, DefaultGeminiModel)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"candidates": [{"content": {"role": "model", "parts": [{"text": %q}]}}]}`,
			`{"panel_1": "Camera off", "panel_2": "Mic off"}`)
	}))
	defer server.Close()

	captioner, err := NewGeminiCaptioner(context.Background(), "test-key", "", server.URL)
	require.NoError(t, err)

	set, err := captioner.Generate(context.Background(), "zoom calls", models.StyleGenZSlang, twoPanel())
	require.NoError(t, err)
	assert.Equal(t, "gemini", set.Method)
	assert.Equal(t, "Camera off", set.Captions["panel_1"])
	assert.Equal(t, "Mic off", set.Captions["panel_2"])
}
