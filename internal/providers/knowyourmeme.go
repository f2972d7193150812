package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/s9b/memenem-backend/internal/models"
)

// DefaultKnowYourMemeURL is the Know Your Meme site root
const DefaultKnowYourMemeURL = "https://knowyourmeme.com"

// DefaultKnowYourMemePages are the listing pages scraped for templates
var DefaultKnowYourMemePages = []string{"/memes/trending", "/memes/popular", "/photos/trending"}

var (
	kymEntryClass = regexp.MustCompile(`(?i)(meme|entry|item)`)
	kymTitleClass = regexp.MustCompile(`(?i)(title|name|link)`)
	kymLikeClass  = regexp.MustCompile(`(?i)(like|vote|point)`)
	kymViews      = regexp.MustCompile(`(?i)([\d,]+)\s*views?`)
	kymNumber     = regexp.MustCompile(`[\d,]+`)
	kymImageName  = regexp.MustCompile(`(?i)/([^/]+)\.(jpg|jpeg|png|gif|webp)`)
	kymNonAlnum   = regexp.MustCompile(`[^a-z0-9]`)

	kymTitleNoise = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*\|\s*Know Your Meme`),
		regexp.MustCompile(`(?i)Meme\s*:`),
	}
)

var famousMemes = []string{
	"drake", "distracted boyfriend", "woman yelling at cat",
	"surprised pikachu", "this is fine", "expanding brain",
	"change my mind", "two buttons", "first time", "disaster girl",
}

// KnowYourMemeSource scrapes listing pages of Know Your Meme
type KnowYourMemeSource struct {
	baseURL string
	pages   []string
	fetch   *fetcher
	logger  zerolog.Logger
}

// NewKnowYourMemeSource creates a new Know Your Meme source
func NewKnowYourMemeSource(baseURL string, pages []string, client *http.Client, requestsPerSecond float64, userAgent string, logger zerolog.Logger) *KnowYourMemeSource {
	if baseURL == "" {
		baseURL = DefaultKnowYourMemeURL
	}
	if len(pages) == 0 {
		pages = DefaultKnowYourMemePages
	}
	return &KnowYourMemeSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		pages:   pages,
		fetch:   newFetcher(client, requestsPerSecond, userAgent),
		logger:  logger.With().Str("source", string(models.SourceKnowYourMeme)).Logger(),
	}
}

func (s *KnowYourMemeSource) Name() models.SourceName {
	return models.SourceKnowYourMeme
}

// Fetch scrapes every page, deduplicates by template id and returns the most
// popular entries.
func (s *KnowYourMemeSource) Fetch(ctx context.Context, limit int) ([]models.Template, error) {
	perPage := 20
	if limit > 0 {
		perPage = limit/len(s.pages) + 5
	}

	var (
		templates []models.Template
		lastErr   error
		failures  int
	)
	seen := make(map[string]struct{})
	for _, page := range s.pages {
		found, err := s.scrapePage(ctx, page, perPage)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			lastErr = err
			s.logger.Warn().Err(err).Str("page", page).Msg("failed to scrape page")
			continue
		}
		for _, t := range found {
			if _, dup := seen[t.TemplateID]; dup {
				continue
			}
			seen[t.TemplateID] = struct{}{}
			templates = append(templates, t)
		}
	}
	if failures == len(s.pages) {
		return nil, fmt.Errorf("all pages failed: %w", lastErr)
	}

	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].Popularity > templates[j].Popularity
	})
	if limit > 0 && len(templates) > limit {
		templates = templates[:limit]
	}
	return templates, nil
}

func (s *KnowYourMemeSource) scrapePage(ctx context.Context, page string, limit int) ([]models.Template, error) {
	doc, err := s.fetch.getDocument(ctx, s.baseURL+page)
	if err != nil {
		return nil, err
	}

	entries := doc.Find("td, div, article").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		return kymEntryClass.MatchString(class)
	})

	var templates []models.Template
	entries.EachWithBreak(func(_ int, entry *goquery.Selection) bool {
		if t, ok := s.toTemplate(entry); ok {
			templates = append(templates, t)
		}
		return len(templates) < limit
	})
	return templates, nil
}

func (s *KnowYourMemeSource) toTemplate(entry *goquery.Selection) (models.Template, bool) {
	title := entry.Find("h1, h2, h3, h4, a").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		return kymTitleClass.MatchString(class)
	}).First()
	if title.Length() == 0 {
		title = entry.Find("a").First()
	}
	name := cleanTitle(strings.TrimSpace(title.Text()), 80, kymTitleNoise...)
	if len([]rune(name)) < 3 {
		return models.Template{}, false
	}

	img := entry.Find("img").First()
	src, ok := img.Attr("data-src")
	if !ok || src == "" {
		src, _ = img.Attr("src")
	}
	image := s.absolute(src)
	if image == "" || strings.Contains(image, "icon") || strings.Contains(image, "avatar") || strings.Contains(image, "/small/") {
		return models.Template{}, false
	}

	text := strings.ToLower(entry.Text())
	views := kymCount(kymViews, text)
	likes := 0
	if like := entry.Find("*").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		return kymLikeClass.MatchString(class)
	}).First(); like.Length() > 0 {
		likes = kymCount(kymNumber, like.Text())
	}

	return models.Template{
		TemplateID: "kym_" + kymTemplateID(name, image),
		Name:       name,
		ImageURL:   image,
		PanelCount: 2,
		Characters: []string{},
		Tags:       generateTags(name, "meme", "knowyourmeme"),
		Source:     models.SourceKnowYourMeme,
		Popularity: kymPopularity(name, views, likes),
	}, true
}

func (s *KnowYourMemeSource) absolute(src string) string {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return ""
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "/"):
		return s.baseURL + src
	}
	return src
}

// kymCount returns the first number matched by re in text, ignoring commas
func kymCount(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	raw := m[len(m)-1]
	n, err := strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// kymTemplateID prefers the image file name and falls back to the name
func kymTemplateID(name, image string) string {
	if m := kymImageName.FindStringSubmatch(image); m != nil {
		return m[1]
	}
	id := kymNonAlnum.ReplaceAllString(strings.ToLower(name), "_")
	if len(id) > 30 {
		id = id[:30]
	}
	return id
}

// kymPopularity starts at 30 and adds points for views, likes and well known
// names, capped at 100.
func kymPopularity(name string, views, likes int) float64 {
	score := 30.0
	if views > 0 {
		score += math.Min(40, 10*math.Pow(float64(views), 0.2))
	}
	if likes > 0 {
		score += math.Min(20, float64(likes)*0.1)
	}
	lower := strings.ToLower(name)
	for _, famous := range famousMemes {
		if strings.Contains(lower, famous) {
			score += 15
			break
		}
	}
	return math.Min(100, score)
}
