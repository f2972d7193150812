package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/s9b/memenem-backend/internal/models"
)

// DefaultRedditURL is the public Reddit listing root
const DefaultRedditURL = "https://www.reddit.com"

// DefaultSubreddits are the meme subreddits scanned for templates
var DefaultSubreddits = []string{
	"memetemplate",
	"MemeTemplatesOfficial",
	"dankmemes",
	"memes",
	"wholesomememes",
	"AdviceAnimals",
}

var subredditTags = map[string][]string{
	"dankmemes":             {"dank", "edgy"},
	"wholesomememes":        {"wholesome", "positive"},
	"adviceanimals":         {"advice", "animal"},
	"memetemplate":          {"template"},
	"memetemplatesofficial": {"template", "official"},
}

var redditTitleNoise = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[(OC|Original Content|Template|Meme Template)\]`),
	regexp.MustCompile(`(?i)Meme\s*Template:?\s*`),
	regexp.MustCompile(`(?i)Template:?\s*`),
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	URL                 string  `json:"url"`
	IsSelf              bool    `json:"is_self"`
	Over18              bool    `json:"over_18"`
	Score               int     `json:"score"`
	NumComments         int     `json:"num_comments"`
	TotalAwardsReceived int     `json:"total_awards_received"`
	CreatedUTC          float64 `json:"created_utc"`
	Preview             *struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
}

// RedditSource collects image posts from the hot listings of meme subreddits
type RedditSource struct {
	baseURL    string
	subreddits []string
	fetch      *fetcher
	logger     zerolog.Logger
	now        func() time.Time
}

// NewRedditSource creates a new Reddit source
func NewRedditSource(baseURL string, subreddits []string, client *http.Client, requestsPerSecond float64, userAgent string, logger zerolog.Logger) *RedditSource {
	if baseURL == "" {
		baseURL = DefaultRedditURL
	}
	if len(subreddits) == 0 {
		subreddits = DefaultSubreddits
	}
	return &RedditSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		subreddits: subreddits,
		fetch:      newFetcher(client, requestsPerSecond, userAgent),
		logger:     logger.With().Str("source", string(models.SourceReddit)).Logger(),
		now:        time.Now,
	}
}

func (s *RedditSource) Name() models.SourceName {
	return models.SourceReddit
}

// Fetch scans each subreddit in turn and returns the most popular posts.
// A failing subreddit is skipped; Fetch only fails when all of them do.
func (s *RedditSource) Fetch(ctx context.Context, limit int) ([]models.Template, error) {
	perSubreddit := 25
	if limit > 0 {
		perSubreddit = limit/len(s.subreddits) + 5
	}

	var (
		templates []models.Template
		lastErr   error
		failures  int
	)
	for _, sub := range s.subreddits {
		found, err := s.scrapeSubreddit(ctx, sub, perSubreddit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			lastErr = err
			s.logger.Warn().Err(err).Str("subreddit", sub).Msg("failed to scrape subreddit")
			continue
		}
		templates = append(templates, found...)
	}
	if failures == len(s.subreddits) {
		return nil, fmt.Errorf("all subreddits failed: %w", lastErr)
	}

	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].Popularity > templates[j].Popularity
	})
	if limit > 0 && len(templates) > limit {
		templates = templates[:limit]
	}
	return templates, nil
}

func (s *RedditSource) scrapeSubreddit(ctx context.Context, sub string, limit int) ([]models.Template, error) {
	u := fmt.Sprintf("%s/r/%s/hot.json?limit=%d&raw_json=1", s.baseURL, url.PathEscape(sub), limit)

	var listing redditListing
	if err := s.fetch.getJSON(ctx, u, &listing); err != nil {
		return nil, err
	}

	templates := make([]models.Template, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if t, ok := s.toTemplate(child.Data, sub); ok {
			templates = append(templates, t)
		}
	}
	return templates, nil
}

func (s *RedditSource) toTemplate(post redditPost, sub string) (models.Template, bool) {
	if post.IsSelf || post.Over18 || post.ID == "" {
		return models.Template{}, false
	}
	image := postImage(post)
	if image == "" {
		return models.Template{}, false
	}
	name := cleanTitle(post.Title, 100, redditTitleNoise...)
	if name == "" {
		return models.Template{}, false
	}

	base := append([]string{"meme", "reddit", strings.ToLower(sub)}, subredditTags[strings.ToLower(sub)]...)
	return models.Template{
		TemplateID: "reddit_" + post.ID,
		Name:       name,
		ImageURL:   image,
		PanelCount: 2,
		Characters: []string{},
		Tags:       generateTags(name, base...),
		Source:     models.SourceReddit,
		Popularity: redditPopularity(post, s.now()),
	}, true
}

// postImage resolves a direct image URL for a post, or "" when it has none
func postImage(post redditPost) string {
	lower := strings.ToLower(post.URL)
	for _, ext := range imageExtensions {
		if strings.Contains(lower, ext) {
			return post.URL
		}
	}
	if strings.Contains(lower, "imgur.com/") {
		return imgurDirect(post.URL)
	}
	if post.Preview != nil && len(post.Preview.Images) > 0 {
		return post.Preview.Images[0].Source.URL
	}
	return ""
}

// imgurDirect turns imgur page and gallery links into i.imgur.com image links
func imgurDirect(u string) string {
	if strings.HasPrefix(u, "https://i.imgur.com") {
		return u
	}
	id := u[strings.LastIndex(u, "/")+1:]
	if id == "" {
		return ""
	}
	if strings.Contains(id, ".") {
		return "https://i.imgur.com/" + id
	}
	return "https://i.imgur.com/" + id + ".jpg"
}

// redditPopularity scores a post from 0 to 100 on upvotes, comments, awards
// and recency.
func redditPopularity(post redditPost, now time.Time) float64 {
	upvotes := math.Max(float64(post.Score), 1)
	score := math.Min(50, 10*math.Pow(upvotes, 0.3))
	score += math.Min(25, float64(post.NumComments)*0.5)
	score += math.Min(15, float64(post.TotalAwardsReceived)*2)

	if post.CreatedUTC > 0 {
		created := time.Unix(int64(post.CreatedUTC), 0)
		hours := now.Sub(created).Hours()
		score += math.Max(0, 10-hours*0.1)
	}
	return math.Min(100, score)
}
