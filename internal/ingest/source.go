// Package ingest supplies the article pool: live RSS fetching per subject
// with a deterministic generated fallback, plus the demo seed data.
package ingest

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/dailylens/internal/config"
	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/types"
)

// topicQueries maps each subject to its news search query.
var topicQueries = map[types.Subject]string{
	types.SubjectEngineering:   "engineering software development",
	types.SubjectBusiness:      "business strategy markets",
	types.SubjectSales:         "sales leadership b2b",
	types.SubjectAI:            "artificial intelligence machine learning",
	types.SubjectFitness:       "fitness health training",
	types.SubjectFinance:       "finance investing personal finance",
	types.SubjectMarketing:     "marketing growth brand strategy",
	types.SubjectProduct:       "product management roadmap user research",
	types.SubjectScience:       "science discoveries research",
	types.SubjectCybersecurity: "cybersecurity security threats privacy",
	types.SubjectDesign:        "design ux ui product design",
	types.SubjectMisc:          "workplace productivity lifestyle",
}

// GoogleNewsSource fetches per-subject article candidates from Google News
// RSS. Outbound requests are paced so a refresh burst cannot hammer the
// upstream.
type GoogleNewsSource struct {
	parser  *gofeed.Parser
	limiter *rate.Limiter
	timeout time.Duration
	logger  *logging.Logger
	now     func() time.Time
}

// NewGoogleNewsSource creates a paced RSS source.
func NewGoogleNewsSource(cfg *config.IngestConfig, logger *logging.Logger) *GoogleNewsSource {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &GoogleNewsSource{
		parser:  gofeed.NewParser(),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: cfg.FetchTimeout,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the time source for tests.
func (s *GoogleNewsSource) SetClock(now func() time.Time) {
	s.now = now
}

func searchFeedURL(query string) string {
	return fmt.Sprintf(
		"https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en",
		url.QueryEscape(query),
	)
}

func (s *GoogleNewsSource) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	feed, err := s.parser.ParseURLWithContext(feedURL, fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}
	return feed, nil
}

func (s *GoogleNewsSource) articleFromItem(item *gofeed.Item, id string, subject types.Subject) *models.Article {
	title := cleanText(item.Title)
	link := item.Link
	if title == "" || link == "" {
		return nil
	}

	summary := truncateRunes(cleanText(stripHTML(item.Description)), 300)
	if summary == "" {
		summary = fmt.Sprintf("Recent article about %s.", lowerSubject(subject))
	}

	// Google News titles carry the publisher as a " - Publisher" suffix.
	title, source := splitPublisher(title)

	createdAt := s.now().UTC()
	if item.PublishedParsed != nil {
		createdAt = item.PublishedParsed.UTC()
	}

	return &models.Article{
		ID:        id,
		Title:     title,
		Subject:   subject,
		Summary:   summary,
		CreatedAt: createdAt,
		URL:       link,
		Source:    source,
	}
}

// FetchPool builds a fresh article pool of roughly targetCount articles,
// spread across subjects. Subjects whose feed fails are skipped and the
// shortfall is filled from the deterministic fallback generator, so a
// refresh always yields a full pool even fully offline.
func (s *GoogleNewsSource) FetchPool(ctx context.Context, targetCount int) []*models.Article {
	perSubjectCap := int(math.Ceil(float64(targetCount)/float64(len(types.Subjects())))) + 3
	if perSubjectCap < 8 {
		perSubjectCap = 8
	}

	fetched := make([]*models.Article, 0, targetCount)
	seenLinks := make(map[string]struct{})

	for _, subject := range types.Subjects() {
		if len(fetched) >= targetCount {
			break
		}
		feed, err := s.fetchFeed(ctx, searchFeedURL(topicQueries[subject]))
		if err != nil {
			s.logger.WithError(err).WithField("subject", string(subject)).Warn("Feed fetch failed, skipping subject")
			continue
		}

		count := 0
		for _, item := range feed.Items {
			if count >= perSubjectCap || len(fetched) >= targetCount {
				break
			}
			article := s.articleFromItem(item, fmt.Sprintf("a%d", len(fetched)+1), subject)
			if article == nil {
				continue
			}
			if _, dup := seenLinks[article.URL]; dup {
				continue
			}
			seenLinks[article.URL] = struct{}{}
			fetched = append(fetched, article)
			count++
		}
	}

	if len(fetched) < targetCount {
		fetched = append(fetched, FallbackArticles(len(fetched), targetCount-len(fetched), s.now().UTC())...)
	}
	return fetched[:targetCount]
}

// SearchIngest pulls fresh articles matching an explore query into the
// pool. Returns the new articles; IDs start at startID and links already
// in existingLinks are skipped.
func (s *GoogleNewsSource) SearchIngest(
	ctx context.Context,
	query string,
	subjectFilter types.Subject,
	startID int,
	existingLinks map[string]struct{},
	maxNew int,
) []*models.Article {
	searchSubjects := types.Subjects()
	if subjectFilter != "" && subjectFilter.Valid() {
		searchSubjects = []types.Subject{subjectFilter}
	}

	added := make([]*models.Article, 0, maxNew)
	for _, subject := range searchSubjects {
		if len(added) >= maxNew {
			break
		}

		q := topicQueries[subject]
		if query != "" {
			q = q + " " + query
		}
		feed, err := s.fetchFeed(ctx, searchFeedURL(q))
		if err != nil {
			s.logger.WithError(err).WithField("subject", string(subject)).Debug("Search feed fetch failed")
			continue
		}

		for _, item := range feed.Items {
			if len(added) >= maxNew {
				break
			}
			article := s.articleFromItem(item, fmt.Sprintf("a%d", startID+len(added)), subject)
			if article == nil {
				continue
			}
			if _, dup := existingLinks[article.URL]; dup {
				continue
			}
			existingLinks[article.URL] = struct{}{}
			added = append(added, article)
		}
	}
	return added
}
