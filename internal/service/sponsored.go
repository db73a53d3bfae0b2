package service

import (
	"fmt"
	"time"
)

type sponsoredCard struct {
	Title   string
	Summary string
	URL     string
	Source  string
}

var sponsoredCards = []sponsoredCard{
	{
		Title:   "Sponsored: Build AI Agents Faster",
		Summary: "Ship production-ready agent workflows with managed tooling and observability.",
		URL:     "https://example.com/ai-agents",
		Source:  "VectorCloud",
	},
	{
		Title:   "Sponsored: Learn Product Strategy in 30 Days",
		Summary: "Structured cohort for PMs covering roadmap, discovery, and growth loops.",
		URL:     "https://example.com/product-strategy",
		Source:  "ProductCraft Pro",
	},
	{
		Title:   "Sponsored: Zero-Trust Security for Startups",
		Summary: "Harden endpoints, identity, and secrets without enterprise overhead.",
		URL:     "https://example.com/zero-trust",
		Source:  "SafeStack",
	},
}

// injectSponsoredCards blends a sponsored card after every cadence-th
// organic item on the page. Insertions never displace organic items, so
// pagination offsets over the ranked ordering stay stable.
func injectSponsoredCards(items []FeedItem, cadence int, now time.Time) []FeedItem {
	if cadence <= 0 {
		return items
	}

	blended := make([]FeedItem, 0, len(items)+len(sponsoredCards))
	adIdx := 0
	organic := 0
	for _, item := range items {
		blended = append(blended, item)
		if item.IsSponsored {
			continue
		}
		organic++
		if organic%cadence == 0 && adIdx < len(sponsoredCards) {
			card := sponsoredCards[adIdx]
			adIdx++
			blended = append(blended, FeedItem{
				ID:          fmt.Sprintf("ad-%d", adIdx),
				Title:       card.Title,
				Subject:     "Sponsored",
				Summary:     card.Summary,
				CreatedAt:   now,
				URL:         card.URL,
				Source:      card.Source,
				Score:       0,
				IsSponsored: true,
			})
		}
	}
	return blended
}
