package ingest

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/types"
)

var fallbackTemplates = map[types.Subject][]string{
	types.SubjectEngineering:   {"System Design", "Backend Architecture", "Frontend Reliability", "APIs at Scale"},
	types.SubjectBusiness:      {"Market Trends", "Pricing Strategies", "Growth Levers", "Unit Economics"},
	types.SubjectSales:         {"B2B Pipeline", "Outbound Strategies", "Account Expansion", "Deal Forecasting"},
	types.SubjectAI:            {"LLM Productization", "Model Evaluation", "Agent Workflows", "RAG Patterns"},
	types.SubjectFitness:       {"Strength Programming", "Mobility Routine", "Recovery Science", "Nutrition Habits"},
	types.SubjectFinance:       {"Interest Rate Outlook", "Portfolio Rebalancing", "Fintech Trends", "Budget Optimization"},
	types.SubjectMarketing:     {"Audience Segmentation", "Content Strategy", "Brand Positioning", "Performance Marketing"},
	types.SubjectProduct:       {"Roadmap Prioritization", "Discovery Methods", "Feature Adoption", "Experiment Design"},
	types.SubjectScience:       {"Research Breakthroughs", "Lab Methods", "Health Studies", "Climate Findings"},
	types.SubjectCybersecurity: {"Threat Intelligence", "Zero Trust", "Security Operations", "Incident Response"},
	types.SubjectDesign:        {"Interaction Patterns", "Design Systems", "User Testing", "Accessibility"},
	types.SubjectMisc:          {"Work-Life Balance", "Communication", "Career Moves", "Creative Thinking"},
}

// FallbackArticles generates count deterministic articles starting at
// startIdx. Used to top up the pool when live fetching comes up short, so
// the engine always has a full candidate set to rank.
func FallbackArticles(startIdx, count int, now time.Time) []*models.Article {
	rng := rand.New(rand.NewSource(99)) // #nosec G404 - deterministic content generation, not crypto
	subjects := types.Subjects()
	result := make([]*models.Article, 0, count)

	for idx := 0; idx < count; idx++ {
		n := startIdx + idx
		subject := subjects[n%len(subjects)]
		templates := fallbackTemplates[subject]
		topic := templates[rng.Intn(len(templates))]

		age := time.Duration(rng.Intn(31))*24*time.Hour + time.Duration(rng.Intn(24))*time.Hour
		result = append(result, &models.Article{
			ID:        fmt.Sprintf("a%d", n+1),
			Title:     fmt.Sprintf("%s: Insight %d", topic, n+1),
			Subject:   subject,
			Summary:   fmt.Sprintf("Fallback generated item for %s in %s.", strings.ToLower(topic), lowerSubject(subject)),
			CreatedAt: now.Add(-age),
			URL:       "",
			Source:    "Generated",
		})
	}
	return result
}
