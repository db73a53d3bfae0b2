// Package types provides common type definitions for the feed engine.
package types

// UserTier represents the subscription tier level.
type UserTier string

const (
	// TierFree represents the free tier with a small monthly consumption limit.
	TierFree UserTier = "free"
	// TierSilver represents the mid tier with a larger monthly limit.
	TierSilver UserTier = "silver"
	// TierGold represents the top tier with unlimited consumption.
	TierGold UserTier = "gold"
)

// MonthlyLimit returns the monthly article consumption limit for a tier.
// A nil result means unlimited.
func (t UserTier) MonthlyLimit() *int {
	switch t {
	case TierFree:
		v := 5
		return &v
	case TierSilver:
		v := 50
		return &v
	default:
		return nil
	}
}

// Valid reports whether the tier is a known value.
func (t UserTier) Valid() bool {
	return t == TierFree || t == TierSilver || t == TierGold
}

// FocusMode controls how strongly the feed sticks to the user's core topics.
type FocusMode string

const (
	// FocusStrict biases the feed heavily toward core subjects.
	FocusStrict FocusMode = "strict"
	// FocusBalanced is the default mix of core, adjacent and frontier subjects.
	FocusBalanced FocusMode = "balanced"
	// FocusDiscovery biases the feed toward frontier subjects.
	FocusDiscovery FocusMode = "discovery"
)

// NormalizeFocusMode maps arbitrary input onto a valid focus mode,
// falling back to balanced.
func NormalizeFocusMode(v string) FocusMode {
	switch FocusMode(v) {
	case FocusStrict, FocusBalanced, FocusDiscovery:
		return FocusMode(v)
	default:
		return FocusBalanced
	}
}

// Action represents a user interaction with an article.
type Action string

const (
	ActionView  Action = "view"
	ActionLike  Action = "like"
	ActionSave  Action = "save"
	ActionShare Action = "share"
	ActionSkip  Action = "skip"
)

// Valid reports whether the action is a known value.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionLike, ActionSave, ActionShare, ActionSkip:
		return true
	}
	return false
}

// Subject is one entry of the fixed content taxonomy.
type Subject string

// The fixed subject taxonomy. Articles outside it are classified Miscellaneous.
const (
	SubjectEngineering   Subject = "Engineering"
	SubjectBusiness      Subject = "Business"
	SubjectSales         Subject = "Sales"
	SubjectAI            Subject = "AI"
	SubjectFitness       Subject = "Fitness"
	SubjectFinance       Subject = "Finance"
	SubjectMarketing     Subject = "Marketing"
	SubjectProduct       Subject = "Product"
	SubjectScience       Subject = "Science"
	SubjectCybersecurity Subject = "Cybersecurity"
	SubjectDesign        Subject = "Design"
	SubjectMisc          Subject = "Miscellaneous"
)

// Subjects lists the full taxonomy in canonical order.
func Subjects() []Subject {
	return []Subject{
		SubjectEngineering,
		SubjectBusiness,
		SubjectSales,
		SubjectAI,
		SubjectFitness,
		SubjectFinance,
		SubjectMarketing,
		SubjectProduct,
		SubjectScience,
		SubjectCybersecurity,
		SubjectDesign,
		SubjectMisc,
	}
}

// Valid reports whether the subject belongs to the taxonomy.
func (s Subject) Valid() bool {
	for _, known := range Subjects() {
		if s == known {
			return true
		}
	}
	return false
}

// TopicBucket classifies a subject relative to the product's primary interest
// domain (AI practitioners).
type TopicBucket string

const (
	// BucketCore are subjects at the center of the interest domain.
	BucketCore TopicBucket = "core"
	// BucketAdjacent are subjects one step removed from the core.
	BucketAdjacent TopicBucket = "adjacent"
	// BucketFrontier are subjects outside the usual interest domain.
	BucketFrontier TopicBucket = "frontier"
)

// Bucket returns the topic bucket for a subject. Unknown subjects land in
// adjacent so they are neither privileged nor starved.
func (s Subject) Bucket() TopicBucket {
	switch s {
	case SubjectAI, SubjectEngineering, SubjectScience, SubjectCybersecurity:
		return BucketCore
	case SubjectProduct, SubjectDesign, SubjectFinance, SubjectMarketing:
		return BucketAdjacent
	case SubjectBusiness, SubjectSales, SubjectFitness, SubjectMisc:
		return BucketFrontier
	default:
		return BucketAdjacent
	}
}

// TopicBuckets returns the subject-to-bucket mapping for the whole taxonomy.
func TopicBuckets() map[Subject]TopicBucket {
	out := make(map[Subject]TopicBucket, len(Subjects()))
	for _, s := range Subjects() {
		out[s] = s.Bucket()
	}
	return out
}

// ServiceError represents a structured error response.
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
