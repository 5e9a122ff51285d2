package duplicate

// Default classification thresholds.
const (
	DefaultExactThreshold = 0.95
	DefaultNearThreshold  = 0.80
)

// Tier is the duplicate class of a compared pair.
type Tier int

const (
	// TierDistinct pairs are not duplicates and are discarded.
	TierDistinct Tier = iota
	// TierNear pairs share most of their content.
	TierNear
	// TierExact pairs are practically identical.
	TierExact
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierNear:
		return "near"
	default:
		return "distinct"
	}
}

// Classifier buckets similarity scores into tiers.
type Classifier struct {
	// Exact is the lowest score classified as exact.
	Exact float64
	// Near is the lowest score classified as near.
	Near float64
}

// DefaultClassifier returns the classifier with the default thresholds.
func DefaultClassifier() Classifier {
	return Classifier{Exact: DefaultExactThreshold, Near: DefaultNearThreshold}
}

// Classify returns the tier of score. Both thresholds are inclusive.
func (c Classifier) Classify(score float64) Tier {
	switch {
	case score >= c.Exact:
		return TierExact
	case score >= c.Near:
		return TierNear
	default:
		return TierDistinct
	}
}
