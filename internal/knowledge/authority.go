package knowledge

import (
	"net/url"
	"strings"
)

// AuthorityTier ranks how official a source is. Official government and
// regulator publications outrank aggregators and commentary.
type AuthorityTier int

const (
	TierUnknown AuthorityTier = iota
	TierCommentary
	TierAggregator
	TierRegulator
	TierGovernment
)

// Weight is the retrieval boost contribution for chunks from this tier.
func (t AuthorityTier) Weight() float64 {
	switch t {
	case TierGovernment:
		return 0.2
	case TierRegulator:
		return 0.15
	case TierAggregator:
		return 0.05
	default:
		return 0
	}
}

func (t AuthorityTier) String() string {
	switch t {
	case TierGovernment:
		return "government"
	case TierRegulator:
		return "regulator"
	case TierAggregator:
		return "aggregator"
	case TierCommentary:
		return "commentary"
	default:
		return "unknown"
	}
}

// AuthorityClassifier maps source hosts to issuing bodies and tiers.
type AuthorityClassifier struct {
	regulators map[string]string // host suffix -> body name
}

// NewAuthorityClassifier creates a classifier preloaded with the Indian
// government and regulator hosts the knowledge base ingests from.
func NewAuthorityClassifier() *AuthorityClassifier {
	return &AuthorityClassifier{
		regulators: map[string]string{
			"irdai.gov.in":        "IRDAI",
			"uidai.gov.in":        "UIDAI",
			"incometax.gov.in":    "Income Tax Department",
			"epfindia.gov.in":     "EPFO",
			"rbi.org.in":          "RBI",
			"sebi.gov.in":         "SEBI",
			"mca.gov.in":          "MCA",
			"passportindia.gov.in": "Passport Seva",
			"parivahan.gov.in":    "MoRTH",
			"consumeraffairs.nic.in": "Department of Consumer Affairs",
		},
	}
}

// Classify returns the issuing body and tier for a source URL. Hosts under
// gov.in or nic.in are government even when no specific regulator matches.
func (c *AuthorityClassifier) Classify(rawURL string) (string, AuthorityTier) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", TierUnknown
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))

	for suffix, body := range c.regulators {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return body, TierRegulator
		}
	}
	if strings.HasSuffix(host, ".gov.in") || strings.HasSuffix(host, ".nic.in") ||
		host == "gov.in" || host == "nic.in" {
		return hostBody(host), TierGovernment
	}
	if strings.HasSuffix(host, ".org.in") || strings.HasSuffix(host, ".org") {
		return hostBody(host), TierAggregator
	}
	return hostBody(host), TierCommentary
}

// TierFor maps a stored authority name back to its tier, for boosting
// chunks that were ingested with an explicit authority label.
func (c *AuthorityClassifier) TierFor(authority string) AuthorityTier {
	if authority == "" {
		return TierUnknown
	}
	for _, body := range c.regulators {
		if strings.EqualFold(body, authority) {
			return TierRegulator
		}
	}
	lower := strings.ToLower(authority)
	if strings.Contains(lower, "ministry") || strings.Contains(lower, "department") ||
		strings.Contains(lower, "government") {
		return TierGovernment
	}
	return TierCommentary
}

func hostBody(host string) string {
	parts := strings.Split(host, ".")
	if len(parts) == 0 {
		return host
	}
	return parts[0]
}
