package knowledge

import "testing"

func TestClassifyAuthority(t *testing.T) {
	c := NewAuthorityClassifier()

	tests := []struct {
		name     string
		url      string
		wantBody string
		wantTier AuthorityTier
	}{
		{"regulator", "https://www.irdai.gov.in/claims", "IRDAI", TierRegulator},
		{"regulator subdomain", "https://portal.uidai.gov.in/update", "UIDAI", TierRegulator},
		{"government", "https://services.india.gov.in/service/detail", "services", TierGovernment},
		{"nic host", "https://tnreginet.nic.in/deeds", "tnreginet", TierGovernment},
		{"aggregator", "https://legalaid.org/guides", "legalaid", TierAggregator},
		{"commentary", "https://someblog.example.com/post", "someblog", TierCommentary},
		{"invalid url", "://notaurl", "", TierUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, tier := c.Classify(tt.url)
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
			if tier != tt.wantTier {
				t.Errorf("tier = %v, want %v", tier, tt.wantTier)
			}
		})
	}
}

func TestTierFor(t *testing.T) {
	c := NewAuthorityClassifier()

	tests := []struct {
		authority string
		want      AuthorityTier
	}{
		{"IRDAI", TierRegulator},
		{"irdai", TierRegulator},
		{"Income Tax Department", TierRegulator},
		{"Ministry of Home Affairs", TierGovernment},
		{"Some Blog", TierCommentary},
		{"", TierUnknown},
	}

	for _, tt := range tests {
		if got := c.TierFor(tt.authority); got != tt.want {
			t.Errorf("TierFor(%q) = %v, want %v", tt.authority, got, tt.want)
		}
	}
}

func TestTierWeights(t *testing.T) {
	// Weights must be ordered by officialness and capped under the
	// retrieval boost ceiling.
	if !(TierGovernment.Weight() > TierRegulator.Weight() &&
		TierRegulator.Weight() > TierAggregator.Weight() &&
		TierAggregator.Weight() > TierCommentary.Weight()) {
		t.Error("tier weights not monotonic")
	}
	if TierGovernment.Weight() > 0.2 {
		t.Errorf("government weight %v exceeds boost cap", TierGovernment.Weight())
	}
}
