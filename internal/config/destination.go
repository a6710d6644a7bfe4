package config

import (
	"fmt"
	"strings"
)

// Destination is a resolved upstream endpoint and the secret sent with it.
type Destination struct {
	URL    string
	Secret string
}

// MisconfiguredError reports that no upstream destination could be resolved.
// Missing names the environment variables an operator would need to set; it
// is meant for server-side logs only.
type MisconfiguredError struct {
	LeadType string
	Missing  []string
}

func (e *MisconfiguredError) Error() string {
	return fmt.Sprintf("config: no upstream destination for %q (missing %s)", e.LeadType, strings.Join(e.Missing, ", "))
}

// Destination resolves where a lead of the given type is forwarded.
//
// The shared LEAD_ENDPOINT_URL/LEAD_FORWARD_SECRET pair always wins when both
// are set, even if a per-type pair is configured too. Otherwise the per-type
// pair is used; special-offer falls back field by field to the feedback pair,
// and contact-lead has no per-type pair at all.
func (c *Config) Destination(leadType string) (Destination, error) {
	if c.LeadEndpointURL != "" && c.LeadForwardSecret != "" {
		return Destination{URL: c.LeadEndpointURL, Secret: c.LeadForwardSecret}, nil
	}

	missing := missingVars(
		envPair{"LEAD_ENDPOINT_URL", c.LeadEndpointURL},
		envPair{"LEAD_FORWARD_SECRET", c.LeadForwardSecret},
	)

	var url, secret string
	switch leadType {
	case LeadTypeFinancing:
		url, secret = c.FinancingEndpointURL, c.FinancingForwardSecret
		missing = append(missing, missingVars(
			envPair{"FINANCING_LEAD_ENDPOINT_URL", url},
			envPair{"FINANCING_LEAD_FORWARD_SECRET", secret},
		)...)
	case LeadTypeFeedback:
		url, secret = c.FeedbackEndpointURL, c.FeedbackForwardSecret
		missing = append(missing, missingVars(
			envPair{"FEEDBACK_ENDPOINT_URL", url},
			envPair{"FEEDBACK_FORWARD_SECRET", secret},
		)...)
	case LeadTypeSpecialOffer:
		url = firstNonEmpty(c.SpecialOfferEndpointURL, c.FeedbackEndpointURL)
		secret = firstNonEmpty(c.SpecialOfferForwardSecret, c.FeedbackForwardSecret)
		if url == "" {
			missing = append(missing, "SPECIAL_OFFER_ENDPOINT_URL", "FEEDBACK_ENDPOINT_URL")
		}
		if secret == "" {
			missing = append(missing, "SPECIAL_OFFER_FORWARD_SECRET", "FEEDBACK_FORWARD_SECRET")
		}
	}

	if url == "" || secret == "" {
		return Destination{}, &MisconfiguredError{LeadType: leadType, Missing: missing}
	}
	return Destination{URL: url, Secret: secret}, nil
}

type envPair struct {
	name  string
	value string
}

func missingVars(pairs ...envPair) []string {
	var missing []string
	for _, p := range pairs {
		if p.value == "" {
			missing = append(missing, p.name)
		}
	}
	return missing
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
