package leads

import (
	"strings"

	"github.com/wolfman30/lead-intake-gateway/internal/phone"
)

// ContactDraft is the state collected by the multi-step contact form.
type ContactDraft struct {
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	AddressLine1     string
	AddressLine2     string
	City             string
	State            string
	Zip              string
	ProjectType      string
	HelpTopics       []string
	Timeline         string
	Notes            string
	PreferredContact string
	BestTimeToCall   string
	SMSConsent       bool
	Resources        []Resource

	CFToken     string
	Page        string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
}

// BuildContactLeadPayload turns a contact draft into the request body posted
// to the gateway. A draft whose fields are filled in with valid values always
// produces a body the validator accepts.
func BuildContactLeadPayload(d ContactDraft) *ContactLead {
	preferred := strings.TrimSpace(d.PreferredContact)
	if preferred == "" {
		preferred = "phone-call"
	}

	phoneNumber := strings.TrimSpace(d.Phone)
	if normalized, err := phone.Normalize(phoneNumber); err == nil {
		phoneNumber = normalized
	}

	var topics []string
	for _, topic := range d.HelpTopics {
		if topic = strings.TrimSpace(topic); topic != "" {
			topics = append(topics, topic)
		}
	}

	return &ContactLead{
		Envelope: Envelope{
			Type:        TypeContact,
			CFToken:     strings.TrimSpace(d.CFToken),
			Page:        strings.TrimSpace(d.Page),
			UTMSource:   strings.TrimSpace(d.UTMSource),
			UTMMedium:   strings.TrimSpace(d.UTMMedium),
			UTMCampaign: strings.TrimSpace(d.UTMCampaign),
		},
		Identity: Identity{
			FirstName: strings.TrimSpace(d.FirstName),
			LastName:  strings.TrimSpace(d.LastName),
			Email:     strings.TrimSpace(d.Email),
			Phone:     phoneNumber,
		},
		Address: Address{
			AddressLine1: strings.TrimSpace(d.AddressLine1),
			AddressLine2: strings.TrimSpace(d.AddressLine2),
			City:         strings.TrimSpace(d.City),
			State:        strings.ToUpper(strings.TrimSpace(d.State)),
			Zip:          strings.TrimSpace(d.Zip),
		},
		ProjectType:      strings.TrimSpace(d.ProjectType),
		HelpTopics:       strings.Join(topics, ", "),
		Timeline:         strings.TrimSpace(d.Timeline),
		Notes:            strings.TrimSpace(d.Notes),
		PreferredContact: preferred,
		BestTimeToCall:   strings.TrimSpace(d.BestTimeToCall),
		SMSConsent:       d.SMSConsent,
		Resources:        NormalizeResources(d.Resources),
	}
}
