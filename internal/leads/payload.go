package leads

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/wolfman30/lead-intake-gateway/internal/phone"
)

var programLabels = map[string]string{
	"serviceFinance": "Service Finance",
	"ygrene":         "Ygrene",
}

// Tracking is attribution data attached to every upstream payload.
type Tracking struct {
	Page        string `json:"page,omitempty"`
	UTMSource   string `json:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty"`
}

// Contact is the person block shared by every upstream payload.
type Contact struct {
	Name         string `json:"name"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PhoneDisplay string `json:"phoneDisplay"`
}

// PropertyAddress is the address block of financing and contact payloads.
type PropertyAddress struct {
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
}

// MatchPayload is a quiz match with its program's display label.
type MatchPayload struct {
	Program      string   `json:"program"`
	ProgramLabel string   `json:"programLabel"`
	Score        float64  `json:"score"`
	Reasons      []string `json:"reasons,omitempty"`
}

// FinancingPayload is sent upstream for financing-calculator leads.
type FinancingPayload struct {
	Type Type `json:"type"`
	Contact
	PropertyAddress
	Amount        float64       `json:"amount"`
	AmountDisplay string        `json:"amountDisplay"`
	Summary       string        `json:"summary"`
	QuizAnswers   []QuizAnswer  `json:"quizAnswers,omitempty"`
	QuizSummary   string        `json:"quizSummary,omitempty"`
	Scoring       *Scoring      `json:"scoring,omitempty"`
	Match         *MatchPayload `json:"match,omitempty"`
	Tracking
}

// FeedbackPayload is sent upstream for feedback leads.
type FeedbackPayload struct {
	Type Type `json:"type"`
	Contact
	Rating    string `json:"rating"`
	Message   string `json:"message"`
	UserAgent string `json:"userAgent,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
	Tracking
}

// SpecialOfferPayload is sent upstream for special-offer claims.
type SpecialOfferPayload struct {
	Type Type `json:"type"`
	Contact
	OfferCode       string `json:"offerCode"`
	OfferSlug       string `json:"offerSlug"`
	OfferTitle      string `json:"offerTitle,omitempty"`
	OfferExpiration string `json:"offerExpiration,omitempty"`
	Message         string `json:"message"`
	Tracking
}

// ContactPayload is sent upstream for contact leads.
type ContactPayload struct {
	Type Type `json:"type"`
	Contact
	PropertyAddress
	ProjectType      string     `json:"projectType"`
	HelpTopics       string     `json:"helpTopics,omitempty"`
	Timeline         string     `json:"timeline,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	PreferredContact string     `json:"preferredContact"`
	BestTimeToCall   string     `json:"bestTimeToCall,omitempty"`
	SMSConsent       bool       `json:"smsConsent"`
	Resources        []Resource `json:"resources,omitempty"`
	Tracking
}

// BuildPayload converts a validated submission into its upstream shape.
// The gateway-only fields (cfToken, hp) have no counterpart in any payload.
func BuildPayload(lead Submission) (any, error) {
	switch l := lead.(type) {
	case *FinancingLead:
		return buildFinancingPayload(l), nil
	case *FeedbackLead:
		return buildFeedbackPayload(l), nil
	case *SpecialOfferLead:
		return buildSpecialOfferPayload(l), nil
	case *ContactLead:
		return buildContactPayload(l), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, lead)
	}
}

func buildFinancingPayload(l *FinancingLead) *FinancingPayload {
	amount := float64(l.Amount)
	p := &FinancingPayload{
		Type:            TypeFinancing,
		Contact:         contactOf(l.Identity),
		PropertyAddress: addressOf(l.Address),
		Amount:          amount,
		AmountDisplay:   FormatUSD(amount),
		QuizAnswers:     l.QuizAnswers,
		QuizSummary:     quizSummary(l.QuizAnswers),
		Scoring:         l.Scoring,
		Tracking:        trackingOf(l.Envelope),
	}
	if l.Match != nil {
		p.Match = &MatchPayload{
			Program:      l.Match.Program,
			ProgramLabel: programLabel(l.Match.Program),
			Score:        float64(l.Match.Score),
			Reasons:      l.Match.Reasons,
		}
	}

	summary := fmt.Sprintf("%s is requesting %s in financing for the property at %s.",
		p.Name, p.AmountDisplay, l.Address.OneLine())
	if p.Match != nil {
		summary += fmt.Sprintf(" Recommended program: %s (score %s).",
			p.Match.ProgramLabel, strconv.FormatFloat(p.Match.Score, 'f', -1, 64))
	}
	p.Summary = summary
	return p
}

func buildFeedbackPayload(l *FeedbackLead) *FeedbackPayload {
	return &FeedbackPayload{
		Type:      TypeFeedback,
		Contact:   contactOf(l.Identity),
		Rating:    strconv.Itoa(int(l.Rating)),
		Message:   l.Message,
		UserAgent: l.UserAgent,
		Timezone:  l.Timezone,
		Tracking:  trackingOf(l.Envelope),
	}
}

func buildSpecialOfferPayload(l *SpecialOfferLead) *SpecialOfferPayload {
	lines := []string{"Special offer claim"}
	if l.OfferTitle != "" {
		lines = append(lines, "Offer: "+l.OfferTitle)
	}
	lines = append(lines, "Offer code: "+l.OfferCode, "Offer slug: "+l.OfferSlug)
	if l.OfferExpiration != "" {
		lines = append(lines, "Expires: "+l.OfferExpiration)
	}
	if l.Message != "" {
		lines = append(lines, "", "Message:", l.Message)
	}

	return &SpecialOfferPayload{
		Type:            TypeSpecialOffer,
		Contact:         contactOf(l.Identity),
		OfferCode:       l.OfferCode,
		OfferSlug:       l.OfferSlug,
		OfferTitle:      l.OfferTitle,
		OfferExpiration: l.OfferExpiration,
		Message:         strings.Join(lines, "\n"),
		Tracking:        trackingOf(l.Envelope),
	}
}

func buildContactPayload(l *ContactLead) *ContactPayload {
	return &ContactPayload{
		Type:             TypeContact,
		Contact:          contactOf(l.Identity),
		PropertyAddress:  addressOf(l.Address),
		ProjectType:      l.ProjectType,
		HelpTopics:       l.HelpTopics,
		Timeline:         l.Timeline,
		Notes:            l.Notes,
		PreferredContact: l.PreferredContact,
		BestTimeToCall:   l.BestTimeToCall,
		SMSConsent:       l.SMSConsent,
		Resources:        NormalizeResources(l.Resources),
		Tracking:         trackingOf(l.Envelope),
	}
}

// NormalizeResources drops duplicate links and marks absolute URLs external.
func NormalizeResources(resources []Resource) []Resource {
	if len(resources) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(resources))
	out := make([]Resource, 0, len(resources))
	for _, r := range resources {
		r.Label = strings.TrimSpace(r.Label)
		r.Description = strings.TrimSpace(r.Description)
		r.Href = strings.TrimSpace(r.Href)
		if r.Label == "" || r.Href == "" {
			continue
		}
		if _, dup := seen[r.Href]; dup {
			continue
		}
		seen[r.Href] = struct{}{}
		if strings.HasPrefix(r.Href, "http://") || strings.HasPrefix(r.Href, "https://") {
			r.External = true
		}
		out = append(out, r)
	}
	return out
}

// FormatUSD renders a dollar amount, e.g. 15000 -> "$15,000" and
// 1234.5 -> "$1,234.50".
func FormatUSD(amount float64) string {
	if amount == math.Trunc(amount) {
		return "$" + humanize.Comma(int64(amount))
	}
	return "$" + humanize.FormatFloat("#,###.##", amount)
}

func programLabel(program string) string {
	if label, ok := programLabels[program]; ok {
		return label
	}
	return program
}

func quizSummary(answers []QuizAnswer) string {
	lines := make([]string, 0, len(answers))
	for _, a := range answers {
		answer := a.AnswerLabel
		if answer == "" {
			answer = string(a.Answer)
		}
		if answer == "" {
			answer = string(a.AnswerValue)
		}
		lines = append(lines, fmt.Sprintf("%s: %s", a.Question, answer))
	}
	return strings.Join(lines, "\n")
}

func contactOf(i Identity) Contact {
	return Contact{
		Name:         i.FullName(),
		FirstName:    i.FirstName,
		LastName:     i.LastName,
		Email:        i.Email,
		Phone:        i.Phone,
		PhoneDisplay: phone.Display(i.Phone),
	}
}

func addressOf(a Address) PropertyAddress {
	return PropertyAddress{
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		Zip:          a.Zip,
	}
}

func trackingOf(e Envelope) Tracking {
	return Tracking{
		Page:        e.Page,
		UTMSource:   e.UTMSource,
		UTMMedium:   e.UTMMedium,
		UTMCampaign: e.UTMCampaign,
	}
}
