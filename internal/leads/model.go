package leads

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Type is the discriminator carried in every submission's "type" field.
type Type string

const (
	TypeFinancing    Type = "financing-calculator"
	TypeFeedback     Type = "feedback"
	TypeSpecialOffer Type = "special-offer"
	TypeContact      Type = "contact-lead"
)

// Types lists every supported lead type.
var Types = []Type{TypeFinancing, TypeFeedback, TypeSpecialOffer, TypeContact}

// Submission is a validated lead. It is implemented only by the four
// variant structs in this package.
type Submission interface {
	LeadType() Type
	Base() *Envelope
	isSubmission()
}

// Envelope holds the fields shared by every lead type. CFToken and Honeypot
// exist for the gateway only and never reach the upstream payload.
type Envelope struct {
	Type        Type   `json:"type"`
	CFToken     string `json:"cfToken" validate:"required,min=10,max=2048"`
	Honeypot    string `json:"hp,omitempty" validate:"max=200"`
	Page        string `json:"page,omitempty" validate:"max=500"`
	UTMSource   string `json:"utmSource,omitempty" validate:"max=200"`
	UTMMedium   string `json:"utmMedium,omitempty" validate:"max=200"`
	UTMCampaign string `json:"utmCampaign,omitempty" validate:"max=200"`
}

// Base returns the shared envelope.
func (e *Envelope) Base() *Envelope { return e }

// Identity is the person submitting the form.
type Identity struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,max=254,email"`
	Phone     string `json:"phone" validate:"required,max=32,usphone"`
}

// FullName joins first and last name.
func (i Identity) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Address is a US property address.
type Address struct {
	AddressLine1 string `json:"addressLine1" validate:"required,max=200"`
	AddressLine2 string `json:"addressLine2,omitempty" validate:"max=200"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"required,usstate"`
	Zip          string `json:"zip" validate:"required,zip5"`
}

// OneLine renders the address on a single line.
func (a Address) OneLine() string {
	street := a.AddressLine1
	if a.AddressLine2 != "" {
		street += " " + a.AddressLine2
	}
	return strings.TrimSpace(street + ", " + a.City + ", " + a.State + " " + a.Zip)
}

// QuizAnswer is one answered question from the financing quiz.
type QuizAnswer struct {
	ID          Scalar `json:"id" validate:"required,max=100"`
	Question    string `json:"question" validate:"required,max=500"`
	Answer      Scalar `json:"answer" validate:"max=500"`
	AnswerValue Scalar `json:"answerValue,omitempty" validate:"max=200"`
	AnswerLabel string `json:"answerLabel,omitempty" validate:"max=200"`
}

// Scoring carries the raw per-program quiz scores.
type Scoring struct {
	YgreneScore         Number `json:"ygreneScore" validate:"gte=0,lte=100"`
	ServiceFinanceScore Number `json:"serviceFinanceScore" validate:"gte=0,lte=100"`
	IsUncertain         bool   `json:"isUncertain"`
}

// Match is the quiz's recommended financing program.
type Match struct {
	Program string   `json:"program" validate:"required,oneof=serviceFinance ygrene"`
	Score   Number   `json:"score" validate:"gte=0,lte=100"`
	Reasons []string `json:"reasons,omitempty" validate:"max=3,dive,required,max=300"`
}

// FinancingLead is a financing-calculator quiz submission.
type FinancingLead struct {
	Envelope
	Identity
	Address
	Amount      Number       `json:"amount" validate:"required,gte=1000,lte=10000000"`
	QuizAnswers []QuizAnswer `json:"quizAnswers,omitempty" validate:"max=25,dive"`
	Scoring     *Scoring     `json:"scoring,omitempty"`
	Match       *Match       `json:"match,omitempty"`
}

// FeedbackLead is a site feedback submission.
type FeedbackLead struct {
	Envelope
	Identity
	Rating    Rating `json:"rating" validate:"oneof=1 2 3"`
	Message   string `json:"message" validate:"required,max=5000"`
	UserAgent string `json:"userAgent,omitempty" validate:"max=500"`
	Timezone  string `json:"timezone,omitempty" validate:"max=100"`
}

// SpecialOfferLead is a claim for a published special offer.
type SpecialOfferLead struct {
	Envelope
	Identity
	OfferCode       string `json:"offerCode" validate:"required,max=64"`
	OfferSlug       string `json:"offerSlug" validate:"required,max=200"`
	OfferTitle      string `json:"offerTitle,omitempty" validate:"max=200"`
	OfferExpiration string `json:"offerExpiration,omitempty" validate:"max=100"`
	Message         string `json:"message,omitempty" validate:"max=1000"`
}

// Resource is a link shown to the visitor alongside the contact form.
type Resource struct {
	Label       string `json:"label" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=500"`
	Href        string `json:"href" validate:"required,max=2000,href"`
	External    bool   `json:"external,omitempty"`
}

// ContactLead is a general contact request.
type ContactLead struct {
	Envelope
	Identity
	Address
	ProjectType      string     `json:"projectType" validate:"required,max=100"`
	HelpTopics       string     `json:"helpTopics,omitempty" validate:"max=1000"`
	Timeline         string     `json:"timeline,omitempty" validate:"max=100"`
	Notes            string     `json:"notes,omitempty" validate:"max=2000"`
	PreferredContact string     `json:"preferredContact" validate:"required,oneof=phone-call email"`
	BestTimeToCall   string     `json:"bestTimeToCall,omitempty" validate:"max=100"`
	SMSConsent       bool       `json:"smsConsent"`
	Resources        []Resource `json:"resources,omitempty" validate:"max=20,dive"`
}

func (*FinancingLead) LeadType() Type    { return TypeFinancing }
func (*FeedbackLead) LeadType() Type     { return TypeFeedback }
func (*SpecialOfferLead) LeadType() Type { return TypeSpecialOffer }
func (*ContactLead) LeadType() Type      { return TypeContact }

func (*FinancingLead) isSubmission()    {}
func (*FeedbackLead) isSubmission()     {}
func (*SpecialOfferLead) isSubmission() {}
func (*ContactLead) isSubmission()      {}

// invalidNumber marks a value that could not be coerced; it fails every
// range check the schema applies.
const invalidNumber = -1

// Number accepts a JSON number or a numeric string.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		data = []byte(s)
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*n = invalidNumber
		return nil
	}
	*n = Number(f)
	return nil
}

// Rating is a 1-3 feedback score sent as a number or a numeric string.
type Rating int

func (r *Rating) UnmarshalJSON(data []byte) error {
	var n Number
	if err := n.UnmarshalJSON(data); err != nil {
		return err
	}
	if float64(n) != float64(int(n)) {
		*r = invalidNumber
		return nil
	}
	*r = Rating(n)
	return nil
}

// Scalar accepts a JSON string, number or boolean and keeps its text.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
	default:
		*s = Scalar(data)
	}
	return nil
}
