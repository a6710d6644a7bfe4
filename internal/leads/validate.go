package leads

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/lead-intake-gateway/internal/phone"
)

// allowedEmailTLDs restricts financing leads to domains the lender's CRM
// accepts.
var allowedEmailTLDs = []string{
	".com", ".net", ".org", ".edu", ".gov", ".mil", ".us",
	".info", ".biz", ".io", ".co", ".me",
}

// Validator turns raw JSON into a typed Submission.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a validator with the lead-specific rules registered.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	mustRegister(v, "usphone", func(fl validator.FieldLevel) bool {
		return phone.IsNormalized(fl.Field().String())
	})
	mustRegister(v, "usstate", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) == 2 && isUpperASCII(s[0]) && isUpperASCII(s[1])
	})
	mustRegister(v, "zip5", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) == 5 && phone.Digits(s) == s
	})
	mustRegister(v, "href", func(fl validator.FieldLevel) bool {
		return validHref(fl.Field().String())
	})
	v.RegisterStructValidation(validateFinancing, FinancingLead{})

	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("leads: register %s validation: %v", tag, err))
	}
}

// DecodeObject reads a JSON object body, keeping each field raw.
func DecodeObject(r io.Reader) (map[string]json.RawMessage, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if fields == nil {
		return nil, ErrInvalidJSON
	}
	return fields, nil
}

// ValidateJSON decodes and validates a request body. It returns
// ErrInvalidJSON for malformed input and *ValidationError for schema failures.
func (v *Validator) ValidateJSON(body []byte) (Submission, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, ErrInvalidJSON
	}
	lead, verr := v.Validate(fields)
	if verr != nil {
		return nil, verr
	}
	return lead, nil
}

// ValidateOnly validates fields that must be of type only. A missing type
// defaults to only.
func (v *Validator) ValidateOnly(fields map[string]json.RawMessage, only Type) (Submission, *ValidationError) {
	if _, ok := fields["type"]; !ok {
		fields["type"] = json.RawMessage(fmt.Sprintf("%q", only))
	}
	if t, _ := discriminator(fields); t != only {
		verr := &ValidationError{Message: msgInvalidSubmission}
		verr.add("type", fmt.Sprintf("Only %s submissions are accepted here", only))
		return nil, verr
	}
	return v.Validate(fields)
}

// Validate selects the variant named by the "type" field and checks every
// field, collecting all problems rather than stopping at the first.
func (v *Validator) Validate(fields map[string]json.RawMessage) (Submission, *ValidationError) {
	verr := &ValidationError{Message: msgInvalidSubmission}

	leadType, present := discriminator(fields)
	lead := newSubmission(leadType)
	if lead == nil {
		if present {
			verr.add("type", "Unknown lead type")
		} else {
			verr.add("type", "Required")
		}
		return nil, verr
	}

	if !decodeFields(lead, fields, verr) {
		verr.add("type", "Invalid value")
		return nil, verr
	}

	sanitize(lead)

	if err := v.v.Struct(lead); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			verr.add("type", "Invalid value")
			return nil, verr
		}
		for _, fe := range fieldErrs {
			verr.add(fieldPath(fe.Namespace()), fieldMessage(fe))
		}
	}

	if !verr.empty() {
		return nil, verr
	}
	return lead, nil
}

// decodeFields decodes each top-level field on its own so that every type
// mismatch is reported, not only the first. Mismatched fields are left zero
// for the struct checks that follow.
func decodeFields(lead Submission, fields map[string]json.RawMessage, verr *ValidationError) bool {
	accepted := make(map[string]json.RawMessage, len(fields))
	for name, raw := range fields {
		single, err := json.Marshal(map[string]json.RawMessage{name: raw})
		if err != nil {
			return false
		}
		if err := json.Unmarshal(single, newSubmission(lead.LeadType())); err != nil {
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &typeErr) {
				return false
			}
			verr.add(typeErrorPath(name, typeErr), "Invalid value")
			continue
		}
		accepted[name] = raw
	}

	body, err := json.Marshal(accepted)
	if err != nil {
		return false
	}
	return json.Unmarshal(body, lead) == nil
}

// typeErrorPath maps a decoder field path such as "Address.zip" to its JSON
// path. Embedded struct names are dropped the same way fieldPath drops them.
func typeErrorPath(name string, typeErr *json.UnmarshalTypeError) string {
	if path := fieldPath(typeErr.Field); path != "" {
		return path
	}
	return name
}

func discriminator(fields map[string]json.RawMessage) (Type, bool) {
	raw, ok := fields["type"]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", true
	}
	return Type(strings.TrimSpace(s)), true
}

func newSubmission(t Type) Submission {
	switch t {
	case TypeFinancing:
		return &FinancingLead{}
	case TypeFeedback:
		return &FeedbackLead{}
	case TypeSpecialOffer:
		return &SpecialOfferLead{}
	case TypeContact:
		return &ContactLead{}
	default:
		return nil
	}
}

func sanitize(lead Submission) {
	trimStrings(reflect.ValueOf(lead))

	switch l := lead.(type) {
	case *FinancingLead:
		l.Identity.normalize()
		l.Address.normalize()
	case *FeedbackLead:
		l.Identity.normalize()
	case *SpecialOfferLead:
		l.Identity.normalize()
	case *ContactLead:
		l.Identity.normalize()
		l.Address.normalize()
	}
}

func (i *Identity) normalize() {
	i.Email = strings.ToLower(i.Email)
	if normalized, err := phone.Normalize(i.Phone); err == nil {
		i.Phone = normalized
	}
}

func (a *Address) normalize() {
	a.State = strings.ToUpper(a.State)
	if digits := phone.Digits(a.Zip); digits != "" {
		a.Zip = digits
	}
}

// trimStrings trims every settable string reachable from v.
func trimStrings(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			trimStrings(v.Elem())
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if t.Field(i).IsExported() {
				trimStrings(v.Field(i))
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			trimStrings(v.Index(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(strings.TrimSpace(v.String()))
		}
	}
}

func validateFinancing(sl validator.StructLevel) {
	lead := sl.Current().Interface().(FinancingLead)

	if lead.Scoring != nil && lead.Match != nil {
		sl.ReportError(lead.Match, "match", "Match", "exclusive", "scoring")
	}
	if at := strings.LastIndex(lead.Email, "@"); at > 0 && !hasAllowedTLD(lead.Email[at+1:]) {
		sl.ReportError(lead.Email, "email", "Email", "allowedtld", "")
	}
}

func hasAllowedTLD(domain string) bool {
	for _, tld := range allowedEmailTLDs {
		if strings.HasSuffix(domain, tld) && len(domain) > len(tld) {
			return true
		}
	}
	return false
}

func validHref(s string) bool {
	if strings.HasPrefix(s, "/") {
		return !strings.HasPrefix(s, "//")
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https":
		return u.Host != ""
	case "mailto", "tel":
		return u.Opaque != ""
	default:
		return false
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// fieldPath turns a validator namespace such as
// "FinancingLead.Address.zip" or "FinancingLead.quizAnswers[0].id" into the
// dotted JSON path "zip" / "quizAnswers.0.id". Capitalized segments are the
// root type and embedded structs, which have no JSON name of their own.
func fieldPath(namespace string) string {
	var parts []string
	for _, seg := range strings.Split(namespace, ".") {
		name, index, indexed := strings.Cut(seg, "[")
		if name == "" || isUpperASCII(name[0]) {
			continue
		}
		parts = append(parts, name)
		if indexed {
			parts = append(parts, strings.TrimSuffix(index, "]"))
		}
	}
	return strings.Join(parts, ".")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "email":
		return "Enter a valid email address"
	case "allowedtld":
		return "Use an email address with a common domain such as .com, .net or .org"
	case "usphone":
		return "Enter a valid US phone number"
	case "usstate":
		return "Use a 2-letter state code"
	case "zip5":
		return "ZIP code must be 5 digits"
	case "href":
		return "Enter a valid link"
	case "exclusive":
		return "Provide either scoring or match, not both"
	case "oneof":
		return "Must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("Must be %s %s characters", bound, fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("Must have %s %s items", bound, fe.Param())
		default:
			return fmt.Sprintf("Must be %s %s", bound, fe.Param())
		}
	case "gte":
		return "Must be at least " + fe.Param()
	case "lte":
		return "Must be at most " + fe.Param()
	default:
		return "Invalid value"
	}
}

func isUpperASCII(c byte) bool {
	return c >= 'A' && c <= 'Z'
}
