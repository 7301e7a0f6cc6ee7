// Package sourcefilter maps a marketing channel label to a predicate over the
// raw attribution fields of an opportunity.
package sourcefilter

import "strings"

// Field names a filterable attribute using the provider's dotted notation.
type Field string

const (
	FieldSource            Field = "source"
	FieldAttributionSource Field = "attributions.utmSessionSource"
)

// Op is a predicate operator.
type Op string

const (
	OpIn    Op = "$in"
	OpNotIn Op = "$nin"
	OpAnd   Op = "$and"
	OpOr    Op = "$or"
)

// Channel labels accepted by Build.
const (
	LabelAll             = "All"
	LabelPaidSearch      = "Paid Search"
	LabelPaidSocial      = "Paid Social"
	LabelOrganicSearch   = "Organic Search"
	LabelOrganicSocial   = "Organic Social"
	LabelDirectTraffic   = "Direct Traffic"
	LabelReferralTraffic = "Referral Traffic"
	LabelOther           = "Other"
)

// Predicate is a small boolean expression tree. The zero value matches everything.
//
// Leaf nodes (OpIn, OpNotIn) test Field against Values. MatchNull adds "field is
// absent" to an OpIn leaf. Branch nodes (OpAnd, OpOr) combine Children.
type Predicate struct {
	Op        Op
	Field     Field
	Values    []string
	MatchNull bool
	Children  []Predicate
}

// IsEmpty reports whether the predicate imposes no constraint.
func (p Predicate) IsEmpty() bool {
	return p.Op == ""
}

func In(field Field, values ...string) Predicate {
	return Predicate{Op: OpIn, Field: field, Values: values}
}

// InOrNull matches values or an absent field.
func InOrNull(field Field, values ...string) Predicate {
	return Predicate{Op: OpIn, Field: field, Values: values, MatchNull: true}
}

func NotIn(field Field, values ...string) Predicate {
	return Predicate{Op: OpNotIn, Field: field, Values: values}
}

func And(children ...Predicate) Predicate {
	return Predicate{Op: OpAnd, Children: children}
}

func Or(children ...Predicate) Predicate {
	return Predicate{Op: OpOr, Children: children}
}

var (
	paidSearchSources    = []string{"Google Ads", "google ads"}
	paidSocialSources    = []string{"Facebook Ads: Botox", "Facebook Ad: Diamond Glow", "facebook form lead"}
	organicSocialSources = []string{"Instagram DM", "Facebook Message"}

	organicSearchAttribution = "Organic Search"
	directAttribution        = "Direct traffic"
	referralAttribution      = "Referral"

	otherSources      = []string{"chat widget", "Website Form: Consultation", "form 9", "undefined"}
	otherAttributions = []string{"CRM UI", "Other", "CRM Workflows"}
)

// Build returns the predicate for a channel label. An empty label, "All" and any
// unrecognized label all yield the empty predicate.
func Build(label string) Predicate {
	switch strings.TrimSpace(label) {
	case LabelPaidSearch:
		return In(FieldSource, paidSearchSources...)
	case LabelPaidSocial:
		return In(FieldSource, paidSocialSources...)
	case LabelOrganicSearch:
		return In(FieldAttributionSource, organicSearchAttribution)
	case LabelOrganicSocial:
		return In(FieldSource, organicSocialSources...)
	case LabelDirectTraffic:
		return In(FieldAttributionSource, directAttribution)
	case LabelReferralTraffic:
		return In(FieldAttributionSource, referralAttribution)
	case LabelOther:
		return And(
			Or(
				InOrNull(FieldSource, otherSources...),
				In(FieldAttributionSource, otherAttributions...),
			),
			NotIn(FieldSource, NamedSources()...),
			NotIn(FieldAttributionSource, NamedAttributions()...),
		)
	default:
		return Predicate{}
	}
}

// NamedSources lists every source literal owned by a named channel other than "Other".
func NamedSources() []string {
	out := make([]string, 0, len(paidSearchSources)+len(paidSocialSources)+len(organicSocialSources))
	out = append(out, paidSearchSources...)
	out = append(out, paidSocialSources...)
	out = append(out, organicSocialSources...)
	return out
}

// NamedAttributions lists every attribution literal owned by a named channel other than "Other".
func NamedAttributions() []string {
	return []string{organicSearchAttribution, directAttribution, referralAttribution}
}

// Labels returns the channel labels in display order.
func Labels() []string {
	return []string{
		LabelAll,
		LabelPaidSearch,
		LabelPaidSocial,
		LabelOrganicSearch,
		LabelOrganicSocial,
		LabelDirectTraffic,
		LabelReferralTraffic,
		LabelOther,
	}
}
