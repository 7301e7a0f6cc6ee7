package sourcefilter

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

const attributionSubquery = "SELECT 1 FROM opportunity_attributions oa WHERE oa.opportunity_id = opportunities.id AND oa.utm_session_source IN ?"

// SQL renders the predicate as a where clause over the opportunities table,
// suitable for gorm's Where(query, args...). The empty predicate renders "".
func (p Predicate) SQL() (string, []interface{}) {
	switch p.Op {
	case "":
		return "", nil
	case OpAnd, OpOr:
		joiner := " AND "
		if p.Op == OpOr {
			joiner = " OR "
		}
		parts := make([]string, 0, len(p.Children))
		args := make([]interface{}, 0)
		for _, c := range p.Children {
			q, a := c.SQL()
			if q == "" {
				continue
			}
			parts = append(parts, q)
			args = append(args, a...)
		}
		if len(parts) == 0 {
			return "", nil
		}
		return "(" + strings.Join(parts, joiner) + ")", args
	case OpIn:
		return p.inSQL()
	case OpNotIn:
		return p.notInSQL()
	default:
		return "1 = 0", nil
	}
}

func (p Predicate) inSQL() (string, []interface{}) {
	switch p.Field {
	case FieldSource:
		switch {
		case len(p.Values) == 0 && p.MatchNull:
			return "opportunities.source IS NULL", nil
		case len(p.Values) == 0:
			return "1 = 0", nil
		case p.MatchNull:
			return "(opportunities.source IN ? OR opportunities.source IS NULL)", []interface{}{p.Values}
		default:
			return "opportunities.source IN ?", []interface{}{p.Values}
		}
	case FieldAttributionSource:
		if len(p.Values) == 0 {
			return "1 = 0", nil
		}
		return "EXISTS (" + attributionSubquery + ")", []interface{}{p.Values}
	}
	return "1 = 0", nil
}

func (p Predicate) notInSQL() (string, []interface{}) {
	if len(p.Values) == 0 {
		return "1 = 1", nil
	}
	switch p.Field {
	case FieldSource:
		return "(opportunities.source IS NULL OR opportunities.source NOT IN ?)", []interface{}{p.Values}
	case FieldAttributionSource:
		return "NOT EXISTS (" + attributionSubquery + ")", []interface{}{p.Values}
	}
	return "1 = 1", nil
}

// Document renders the predicate in the provider's native filter document form.
// The empty predicate renders an empty document. A single-value OpIn leaf
// renders as plain equality.
func (p Predicate) Document() bson.M {
	switch p.Op {
	case "":
		return bson.M{}
	case OpAnd, OpOr:
		children := make(bson.A, 0, len(p.Children))
		for _, c := range p.Children {
			children = append(children, c.Document())
		}
		return bson.M{string(p.Op): children}
	default:
		if p.Op == OpIn && len(p.Values) == 1 && !p.MatchNull {
			return bson.M{string(p.Field): p.Values[0]}
		}
		values := make(bson.A, 0, len(p.Values)+1)
		for _, v := range p.Values {
			values = append(values, v)
		}
		if p.MatchNull {
			values = append(values, nil)
		}
		return bson.M{string(p.Field): bson.M{string(p.Op): values}}
	}
}
