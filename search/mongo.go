package search

import (
	"fmt"
	"regexp"
	"strings"

	"entitysvc/core"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoIDField is the document key the entity identifier is stored under
const MongoIDField = "_id"

var mongoOperators = map[core.FilterOperator]string{
	core.OpNe: "$ne",
	core.OpLt: "$lt",
	core.OpGt: "$gt",
	core.OpLe: "$lte",
	core.OpGe: "$gte",
}

// MongoField maps an entity field name to its document key
func MongoField(field string) string {
	if field == core.IdentifierField {
		return MongoIDField
	}
	return field
}

// MongoFilter renders a predicate as a MongoDB query document. A nil
// predicate matches every document.
func MongoFilter(p Predicate) (bson.M, error) {
	switch n := p.(type) {
	case nil:
		return bson.M{}, nil

	case Comparison:
		field := MongoField(n.Field)
		switch n.Op {
		case core.OpEq:
			return bson.M{field: n.Value}, nil
		case core.OpLike:
			pattern, ok := n.Value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: LIKE on %s needs a text pattern", core.ErrInvalidValue, n.Field)
			}
			return bson.M{field: bson.M{"$regex": LikeToRegex(pattern)}}, nil
		}
		op, ok := mongoOperators[n.Op]
		if !ok {
			return nil, fmt.Errorf("%w: %q", core.ErrInvalidFilterOperator, n.Op)
		}
		return bson.M{field: bson.M{op: n.Value}}, nil

	case Junction:
		children := make([]bson.M, 0, len(n.Children))
		for _, child := range n.Children {
			doc, err := MongoFilter(child)
			if err != nil {
				return nil, err
			}
			children = append(children, doc)
		}
		key := "$and"
		if n.Op == core.OpOr {
			key = "$or"
		}
		return bson.M{key: children}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported predicate %T", core.ErrInvalidParameter, p)
	}
}

// LikeToRegex translates a SQL LIKE pattern into an anchored regular
// expression. % matches any run and _ any single character; everything else
// is literal. Matching is case-insensitive like SQLite's LIKE.
func LikeToRegex(pattern string) primitive.Regex {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return primitive.Regex{Pattern: sb.String(), Options: "is"}
}

// MongoSort renders a sort specification as an ordered sort document
func MongoSort(spec SortSpec) bson.D {
	doc := make(bson.D, 0, len(spec))
	for _, key := range spec {
		dir := 1
		if key.Direction == Desc {
			dir = -1
		}
		doc = append(doc, bson.E{Key: MongoField(key.Field), Value: dir})
	}
	return doc
}
