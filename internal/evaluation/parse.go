package evaluation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRanking means the decoded document had no usable ranking list at all
// (missing field or wrong type). ErrWrongLength means the list decoded fine
// but did not hold exactly RankingSize entries. Callers report which.
var (
	ErrNoRanking   = errors.New("decoded document has no ranking list")
	ErrWrongLength = errors.New("ranking list does not have exactly 5 entries")
)

// ParsedItem is one ranked entry extracted from a decoded answer.
type ParsedItem struct {
	Position int
	Brand    string
	Model    string
	RawText  string
}

// ParseRanking converts a decoded TOON document into ordered ranking
// records. Position is the 1-based index in the list; any position encoded
// in the text itself is not trusted. Per entry the brand is everything
// before the first space and the model everything after, so compound brands
// split wrong ("New Balance 9060" yields brand "New") — a known limitation
// of the line grammar, preserved rather than guessed around.
func ParseRanking(decoded map[string]any) ([]ParsedItem, error) {
	raw, ok := decoded["ranking"]
	if !ok {
		return nil, ErrNoRanking
	}
	var entries []string
	switch list := raw.(type) {
	case []string:
		entries = list
	case []any:
		for _, v := range list {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: entry is %T", ErrNoRanking, v)
			}
			entries = append(entries, s)
		}
	default:
		return nil, fmt.Errorf("%w: ranking is %T", ErrNoRanking, raw)
	}
	if len(entries) != RankingSize {
		return nil, fmt.Errorf("%w: got %d", ErrWrongLength, len(entries))
	}

	items := make([]ParsedItem, 0, RankingSize)
	for i, entry := range entries {
		brand, model, _ := strings.Cut(strings.TrimSpace(entry), " ")
		items = append(items, ParsedItem{
			Position: i + 1,
			Brand:    strings.TrimSpace(brand),
			Model:    strings.TrimSpace(model),
			RawText:  strings.TrimSpace(entry),
		})
	}
	return items, nil
}
