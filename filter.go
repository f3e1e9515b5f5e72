package nostr

import (
	"fmt"
	"slices"

	"github.com/mailru/easyjson"
)

type Filter struct {
	IDs     []ID
	Kinds   []Kind
	Authors []PubKey
	Tags    TagMap
	Since   Timestamp
	Until   Timestamp
	Limit   int
	Search  string

	// LimitZero is or must be set when there is a "limit":0 in the filter, and not when "limit" is just omitted
	LimitZero bool `json:"-"`
}

type TagMap map[string][]string

func (ef Filter) String() string {
	j, _ := easyjson.Marshal(ef)
	return string(j)
}

// Validate checks the constraints a relay would reject outright.
func (ef Filter) Validate() error {
	if ef.Since < 0 || ef.Until < 0 {
		return fmt.Errorf("%w: negative timestamp", ErrInvalidFilter)
	}
	if ef.Since != 0 && ef.Until != 0 && ef.Since > ef.Until {
		return fmt.Errorf("%w: since %d is after until %d", ErrInvalidFilter, ef.Since, ef.Until)
	}
	if ef.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidFilter, ef.Limit)
	}
	for k := range ef.Tags {
		if len(k) != 1 {
			return fmt.Errorf("%w: tag filter key %q must be a single letter", ErrInvalidFilter, k)
		}
	}
	return nil
}

func (ef Filter) Matches(event Event) bool {
	if ef.IDs != nil && !slices.Contains(ef.IDs, event.ID) {
		return false
	}

	if ef.Kinds != nil && !slices.Contains(ef.Kinds, event.Kind) {
		return false
	}

	if ef.Authors != nil && !slices.Contains(ef.Authors, event.PubKey) {
		return false
	}

	for f, v := range ef.Tags {
		if v != nil && !event.Tags.ContainsAny(f, v) {
			return false
		}
	}

	if ef.Since != 0 && event.CreatedAt < ef.Since {
		return false
	}

	if ef.Until != 0 && event.CreatedAt > ef.Until {
		return false
	}

	return true
}

func FilterEqual(a Filter, b Filter) bool {
	if !similar(a.Kinds, b.Kinds) || !similar(a.IDs, b.IDs) || !similar(a.Authors, b.Authors) {
		return false
	}

	if len(a.Tags) != len(b.Tags) {
		return false
	}
	for f, av := range a.Tags {
		bv, ok := b.Tags[f]
		if !ok || !similar(av, bv) {
			return false
		}
	}

	return a.Since == b.Since &&
		a.Until == b.Until &&
		a.Limit == b.Limit &&
		a.Search == b.Search &&
		a.LimitZero == b.LimitZero
}

func (ef Filter) Clone() Filter {
	clone := Filter{
		IDs:       slices.Clone(ef.IDs),
		Kinds:     slices.Clone(ef.Kinds),
		Authors:   slices.Clone(ef.Authors),
		Limit:     ef.Limit,
		Search:    ef.Search,
		LimitZero: ef.LimitZero,
		Since:     ef.Since,
		Until:     ef.Until,
	}

	if ef.Tags != nil {
		clone.Tags = make(TagMap, len(ef.Tags))
		for k, v := range ef.Tags {
			clone.Tags[k] = slices.Clone(v)
		}
	}

	return clone
}
