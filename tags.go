package nostr

import (
	"iter"
	"slices"
)

type Tag []string

type Tags []Tag

// Key returns the tag name or "" for an empty tag.
func (tag Tag) Key() string {
	if len(tag) == 0 {
		return ""
	}
	return tag[0]
}

// Value returns the first value of the tag or "".
func (tag Tag) Value() string {
	if len(tag) < 2 {
		return ""
	}
	return tag[1]
}

// Clone creates a new array with these tag items inside.
func (tag Tag) Clone() Tag {
	return slices.Clone(tag)
}

// Has returns true if a tag exists with the given key (whether or not it has a value)
func (tags Tags) Has(key string) bool {
	for _, v := range tags {
		if len(v) >= 1 && v[0] == key {
			return true
		}
	}
	return false
}

// Find returns the first tag with the given key that also has a value.
func (tags Tags) Find(key string) Tag {
	for _, v := range tags {
		if len(v) >= 2 && v[0] == key {
			return v
		}
	}
	return nil
}

// FindAll yields all the tags with the given key that also have a value.
func (tags Tags) FindAll(key string) iter.Seq[Tag] {
	return func(yield func(Tag) bool) {
		for _, v := range tags {
			if len(v) >= 2 && v[0] == key {
				if !yield(v) {
					return
				}
			}
		}
	}
}

// GetD gets the first "d" tag value or ""
func (tags Tags) GetD() string {
	return tags.Find("d").Value()
}

// CloneDeep creates a new array with clones of these tags inside.
func (tags Tags) CloneDeep() Tags {
	if tags == nil {
		return nil
	}
	newArr := make(Tags, len(tags))
	for i := range newArr {
		newArr[i] = tags[i].Clone()
	}
	return newArr
}

func (tags Tags) ContainsAny(tagName string, values []string) bool {
	for _, tag := range tags {
		if len(tag) < 2 || tag[0] != tagName {
			continue
		}
		if slices.Contains(values, tag[1]) {
			return true
		}
	}
	return false
}
