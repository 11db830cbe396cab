package domain

import (
	"errors"
	"strings"
)

var ErrUnknownCategory = errors.New("unknown match category")

// Category selects the waiting queue.
type Category string

const (
	CategoryChat  Category = "chat"
	CategoryVideo Category = "video"
	CategoryAudio Category = "audio"
)

var Categories = []Category{CategoryChat, CategoryVideo, CategoryAudio}

func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case CategoryChat, CategoryVideo, CategoryAudio:
		return c, nil
	case "call":
		return CategoryVideo, nil
	}
	return "", ErrUnknownCategory
}

const AnyPreference = "any"

// Attributes describe a requester and what it is looking for.
// A nil *Attributes matches everyone.
type Attributes struct {
	Gender            string `json:"gender,omitempty"`
	Language          string `json:"language,omitempty"`
	PreferredGender   string `json:"preferredGender,omitempty"`
	PreferredLanguage string `json:"preferredLanguage,omitempty"`
}

// Compatible reports whether a and b accept each other.
func Compatible(a, b *Attributes) bool {
	if a == nil || b == nil {
		return true
	}
	return a.accepts(b) && b.accepts(a)
}

func (a *Attributes) accepts(other *Attributes) bool {
	return prefers(a.PreferredGender, other.Gender) &&
		prefers(a.PreferredLanguage, other.Language)
}

func prefers(pref, actual string) bool {
	pref = strings.TrimSpace(pref)
	if pref == "" || strings.EqualFold(pref, AnyPreference) {
		return true
	}
	return strings.EqualFold(pref, strings.TrimSpace(actual))
}
