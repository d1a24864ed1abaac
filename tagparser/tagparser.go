// Package tagparser normalizes the free-form tag and date fields of the
// challenge form.
package tagparser

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	spaceRun = regexp.MustCompile(`\s+`)
	dateOnly = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ErrBadDate is returned for a date that is neither YYYY-MM-DD nor RFC3339
var ErrBadDate = errors.New("date must be YYYY-MM-DD or RFC3339")

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\u202F", " ")
	s = strings.ReplaceAll(s, "\u00A0", " ")
	return strings.TrimSpace(s)
}

// NormalizeTag lowercases a tag and joins its words with '-'.
// "Strength Training" becomes "strength-training".
func NormalizeTag(tag string) string {
	tag = strings.ToLower(normalize(tag))
	return spaceRun.ReplaceAllString(tag, "-")
}

// ParseTags splits comma-separated input into normalized tags, dropping
// empties and duplicates while keeping first-seen order
func ParseTags(input string) []string {
	return NormalizeTags(strings.Split(input, ","))
}

// NormalizeTags applies NormalizeTag to each entry with the same dedupe rules
// as ParseTags
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = NormalizeTag(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ParseDate accepts "YYYY-MM-DD" (midnight UTC) or an RFC3339 timestamp.
// Blank input returns nil.
func ParseDate(input string) (*time.Time, error) {
	input = normalize(input)
	if input == "" {
		return nil, nil
	}

	var (
		t   time.Time
		err error
	)
	if dateOnly.MatchString(input) {
		t, err = time.ParseInLocation(time.DateOnly, input, time.UTC)
	} else {
		t, err = time.Parse(time.RFC3339, input)
	}
	if err != nil {
		return nil, ErrBadDate
	}
	t = t.UTC()
	return &t, nil
}
