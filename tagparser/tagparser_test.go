package tagparser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTags(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"single", "Running", []string{"running"}},
		{"trims and lowercases", "  Yoga , PILATES ", []string{"yoga", "pilates"}},
		{"inner whitespace", "Strength   Training, mental\thealth", []string{"strength-training", "mental-health"}},
		{"dedupes after normalizing", "cardio, Cardio ,CARDIO", []string{"cardio"}},
		{"drops empties", "a,, ,b", []string{"a", "b"}},
		{"non-breaking space", "core\u00A0work", []string{"core-work"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseTags(tc.input))
		})
	}
}

func TestNormalizeTagsKeepsOrder(t *testing.T) {
	got := NormalizeTags([]string{"Walking", "cardio", "walking", "Easy Pace"})
	assert.Equal(t, []string{"walking", "cardio", "easy-pace"}, got)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = ParseDate("2025-03-01")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *d)

	d, err = ParseDate("2025-03-01T10:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC), *d)

	for _, bad := range []string{"03/01/2025", "2025-13-01", "tomorrow"} {
		_, err = ParseDate(bad)
		assert.ErrorIs(t, err, ErrBadDate, bad)
	}
}
