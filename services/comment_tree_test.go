package services

import (
	"testing"
	"time"

	"fitchallenge/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatComment(id string, parent string, minute int) models.Comment {
	c := models.Comment{
		ID:        id,
		CreatedAt: time.Date(2025, 6, 1, 12, minute, 0, 0, time.UTC),
	}
	if parent != "" {
		c.ParentID = &parent
	}
	return c
}

func threadIDs(threads []CommentThread) [][]string {
	out := make([][]string, 0, len(threads))
	for _, th := range threads {
		ids := []string{th.ID}
		for _, r := range th.Replies {
			ids = append(ids, r.ID)
		}
		out = append(out, ids)
	}
	return out
}

func TestBuildCommentTreeOrdering(t *testing.T) {
	flat := []models.Comment{
		flatComment("r2", "a", 9),
		flatComment("a", "", 1),
		flatComment("b", "", 5),
		flatComment("r1", "a", 3),
		flatComment("r3", "b", 6),
		flatComment("c", "", 2),
	}

	got := BuildCommentTree(flat)
	assert.Equal(t, [][]string{
		{"b", "r3"},
		{"c"},
		{"a", "r1", "r2"},
	}, threadIDs(got))
}

func TestBuildCommentTreeTiesBreakByID(t *testing.T) {
	flat := []models.Comment{
		flatComment("x", "", 1),
		flatComment("y", "", 1),
		flatComment("r-b", "x", 2),
		flatComment("r-a", "x", 2),
	}
	assert.Equal(t, [][]string{{"y"}, {"x", "r-a", "r-b"}}, threadIDs(BuildCommentTree(flat)))
}

func TestBuildCommentTreeDropsOrphans(t *testing.T) {
	flat := []models.Comment{
		flatComment("a", "", 1),
		flatComment("orphan", "gone", 2),
	}
	got := BuildCommentTree(flat)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
	assert.Empty(t, got[0].Replies)
	assert.NotNil(t, got[0].Replies)
}

func TestBuildCommentTreeEmpty(t *testing.T) {
	got := BuildCommentTree(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBuildCommentTreeKeepsStoredReplyCount(t *testing.T) {
	top := flatComment("a", "", 1)
	top.ReplyCount = 3
	got := BuildCommentTree([]models.Comment{top, flatComment("r", "a", 2)})
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].ReplyCount)
	assert.Len(t, got[0].Replies, 1)
}
