// services/comment_tree.go - Thread assembly for the comment list
package services

import (
	"sort"

	"fitchallenge/models"
)

// CommentThread is a top-level comment with its replies. The reply count
// shown to users is Comment.ReplyCount, not len(Replies).
type CommentThread struct {
	models.Comment
	Replies []models.Comment `json:"replies"`
}

// BuildCommentTree groups a flat comment set into threads. Threads are newest
// first and replies oldest first, with ties broken by id. Replies whose
// parent is not in the set are left out.
func BuildCommentTree(flat []models.Comment) []CommentThread {
	threads := make([]CommentThread, 0, len(flat))
	index := make(map[string]int, len(flat))

	for _, c := range flat {
		if c.IsReply() {
			continue
		}
		index[c.ID] = len(threads)
		threads = append(threads, CommentThread{Comment: c, Replies: []models.Comment{}})
	}

	for _, c := range flat {
		if !c.IsReply() {
			continue
		}
		i, ok := index[*c.ParentID]
		if !ok {
			continue
		}
		threads[i].Replies = append(threads[i].Replies, c)
	}

	sort.Slice(threads, func(i, j int) bool {
		return newerFirst(&threads[i].Comment, &threads[j].Comment)
	})
	for i := range threads {
		replies := threads[i].Replies
		sort.Slice(replies, func(a, b int) bool {
			return olderFirst(&replies[a], &replies[b])
		})
	}
	return threads
}

func newerFirst(a, b *models.Comment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func olderFirst(a, b *models.Comment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
