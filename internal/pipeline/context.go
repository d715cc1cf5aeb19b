package pipeline

import (
	"context"
	"fmt"

	"server/internal/domain"
)

// previousChapter is the shape the agent expects for prior-chapter context.
type previousChapter struct {
	ChapterNumber int    `json:"chapterNumber"`
	Title         string `json:"title"`
	Content       string `json:"content"`
}

// gatherChapterContext loads the story and the chapters preceding the one
// being generated, ordered by chapter number.
func gatherChapterContext(ctx context.Context, stories domain.StoryRepository, storyID string, chapterNumber int) (*domain.Story, []previousChapter, error) {
	story, err := stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, nil, fmt.Errorf("load story %s: %w", storyID, err)
	}

	chapters, err := stories.ListChapters(ctx, storyID)
	if err != nil {
		return nil, nil, fmt.Errorf("load chapters for story %s: %w", storyID, err)
	}

	previous := make([]previousChapter, 0, len(chapters))
	for _, ch := range chapters {
		if ch.ChapterNumber >= chapterNumber {
			continue
		}
		previous = append(previous, previousChapter{
			ChapterNumber: ch.ChapterNumber,
			Title:         ch.Title,
			Content:       ch.Content,
		})
	}
	return story, previous, nil
}
