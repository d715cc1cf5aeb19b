package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// StoryRepositoryPG implements domain.StoryRepository backed by PostgreSQL.
type StoryRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewStoryRepository creates a new StoryRepositoryPG.
func NewStoryRepository(pool *pgxpool.Pool) *StoryRepositoryPG {
	return &StoryRepositoryPG{pool: pool}
}

// GetByID fetches a story document by identifier.
func (r *StoryRepositoryPG) GetByID(ctx context.Context, storyID string) (*domain.Story, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, title, genre, tone, COALESCE(generated_content, ''), generated_at, created_at, updated_at
FROM stories
WHERE id = $1;`, storyID)

	var story domain.Story
	if err := row.Scan(
		&story.ID,
		&story.UserID,
		&story.Title,
		&story.Genre,
		&story.Tone,
		&story.GeneratedContent,
		&story.GeneratedAt,
		&story.CreatedAt,
		&story.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &story, nil
}

// ListChapters fetches the story's chapters ordered by chapter number.
func (r *StoryRepositoryPG) ListChapters(ctx context.Context, storyID string) ([]domain.Chapter, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, story_id, chapter_number, title, content, generated_at, created_at
FROM chapters
WHERE story_id = $1
ORDER BY chapter_number;`, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chapters []domain.Chapter
	for rows.Next() {
		var ch domain.Chapter
		if err := rows.Scan(
			&ch.ID,
			&ch.StoryID,
			&ch.ChapterNumber,
			&ch.Title,
			&ch.Content,
			&ch.GeneratedAt,
			&ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

// AddChapter persists a generated chapter under its story.
func (r *StoryRepositoryPG) AddChapter(ctx context.Context, chapter *domain.Chapter) error {
	query := `
INSERT INTO chapters (id, story_id, chapter_number, title, content, generated_at)
VALUES ($1, $2, $3, $4, $5, NOW());
`
	_, err := r.pool.Exec(ctx, query,
		chapter.ID,
		chapter.StoryID,
		chapter.ChapterNumber,
		chapter.Title,
		chapter.Content,
	)
	return err
}

// SaveGeneratedContent writes generated prose and its metadata onto the
// story document.
func (r *StoryRepositoryPG) SaveGeneratedContent(ctx context.Context, storyID, content string, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	query := `
UPDATE stories
SET generated_content = $2,
    generation_metadata = COALESCE(generation_metadata, '{}'::jsonb) || $3::jsonb,
    generated_at = NOW(),
    updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, storyID, content, metaJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
