package domain

import "time"

// Story is the document the pipeline gathers context from and writes
// generated prose back to. The authoring surface owns its lifecycle.
type Story struct {
	ID               string
	UserID           string
	Title            string
	Genre            string
	Tone             string
	GeneratedContent string
	GeneratedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Chapter is one chapter document belonging to a story.
type Chapter struct {
	ID            string
	StoryID       string
	ChapterNumber int
	Title         string
	Content       string
	GeneratedAt   *time.Time
	CreatedAt     time.Time
}
