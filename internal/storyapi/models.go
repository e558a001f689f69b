package storyapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp accepts the zone-less local date-times the story service emits
// as well as RFC 3339.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt Timestamp `json:"createdAt"`
}

type Genre struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type Story struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Published   bool      `json:"isPublished"`
	Status      string    `json:"status"`
	LikeCount   int       `json:"likeCount"`
	RatingAvg   float64   `json:"ratingAvg"`
	ReadCount   int       `json:"readCount"`
	Author      *User     `json:"author,omitempty"`
	Genre       *Genre    `json:"genre,omitempty"`
	Chapters    []Chapter `json:"chapters,omitempty"`
	CreatedAt   Timestamp `json:"createdAt"`
	UpdatedAt   Timestamp `json:"updatedAt"`
}

type Chapter struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Number    int       `json:"number"`
	Content   string    `json:"content,omitempty"`
	CreatedAt Timestamp `json:"createdAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	User      *User     `json:"user,omitempty"`
	Content   string    `json:"content"`
	LikeCount int       `json:"likeCount"`
	Replies   []Comment `json:"replies,omitempty"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// ReadStatus is a shelf in a reader's library.
type ReadStatus string

const (
	ReadStatusReading    ReadStatus = "reading"
	ReadStatusCompleted  ReadStatus = "completed"
	ReadStatusWantToRead ReadStatus = "want_to_read"
	ReadStatusLiked      ReadStatus = "liked"
)

// Valid reports whether s is one of the known shelves.
func (s ReadStatus) Valid() bool {
	switch s {
	case ReadStatusReading, ReadStatusCompleted, ReadStatusWantToRead, ReadStatusLiked:
		return true
	}
	return false
}

// ReadProgress is one story on a reader's shelf.
type ReadProgress struct {
	Story          *Story     `json:"story,omitempty"`
	Status         ReadStatus `json:"status"`
	CurrentChapter int        `json:"currentChapter,omitempty"`
	Progress       int        `json:"progress,omitempty"`
	LastReadAt     Timestamp  `json:"lastReadAt"`
	UpdatedAt      Timestamp  `json:"updatedAt"`
}

type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	Read      bool      `json:"read"`
	User      *User     `json:"user,omitempty"`
	Story     *Story    `json:"story,omitempty"`
	CreatedAt Timestamp `json:"createdAt"`
}

type LikeStatus struct {
	Liked bool `json:"liked"`
}

// Dashboard is the landing page: what is popular and what is new.
type Dashboard struct {
	Trending []Story `json:"trending"`
	Recent   []Story `json:"recent"`
}

type AuthResponse struct {
	Token string `json:"token"`
	Type  string `json:"type,omitempty"`
	User  User   `json:"user"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type StoryRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	GenreName   string `json:"genreName"`
	Status      string `json:"status"`
	AuthorID    string `json:"authorId"`
}

type ChapterRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ProfileUpdate struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Bio      string `json:"bio"`
}

// ReadUpdate moves a story onto a shelf, optionally recording progress.
type ReadUpdate struct {
	StoryID        string     `json:"storyId"`
	Status         ReadStatus `json:"status"`
	CurrentChapter *int       `json:"currentChapter,omitempty"`
	Progress       *int       `json:"progress,omitempty"`
}
