package storyapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func (c *Client) ListStories(ctx context.Context) ([]Story, error) {
	var out []Story
	err := c.get(ctx, "list_stories", "stories", nil, &out)
	return out, err
}

func (c *Client) SearchStories(ctx context.Context, query string) ([]Story, error) {
	var out []Story
	err := c.get(ctx, "search_stories", "stories", url.Values{"search": {query}}, &out)
	return out, err
}

func (c *Client) Story(ctx context.Context, id string) (*Story, error) {
	var out Story
	if err := c.get(ctx, "get_story", pathEscape("stories", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StoriesByGenre(ctx context.Context, genre string) ([]Story, error) {
	var out []Story
	err := c.get(ctx, "stories_by_genre", pathEscape("stories", "genre", genre), nil, &out)
	return out, err
}

func (c *Client) StoriesByAuthor(ctx context.Context, userID string) ([]Story, error) {
	var out []Story
	err := c.get(ctx, "stories_by_author", pathEscape("stories", "user", userID), nil, &out)
	return out, err
}

func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var out Dashboard
	if err := c.get(ctx, "dashboard", "stories/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateStory(ctx context.Context, req StoryRequest) (*Story, error) {
	var out Story
	if err := c.send(ctx, "create_story", http.MethodPost, "stories", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Chapters(ctx context.Context, storyID string) ([]Chapter, error) {
	var out []Chapter
	err := c.get(ctx, "list_chapters", pathEscape("stories", storyID, "chapters"), nil, &out)
	return out, err
}

// Chapter fetches a chapter by its 1-based number within the story.
func (c *Client) Chapter(ctx context.Context, storyID string, number int) (*Chapter, error) {
	var out Chapter
	path := pathEscape("stories", storyID, "chapter", strconv.Itoa(number))
	if err := c.get(ctx, "get_chapter", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddChapter(ctx context.Context, storyID string, req ChapterRequest) (*Chapter, error) {
	var out Chapter
	if err := c.send(ctx, "add_chapter", http.MethodPost, pathEscape("stories", storyID, "chapters"), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Comments(ctx context.Context, storyID, chapterID string) ([]Comment, error) {
	var out []Comment
	err := c.get(ctx, "list_comments", pathEscape("stories", storyID, "chapters", chapterID, "comments"), nil, &out)
	return out, err
}

type commentBody struct {
	UserID  string `json:"userId"`
	Content string `json:"content"`
}

func (c *Client) PostComment(ctx context.Context, storyID, chapterID, userID, content string) (*Comment, error) {
	var out Comment
	path := pathEscape("stories", storyID, "chapters", chapterID, "comments")
	if err := c.send(ctx, "post_comment", http.MethodPost, path, nil, commentBody{userID, content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Reply(ctx context.Context, storyID, chapterID, commentID, userID, content string) (*Comment, error) {
	var out Comment
	path := pathEscape("stories", storyID, "chapters", chapterID, "comments", commentID, "reply")
	if err := c.send(ctx, "reply_comment", http.MethodPost, path, nil, commentBody{userID, content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LikeComment(ctx context.Context, storyID, chapterID, commentID, userID string) error {
	path := pathEscape("stories", storyID, "chapters", chapterID, "comments", commentID, "like")
	return c.send(ctx, "like_comment", http.MethodPost, path, url.Values{"userId": {userID}}, nil, nil)
}

func (c *Client) LikeStatus(ctx context.Context, storyID, userID string) (bool, error) {
	var out LikeStatus
	err := c.get(ctx, "like_status", pathEscape("stories", storyID, "like"), url.Values{"userId": {userID}}, &out)
	return out.Liked, err
}

func (c *Client) LikeStory(ctx context.Context, storyID, userID string) error {
	return c.send(ctx, "like_story", http.MethodPost, pathEscape("stories", storyID, "like"), url.Values{"userId": {userID}}, nil, nil)
}

func (c *Client) UnlikeStory(ctx context.Context, storyID, userID string) error {
	return c.send(ctx, "unlike_story", http.MethodDelete, pathEscape("stories", storyID, "like"), url.Values{"userId": {userID}}, nil, nil)
}

// RateStory records a 1 to 5 star rating.
func (c *Client) RateStory(ctx context.Context, storyID, userID string, rating int) error {
	body := struct {
		UserID string `json:"userId"`
		Rating int    `json:"rating"`
	}{userID, rating}
	return c.send(ctx, "rate_story", http.MethodPost, pathEscape("stories", storyID, "ratings"), nil, body, nil)
}
