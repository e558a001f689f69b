package library

import (
	"context"

	"github.com/onnwee/storyreader/internal/apierr"
	"github.com/onnwee/storyreader/internal/storyapi"
)

// Writes never touch the cache when the API call fails.

func (s *Service) LikeStory(ctx context.Context, storyID, userID string) error {
	if err := s.api.LikeStory(ctx, storyID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, "like_story", LikeKey(storyID, userID), StoryKey(storyID))
	return nil
}

func (s *Service) UnlikeStory(ctx context.Context, storyID, userID string) error {
	if err := s.api.UnlikeStory(ctx, storyID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, "unlike_story", LikeKey(storyID, userID), StoryKey(storyID))
	return nil
}

func (s *Service) RateStory(ctx context.Context, storyID, userID string, rating int) error {
	if rating < 1 || rating > 5 {
		return apierr.ValidationInvalidValue("rating", "Rating must be between 1 and 5")
	}
	if err := s.api.RateStory(ctx, storyID, userID, rating); err != nil {
		return err
	}
	s.invalidate(ctx, "rate_story", StoryKey(storyID))
	return nil
}

func (s *Service) Follow(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return apierr.ValidationInvalidValue("target", "Users cannot follow themselves")
	}
	if err := s.api.Follow(ctx, actorID, targetID); err != nil {
		return err
	}
	s.invalidate(ctx, "follow", FollowingKey(actorID), FollowersKey(targetID), ProfileKey(targetID))
	return nil
}

func (s *Service) Unfollow(ctx context.Context, actorID, targetID string) error {
	if err := s.api.Unfollow(ctx, actorID, targetID); err != nil {
		return err
	}
	s.invalidate(ctx, "unfollow", FollowingKey(actorID), FollowersKey(targetID), ProfileKey(targetID))
	return nil
}

// UpdateProgress moves a story to a shelf and records reading progress.
func (s *Service) UpdateProgress(ctx context.Context, userID string, update storyapi.ReadUpdate) error {
	if !update.Status.Valid() {
		return apierr.ValidationInvalidValue("status", "Unknown read status")
	}
	if p := update.Progress; p != nil && (*p < 0 || *p > 100) {
		return apierr.ValidationInvalidValue("progress", "Progress is a percentage")
	}
	if err := s.api.UpdateRead(ctx, userID, update); err != nil {
		return err
	}
	s.invalidate(ctx, "update_progress", ReadsKey(userID))
	return nil
}

func (s *Service) RemoveRead(ctx context.Context, userID, storyID string) error {
	if err := s.api.RemoveRead(ctx, userID, storyID); err != nil {
		return err
	}
	s.invalidate(ctx, "remove_read", ReadsKey(userID))
	return nil
}

func (s *Service) PostComment(ctx context.Context, storyID, chapterID, userID, content string) (*storyapi.Comment, error) {
	if content == "" {
		return nil, apierr.ValidationMissingField("content")
	}
	c, err := s.api.PostComment(ctx, storyID, chapterID, userID, content)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, "post_comment", CommentsKey(storyID, chapterID))
	return c, nil
}

func (s *Service) Reply(ctx context.Context, storyID, chapterID, commentID, userID, content string) (*storyapi.Comment, error) {
	if content == "" {
		return nil, apierr.ValidationMissingField("content")
	}
	c, err := s.api.Reply(ctx, storyID, chapterID, commentID, userID, content)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, "reply_comment", CommentsKey(storyID, chapterID))
	return c, nil
}

func (s *Service) LikeComment(ctx context.Context, storyID, chapterID, commentID, userID string) error {
	if err := s.api.LikeComment(ctx, storyID, chapterID, commentID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, "like_comment", CommentsKey(storyID, chapterID))
	return nil
}

func (s *Service) CreateStory(ctx context.Context, req storyapi.StoryRequest) (*storyapi.Story, error) {
	if req.Title == "" {
		return nil, apierr.ValidationMissingField("title")
	}
	story, err := s.api.CreateStory(ctx, req)
	if err != nil {
		return nil, err
	}
	keys := []string{AuthorStoriesKey(req.AuthorID), DashboardKey, SearchKey("")}
	if req.GenreName != "" {
		keys = append(keys, GenreKey(req.GenreName))
	}
	if story != nil && story.Genre != nil && story.Genre.Name != "" && story.Genre.Name != req.GenreName {
		keys = append(keys, GenreKey(story.Genre.Name))
	}
	s.invalidate(ctx, "create_story", keys...)
	return story, nil
}

func (s *Service) AddChapter(ctx context.Context, storyID string, req storyapi.ChapterRequest) (*storyapi.Chapter, error) {
	if req.Title == "" {
		return nil, apierr.ValidationMissingField("title")
	}
	ch, err := s.api.AddChapter(ctx, storyID, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, "add_chapter", ChaptersKey(storyID), StoryKey(storyID))
	return ch, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, update storyapi.ProfileUpdate) (*storyapi.User, error) {
	u, err := s.api.UpdateUser(ctx, userID, update)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, "update_profile", ProfileKey(userID))
	return u, nil
}

// MarkNotificationRead needs the owner to know which list to drop.
func (s *Service) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	if err := s.api.MarkNotificationRead(ctx, notificationID); err != nil {
		return err
	}
	s.invalidate(ctx, "mark_notification_read", NotificationsKey(userID))
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.api.MarkAllNotificationsRead(ctx, userID); err != nil {
		return err
	}
	s.invalidate(ctx, "mark_all_read", NotificationsKey(userID))
	return nil
}

func (s *Service) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	if err := s.api.DeleteNotification(ctx, notificationID); err != nil {
		return err
	}
	s.invalidate(ctx, "delete_notification", NotificationsKey(userID))
	return nil
}
