// Package library serves cached views of the story service and keeps them
// consistent by invalidating the affected keys after every write.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/storyreader/internal/apierr"
	"github.com/onnwee/storyreader/internal/config"
	"github.com/onnwee/storyreader/internal/logger"
	"github.com/onnwee/storyreader/internal/readcache"
	"github.com/onnwee/storyreader/internal/storyapi"
)

// ErrUnknownKey is returned by Producer for keys no view owns.
var ErrUnknownKey = errors.New("library: unknown cache key")

// TTLs sets freshness per view family. Zero defers to the cache default.
type TTLs struct {
	Default       time.Duration
	Story         time.Duration
	Notifications time.Duration
}

// TTLsFromConfig reads the per-view TTL settings.
func TTLsFromConfig(cfg *config.Config) TTLs {
	return TTLs{
		Default:       cfg.CacheDefaultTTL,
		Story:         cfg.StoryTTL,
		Notifications: cfg.NotificationTTL,
	}
}

// Service is the reading room: every read goes through the cache, every
// write goes to the API and then drops the keys it made stale.
type Service struct {
	api   *storyapi.Client
	cache *readcache.Cache
	ttl   TTLs
	log   *slog.Logger
}

func New(api *storyapi.Client, cache *readcache.Cache, ttl TTLs) *Service {
	return &Service{
		api:   api,
		cache: cache,
		ttl:   ttl,
		log:   logger.WithComponent("library"),
	}
}

// Cache exposes the underlying cache for administration and subscriptions.
func (s *Service) Cache() *readcache.Cache { return s.cache }

// Client exposes the API client for calls that are not cached.
func (s *Service) Client() *storyapi.Client { return s.api }

// TTLFor returns the freshness window used for key.
func (s *Service) TTLFor(key string) time.Duration {
	var ttl time.Duration
	switch ParseKey(key).Kind {
	case KindStory, KindChapters, KindChapter:
		ttl = s.ttl.Story
	case KindNotifications:
		ttl = s.ttl.Notifications
	}
	if ttl <= 0 {
		ttl = s.ttl.Default
	}
	return ttl
}

// Peek reports the cache state of key without fetching.
func (s *Service) Peek(key string) readcache.Result {
	return s.cache.Peek(key, s.TTLFor(key))
}

func view[V any](ctx context.Context, s *Service, key string, fetch func(context.Context) (V, error)) (V, error) {
	return readcache.GetAs(ctx, s.cache, key, fetch, s.TTLFor(key))
}

// invalidate drops keys after a successful write.
func (s *Service) invalidate(ctx context.Context, op string, keys ...string) {
	for _, k := range keys {
		s.cache.Invalidate(k)
	}
	s.log.DebugContext(ctx, "invalidated after write", "operation", op, "keys", keys)
}

func (s *Service) Dashboard(ctx context.Context) (*storyapi.Dashboard, error) {
	return view(ctx, s, DashboardKey, s.api.Dashboard)
}

func (s *Service) Story(ctx context.Context, id string) (*storyapi.Story, error) {
	return view(ctx, s, StoryKey(id), func(ctx context.Context) (*storyapi.Story, error) {
		return s.api.Story(ctx, id)
	})
}

func (s *Service) StoriesByGenre(ctx context.Context, genre string) ([]storyapi.Story, error) {
	return view(ctx, s, GenreKey(genre), func(ctx context.Context) ([]storyapi.Story, error) {
		return s.api.StoriesByGenre(ctx, genre)
	})
}

func (s *Service) StoriesByAuthor(ctx context.Context, userID string) ([]storyapi.Story, error) {
	return view(ctx, s, AuthorStoriesKey(userID), func(ctx context.Context) ([]storyapi.Story, error) {
		return s.api.StoriesByAuthor(ctx, userID)
	})
}

// SearchStories caches per normalized query. A blank query lists everything.
func (s *Service) SearchStories(ctx context.Context, query string) ([]storyapi.Story, error) {
	key := SearchKey(query)
	q := ParseKey(key).ID
	return view(ctx, s, key, func(ctx context.Context) ([]storyapi.Story, error) {
		if q == "" {
			return s.api.ListStories(ctx)
		}
		return s.api.SearchStories(ctx, q)
	})
}

func (s *Service) Chapters(ctx context.Context, storyID string) ([]storyapi.Chapter, error) {
	return view(ctx, s, ChaptersKey(storyID), func(ctx context.Context) ([]storyapi.Chapter, error) {
		return s.api.Chapters(ctx, storyID)
	})
}

func (s *Service) Chapter(ctx context.Context, storyID string, number int) (*storyapi.Chapter, error) {
	if number < 1 {
		return nil, apierr.ValidationInvalidValue("chapter", "Chapter numbers start at 1")
	}
	return view(ctx, s, ChapterKey(storyID, number), func(ctx context.Context) (*storyapi.Chapter, error) {
		return s.api.Chapter(ctx, storyID, number)
	})
}

func (s *Service) Comments(ctx context.Context, storyID, chapterID string) ([]storyapi.Comment, error) {
	return view(ctx, s, CommentsKey(storyID, chapterID), func(ctx context.Context) ([]storyapi.Comment, error) {
		return s.api.Comments(ctx, storyID, chapterID)
	})
}

func (s *Service) Profile(ctx context.Context, userID string) (*storyapi.User, error) {
	return view(ctx, s, ProfileKey(userID), func(ctx context.Context) (*storyapi.User, error) {
		return s.api.User(ctx, userID)
	})
}

func (s *Service) Followers(ctx context.Context, userID string) ([]storyapi.User, error) {
	return view(ctx, s, FollowersKey(userID), func(ctx context.Context) ([]storyapi.User, error) {
		return s.api.Followers(ctx, userID)
	})
}

func (s *Service) Following(ctx context.Context, userID string) ([]storyapi.User, error) {
	return view(ctx, s, FollowingKey(userID), func(ctx context.Context) ([]storyapi.User, error) {
		return s.api.Following(ctx, userID)
	})
}

// IsFollowing reports whether viewer appears among target's followers.
func (s *Service) IsFollowing(ctx context.Context, viewerID, targetID string) (bool, error) {
	followers, err := s.Followers(ctx, targetID)
	if err != nil {
		return false, err
	}
	for _, u := range followers {
		if u.ID == viewerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) LikeStatus(ctx context.Context, storyID, userID string) (bool, error) {
	return view(ctx, s, LikeKey(storyID, userID), func(ctx context.Context) (bool, error) {
		return s.api.LikeStatus(ctx, storyID, userID)
	})
}

func (s *Service) Reads(ctx context.Context, userID string) ([]storyapi.ReadProgress, error) {
	return view(ctx, s, ReadsKey(userID), func(ctx context.Context) ([]storyapi.ReadProgress, error) {
		return s.api.Reads(ctx, userID)
	})
}

// Progress finds one story on the user's shelves. ok is false when the
// story is not on any shelf.
func (s *Service) Progress(ctx context.Context, userID, storyID string) (progress storyapi.ReadProgress, ok bool, err error) {
	reads, err := s.Reads(ctx, userID)
	if err != nil {
		return storyapi.ReadProgress{}, false, err
	}
	for _, r := range reads {
		if r.Story != nil && r.Story.ID == storyID {
			return r, true, nil
		}
	}
	return storyapi.ReadProgress{}, false, nil
}

func (s *Service) Notifications(ctx context.Context, userID string) ([]storyapi.Notification, error) {
	return view(ctx, s, NotificationsKey(userID), func(ctx context.Context) ([]storyapi.Notification, error) {
		return s.api.Notifications(ctx, userID)
	})
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	list, err := s.Notifications(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, item := range list {
		if !item.Read {
			n++
		}
	}
	return n, nil
}

// Producer returns the fetch function and TTL that back key, so callers
// holding only a key (websocket subscribers) can load it.
func (s *Service) Producer(key string) (readcache.Producer, time.Duration, error) {
	p := ParseKey(key)
	var fn readcache.Producer
	switch p.Kind {
	case KindDashboard:
		fn = produce(s.api.Dashboard)
	case KindStory:
		fn = func(ctx context.Context) (any, error) { return s.api.Story(ctx, p.ID) }
	case KindChapters:
		fn = func(ctx context.Context) (any, error) { return s.api.Chapters(ctx, p.ID) }
	case KindChapter:
		fn = func(ctx context.Context) (any, error) { return s.api.Chapter(ctx, p.ID, p.Number) }
	case KindComments:
		fn = func(ctx context.Context) (any, error) { return s.api.Comments(ctx, p.ID, p.ChapterID) }
	case KindLike:
		fn = func(ctx context.Context) (any, error) { return s.api.LikeStatus(ctx, p.ID, p.UserID) }
	case KindGenre:
		fn = func(ctx context.Context) (any, error) { return s.api.StoriesByGenre(ctx, p.ID) }
	case KindSearch:
		fn = func(ctx context.Context) (any, error) {
			if p.ID == "" {
				return s.api.ListStories(ctx)
			}
			return s.api.SearchStories(ctx, p.ID)
		}
	case KindProfile:
		fn = func(ctx context.Context) (any, error) { return s.api.User(ctx, p.ID) }
	case KindFollowers:
		fn = func(ctx context.Context) (any, error) { return s.api.Followers(ctx, p.ID) }
	case KindFollowing:
		fn = func(ctx context.Context) (any, error) { return s.api.Following(ctx, p.ID) }
	case KindAuthorStories:
		fn = func(ctx context.Context) (any, error) { return s.api.StoriesByAuthor(ctx, p.ID) }
	case KindReads:
		fn = func(ctx context.Context) (any, error) { return s.api.Reads(ctx, p.ID) }
	case KindNotifications:
		fn = func(ctx context.Context) (any, error) { return s.api.Notifications(ctx, p.ID) }
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return fn, s.TTLFor(key), nil
}

func produce[V any](fetch func(context.Context) (V, error)) readcache.Producer {
	return func(ctx context.Context) (any, error) { return fetch(ctx) }
}
