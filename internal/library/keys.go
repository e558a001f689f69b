package library

import (
	"strconv"
	"strings"
)

// Cache keys for each view. IDs are opaque strings, so parsing strips the
// known prefix and suffix rather than splitting on dashes.
const (
	DashboardKey = "dashboard"

	storyPrefix  = "story-"
	userPrefix   = "user-"
	genrePrefix  = "genre-"
	searchPrefix = "search-stories-"
	chapterInfix = "-chapter-"
	likeInfix    = "-like-"
	chaptersSfx  = "-chapters"
	commentsSfx  = "-comments"
	profileSfx   = "-profile"
	followersSfx = "-followers"
	followingSfx = "-following"
	readsSfx     = "-reads"
	notifySfx    = "-notifications"
	storiesSfx   = "-stories"
)

func StoryKey(id string) string { return storyPrefix + id }
func ChaptersKey(storyID string) string { return storyPrefix + storyID + chaptersSfx }
func LikeKey(storyID, userID string) string { return storyPrefix + storyID + likeInfix + userID }

func ChapterKey(storyID string, number int) string {
	return storyPrefix + storyID + chapterInfix + strconv.Itoa(number)
}

func CommentsKey(storyID, chapterID string) string {
	return storyPrefix + storyID + chapterInfix + chapterID + commentsSfx
}

func GenreKey(genre string) string { return genrePrefix + genre + storiesSfx }

// SearchKey normalizes the query so equivalent searches share an entry.
func SearchKey(query string) string {
	return searchPrefix + strings.ToLower(strings.TrimSpace(query))
}

func ProfileKey(userID string) string { return userPrefix + userID + profileSfx }
func FollowersKey(userID string) string { return userPrefix + userID + followersSfx }
func FollowingKey(userID string) string { return userPrefix + userID + followingSfx }
func AuthorStoriesKey(userID string) string { return userPrefix + userID + storiesSfx }
func ReadsKey(userID string) string { return userPrefix + userID + readsSfx }
func NotificationsKey(userID string) string { return userPrefix + userID + notifySfx }

// KeyKind identifies which view a key belongs to.
type KeyKind int

const (
	KindUnknown KeyKind = iota
	KindDashboard
	KindStory
	KindChapters
	KindChapter
	KindComments
	KindLike
	KindGenre
	KindSearch
	KindProfile
	KindFollowers
	KindFollowing
	KindAuthorStories
	KindReads
	KindNotifications
)

// ParsedKey is a key split back into its view and identifiers.
type ParsedKey struct {
	Kind      KeyKind
	ID        string // story, user, genre or search text
	ChapterID string
	UserID    string // like keys only
	Number    int
}

// ParseKey reverses the key helpers. Unknown shapes report KindUnknown.
func ParseKey(key string) ParsedKey {
	if key == DashboardKey {
		return ParsedKey{Kind: KindDashboard}
	}
	if rest, ok := strings.CutPrefix(key, searchPrefix); ok {
		return ParsedKey{Kind: KindSearch, ID: rest}
	}
	if rest, ok := strings.CutPrefix(key, genrePrefix); ok {
		if name, ok := strings.CutSuffix(rest, storiesSfx); ok && name != "" {
			return ParsedKey{Kind: KindGenre, ID: name}
		}
		return ParsedKey{}
	}
	if rest, ok := strings.CutPrefix(key, userPrefix); ok {
		return parseUserKey(rest)
	}
	if rest, ok := strings.CutPrefix(key, storyPrefix); ok {
		return parseStoryKey(rest)
	}
	return ParsedKey{}
}

func parseUserKey(rest string) ParsedKey {
	for _, s := range []struct {
		suffix string
		kind   KeyKind
	}{
		{profileSfx, KindProfile},
		{followersSfx, KindFollowers},
		{followingSfx, KindFollowing},
		{storiesSfx, KindAuthorStories},
		{readsSfx, KindReads},
		{notifySfx, KindNotifications},
	} {
		if id, ok := strings.CutSuffix(rest, s.suffix); ok && id != "" {
			return ParsedKey{Kind: s.kind, ID: id}
		}
	}
	return ParsedKey{}
}

func parseStoryKey(rest string) ParsedKey {
	if id, ok := strings.CutSuffix(rest, chaptersSfx); ok && id != "" {
		return ParsedKey{Kind: KindChapters, ID: id}
	}
	if head, ok := strings.CutSuffix(rest, commentsSfx); ok {
		if id, chapter, ok := strings.Cut(head, chapterInfix); ok && id != "" && chapter != "" {
			return ParsedKey{Kind: KindComments, ID: id, ChapterID: chapter}
		}
		return ParsedKey{}
	}
	if id, user, ok := strings.Cut(rest, likeInfix); ok && id != "" && user != "" {
		return ParsedKey{Kind: KindLike, ID: id, UserID: user}
	}
	if id, n, ok := strings.Cut(rest, chapterInfix); ok && id != "" {
		num, err := strconv.Atoi(n)
		if err != nil || num < 1 {
			return ParsedKey{}
		}
		return ParsedKey{Kind: KindChapter, ID: id, Number: num}
	}
	if rest == "" {
		return ParsedKey{}
	}
	return ParsedKey{Kind: KindStory, ID: rest}
}
