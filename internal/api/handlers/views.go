package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/storyreader/internal/apierr"
	"github.com/onnwee/storyreader/internal/library"
	"github.com/onnwee/storyreader/internal/logger"
	"github.com/onnwee/storyreader/internal/readcache"
	"github.com/onnwee/storyreader/internal/storyapi"
	"github.com/onnwee/storyreader/internal/tracing"
)

// CacheStateHeader reports how the view was served: fresh, stale or failed.
const CacheStateHeader = "X-Cache-State"

// Views serves the cached reading-room views as JSON.
type Views struct {
	svc *library.Service
}

func NewViews(svc *library.Service) *Views { return &Views{svc: svc} }

// serve runs fetch for key and writes the outcome. When the producer fails
// but fetch still hands back the previous value, that value is served and
// marked stale. fetch shapes the stale value exactly like a fresh one.
func serve[V any](name string, w http.ResponseWriter, r *http.Request, key string, fetch func(context.Context) (V, error)) {
	ctx, span := tracing.StartSpan(r.Context(), "handlers."+name)
	value, err := fetch(ctx)
	tracing.EndWithError(span, err, attribute.String("cache.key", key))
	if err == nil {
		writeView(w, readcache.StateFresh, value)
		return
	}

	var perr *readcache.ProducerError
	if errors.As(err, &perr) && !isZero(value) && ctx.Err() == nil {
		logger.WarnContext(ctx, "Serving stale view after fetch failure", "key", key, "error", err)
		writeView(w, readcache.StateStale, value)
		return
	}
	logger.WarnContext(ctx, "View fetch failed", "key", key, "error", err)
	w.Header().Set(CacheStateHeader, readcache.StateFailed.String())
	apierr.WriteErrorWithContext(w, r, apierr.From(err))
}

func isZero(v any) bool {
	rv := reflect.ValueOf(v)
	return !rv.IsValid() || rv.IsZero()
}

func writeView(w http.ResponseWriter, state readcache.State, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(CacheStateHeader, state.String())
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(value)
}

// GET /api/dashboard
func (v *Views) Dashboard(w http.ResponseWriter, r *http.Request) {
	serve("Dashboard", w, r, library.DashboardKey, v.svc.Dashboard)
}

// GET /api/stories?search=&page=&size=
func (v *Views) Stories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := q.Get("search")
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	serve("Stories", w, r, library.SearchKey(search), func(ctx context.Context) (library.Page[storyapi.Story], error) {
		stories, err := v.svc.SearchStories(ctx, search)
		if stories == nil {
			return library.Page[storyapi.Story]{}, err
		}
		return library.Paginate(stories, page, size), err
	})
}

// GET /api/stories/{id}
func (v *Views) Story(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	serve("Story", w, r, library.StoryKey(id), func(ctx context.Context) (*storyapi.Story, error) {
		return v.svc.Story(ctx, id)
	})
}

// GET /api/stories/{id}/chapters
func (v *Views) Chapters(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	serve("Chapters", w, r, library.ChaptersKey(id), func(ctx context.Context) ([]storyapi.Chapter, error) {
		return v.svc.Chapters(ctx, id)
	})
}

// GET /api/stories/{id}/chapters/{n}
func (v *Views) Chapter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	n, err := strconv.Atoi(vars["n"])
	if err != nil || n < 1 {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("n", "Chapter number must be a positive integer"))
		return
	}
	serve("Chapter", w, r, library.ChapterKey(vars["id"], n), func(ctx context.Context) (*storyapi.Chapter, error) {
		return v.svc.Chapter(ctx, vars["id"], n)
	})
}

// GET /api/users/{id}
func (v *Views) Profile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	serve("Profile", w, r, library.ProfileKey(id), func(ctx context.Context) (*storyapi.User, error) {
		return v.svc.Profile(ctx, id)
	})
}

// GET /api/users/{id}/reads
func (v *Views) Reads(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	serve("Reads", w, r, library.ReadsKey(id), func(ctx context.Context) ([]storyapi.ReadProgress, error) {
		return v.svc.Reads(ctx, id)
	})
}

// GET /api/users/{id}/notifications
func (v *Views) Notifications(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	serve("Notifications", w, r, library.NotificationsKey(id), func(ctx context.Context) ([]storyapi.Notification, error) {
		return v.svc.Notifications(ctx, id)
	})
}
