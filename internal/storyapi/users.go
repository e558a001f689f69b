package storyapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/onnwee/storyreader/internal/authstore"
)

func (c *Client) User(ctx context.Context, id string) (*User, error) {
	var out User
	if err := c.get(ctx, "get_user", pathEscape("users", "id", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]User, error) {
	var out []User
	err := c.get(ctx, "search_users", "users", url.Values{"search": {query}}, &out)
	return out, err
}

func (c *Client) UpdateUser(ctx context.Context, id string, update ProfileUpdate) (*User, error) {
	var out User
	if err := c.send(ctx, "update_user", http.MethodPut, pathEscape("users", id), nil, update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Followers(ctx context.Context, id string) ([]User, error) {
	var out []User
	err := c.get(ctx, "followers", pathEscape("users", id, "followers"), nil, &out)
	return out, err
}

func (c *Client) Following(ctx context.Context, id string) ([]User, error) {
	var out []User
	err := c.get(ctx, "following", pathEscape("users", id, "following"), nil, &out)
	return out, err
}

func (c *Client) Follow(ctx context.Context, id, target string) error {
	return c.send(ctx, "follow", http.MethodPost, pathEscape("users", id, "follow", target), nil, nil, nil)
}

func (c *Client) Unfollow(ctx context.Context, id, target string) error {
	return c.send(ctx, "unfollow", http.MethodPost, pathEscape("users", id, "unfollow", target), nil, nil, nil)
}

func (c *Client) Reads(ctx context.Context, userID string) ([]ReadProgress, error) {
	var out []ReadProgress
	err := c.get(ctx, "list_reads", pathEscape("users", userID, "reads"), nil, &out)
	return out, err
}

func (c *Client) UpdateRead(ctx context.Context, userID string, update ReadUpdate) error {
	return c.send(ctx, "update_read", http.MethodPost, pathEscape("users", userID, "reads"), nil, update, nil)
}

func (c *Client) RemoveRead(ctx context.Context, userID, storyID string) error {
	return c.send(ctx, "remove_read", http.MethodDelete, pathEscape("users", userID, "reads", storyID), nil, nil, nil)
}

func (c *Client) Notifications(ctx context.Context, userID string) ([]Notification, error) {
	var out []Notification
	err := c.get(ctx, "list_notifications", pathEscape("users", userID, "notifications"), nil, &out)
	return out, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.send(ctx, "mark_notification_read", http.MethodPut, pathEscape("notifications", id, "read"), nil, nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return c.send(ctx, "mark_all_read", http.MethodPut, pathEscape("users", userID, "notifications", "read-all"), nil, nil, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.send(ctx, "delete_notification", http.MethodDelete, pathEscape("notifications", id), nil, nil, nil)
}

// Login exchanges credentials for a token and stores the resulting session.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, request{op: "login", method: http.MethodPost, path: "users/login", body: creds, out: &out, anonymous: true})
	if err != nil {
		return nil, err
	}
	return &out, c.persist(ctx, &out)
}

// Register creates an account. When the service signs the new user in
// directly, the session is stored as with Login.
func (c *Client) Register(ctx context.Context, reg Registration) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, request{op: "register", method: http.MethodPost, path: "users/register", body: reg, out: &out, anonymous: true})
	if err != nil {
		return nil, err
	}
	if out.Token == "" {
		return &out, nil
	}
	return &out, c.persist(ctx, &out)
}

// Logout forgets the stored session. The service keeps no server-side state.
func (c *Client) Logout(ctx context.Context) error {
	if c.sessions == nil {
		return nil
	}
	return c.sessions.Clear(ctx)
}

// CurrentSession returns the stored session, or authstore.ErrNoSession.
func (c *Client) CurrentSession(ctx context.Context) (authstore.Session, error) {
	if c.sessions == nil {
		return authstore.Session{}, authstore.ErrNoSession
	}
	return c.sessions.Load(ctx)
}

func (c *Client) persist(ctx context.Context, auth *AuthResponse) error {
	if c.sessions == nil {
		return nil
	}
	if auth.Token == "" {
		return errors.New("storyapi: login response carried no token")
	}
	return c.sessions.Save(ctx, authstore.Session{
		Token: auth.Token,
		User: authstore.UserRef{
			ID:       auth.User.ID,
			Username: auth.User.Username,
			Email:    auth.User.Email,
		},
	})
}
