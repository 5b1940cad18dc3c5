package github

import (
	"context"

	mirror "github.com/dl-alexandre/ghmirror/internal/sync"
)

// User is the account a token belongs to
type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// CurrentUser returns the account of the client's token, which also proves the token works
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	token, err := c.accessToken()
	if err != nil {
		return nil, &mirror.FetchError{Reason: mirror.FetchAuth, Err: err}
	}
	if token == "" {
		return nil, mirror.NewFetchError(mirror.FetchAuth, "no token to verify")
	}
	var out User
	resp, err := c.newRequest(ctx).SetSuccessResult(&out).Get("/user")
	if classified := classifyResponse(resp, err, "verify token"); classified != nil {
		return nil, classified
	}
	return &out, nil
}
