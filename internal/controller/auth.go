// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/phersys/loginsight/internal/errors"
)

// ensureAuthenticated is a no-op for modern auth (the API key travels on
// every request) and performs the login dance for legacy auth if the
// session isn't already established.
func (c *Client) ensureAuthenticated(ctx context.Context) error {
	if c.cfg.Mode == AuthModern {
		return nil
	}

	c.mu.Lock()
	already := c.loggedIn
	c.mu.Unlock()
	if already {
		return nil
	}
	return c.login(ctx)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// login performs the legacy cookie/CSRF handshake. The resulting session
// cookies live in the client's cookie jar; the CSRF token is captured
// from the response header and applied to every subsequent request.
func (c *Client) login(ctx context.Context) error {
	body, err := json.Marshal(loginRequest{Username: c.cfg.Username, Password: c.cfg.Password})
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "controller: encode login request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Host+"/api/login", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "controller: build login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "controller: login request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf(errors.KindPermission, "controller: login failed with status %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.csrfToken = resp.Header.Get("X-Csrf-Token")
	c.loggedIn = true
	c.mu.Unlock()
	return nil
}
