// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"context"

	"github.com/phersys/loginsight/internal/errors"
)

type integrationSite struct {
	ID                string `json:"id"`
	InternalReference string `json:"internalReference"`
	Name              string `json:"name"`
}

type integrationSitesResponse struct {
	Data []integrationSite `json:"data"`
}

type classicSite struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Desc string `json:"desc"`
}

type classicSitesResponse struct {
	Data []classicSite `json:"data"`
}

// ResolveSite finds and caches the site identifier this session will use
// for every subsequent call: a UUID for modern controllers, an internal
// _id for legacy ones.
func (c *Client) ResolveSite(ctx context.Context) error {
	c.mu.Lock()
	resolved := c.siteUUID != "" || c.siteID != ""
	c.mu.Unlock()
	if resolved {
		return nil
	}

	if c.cfg.Mode == AuthModern {
		var resp integrationSitesResponse
		if err := c.doJSON(ctx, "GET", c.cfg.Host+"/proxy/network/integration/v1/sites", nil, &resp); err != nil {
			return err
		}
		for _, s := range resp.Data {
			if s.InternalReference == c.cfg.Site {
				c.mu.Lock()
				c.siteUUID = s.ID
				c.mu.Unlock()
				return nil
			}
		}
		return errors.Errorf(errors.KindNotFound, "controller: site %q not found", c.cfg.Site)
	}

	var resp classicSitesResponse
	if err := c.doJSON(ctx, "GET", c.cfg.Host+"/api/self/sites", nil, &resp); err != nil {
		return err
	}
	for _, s := range resp.Data {
		if s.Name == c.cfg.Site || s.Desc == c.cfg.Site {
			c.mu.Lock()
			c.siteID = s.ID
			c.mu.Unlock()
			return nil
		}
	}
	return errors.Errorf(errors.KindNotFound, "controller: site %q not found", c.cfg.Site)
}
