// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"context"
	"fmt"
	"time"
)

const firewallPageSize = 100

// FirewallPolicy is the subset of the integration API's policy shape this
// client reads and patches.
type FirewallPolicy struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Action         string `json:"action"`
	LoggingEnabled bool   `json:"loggingEnabled"`
}

type firewallPoliciesResponse struct {
	Offset     int              `json:"offset"`
	Limit      int              `json:"limit"`
	TotalCount int              `json:"totalCount"`
	Data       []FirewallPolicy `json:"data"`
}

// FirewallZone is one zone in the integration API's zone list.
type FirewallZone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type firewallZonesResponse struct {
	Data []FirewallZone `json:"data"`
}

// ListPolicies pages through the integration API's firewall policy list
// until totalCount is reached. Integration-only: legacy controllers
// reject it outright.
func (c *Client) ListPolicies(ctx context.Context) ([]FirewallPolicy, error) {
	if c.cfg.Mode != AuthModern {
		return nil, errNotImplementedOnLegacy
	}

	var all []FirewallPolicy
	offset := 0
	for {
		var page firewallPoliciesResponse
		url := fmt.Sprintf("%s/firewall-policies?offset=%d&limit=%d", c.integrationURL(""), offset, firewallPageSize)
		if err := c.doJSON(ctx, "GET", url, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		offset += firewallPageSize
		if len(page.Data) == 0 || offset >= page.TotalCount {
			break
		}
	}
	return all, nil
}

// ListZones is the integration-only counterpart to ListPolicies.
func (c *Client) ListZones(ctx context.Context) ([]FirewallZone, error) {
	if c.cfg.Mode != AuthModern {
		return nil, errNotImplementedOnLegacy
	}
	var resp firewallZonesResponse
	if err := c.doJSON(ctx, "GET", c.integrationURL("/firewall-zones"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

type patchLoggingRequest struct {
	LoggingEnabled bool `json:"loggingEnabled"`
}

// PatchPolicyLogging flips one policy's loggingEnabled flag.
func (c *Client) PatchPolicyLogging(ctx context.Context, policyID string, enabled bool) error {
	if c.cfg.Mode != AuthModern {
		return errNotImplementedOnLegacy
	}
	url := c.integrationURL("/firewall-policies/" + policyID)
	return c.doJSON(ctx, "PUT", url, patchLoggingRequest{LoggingEnabled: enabled}, nil)
}

// BulkPatchResult summarises a BulkPatchLogging run: at most 20 errors
// are retained so the response stays bounded.
type BulkPatchResult struct {
	Total   int
	Success int
	Failed  int
	Skipped int
	Errors  []string
}

const bulkPatchErrorCap = 20
const bulkPatchInterRequestDelay = 100 * time.Millisecond

// BulkPatchLogging patches loggingEnabled on every listed policy ID, one
// at a time, pausing between requests so a large batch doesn't trip the
// controller's own rate limiting.
func (c *Client) BulkPatchLogging(ctx context.Context, policyIDs []string, enabled bool) BulkPatchResult {
	result := BulkPatchResult{Total: len(policyIDs)}
	for i, id := range policyIDs {
		if ctx.Err() != nil {
			result.Skipped += len(policyIDs) - i
			break
		}
		if err := c.PatchPolicyLogging(ctx, id, enabled); err != nil {
			result.Failed++
			if len(result.Errors) < bulkPatchErrorCap {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", id, err))
			}
		} else {
			result.Success++
		}
		if i < len(policyIDs)-1 {
			time.Sleep(bulkPatchInterRequestDelay)
		}
	}
	return result
}
