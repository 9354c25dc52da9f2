// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/phersys/loginsight/internal/errors"
	"github.com/phersys/loginsight/internal/netaddr"
	"github.com/phersys/loginsight/internal/store"
)

const (
	blacklistConfidenceMin = 75
	blacklistLimit         = 10000
)

type blacklistResponse struct {
	Data []struct {
		IPAddress            string `json:"ipAddress"`
		AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
	} `json:"data"`
}

// PullBlacklist fetches the provider's top-N known-bad IPs at or above
// blacklistConfidenceMin, on a separate quota from per-IP lookups, and
// bulk-upserts them as (ip, score, ["blacklist"]).
func (t *ThreatClient) PullBlacklist(ctx context.Context, exclusion netaddr.ExclusionSet) (int, error) {
	url := fmt.Sprintf("%s/blacklist?confidenceMinimum=%d&limit=%d", t.baseURL, blacklistConfidenceMin, blacklistLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "enrich: build blacklist request")
	}
	req.Header.Set("Key", t.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindBadGateway, "enrich: blacklist request")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf(errors.KindBadGateway, "enrich: blacklist status %d", resp.StatusCode)
	}

	var parsed blacklistResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, errors.Wrap(err, errors.KindBadGateway, "enrich: decode blacklist response")
	}

	entries := make([]store.ThreatEntry, 0, len(parsed.Data))
	for _, row := range parsed.Data {
		if row.IPAddress == "" {
			continue
		}
		score := row.AbuseConfidenceScore
		entries = append(entries, store.ThreatEntry{
			IP:         row.IPAddress,
			Score:      &score,
			Categories: []string{"blacklist"},
		})
	}

	bulk, ok := t.db.(interface {
		BulkUpsertThreat(ctx context.Context, entries []store.ThreatEntry, exclusion netaddr.ExclusionSet) (int, error)
	})
	if !ok {
		return 0, errors.New(errors.KindInternal, "enrich: backing store does not support bulk upsert")
	}
	return bulk.BulkUpsertThreat(ctx, entries, exclusion)
}
