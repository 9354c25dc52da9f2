// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controller

import (
	"context"
	"errors"
	"net"
	"strings"

	pkgerrors "github.com/phersys/loginsight/internal/errors"
)

// TestResult is the discriminated outcome of TestConnection. On success
// the Error/ErrorCode fields are empty; on failure Success is false and
// ErrorCode is one of the fixed vocabulary below.
type TestResult struct {
	Success        bool
	ControllerName string
	Version        string
	SiteName       string
	Error          string
	ErrorCode      string
}

const (
	ErrorCodeAuth       = "auth_error"
	ErrorCodeSSL        = "ssl_error"
	ErrorCodeConnection = "connection_error"
	ErrorCodeTimeout    = "timeout"
	ErrorCodeInvalid    = "invalid_response"
)

type sysinfoResponse struct {
	Data []struct {
		Version string `json:"version"`
		Name    string `json:"name"`
	} `json:"data"`
}

// TestConnection builds a throwaway session against cfg and never
// mutates c's own state: callers should only persist the credentials on
// a successful result.
func TestConnection(ctx context.Context, cfg Config) TestResult {
	probe := New(cfg, nil)

	if err := probe.ensureAuthenticated(ctx); err != nil {
		return classifyFailure(err)
	}
	if err := probe.ResolveSite(ctx); err != nil {
		return classifyFailure(err)
	}

	var info sysinfoResponse
	if err := probe.doJSON(ctx, "GET", probe.classicURL("/stat/sysinfo"), nil, &info); err != nil {
		return classifyFailure(err)
	}
	if len(info.Data) == 0 {
		return TestResult{Success: false, Error: "empty sysinfo response", ErrorCode: ErrorCodeInvalid}
	}

	if cfg.Mode == AuthModern {
		var sites integrationSitesResponse
		if err := probe.doJSON(ctx, "GET", cfg.Host+"/proxy/network/integration/v1/sites", nil, &sites); err != nil {
			return classifyFailure(err)
		}
	}

	return TestResult{
		Success:        true,
		ControllerName: info.Data[0].Name,
		Version:        info.Data[0].Version,
		SiteName:       cfg.Site,
	}
}

func classifyFailure(err error) TestResult {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return TestResult{Error: err.Error(), ErrorCode: ErrorCodeTimeout}
	case pkgerrors.GetKind(err) == pkgerrors.KindPermission:
		return TestResult{Error: err.Error(), ErrorCode: ErrorCodeAuth}
	}

	if strings.Contains(err.Error(), "tls:") || strings.Contains(err.Error(), "x509:") {
		return TestResult{Error: err.Error(), ErrorCode: ErrorCodeSSL}
	}
	if pkgerrors.GetKind(err) == pkgerrors.KindUnavailable {
		return TestResult{Error: err.Error(), ErrorCode: ErrorCodeConnection}
	}
	return TestResult{Error: err.Error(), ErrorCode: ErrorCodeInvalid}
}
