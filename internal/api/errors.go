// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"net/http"

	pkgerrors "github.com/phersys/loginsight/internal/errors"
)

// errStatus maps an error's Kind to the HTTP status the API boundary
// returns, falling back to a generic 500 for anything unrecognized. The
// message for a 500 is replaced with a generic one; a more specific
// error is returned verbatim.
func errStatus(err error) (int, string) {
	switch pkgerrors.GetKind(err) {
	case pkgerrors.KindValidation:
		return http.StatusBadRequest, err.Error()
	case pkgerrors.KindPermission:
		return http.StatusForbidden, err.Error()
	case pkgerrors.KindNotFound:
		return http.StatusNotFound, err.Error()
	case pkgerrors.KindConflict:
		return http.StatusConflict, err.Error()
	case pkgerrors.KindRateLimited:
		return http.StatusTooManyRequests, err.Error()
	case pkgerrors.KindBadGateway:
		return http.StatusBadGateway, err.Error()
	case pkgerrors.KindTimeout:
		return http.StatusGatewayTimeout, err.Error()
	case pkgerrors.KindUnavailable:
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
