// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	pkgerrors "github.com/phersys/loginsight/internal/errors"
	"github.com/phersys/loginsight/internal/store"
)

func (s *Server) registerLogRoutes(r *mux.Router) {
	r.HandleFunc("/logs", s.handleListLogs).Methods(http.MethodGet)
	r.HandleFunc("/logs/{id:[0-9]+}", s.handleGetLog).Methods(http.MethodGet)
}

type logsResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Logs     []AnnotatedRecord  `json:"logs"`
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f := parseFilter(r)
	f.SortColumn = store.ResolveSortColumn(f.SortColumn)
	now := s.now()
	vpnPrefixes := s.vpnInterfacePrefixes(ctx)

	total, err := s.db.CountFiltered(ctx, f, now, vpnPrefixes)
	if err != nil {
		writeError(w, err)
		return
	}

	records, err := s.db.ListLogs(ctx, f, now, vpnPrefixes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, logsResponse{
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
		Logs:     s.annotateRecords(ctx, records),
	})
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid log id")
		return
	}

	wanIPs, _ := s.cfg.GetStringSlice(ctx, "wan_ips")
	gatewayIPs, _ := s.cfg.GetStringSlice(ctx, "gateway_ips")

	record, found, err := s.db.GetLogDetail(ctx, id, wanIPs, gatewayIPs)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, pkgerrors.New(pkgerrors.KindNotFound, "log not found"))
		return
	}

	annotated := s.annotateRecords(ctx, []store.Record{record})
	writeJSON(w, http.StatusOK, annotated[0])
}
