package realtime

import (
	"encoding/json"
	"net/http"
	"strconv"

	"telgen/internal/activity"
)

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	typ := activity.Type(q.Get("type"))
	if typ != "" && !activity.ValidType(typ) {
		writeError(w, http.StatusBadRequest, "unknown activity type")
		return
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	recs := s.feed.Recent(limit, typ)
	if recs == nil {
		recs = []activity.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infoPayload(s.info.Info()))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
