package api

import (
	"net/http"
	"time"

	"github.com/TimurManjosov/triagem/internal/report"
	"github.com/TimurManjosov/triagem/internal/validation"
)

// handleStats handles GET /v1/stats?defensor=&from=dd/mm/yyyy&to=dd/mm/yyyy
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := report.Filter{Defensor: q.Get("defensor")}

	fields := make(map[string]string)
	for name, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(validation.DateLayout, v)
		if err != nil {
			fields[name] = "use dd/mm/aaaa"
			continue
		}
		*dst = t
	}
	if len(fields) > 0 {
		ValidationError(w, r, "Invalid date range", fields)
		return
	}

	stats, err := report.Build(r.Context(), s.store, f)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
