package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleExportSiteStatuses streams the site's status history as an XLSX
// attachment. The workbook is rendered in memory so a failure still gets a
// JSON error.
func (s *Server) handleExportSiteStatuses(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok || !s.requireSiteAccess(w, r, id) {
		return
	}
	var buf bytes.Buffer
	site, err := s.exporter.ExportSite(r.Context(), id, &buf)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	name := fmt.Sprintf("statuses_%s_%s.xlsx", fileSafe(site.Name), time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w) //nolint:errcheck // client gone
}

func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
