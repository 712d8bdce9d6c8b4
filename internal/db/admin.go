package db

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/spraypaint/internal/httputil"
	"github.com/banshee-data/spraypaint/internal/monitoring"
)

var logf = monitoring.Component("journal")

// AttachAdminRoutes mounts tailsql, a recent-sessions listing and a backup
// download on the debug mux. j may be nil.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux, j *Journal) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Rig session journal",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.HandleFunc("sessions", "Recent rig sessions (JSON, ?limit=N)", func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httputil.BadRequest(w, "invalid limit")
				return
			}
			limit = n
		}
		sessions, err := db.RecentSessions(r.Context(), limit)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		resp := struct {
			Sessions []RigSession `json:"sessions"`
			Journal  JournalStats `json:"journal"`
		}{Sessions: sessions}
		if resp.Sessions == nil {
			resp.Sessions = []RigSession{}
		}
		if j != nil {
			resp.Journal = j.Stats()
		}
		httputil.WriteJSONOK(w, resp)
	})

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.serveBackup))
	return nil
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	dir, err := os.MkdirTemp("", "spraypaint-backup-")
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup dir: %v", err), http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(dir)

	name := fmt.Sprintf("backup-%d.db", time.Now().Unix())
	backupPath := filepath.Join(dir, name)
	if _, err := db.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
	w.Header().Set("Content-Type", "application/gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, backupFile); err != nil {
		logf("backup copy: %v", err)
	}
}
