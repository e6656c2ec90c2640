package daemon

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"carousel/internal/api"
	"carousel/internal/logging"
	"carousel/internal/services"
	"carousel/internal/session"
)

// multipartOverhead is slack on top of the upload ceiling for boundary
// markers and part headers.
const multipartOverhead = 1 << 20

func (s *apiServer) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := s.daemon.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusBadRequest, s.sizeLimitMessage())
			return
		}
		s.writeError(w, http.StatusBadRequest, `multipart field "file" required`)
		return
	}
	defer file.Close()

	if header.Size > limit {
		s.writeError(w, http.StatusBadRequest, s.sizeLimitMessage())
		return
	}

	ctx := services.WithRequestID(r.Context(), session.NewID()[:8])
	result, err := s.daemon.pipeline.Convert(ctx, header.Filename, file)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conversionPayload(result.Session, result.Slides))
}

func (s *apiServer) sizeLimitMessage() string {
	return fmt.Sprintf("upload exceeds the %d MiB limit", s.daemon.cfg.Convert.MaxUploadMiB)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		ActiveSessions: status.ActiveSessions,
		IndexDBPath:    status.IndexDBPath,
		LockFilePath:   status.LockFilePath,
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	for _, dep := range status.Dependencies {
		payload.Dependencies = append(payload.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	for _, dir := range status.Directories {
		payload.Directories = append(payload.Directories, api.DirectoryStatus{
			Name:   dir.Name,
			Path:   dir.Path,
			Passed: dir.Passed,
			Detail: dir.Detail,
		})
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessions, err := s.daemon.store.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	payload := api.SessionListResponse{Sessions: make([]api.SessionSummary, 0, len(sessions))}
	for _, sess := range sessions {
		payload.Sessions = append(payload.Sessions, sessionSummary(sess))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// handleSessionResource routes everything under /api/sessions/: slide
// fetches, archive downloads, and administrative purges.
func (s *apiServer) handleSessionResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	segments := strings.Split(rest, "/")
	switch {
	case len(segments) == 1 && segments[0] != "":
		s.handleSessionDelete(w, r, segments[0])
	case len(segments) == 2 && segments[1] == "archive":
		s.handleArchive(w, r, segments[0])
	case len(segments) == 3 && segments[1] == "slides":
		s.handleSlide(w, r, segments[0], segments[2])
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handleSlide(w http.ResponseWriter, r *http.Request, id, filename string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	path, err := s.daemon.store.SlidePath(r.Context(), id, filename)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	file, err := os.Open(path)
	if err != nil {
		s.writeServiceError(w, services.Wrap(services.ErrNotFound, "api", "serve slide", "slide not found", nil))
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		s.writeServiceError(w, services.Wrap(services.ErrInternal, "api", "serve slide", "", err))
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=7200")
	http.ServeContent(w, r, filename, info.ModTime(), file)
}

func (s *apiServer) handleArchive(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	prepared, err := s.archives.Open(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+archiveName(prepared.SessionID)+`"`)
	if _, err := prepared.WriteTo(w); err != nil {
		// Headers are long gone; all that remains is ending the stream.
		s.log().Warn("archive stream aborted",
			logging.String(logging.FieldSessionID, prepared.SessionID),
			logging.Error(err),
		)
	}
}

func (s *apiServer) handleSessionDelete(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.authorized(r) {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !session.ValidID(id) {
		s.writeError(w, http.StatusBadRequest, "malformed session id")
		return
	}
	sess, err := s.daemon.store.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, services.Wrap(services.ErrInternal, "api", "purge session", "", err))
		return
	}
	if sess == nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err := s.daemon.store.DeleteNow(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.log().Info("session purged", logging.String(logging.FieldSessionID, id))
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "sessionId": id})
}

func archiveName(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return "slides-" + short + ".zip"
}

func slidePathFor(id, filename string) string {
	return "/api/sessions/" + id + "/slides/" + filename
}

func archivePathFor(id string) string {
	return "/api/sessions/" + id + "/archive"
}

func conversionPayload(sess *session.Session, slides []session.SlideFile) api.ConversionResult {
	payload := api.ConversionResult{
		SessionID:      sess.ID,
		SourceFilename: sess.SourceFilename,
		Title:          sess.Title,
		TotalSlides:    len(slides),
		Slides:         make([]api.Slide, 0, len(slides)),
		ArchivePath:    archivePathFor(sess.ID),
	}
	if !sess.ExpiresAt.IsZero() {
		payload.ExpiresAt = sess.ExpiresAt.UTC().Format(time.RFC3339)
	}
	for _, slide := range slides {
		payload.Slides = append(payload.Slides, api.Slide{
			Ordinal:  slide.Ordinal,
			Filename: slide.Name,
			Path:     slidePathFor(sess.ID, slide.Name),
		})
	}
	return payload
}

func sessionSummary(sess *session.Session) api.SessionSummary {
	summary := api.SessionSummary{
		ID:             sess.ID,
		Title:          sess.Title,
		SourceFilename: sess.SourceFilename,
		TotalSlides:    sess.SlideCount,
		Status:         string(sess.Status),
	}
	if !sess.CreatedAt.IsZero() {
		summary.CreatedAt = sess.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !sess.ExpiresAt.IsZero() {
		summary.ExpiresAt = sess.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return summary
}
