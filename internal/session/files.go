package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"carousel/internal/services"
)

// Dir returns the session's directory under the sessions root. Callers pass
// either identifiers this package minted or identifiers that already passed
// ValidID; handlers must use Resolve for untrusted input.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.root, id)
}

// CreateDir makes the session directory, failing if it already exists so two
// conversions can never share a workspace.
func (s *Store) CreateDir(id string) (string, error) {
	dir := s.Dir(id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrInternal, "session", "create dir", "", err)
	}
	return dir, nil
}

// Resolve validates an untrusted identifier, loads its row, and confirms the
// session is live: ready, unexpired, directory present. Every failure maps
// to the taxonomy the handlers translate to HTTP statuses.
func (s *Store) Resolve(ctx context.Context, id string) (*Session, error) {
	if !ValidID(id) {
		return nil, services.Wrap(services.ErrValidation, "session", "resolve", "malformed session id", nil)
	}
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, "session", "resolve", "", err)
	}
	if sess == nil {
		return nil, services.Wrap(services.ErrNotFound, "session", "resolve", "session not found", nil)
	}
	if sess.Expired(time.Now()) {
		return nil, services.Wrap(services.ErrNotFound, "session", "resolve", "session expired", nil)
	}
	if _, err := os.Stat(s.Dir(id)); err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "session", "resolve", "session files removed", nil)
		}
		return nil, services.Wrap(services.ErrInternal, "session", "resolve", "", err)
	}
	return sess, nil
}

// SlidePath resolves the session and validates the requested filename,
// returning the absolute path of an existing slide image.
func (s *Store) SlidePath(ctx context.Context, id, filename string) (string, error) {
	if !ValidSlideName(filename) {
		return "", services.Wrap(services.ErrValidation, "session", "slide path", "malformed slide filename", nil)
	}
	if _, err := s.Resolve(ctx, id); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir(id), filename)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", services.Wrap(services.ErrNotFound, "session", "slide path", "slide not found", nil)
		}
		return "", services.Wrap(services.ErrInternal, "session", "slide path", "", err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrNotFound, "session", "slide path", "slide not found", nil)
	}
	return path, nil
}

// SlideFiles lists the session directory's PNG files ordered by the numeric
// suffix in each filename, so slide-10 follows slide-9 rather than slide-1.
// Ordinals are assigned 1..N in that order.
func (s *Store) SlideFiles(id string) ([]SlideFile, error) {
	dir := s.Dir(id)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "session", "list slides", "session files removed", nil)
		}
		return nil, services.Wrap(services.ErrInternal, "session", "list slides", "", err)
	}

	type candidate struct {
		name   string
		num    int
		hasNum bool
	}
	candidates := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".png") {
			continue
		}
		num, ok := numericSuffix(name)
		candidates = append(candidates, candidate{name: name, num: num, hasNum: ok})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.hasNum != b.hasNum {
			return a.hasNum
		}
		if a.hasNum && a.num != b.num {
			return a.num < b.num
		}
		return a.name < b.name
	})

	slides := make([]SlideFile, 0, len(candidates))
	for i, c := range candidates {
		slides = append(slides, SlideFile{
			Ordinal: i + 1,
			Name:    c.name,
			Path:    filepath.Join(dir, c.name),
		})
	}
	return slides, nil
}

// numericSuffix extracts the trailing integer from a filename stem, e.g.
// "deck-10.png" yields 10. Rasterizers zero-pad depending on page count, so
// the value is parsed numerically rather than compared as text.
func numericSuffix(name string) (int, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	end := len(stem)
	start := end
	for start > 0 {
		ch := stem[start-1]
		if ch < '0' || ch > '9' {
			break
		}
		start--
	}
	if start == end {
		return 0, false
	}
	num, err := strconv.Atoi(stem[start:end])
	if err != nil {
		return 0, false
	}
	return num, true
}

// DeleteNow removes the session directory and its index row immediately.
// Safe to call for sessions that are already partially or fully gone.
func (s *Store) DeleteNow(ctx context.Context, id string) error {
	if !ValidID(id) {
		return services.Wrap(services.ErrValidation, "session", "delete", "malformed session id", nil)
	}
	var firstErr error
	if err := os.RemoveAll(s.Dir(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		firstErr = fmt.Errorf("remove session dir: %w", err)
	}
	if _, err := s.removeRow(ctx, id); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return services.Wrap(services.ErrInternal, "session", "delete", "", firstErr)
	}
	return nil
}

// SweepExpired deletes every session past its deadline and reports the
// identifiers removed.
func (s *Store) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := s.expiredIDs(ctx, now)
	if err != nil {
		return nil, err
	}
	removed := make([]string, 0, len(ids))
	var firstErr error
	for _, id := range ids {
		if err := s.DeleteNow(ctx, id); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed = append(removed, id)
	}
	return removed, firstErr
}

// PurgeAll removes every session row and every directory under the sessions
// root, including orphans left by a crash. The daemon runs this at startup:
// sessions deliberately do not survive a restart.
func (s *Store) PurgeAll(ctx context.Context) (int, error) {
	removed := 0
	var firstErr error

	entries, err := os.ReadDir(s.root)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read sessions root: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, entry.Name())); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", entry.Name(), err)
			}
			continue
		}
		removed++
	}

	if err := s.execWithoutResultRetry(ctx, `DELETE FROM sessions`); err != nil && firstErr == nil {
		firstErr = err
	}
	return removed, firstErr
}
