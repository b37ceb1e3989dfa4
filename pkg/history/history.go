// Copyright 2025 venslabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package history writes reports while keeping a bounded archive of the
// previous ones in a History directory next to the report.
package history

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/venslabs/depguard/pkg/errdefs"
)

const (
	// DirName is the archive directory, created next to the report.
	DirName = "History"

	DefaultLimit = 20

	// TimestampLayout is the second-resolution stamp inserted before the extension.
	TimestampLayout = "2006-01-02_15-04-05"

	lockSuffix = ".lock"
)

// Manager archives and prunes reports.
type Manager struct {
	// Limit is the maximum number of archived reports kept.
	Limit int

	// Now defaults to time.Now.
	Now func() time.Time

	// OnPrune, when set, is called with the number of archives deleted by each write.
	OnPrune func(n int)
}

// New returns a Manager keeping at most limit archives.
func New(limit int) (*Manager, error) {
	if limit < 0 {
		return nil, fmt.Errorf("history limit must be >= 0, got %d", limit)
	}
	return &Manager{Limit: limit, Now: time.Now}, nil
}

// Write stores content at path. A report already at path is first moved into
// the History directory under a timestamped name, and History is pruned to
// Limit entries, oldest first.
//
// Concurrent writers of the same path are rejected with errdefs.ErrReportLocked.
func (m *Manager) Write(ctx context.Context, path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w %s: %v", errdefs.ErrReportDir, dir, err)
	}

	unlock, err := lock(path)
	if err != nil {
		return err
	}
	defer unlock()

	archived, err := m.archive(path)
	if err != nil {
		return err
	}
	if archived != "" {
		slog.DebugContext(ctx, "Previous report archived", "path", archived)
		pruned := m.Prune(ctx, filepath.Join(dir, DirName))
		if m.OnPrune != nil {
			m.OnPrune(pruned)
		}
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrReportWrite, err)
	}
	return nil
}

func lock(path string) (func(), error) {
	lockPath := path + lockSuffix
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s exists (held by pid %s); remove it if that process is gone",
				errdefs.ErrReportLocked, lockPath, lockOwner(lockPath))
		}
		return nil, fmt.Errorf("%w: %v", errdefs.ErrReportWrite, err)
	}
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Close()
	return func() {
		if err := os.Remove(lockPath); err != nil {
			slog.Warn("Failed to remove report lock", "path", lockPath, "error", err)
		}
	}, nil
}

// lockOwner returns the pid recorded in a lock file, or "unknown".
func lockOwner(lockPath string) string {
	b, err := os.ReadFile(lockPath)
	if err != nil {
		return "unknown"
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return "unknown"
	}
	return strconv.Itoa(pid)
}

// archive moves an existing report into History and returns its new path,
// or "" when there was nothing to archive.
func (m *Manager) archive(path string) (string, error) {
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", errdefs.ErrReportWrite, err)
	}
	if !st.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", errdefs.ErrReportWrite, path)
	}

	histDir := filepath.Join(filepath.Dir(path), DirName)
	if err := os.MkdirAll(histDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", errdefs.ErrReportWrite, err)
	}
	dst, err := m.archiveName(histDir, filepath.Base(path))
	if err != nil {
		return "", err
	}
	if err := os.Rename(path, dst); err != nil {
		return "", fmt.Errorf("%w: %v", errdefs.ErrReportWrite, err)
	}
	return dst, nil
}

// archiveName returns "<stem>_<timestamp><ext>" inside histDir, adding a
// counter when an archive with that name already exists.
func (m *Manager) archiveName(histDir, base string) (string, error) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext) + "_" + now().Format(TimestampLayout)

	for i := 0; i < 1000; i++ {
		name := stem
		if i > 0 {
			name += "_" + strconv.Itoa(i)
		}
		p := filepath.Join(histDir, name+ext)
		if _, err := os.Lstat(p); errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: too many archives named %s", errdefs.ErrReportWrite, stem)
}

type entry struct {
	path    string
	modTime time.Time
}

// Prune deletes the oldest regular files of histDir until at most Limit
// remain. A file that cannot be deleted is logged and skipped. It returns
// the number of files deleted.
func (m *Manager) Prune(ctx context.Context, histDir string) int {
	des, err := os.ReadDir(histDir)
	if err != nil {
		slog.WarnContext(ctx, "Cannot list report history", "dir", histDir, "error", err)
		return 0
	}
	var entries []entry
	for _, de := range des {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, entry{filepath.Join(histDir, de.Name()), info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].modTime.Equal(entries[j].modTime) {
			return naturalLess(filepath.Base(entries[i].path), filepath.Base(entries[j].path))
		}
		return entries[i].modTime.Before(entries[j].modTime)
	})

	remaining := len(entries)
	deleted := 0
	for _, e := range entries {
		if remaining <= m.Limit {
			break
		}
		if err := os.Remove(e.path); err != nil {
			slog.WarnContext(ctx, "Cannot delete archived report", "path", e.path, "error", err)
			continue
		}
		slog.DebugContext(ctx, "Archived report pruned", "path", e.path)
		remaining--
		deleted++
	}
	return deleted
}

// naturalLess orders names with digit runs compared by value, so that
// "r_2.html" sorts before "r_10.html".
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		da, db := leadingDigits(a), leadingDigits(b)
		if da != "" && db != "" {
			na, nb := strings.TrimLeft(da, "0"), strings.TrimLeft(db, "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			if len(da) != len(db) {
				return len(da) < len(db)
			}
			a, b = a[len(da):], b[len(db):]
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}
