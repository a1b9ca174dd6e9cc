// Package shred implements multi-pass overwrite-then-remove file deletion.
//
// Overwrites are best-effort: a failed pass is logged and the remaining
// passes still run, and the unlink is attempted unconditionally after the
// overwrite loop. Leaving the file present is strictly worse than leaving
// it imperfectly scrubbed, so nothing short of a missing path stops the
// removal.
package shred

import (
	"crypto/rand"
	"io"
	"log/slog"
	"os"

	apperrors "overload/internal/errors"
)

const (
	// passes is the number of full-length overwrite passes.
	passes = 3
	// chunkSize bounds memory use when overwriting large binaries.
	chunkSize = 4096
)

// configSuffix names the sidecar configuration artifact removed alongside
// the executable during self-destruction.
const configSuffix = ".config"

// Overwrite writes random bytes across the full length of the file at
// path, in three passes, syncing after each pass. Per-pass errors are
// logged and do not abort the remaining passes; the first error observed
// is returned so callers can record the degradation.
func Overwrite(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.SecureDelete(path, err)
	}
	if info.Size() == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return apperrors.SecureDelete(path, err)
	}
	defer f.Close()

	var firstErr error
	for pass := 1; pass <= passes; pass++ {
		if err := overwritePass(f, info.Size(), nil); err != nil {
			slog.Warn("overwrite pass failed",
				slog.String("path", path),
				slog.Int("pass", pass),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = apperrors.SecureDelete(path, err)
			}
			continue
		}
		if err := f.Sync(); err != nil && firstErr == nil {
			firstErr = apperrors.SecureDelete(path, err)
		}
	}
	return firstErr
}

// OverwritePatterns writes each fixed byte pattern across the full length
// of the file, one pass per pattern, syncing to storage before the next
// pass begins. Used by the kill engine's shred method.
func OverwritePatterns(path string, patterns []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.SecureDelete(path, err)
	}
	if info.Size() == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return apperrors.SecureDelete(path, err)
	}
	defer f.Close()

	var firstErr error
	for i, pattern := range patterns {
		buf := make([]byte, chunkSize)
		for j := range buf {
			buf[j] = pattern
		}
		if err := overwritePass(f, info.Size(), buf); err != nil {
			slog.Warn("pattern pass failed",
				slog.String("path", path),
				slog.Int("pass", i+1),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = apperrors.SecureDelete(path, err)
			}
			continue
		}
		if err := f.Sync(); err != nil && firstErr == nil {
			firstErr = apperrors.SecureDelete(path, err)
		}
	}
	return firstErr
}

// overwritePass writes size bytes starting at offset zero. A nil pattern
// buffer means each chunk is filled with fresh random bytes.
func overwritePass(f *os.File, size int64, pattern []byte) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	buf := pattern
	if buf == nil {
		buf = make([]byte, chunkSize)
	}

	remaining := size
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		if pattern == nil {
			if _, err := rand.Read(buf[:n]); err != nil {
				return err
			}
		}
		written, err := f.Write(buf[:n])
		if err != nil {
			return err
		}
		remaining -= int64(written)
	}
	return nil
}

// Remove performs a three-pass random overwrite of path and then unlinks
// it. The unlink runs unconditionally, even when overwrite passes failed.
func Remove(path string) error {
	if err := Overwrite(path); err != nil {
		slog.Warn("overwrite degraded, deleting anyway",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	if err := os.Remove(path); err != nil {
		return apperrors.SecureDelete(path, err)
	}
	return nil
}

// SelfDestruct shreds the currently running executable, removes its
// sidecar configuration artifact, and terminates the process. It never
// returns.
func SelfDestruct(logger *slog.Logger) {
	logger.Error("unauthorized access detected, initiating secure deletion")

	exe, err := os.Executable()
	if err != nil {
		logger.Error("executable path unavailable", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := Remove(exe); err != nil {
		logger.Error("failed to remove executable",
			slog.String("path", exe),
			slog.String("error", err.Error()))
	} else {
		logger.Info("executable securely deleted", slog.String("path", exe))
	}

	if err := os.Remove(exe + configSuffix); err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to remove sidecar config", slog.String("error", err.Error()))
		}
	} else {
		logger.Info("sidecar config deleted")
	}

	os.Exit(1)
}
