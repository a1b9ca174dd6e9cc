package config

import (
	"bytes"
	"os"

	apperrors "overload/internal/errors"
)

// The patching step reserves a region inside the shipped binary, prefixed
// with a marker, and writes the JSON license blob after it. The region is
// NUL-padded to its fixed size. The agent only ever reads the result of
// that out-of-band step; it never writes it.
const (
	licenseMarker     = "OVLD.LICENSE.v1:"
	licenseRegionSize = 4096
)

// LoadEmbedded scans the currently running executable image for the
// patched license region and parses the blob that follows the marker.
// Reading our own file also covers the case where the binary was launched
// from an extracted in-memory copy whose on-disk image carries the patch.
func LoadEmbedded() (*Config, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, apperrors.Config("executable path", err)
	}

	image, err := os.ReadFile(exe)
	if err != nil {
		return nil, apperrors.Config("read executable", err)
	}
	return parseEmbedded(image)
}

// parseEmbedded scans every marker occurrence and takes the first one
// followed by a parseable blob. The marker string constant is itself
// compiled into the binary's data section and shows up as an earlier
// occurrence in every build, so stopping at the first hit would always
// land on the constant and miss the patched region behind it.
func parseEmbedded(image []byte) (*Config, error) {
	marker := []byte(licenseMarker)

	found := false
	for at := bytes.Index(image, marker); at >= 0; {
		found = true

		blob := image[at+len(marker):]
		if len(blob) > licenseRegionSize {
			blob = blob[:licenseRegionSize]
		}
		if end := bytes.IndexByte(blob, 0); end >= 0 {
			blob = blob[:end]
		}
		if len(blob) > 0 && blob[0] == '{' {
			if cfg, err := Parse(blob); err == nil {
				return cfg, nil
			}
		}

		next := bytes.Index(image[at+1:], marker)
		if next < 0 {
			break
		}
		at += 1 + next
	}

	if !found {
		return nil, apperrors.Configf("no license region in binary; it has not been patched")
	}
	return nil, apperrors.Configf("license region present but empty; binary not patched")
}
