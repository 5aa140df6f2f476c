// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package source

import (
	"fmt"
	"path/filepath"

	"gcodeviewer-go/pkg/errors"
)

// ResolvePath joins rel onto root, refusing paths that would leave
// root.
func ResolvePath(root, rel string) (string, error) {
	if root == "" {
		return "", errors.New(errors.ErrSourceIO, "no gcode root configured").SetSource(rel)
	}
	rel = filepath.FromSlash(rel)
	if rel == "" || !filepath.IsLocal(rel) {
		return "", errors.New(errors.ErrSourceIO, fmt.Sprintf("path %q is outside the gcode root", rel)).SetSource(rel)
	}
	return filepath.Join(root, rel), nil
}
