// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package layout

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a layout from a YAML file. The result is raw: run Validate
// and then Normalize before handing it to a session.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	l := &Layout{}
	if err := yaml.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", path, err)
	}
	return l, nil
}

// Save writes a layout back to a YAML file.
func Save(l *Layout, path string) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	return nil
}
