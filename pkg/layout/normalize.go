// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package layout

import "sort"

// Normalize fills defaults and puts the layout in canonical order. It may
// mutate the layout and must be called only after Validate.
func Normalize(l *Layout) {
	if l == nil {
		return
	}

	for mi := range l.Modes {
		m := &l.Modes[mi]
		if m.Name == "" {
			m.Name = DefaultModeName(mi)
		}
		sort.Slice(m.Buttons, func(i, j int) bool {
			return m.Buttons[i].Index < m.Buttons[j].Index
		})
	}

	sort.Slice(l.Sliders, func(i, j int) bool {
		return l.Sliders[i].Index < l.Sliders[j].Index
	})
}
