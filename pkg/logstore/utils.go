package logstore

import (
	"fmt"
	"sort"
	"strings"
)

func LabelsMapToString(labels map[string]string, matcher string) string {
	lstrs := make([]string, 0, len(labels))

	for l, v := range labels {
		lstrs = append(lstrs, fmt.Sprintf("%s%s%q", l, matcher, v))
	}

	sort.Strings(lstrs)
	return fmt.Sprintf("{%s}", strings.Join(lstrs, ", "))
}

// StreamName turns a label set into a stable name that is safe to use as a
// file name, e.g. {instance_id="cam 7"} becomes instance_id_cam_7.
func StreamName(labels map[string]string) (string, error) {
	if len(labels) == 0 {
		return "", ErrNoLabels
	}

	keys := make([]string, 0, len(labels))

	for k := range labels {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))

	for _, k := range keys {
		parts = append(parts, sanitize(k)+"_"+sanitize(labels[k]))
	}

	return strings.Join(parts, "__"), nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}

		return '_'
	}, s)
}
