// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sanitize

import (
	"strconv"
	"strings"
)

// detection is the parsed form of a model detection reply.
type detection struct {
	detected   bool
	types      []string
	sanitized  string
	confidence float64
}

// malformedConfidenceWhenDetected is assumed when the model claims PII but
// the confidence line is missing or unreadable.
const malformedConfidenceWhenDetected = 0.95

// parseDetection parses the labeled-line detection reply. Lines may appear
// in any order; SANITIZED_TEXT captures everything up to the next known
// label so multi-line sanitized text survives. Returns ok=false when the
// PII_DETECTED line is absent, which is treated as an unusable reply.
func parseDetection(raw string) (detection, bool) {
	var d detection
	foundDetected := false
	confidenceParsed := false

	lines := strings.Split(raw, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		switch {
		case hasLabel(line, "PII_DETECTED:"):
			value := strings.ToUpper(labelValue(line, "PII_DETECTED:"))
			value = strings.Trim(value, "[]")
			d.detected = strings.Contains(value, "YES")
			foundDetected = true

		case hasLabel(line, "DETECTED_TYPES:"):
			value := labelValue(line, "DETECTED_TYPES:")
			if strings.EqualFold(value, "NONE") || value == "" {
				continue
			}
			for _, part := range strings.Split(value, ",") {
				part = strings.ToLower(strings.TrimSpace(part))
				if part != "" && part != "none" {
					d.types = append(d.types, part)
				}
			}

		case hasLabel(line, "SANITIZED_TEXT:"):
			parts := []string{labelValue(line, "SANITIZED_TEXT:")}
			for i+1 < len(lines) && !isKnownLabel(strings.TrimSpace(lines[i+1])) {
				i++
				parts = append(parts, lines[i])
			}
			d.sanitized = strings.TrimSpace(strings.Join(parts, "\n"))

		case hasLabel(line, "CONFIDENCE:"):
			value := labelValue(line, "CONFIDENCE:")
			if conf, err := strconv.ParseFloat(value, 64); err == nil {
				d.confidence = conf
				confidenceParsed = true
			}
		}
	}

	if !foundDetected {
		return detection{}, false
	}
	if !confidenceParsed {
		if d.detected {
			d.confidence = malformedConfidenceWhenDetected
		} else {
			d.confidence = 0
		}
	}
	return d, true
}

func hasLabel(line, label string) bool {
	return strings.HasPrefix(strings.ToUpper(line), label)
}

func labelValue(line, label string) string {
	return strings.TrimSpace(line[len(label):])
}

func isKnownLabel(line string) bool {
	for _, label := range []string{"PII_DETECTED:", "DETECTED_TYPES:", "SANITIZED_TEXT:", "CONFIDENCE:"} {
		if hasLabel(line, label) {
			return true
		}
	}
	return false
}
