package config

import (
	"fmt"
	"strings"
)

type ConnectionString struct {
	InstrumentationKey string
	IngestionEndpoint  string
}

// ParseConnectionString reads "Key=Value;Key=Value" pairs. Keys are case
// insensitive and unknown keys are ignored.
func ParseConnectionString(s string) (ConnectionString, error) {
	cs := ConnectionString{}

	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, found := strings.Cut(part, "=")
		if !found {
			return cs, fmt.Errorf("malformed connection string segment %q", part)
		}

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "instrumentationkey":
			cs.InstrumentationKey = strings.TrimSpace(value)
		case "ingestionendpoint":
			cs.IngestionEndpoint = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}

	if cs.InstrumentationKey == "" {
		return cs, fmt.Errorf("connection string has no InstrumentationKey")
	}

	return cs, nil
}
