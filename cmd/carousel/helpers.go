package main

import "time"

// shortID trims a session identifier to the prefix shown in listings and
// archive names.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatTimestamp renders an RFC 3339 timestamp in local time for terminal
// output. Unparseable values pass through and empty values become a dash.
func formatTimestamp(value string) string {
	if value == "" {
		return "-"
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}
