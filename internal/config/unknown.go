package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions.
const maxLevenshteinDistance = 3

// knownKeys lists valid keys per section; "" is the top level.
var knownKeys = map[string][]string{
	"": {"user_id", "source", "data_dir", "remote", "sync", "presence", "activity", "logging"},
	"remote": {
		"backup_url", "session_url", "notify_url", "api_token", "user_agent",
		"request_timeout", "max_requests_per_second",
	},
	"sync": {
		"strategy", "debounce", "retry_delay", "max_retries", "interval_multi_user",
		"interval_single_user", "min_interval", "max_payload", "max_queue", "log_trim_threshold",
	},
	"presence": {"heartbeat_interval"},
	"activity": {"check_interval", "inactivity_threshold"},
	"logging":  {"log_level", "log_format"},
}

func init() {
	for _, keys := range knownKeys {
		sort.Strings(keys)
	}
}

// checkUnknownKeys turns undecoded TOML keys into errors with "did you
// mean?" suggestions. Keys under an unknown table are reported once, as the
// table.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	reported := make(map[string]bool)

	for _, key := range md.Undecoded() {
		var msg error

		switch {
		case len(key) == 1:
			msg = unknownKeyError("", key[0])
		case knownKeys[key[0]] == nil:
			msg = unknownKeyError("", key[0])
		case len(key) == 2:
			msg = unknownKeyError(key[0], key[1])
		default:
			msg = fmt.Errorf("unknown config key %q", key.String())
		}

		if reported[msg.Error()] {
			continue
		}

		reported[msg.Error()] = true
		errs = append(errs, msg)
	}

	return errors.Join(errs...)
}

func unknownKeyError(section, field string) error {
	name := field
	if section != "" {
		name = section + "." + field
	}

	if suggestion := closestMatch(field, knownKeys[section]); suggestion != "" {
		return fmt.Errorf("unknown config key %q, did you mean %q?", name, suggestion)
	}

	return fmt.Errorf("unknown config key %q", name)
}

// closestMatch finds the closest known key by Levenshtein distance, or ""
// when nothing is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		if d := levenshtein(unknown, k); d < bestDist {
			bestDist = d
			best = k
		}
	}

	return best
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
