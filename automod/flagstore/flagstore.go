package flagstore

import (
	"context"
)

// Private moderation flags attached to a target reference (eg, "post/abc123"). Flagged targets form the human review queue.
type FlagStore interface {
	Get(ctx context.Context, key string) ([]string, error)
	Add(ctx context.Context, key string, flags []string) error
	// does not error if flags not in set
	Remove(ctx context.Context, key string, flags []string) error
	// Returns all keys which currently have at least one flag, sorted.
	Keys(ctx context.Context) ([]string, error)
}

func dedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}
