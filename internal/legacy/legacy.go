// Package legacy reads the Tempo bot's activity.json document: a single JSON
// object of named collections keyed by snowflake IDs, role names, thread IDs,
// or channel IDs. Decoding is deliberately loose (scalar fields land as `any`)
// so one malformed record cannot fail the whole load; per-entry validation
// happens in the transformers.
package legacy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// UserActivity is one entry of the user_activity collection, keyed by
// principal snowflake.
type UserActivity struct {
	TotalTime   any `json:"totalTime"`   // integer ms
	StartTime   any `json:"startTime"`   // integer ms or null
	DisplayName any `json:"displayName"` // string or null
}

// RoleConfig is one entry of the role_config collection, keyed by role name.
type RoleConfig struct {
	MinHours    any `json:"minHours"`    // number
	ReportCycle any `json:"reportCycle"` // integer weeks
	ResetTime   any `json:"resetTime"`   // integer ms or null
}

// ActivityLog is one event from the ordered activity_logs list.
type ActivityLog struct {
	UserID      string         `json:"userId"`
	EventType   string         `json:"eventType"`
	Timestamp   any            `json:"timestamp"`
	ChannelID   string         `json:"channelId"`
	ChannelName string         `json:"channelName"`
	DurationMS  any            `json:"durationMs"`
	Extra       map[string]any `json:"extra"`
}

// ResetEvent is one entry of a role's reset_history list.
type ResetEvent struct {
	Timestamp     any    `json:"timestamp"`
	Reason        string `json:"reason"`
	AdminUsername string `json:"adminUsername"`
}

// AFKEntry is one entry of the afk_status collection, keyed by principal
// snowflake.
type AFKEntry struct {
	AFKStart any `json:"afkStart"` // integer ms
	AFKUntil any `json:"afkUntil"` // integer ms or null
}

// VoiceMapping is one entry of voice_channel_mappings, keyed by voice channel
// snowflake.
type VoiceMapping struct {
	ForumPostID          string `json:"forumPostId"`
	LastParticipantCount any    `json:"lastParticipantCount"`
}

// Document is the whole legacy store, read once and fully into memory.
type Document struct {
	UserActivity         map[string]UserActivity      `json:"user_activity"`
	RoleConfig           map[string]RoleConfig        `json:"role_config"`
	ActivityLogs         []ActivityLog                `json:"activity_logs"`
	ResetHistory         map[string][]ResetEvent      `json:"reset_history"`
	AFKStatus            map[string]AFKEntry          `json:"afk_status"`
	ForumMessages        map[string]map[string]string `json:"forum_messages"`
	VoiceChannelMappings map[string]VoiceMapping      `json:"voice_channel_mappings"`

	// Checksum is the SHA-256 of the raw file, used to key resume checkpoints.
	Checksum string `json:"-"`
}

// Load reads and structurally validates the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading legacy store: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing legacy store %s: %w", path, err)
	}

	sum := sha256.Sum256(data)
	doc.Checksum = hex.EncodeToString(sum[:])

	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("validating legacy store %s: %w", path, err)
	}
	return &doc, nil
}

// Validate performs the structural check: the document must contain the
// user_activity collection. Everything else is optional.
func (d *Document) Validate() error {
	if d.UserActivity == nil {
		return fmt.Errorf("user_activity collection is missing")
	}
	return nil
}

// SortedKeys returns m's keys in lexicographic order. Map iteration order in
// Go is randomized; migrations need deterministic entry and error ordering.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
