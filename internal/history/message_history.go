package history

import (
	"time"

	"github.com/mjacniacki/neonrain/discord-bot-client/pkg/types"
)

// HeaderGap is the silence after which a message from the same author
// gets its own avatar/username header again
const HeaderGap = 5 * time.Minute

// Reverse returns a reversed copy of messages. Discord pages are newest
// first, the message list is kept oldest first.
func Reverse(messages []types.Message) []types.Message {
	out := make([]types.Message, len(messages))
	for i, msg := range messages {
		out[len(messages)-1-i] = msg
	}
	return out
}

// Append adds msg at the end unless a message with the same id is
// already present. The returned bool reports whether it was added.
func Append(messages []types.Message, msg types.Message) ([]types.Message, bool) {
	for _, existing := range messages {
		if existing.ID == msg.ID {
			return messages, false
		}
	}
	out := make([]types.Message, 0, len(messages)+1)
	out = append(out, messages...)
	return append(out, msg), true
}

// Prepend places an older oldest-first page in front of messages,
// skipping ids already present
func Prepend(messages, older []types.Message) []types.Message {
	seen := make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		seen[msg.ID] = struct{}{}
	}

	out := make([]types.Message, 0, len(older)+len(messages))
	for _, msg := range older {
		if _, ok := seen[msg.ID]; ok {
			continue
		}
		seen[msg.ID] = struct{}{}
		out = append(out, msg)
	}
	return append(out, messages...)
}

// Oldest returns the id of the first message, used as the "before" cursor
func Oldest(messages []types.Message) (string, bool) {
	if len(messages) == 0 {
		return "", false
	}
	return messages[0].ID, true
}

// ShowHeader reports whether cur starts a new visual group after prev.
// A nil prev means cur is the first message in the list.
func ShowHeader(prev *types.Message, cur types.Message) bool {
	if prev == nil {
		return true
	}
	if prev.Author.ID != cur.Author.ID {
		return true
	}

	prevTime, err := prev.Time()
	if err != nil {
		return false
	}
	curTime, err := cur.Time()
	if err != nil {
		return false
	}
	return curTime.Sub(prevTime) > HeaderGap
}

// HeaderFlags evaluates ShowHeader for every message of an oldest-first list
func HeaderFlags(messages []types.Message) []bool {
	flags := make([]bool, len(messages))
	for i := range messages {
		var prev *types.Message
		if i > 0 {
			prev = &messages[i-1]
		}
		flags[i] = ShowHeader(prev, messages[i])
	}
	return flags
}
