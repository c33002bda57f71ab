package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/mjacniacki/neonrain/discord-bot-client/pkg/types"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func msgAt(id, authorID string, offset time.Duration) types.Message {
	return types.Message{
		ID:        id,
		Content:   "message " + id,
		Author:    types.Author{ID: authorID, Username: "user-" + authorID},
		Timestamp: base.Add(offset).Format(time.RFC3339Nano),
	}
}

func ids(messages []types.Message) string {
	out := ""
	for _, m := range messages {
		out += m.ID
	}
	return out
}

func TestReverse(t *testing.T) {
	newestFirst := []types.Message{msgAt("3", "u", 0), msgAt("2", "u", 0), msgAt("1", "u", 0)}

	reversed := Reverse(newestFirst)
	if got := ids(reversed); got != "123" {
		t.Errorf("Expected order 123, got %s", got)
	}
	if got := ids(newestFirst); got != "321" {
		t.Errorf("Reverse must not modify its input, got %s", got)
	}
}

func TestReverse_RoundTrip(t *testing.T) {
	for n := 0; n < 6; n++ {
		var page []types.Message
		for i := 0; i < n; i++ {
			page = append(page, msgAt(fmt.Sprint(i), "u", 0))
		}

		if got, want := ids(Reverse(Reverse(page))), ids(page); got != want {
			t.Errorf("n=%d: expected %s after round trip, got %s", n, want, got)
		}
	}
}

func TestAppend(t *testing.T) {
	list := []types.Message{msgAt("1", "u", 0), msgAt("2", "u", 0)}

	list, added := Append(list, msgAt("3", "u", 0))
	if !added {
		t.Fatal("Expected new message to be added")
	}
	if got := ids(list); got != "123" {
		t.Errorf("Expected 123, got %s", got)
	}

	list, added = Append(list, msgAt("3", "u", 0))
	if added {
		t.Error("Duplicate id must not be appended")
	}
	if got := ids(list); got != "123" {
		t.Errorf("Expected 123 after duplicate, got %s", got)
	}
}

func TestPrepend(t *testing.T) {
	current := []types.Message{msgAt("4", "u", 0), msgAt("5", "u", 0)}
	older := []types.Message{msgAt("2", "u", 0), msgAt("3", "u", 0), msgAt("4", "u", 0)}

	if got := ids(Prepend(current, older)); got != "2345" {
		t.Errorf("Expected 2345, got %s", got)
	}
	if got := ids(Prepend(current, nil)); got != "45" {
		t.Errorf("Expected 45 for empty page, got %s", got)
	}
}

func TestOldest(t *testing.T) {
	if _, ok := Oldest(nil); ok {
		t.Error("Empty list has no cursor")
	}
	id, ok := Oldest([]types.Message{msgAt("7", "u", 0), msgAt("8", "u", 0)})
	if !ok || id != "7" {
		t.Errorf("Expected cursor 7, got %q", id)
	}
}

func TestHeaderFlags(t *testing.T) {
	messages := []types.Message{
		msgAt("A", "U1", 0),
		msgAt("B", "U1", 100*time.Second),
		msgAt("C", "U2", 110*time.Second),
		msgAt("D", "U1", 500*time.Second),
	}

	want := []bool{true, false, true, true}
	got := HeaderFlags(messages)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Message %s: expected header=%v, got %v", messages[i].ID, want[i], got[i])
		}
	}
}

func TestShowHeader(t *testing.T) {
	tests := []struct {
		name string
		prev *types.Message
		cur  types.Message
		want bool
	}{
		{"first message", nil, msgAt("1", "a", 0), true},
		{"same author within gap", ptr(msgAt("1", "a", 0)), msgAt("2", "a", 4*time.Minute), false},
		{"exactly five minutes", ptr(msgAt("1", "a", 0)), msgAt("2", "a", HeaderGap), false},
		{"same author after gap", ptr(msgAt("1", "a", 0)), msgAt("2", "a", HeaderGap+time.Second), true},
		{"author change", ptr(msgAt("1", "a", 0)), msgAt("2", "b", time.Second), true},
		{"unparseable timestamp", ptr(msgAt("1", "a", 0)), types.Message{ID: "2", Author: types.Author{ID: "a"}, Timestamp: "soon"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShowHeader(tt.prev, tt.cur); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func ptr(m types.Message) *types.Message { return &m }
