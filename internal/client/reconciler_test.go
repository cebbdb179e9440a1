package client

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discussion-service/internal/models"
)

func topicMsg(id, topicID, chatID, senderID int, content string, at time.Time) models.Message {
	t := topicID
	return models.Message{ID: id, ChatID: chatID, TopicID: &t, SenderID: senderID, Content: content, CreatedAt: at}
}

func chatMsg(id, chatID, senderID int, content string, at time.Time) models.Message {
	return models.Message{ID: id, ChatID: chatID, SenderID: senderID, Content: content, CreatedAt: at}
}

func TestReconcilerDedupesHistoryAgainstLive(t *testing.T) {
	r := NewReconciler()
	target := Target{TopicID: 7}
	r.SwitchConversation(target)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	live := topicMsg(3, 7, 70, 1, "hello", base.Add(2*time.Second))

	require.True(t, r.OnLiveMessage(live))
	require.False(t, r.OnLiveMessage(live), "second delivery of same id must be discarded")

	// History page arrives after the broadcast and contains the same message.
	r.MergeHistoryPage(target, 1, []models.Message{
		topicMsg(1, 7, 70, 2, "first", base),
		topicMsg(2, 7, 70, 1, "second", base.Add(time.Second)),
		live,
	})

	msgs := r.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []int{1, 2, 3}, idsOf(msgs))
}

func TestReconcilerOrdering(t *testing.T) {
	r := NewReconciler()
	target := Target{ChatID: 9}
	r.SwitchConversation(target)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	// Same timestamp, ids break the tie.
	r.OnLiveMessage(chatMsg(12, 9, 1, "b", base))
	r.OnLiveMessage(chatMsg(11, 9, 2, "a", base))
	r.OnLiveMessage(chatMsg(13, 9, 1, "c", base.Add(-time.Second)))

	msgs := r.Messages()
	require.Len(t, msgs, 3)
	assert.True(t, sort.SliceIsSorted(msgs, func(i, j int) bool {
		return msgs[i].Before(msgs[j])
	}))
	assert.Equal(t, []int{13, 11, 12}, idsOf(msgs))
}

func TestReconcilerLaterPagesPrependWithoutDuplicates(t *testing.T) {
	r := NewReconciler()
	target := Target{ChatID: 4}
	r.SwitchConversation(target)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	r.MergeHistoryPage(target, 1, []models.Message{
		chatMsg(5, 4, 1, "five", base.Add(4*time.Second)),
		chatMsg(6, 4, 1, "six", base.Add(5*time.Second)),
	})
	// Older page overlaps the first by one message.
	r.MergeHistoryPage(target, 2, []models.Message{
		chatMsg(3, 4, 1, "three", base.Add(2*time.Second)),
		chatMsg(4, 4, 1, "four", base.Add(3*time.Second)),
		chatMsg(5, 4, 1, "five", base.Add(4*time.Second)),
	})

	assert.Equal(t, []int{3, 4, 5, 6}, idsOf(r.Messages()))
}

func TestReconcilerFirstPageReplacesButKeepsPending(t *testing.T) {
	r := NewReconciler()
	target := Target{ChatID: 4}
	r.SwitchConversation(target)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	r.MergeHistoryPage(target, 1, []models.Message{chatMsg(1, 4, 1, "old", base)})
	r.AddLocalEcho(Entry{TempID: "tmp-1", Message: chatMsg(0, 4, 9, "draft", base.Add(time.Minute))})

	// A refetch of page 1 (e.g. after reconnect) replaces persisted state.
	r.MergeHistoryPage(target, 1, []models.Message{
		chatMsg(1, 4, 1, "old", base),
		chatMsg(2, 4, 1, "new", base.Add(time.Second)),
	})

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.True(t, entries[2].Pending, "pending echo must survive the wholesale replace")
	assert.Equal(t, []int{1, 2}, idsOf(r.Messages()))
}

func TestReconcilerDropsStaleResponsesAfterSwitch(t *testing.T) {
	r := NewReconciler()
	oldTarget := Target{ChatID: 4}
	r.SwitchConversation(oldTarget)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	r.SwitchConversation(Target{TopicID: 7})

	// Response for the previous conversation arrives late.
	r.MergeHistoryPage(oldTarget, 1, []models.Message{chatMsg(1, 4, 1, "stale", base)})
	assert.Empty(t, r.Messages())

	// A live message for the old chat is likewise ignored.
	assert.False(t, r.OnLiveMessage(chatMsg(2, 4, 1, "also stale", base)))
	assert.Empty(t, r.Messages())
}

func TestReconcilerFiltersBlockedSenders(t *testing.T) {
	r := NewReconciler()
	target := Target{TopicID: 3}
	r.SwitchConversation(target)
	r.SetBlocked([]int{66})

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	assert.False(t, r.OnLiveMessage(topicMsg(1, 3, 30, 66, "hidden", base)))
	r.MergeHistoryPage(target, 1, []models.Message{
		topicMsg(1, 3, 30, 66, "hidden", base),
		topicMsg(2, 3, 30, 5, "visible", base.Add(time.Second)),
	})

	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 2, msgs[0].ID)
}

func TestReconcilerResolveTempAfterBroadcastWon(t *testing.T) {
	r := NewReconciler()
	target := Target{ChatID: 8}
	r.SwitchConversation(target)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	r.AddLocalEcho(Entry{TempID: "tmp-1", Message: chatMsg(0, 8, 1, "hi", base)})

	persisted := chatMsg(42, 8, 1, "hi", base.Add(100*time.Millisecond))
	persisted.ClientKey = "key-1"
	require.True(t, r.OnLiveMessage(persisted))

	// The delayed ack resolves the echo; the broadcast already inserted the
	// message, so no duplicate appears.
	r.ResolveTemp("tmp-1", persisted)

	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 42, msgs[0].ID)
	assert.Empty(t, pendingOf(r.Entries()))
}

func TestReconcilerHasDelivered(t *testing.T) {
	r := NewReconciler()
	target := Target{ChatID: 8}
	r.SwitchConversation(target)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	keyed := chatMsg(1, 8, 1, "keyed", base)
	keyed.ClientKey = "key-a"
	r.OnLiveMessage(keyed)
	r.OnLiveMessage(chatMsg(2, 8, 1, "plain", base.Add(time.Second)))

	assert.True(t, r.HasDelivered("key-a", 0, "", base))
	assert.False(t, r.HasDelivered("key-b", 0, "", base))

	// Content matching applies only to messages without a key.
	assert.True(t, r.HasDelivered("", 1, "plain", base))
	assert.False(t, r.HasDelivered("", 1, "keyed", base))
	assert.False(t, r.HasDelivered("", 1, "plain", base.Add(time.Hour)), "older messages do not settle a new send")
}

func idsOf(msgs []models.Message) []int {
	ids := make([]int, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

func pendingOf(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Pending {
			out = append(out, e)
		}
	}
	return out
}
