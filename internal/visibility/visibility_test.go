package visibility

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/zKaminise/Message-App/internal/models"
)

func chat(id string, members []string, visibleFor []string) models.Chat {
	return models.Chat{
		ID:         id,
		Kind:       models.ChatKindDirect,
		Members:    pq.StringArray(members),
		VisibleFor: pq.StringArray(visibleFor),
	}
}

func TestSplitEmptyVisibleForMeansActive(t *testing.T) {
	chats := []models.Chat{chat("a_b", []string{"a", "b"}, nil)}

	active, hidden := Split(chats, "a")

	assert.Len(t, active, 1)
	assert.Empty(t, hidden)
}

func TestSplitHiddenForOneMemberOnly(t *testing.T) {
	chats := []models.Chat{chat("a_b", []string{"a", "b"}, []string{"b"})}

	activeA, hiddenA := Split(chats, "a")
	activeB, hiddenB := Split(chats, "b")

	assert.Empty(t, activeA)
	assert.Len(t, hiddenA, 1)
	assert.Len(t, activeB, 1)
	assert.Empty(t, hiddenB)
}

func TestSplitDropsNonMemberChats(t *testing.T) {
	chats := []models.Chat{chat("a_b", []string{"a", "b"}, nil)}

	active, hidden := Split(chats, "c")

	assert.Empty(t, active)
	assert.Empty(t, hidden)
}

func TestSplitPreservesOrder(t *testing.T) {
	chats := []models.Chat{
		chat("a_b", []string{"a", "b"}, nil),
		chat("a_c", []string{"a", "c"}, []string{"a"}),
		chat("a_d", []string{"a", "d"}, []string{"d"}),
		chat("a_e", []string{"a", "e"}, nil),
	}

	active, hidden := Split(chats, "a")

	assert.Equal(t, []string{"a_b", "a_c", "a_e"}, ids(active))
	assert.Equal(t, []string{"a_d"}, ids(hidden))
}

func ids(chats []models.Chat) []string {
	out := make([]string, 0, len(chats))
	for _, c := range chats {
		out = append(out, c.ID)
	}
	return out
}
