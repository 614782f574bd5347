package projection

import (
	"chat-widget/domain/chat"
	"time"
)

// DefaultGroupingGap is how close two messages of the same author must be to
// be displayed as one block.
const DefaultGroupingGap = 5 * time.Minute

type GroupedMessage struct {
	chat.Message
	// Continuation is true when the previous message has the same author and
	// was created less than the gap before: the header can be omitted.
	Continuation bool
}

func Grouped(messages []chat.Message, gap time.Duration) []GroupedMessage {
	res := make([]GroupedMessage, len(messages))
	for i, m := range messages {
		res[i] = GroupedMessage{Message: m}
		if i == 0 {
			continue
		}
		prev := messages[i-1]
		res[i].Continuation = prev.AuthorID == m.AuthorID && m.CreatedAt.Sub(prev.CreatedAt) < gap
	}
	return res
}
