package runtime

import (
	"chat-widget/contract"
	"chat-widget/domain/chat"
)

// command is anything the apply loop of the synchronizer handles.
type command interface{}

type activateCmd struct {
	room  chat.Room
	reply chan uint64
}

type teardownCmd struct {
	reply chan uint64
}

// subscribedCmd carries the outcome of opening the change feed.
// retry is set for the single resubscription attempt after a drop.
type subscribedCmd struct {
	generation uint64
	sub        contract.Subscription
	err        error
	retry      bool
}

// fetchedCmd carries an enriched bulk fetch. A catch-up fetch follows a
// resubscription and is merged into a live session instead of loading it.
type fetchedCmd struct {
	generation uint64
	messages   []chat.Message
	err        error
	catchUp    bool
}

type insertCmd struct {
	generation uint64
	message    chat.Message
}

type feedEndedCmd struct {
	generation uint64
	sub        contract.Subscription
	err        error
}

type provisionalCmd struct {
	message chat.Message
	reply   chan error
}

type confirmCmd struct {
	provisionalID chat.MessageID
	canonical     chat.Message
	reply         chan error
}

type rejectCmd struct {
	provisionalID chat.MessageID
	reply         chan error
}
