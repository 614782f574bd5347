package main

import (
	"chat-widget/domain/chat"
	"chat-widget/domain/event"
	"chat-widget/projection"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

var (
	authorStyle = color.New(color.FgCyan, color.OpBold)
	timeStyle   = color.New(color.FgGray)
	errorStyle  = color.New(color.FgRed, color.OpBold)
	noticeStyle = color.New(color.FgYellow)
)

// ConsoleSink renders the widget notifications on a terminal.
// Only messages not printed yet are written, provisional ones excepted.
type ConsoleSink struct {
	mu          sync.Mutex
	out         io.Writer
	groupingGap time.Duration
	generation  uint64
	printed     map[chat.MessageID]struct{}
}

func NewConsoleSink(out io.Writer, groupingGap time.Duration) *ConsoleSink {
	return &ConsoleSink{out: out, groupingGap: groupingGap, printed: make(map[chat.MessageID]struct{})}
}

func (c *ConsoleSink) Consume(_ context.Context, e event.DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt := e.(type) {
	case event.SnapshotUpdated:
		c.renderSnapshot(evt.Snapshot)
	case event.RoomsListed:
		c.renderRooms(evt.Rooms)
	case event.RoomSelected:
		fmt.Fprintln(c.out, noticeStyle.Sprintf("# %s (%s)", evt.Room.Name, evt.Room.Kind))
	case event.LoadFailed:
		fmt.Fprintln(c.out, errorStyle.Sprintf("Could not load %s: %v", evt.Room.Name, evt.Err))
	case event.ConnectionLost:
		fmt.Fprintln(c.out, errorStyle.Sprintf("Connection lost in %s, showing the last known messages", evt.Room.Name))
	case event.Resubscribed:
		fmt.Fprintln(c.out, noticeStyle.Sprint("Reconnected"))
	}
	return nil
}

func (c *ConsoleSink) renderSnapshot(snap chat.Snapshot) {
	if snap.Generation != c.generation {
		c.generation = snap.Generation
		c.printed = make(map[chat.MessageID]struct{})
	}
	for _, m := range projection.Grouped(snap.Messages, c.groupingGap) {
		if m.Provisional {
			continue
		}
		if _, ok := c.printed[m.ID]; ok {
			continue
		}
		c.printed[m.ID] = struct{}{}
		if !m.Continuation {
			fmt.Fprintf(c.out, "%s %s\n", authorStyle.Sprint(m.Author.Nickname), timeStyle.Sprint(m.CreatedAt.Local().Format("15:04")))
		}
		fmt.Fprintf(c.out, "  %s\n", m.Body)
	}
}

func (c *ConsoleSink) renderRooms(rooms []chat.Room) {
	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"#", "Name", "Kind", "ID"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	for i, room := range rooms {
		table.Append([]string{fmt.Sprint(i + 1), room.Name, string(room.Kind), string(room.ID)})
	}
	table.Render()
}
