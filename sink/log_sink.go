package sink

import (
	"chat-widget/domain/event"
	"context"
	"fmt"
	"log/slog"
)

// LogSink reports the widget notifications in the application log.
// Snapshots are only logged at debug level.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) LogSink {
	return LogSink{log: log}
}

func (l LogSink) Consume(ctx context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.LoadFailed:
		l.log.Error("Room history could not be loaded",
			"room_id", evt.Room.ID, "generation", evt.Generation, "error", evt.Err)
	case event.ConnectionLost:
		l.log.Warn("Live feed lost", "room_id", evt.Room.ID, "error", evt.Err)
	case event.Resubscribed:
		l.log.Info("Live feed reopened", "room_id", evt.Room.ID)
	case event.RoomSelected:
		l.log.Info("Room selected", "room_id", evt.Room.ID, "kind", evt.Room.Kind)
	case event.RoomsListed:
		l.log.Info(fmt.Sprintf("%d %s rooms listed", len(evt.Rooms), evt.Kind))
	case event.SnapshotUpdated:
		if l.log.Enabled(ctx, slog.LevelDebug) {
			l.log.Debug("Snapshot updated", "room_id", evt.Snapshot.RoomID(),
				"state", evt.Snapshot.State.String(), "messages", len(evt.Snapshot.Messages),
				"connected", evt.Snapshot.Connected, "generation", evt.Snapshot.Generation)
		}
	default:
		l.log.Debug(fmt.Sprintf("Not implemented event : %v", evt))
	}
	return nil
}
