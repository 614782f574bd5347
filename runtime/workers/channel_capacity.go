package workers

import (
	"context"
	"log/slog"
	"reflect"
	"time"
)

// highWatermark is the fill ratio from which a channel is reported as saturated.
const highWatermark = 0.8

type NamedChannel struct {
	Name    string
	Channel any
}

type ChannelUsage struct {
	Name     string
	Capacity int
	Length   int
}

func (u ChannelUsage) Saturated() bool {
	return u.Capacity > 0 && float64(u.Length) >= highWatermark*float64(u.Capacity)
}

// ChannelCapacityWorker periodically reports the fill level of the command
// and notification channels. Reading len(channel) and cap(channel) is
// non-blocking, so this won't interfere with other goroutines.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	channels       []NamedChannel
	metricInterval time.Duration
}

func NewChannelCapacityWorker(log *slog.Logger, channels []NamedChannel,
	metricInterval time.Duration) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{log: log, channels: channels, metricInterval: metricInterval}
}

func (w ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping channel capacity report")
			return nil
		case <-ticker.C:
			for _, usage := range w.Sample() {
				if usage.Saturated() {
					w.log.Warn("Channel close to saturation",
						"name", usage.Name, "length", usage.Length, "capacity", usage.Capacity)
					continue
				}
				w.log.Debug("Channel usage", "name", usage.Name, "length", usage.Length, "capacity", usage.Capacity)
			}
		}
	}
}

// Sample reads the current usage of every channel. Values which are not
// channels are skipped.
func (w ChannelCapacityWorker) Sample() []ChannelUsage {
	var res []ChannelUsage
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		res = append(res, ChannelUsage{Name: nc.Name, Capacity: v.Cap(), Length: v.Len()})
	}
	return res
}
