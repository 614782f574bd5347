package main

import (
	"chat-widget/domain/chat"
	"chat-widget/infrastructure/storage"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	// Empty prefix dumps rooms, profiles and messages.
	prefix := flag.String("prefix", "", "Prefix to scan, e.g. room: profile: msg:<room>:")
	flag.Parse()

	db, err := storage.OpenBadgerReadOnly(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	logger := logs.GetLoggerFromString("WARN")
	store := storage.NewStore(db, logger, storage.NewFeed(logger, 0))
	entries, err := store.Dump(*prefix)
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, entry := range entries {
		timestamp, detail := describe(entry.Value)
		table.Append([]string{entry.Key, entry.Kind, timestamp, detail})
	}
	table.Render()
}

func describe(value any) (string, string) {
	switch v := value.(type) {
	case chat.RawMessage:
		return v.CreatedAt.Format("2006-01-02 15:04:05"), fmt.Sprintf("[%s] %s: %s", v.Visibility, v.AuthorID, v.Body)
	case chat.Room:
		return "", fmt.Sprintf("%s (%s)", v.Name, v.Kind)
	case chat.Profile:
		return "", fmt.Sprintf("%s %s", v.Nickname, v.AvatarRef)
	case error:
		return "", "decode error: " + v.Error()
	case []byte:
		return "", fmt.Sprintf("%d raw bytes", len(v))
	default:
		return "", fmt.Sprint(v)
	}
}
