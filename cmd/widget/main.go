package main

import (
	"bufio"
	"chat-widget/auth"
	"chat-widget/domain/chat"
	"chat-widget/errors"
	"chat-widget/infrastructure/storage"
	"chat-widget/internal"
	"chat-widget/moderation"
	"chat-widget/runtime"
	"chat-widget/runtime/workers"
	"chat-widget/sink"
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Widget terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the widget on a local Badger backend and drives it from stdin.
func run() (int, error) {
	token := flag.String("token", "", "Signed session token of the current user")
	user := flag.String("user", "", "User id to sign a session token for, when no token is given")
	seed := flag.Bool("seed", false, "Create demo rooms and profiles")
	flag.Parse()

	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	identity, err := authenticate(config, *token, *user)
	if err != nil {
		return exitConfig, err
	}

	// 2. Database (BadgerDB)
	db, err := storage.OpenBadger(config.BadgerFilepath)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	store := storage.NewStore(db, logger, storage.NewFeed(logger, config.SubscriptionBufferSize))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *seed {
		if err := seedDemo(ctx, store, identity); err != nil {
			return exitRuntime, fmt.Errorf("seed failed: %w", err)
		}
	}

	// 3. Setup Supervision & Orchestration
	var dictionary fs.FS = moderation.DefaultDictionary
	dictionaryDir := moderation.DefaultDictionaryDir
	if config.CensoredDir != "" {
		dictionary, dictionaryDir = os.DirFS(config.CensoredDir), "."
	}
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	orchestrator, err := runtime.NewOrchestrator(logger, sup, store, runtime.Options{
		CommandBufferSize:    config.CommandBufferSize,
		EventBufferSize:      config.CommandBufferSize,
		EnrichConcurrency:    config.EnrichConcurrency,
		ReconciliationWindow: config.ReconciliationWindow,
		SinkTimeout:          config.SinkTimeout,
		MetricInterval:       config.MetricInterval,
		MaxBodyLength:        config.MaxBodyLength,
		Dictionary:           dictionary,
		DictionaryDir:        dictionaryDir,
		CharReplacement:      charReplacement,
	})
	if err != nil {
		return exitConfig, err
	}
	orchestrator.RegisterSinks(NewConsoleSink(os.Stdout, config.GroupingGap), sink.NewLogSink(logger))
	if err := orchestrator.Start(ctx); err != nil {
		return exitRuntime, err
	}
	defer orchestrator.Stop()

	// 4. Interactive loop
	if _, err := orchestrator.Directory().ListRooms(ctx, chat.Public); err != nil {
		logger.Error("Unable to list rooms", "error", err)
	}
	lines := make(chan string)
	go scanLines(os.Stdin, lines)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if quit := handleLine(ctx, logger, orchestrator, identity, line); quit {
				return exitOK, nil
			}
		}
	}
}

func authenticate(config internal.Config, token, user string) (chat.Identity, error) {
	secret := []byte(config.AuthSecret)
	if token == "" {
		if user == "" {
			return chat.Identity{}, fmt.Errorf("either -token or -user is required")
		}
		signed, err := auth.GenerateToken(chat.UserID(user), secret, config.AuthTokenDuration)
		if err != nil {
			return chat.Identity{}, err
		}
		token = signed
	}
	return auth.IdentityFromToken(token, secret)
}

func scanLines(in *os.File, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

// handleLine runs a slash command, or sends the line to the active room.
func handleLine(ctx context.Context, log *slog.Logger, o *runtime.Orchestrator, identity chat.Identity, line string) bool {
	directory := o.Directory()
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "/quit":
		return true
	case "/rooms":
		kind := chat.Public
		if len(fields) > 1 {
			parsed, err := chat.ParseRoomKind(fields[1])
			if err != nil {
				fmt.Println(errorStyle.Sprint(err))
				return false
			}
			kind = parsed
		}
		if _, err := directory.ListRooms(ctx, kind); err != nil {
			fmt.Println(errorStyle.Sprintf("Unable to list rooms: %v", err))
		}
	case "/join":
		name := strings.TrimSpace(strings.TrimPrefix(line, "/join"))
		rooms := append(directory.Rooms(chat.Public), directory.Rooms(chat.Private)...)
		room, found := lo.Find(rooms, func(r chat.Room) bool { return r.Name == name })
		if !found {
			fmt.Println(errorStyle.Sprintf("%v: %q, list them with /rooms", errors.ErrRoomNotFound, name))
			return false
		}
		if _, err := directory.SelectRoom(ctx, room); err != nil {
			fmt.Println(errorStyle.Sprintf("Unable to join %s: %v", name, err))
		}
	case "/nick":
		nickname := strings.TrimSpace(strings.TrimPrefix(line, "/nick"))
		p, err := o.Profiles().SetNickname(ctx, identity, nickname)
		if err != nil {
			fmt.Println(errorStyle.Sprintf("Unable to change nickname: %v", err))
			return false
		}
		fmt.Println(noticeStyle.Sprintf("You are now %s", p.Nickname))
	default:
		room, ok := directory.Selected()
		if !ok {
			fmt.Println(errorStyle.Sprint("No room selected, use /join <name>"))
			return false
		}
		if _, err := o.Sender().Send(ctx, identity, room, line); err != nil {
			log.Debug("Send failed", "room_id", room.ID, "error", err)
			fmt.Println(errorStyle.Sprintf("Not sent: %v", err))
		}
	}
	return false
}

func seedDemo(ctx context.Context, store *storage.Store, identity chat.Identity) error {
	rooms := []chat.Room{
		{ID: "general", Name: "general", Kind: chat.Public},
		{ID: "random", Name: "random", Kind: chat.Public},
		{ID: "staff", Name: "staff", Kind: chat.Private},
	}
	for _, room := range rooms {
		if err := store.UpsertRoom(ctx, room); err != nil {
			return err
		}
	}
	current, err := store.GetProfile(ctx, identity.UserID)
	if err != nil {
		return err
	}
	if current == nil {
		return store.UpsertProfile(ctx, chat.FallbackProfile(identity.UserID))
	}
	return nil
}
