// Command loadhistory is a minimal CLI front end over this module's
// loader: point it at a Telegram export or an MRA account directory and
// it prints a one-line summary per chat. It exists only to give the
// core something runnable; the gRPC service, the UI and the real
// protobuf/transport layer this core is meant to sit behind are out of
// scope (spec.md §1) and live elsewhere.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"historyloader/internal/adapters/consolechooser"
	"historyloader/internal/infra/config"
	"historyloader/internal/infra/logger"
	"historyloader/internal/loader"
)

func main() {
	log.SetFlags(0)

	envPath := flag.String("env", "", "path to .env file (optional)")
	flag.Parse()

	if err := config.Load(*envPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	env := config.Instance().Env()
	logger.Init(env.LogLevel)
	for _, w := range config.Instance().Warnings() {
		logger.Warn(w)
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: loadhistory [-env path] <export-root>")
		os.Exit(2)
	}
	root := flag.Arg(0)

	result, err := loader.Load(root, consolechooser.Chooser{})
	if err != nil {
		logger.Fatal(fmt.Sprintf("load failed: %v", err))
	}

	fmt.Printf("dataset %s (%s): %d users, %d chats\n",
		result.Dataset.UUID, result.Dataset.SourceType, len(result.Users), len(result.Chats))
	for _, cwm := range result.Chats {
		last := "-"
		if n := len(cwm.Messages); n > 0 {
			last = time.Unix(cwm.Messages[n-1].Timestamp, 0).UTC().Format("2006-01-02")
		}
		fmt.Printf("  chat %d %-20s %5d msgs  last=%s\n", cwm.Chat.ID, cwm.Chat.Name, cwm.Chat.MsgCount, last)
	}
}
