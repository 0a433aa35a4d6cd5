package main

import (
	"anonchat/app/internal/config"
	"anonchat/app/internal/sessionstore"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	store, err := sessionstore.Open(cfg)
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	ctx := context.Background()

	switch os.Args[1] {
	case "show":
		if err := show(ctx, store); err != nil {
			log.Fatalf("Error reading session store: %v", err)
		}
	case "clear-session":
		if err := sessionstore.ClearHandle(ctx, store); err != nil {
			log.Fatalf("Error clearing session: %v", err)
		}
		fmt.Println("Session handle cleared; the participant identity is kept.")
	case "reset":
		if err := reset(ctx, store); err != nil {
			log.Fatalf("Error resetting store: %v", err)
		}
		fmt.Println("Session store reset; a new participant id will be generated on next submit.")
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: admin <show|clear-session|reset>")
}

func show(ctx context.Context, s sessionstore.Store) error {
	p, found, err := sessionstore.LoadIdentity(ctx, s)
	if err != nil {
		return err
	}
	if found {
		printJSON("participantIdentity", p)
	} else {
		fmt.Println("participantIdentity: <empty>")
	}

	h, found, err := sessionstore.LoadHandle(ctx, s)
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("sessionHandle: <empty>")
		return nil
	}
	printJSON("sessionHandle", h)
	if !h.Valid() {
		fmt.Println("warning: session handle is incomplete and will be ignored by the client")
	}
	return nil
}

func reset(ctx context.Context, s sessionstore.Store) error {
	for _, slot := range []sessionstore.Slot{sessionstore.SlotSessionHandle, sessionstore.SlotParticipantIdentity} {
		if err := s.Delete(ctx, slot); err != nil && !errors.Is(err, sessionstore.ErrNotFound) {
			return fmt.Errorf("delete %s: %w", slot, err)
		}
	}
	return nil
}

func printJSON(label string, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Printf("%s:\n%s\n", label, data)
}
