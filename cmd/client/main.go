// Command client is the terminal chat client: profile form, match search and
// the chat itself.
package main

import (
	"anonchat/app/internal/config"
	"anonchat/app/internal/flow"
	"anonchat/app/internal/localization"
	"anonchat/app/internal/logger"
	"anonchat/app/internal/matchapi"
	"anonchat/app/internal/sessionstore"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

type app struct {
	cfg    *config.ClientConfig
	log    *zap.Logger
	store  sessionstore.Store
	api    *matchapi.Client
	router *flow.Router
	loc    *localization.Localizer
	lang   string

	out   io.Writer
	lines <-chan string
}

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// the terminal belongs to the chat, logs only go to the file
	log, err := logger.NewFileOnly(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := sessionstore.Open(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		cfg:    cfg,
		log:    log,
		store:  store,
		api:    matchapi.NewClient(cfg.MatchServiceURL, cfg.HTTPTimeout, log),
		router: flow.NewRouter(store, log),
		loc:    localization.Bundled(),
		lang:   cfg.Language,
		out:    os.Stdout,
		lines:  readLines(ctx, os.Stdin),
	}
	a.run(ctx)
}

// screenQuit ends run. Screens return it once stdin is exhausted.
const screenQuit flow.Screen = -1

func (a *app) run(ctx context.Context) {
	screen := a.router.Initial(ctx)
	for ctx.Err() == nil {
		switch screen {
		case flow.ScreenProfile:
			screen = a.profileScreen(ctx)
		case flow.ScreenMatching:
			screen = a.matchingScreen(ctx)
		case flow.ScreenChat:
			screen = a.chatScreen(ctx)
		default:
			a.log.Info("input closed, exiting")
			return
		}
	}
}

func (a *app) say(key string, args ...any) {
	fmt.Fprintln(a.out, a.loc.Format(a.lang, key, args...))
}

// prompt prints the localized prompt and waits for one line. ok is false when
// input ended or ctx was cancelled.
func (a *app) prompt(ctx context.Context, key string, args ...any) (line string, ok bool) {
	return a.promptText(ctx, a.loc.Format(a.lang, key, args...))
}

func (a *app) promptText(ctx context.Context, label string) (line string, ok bool) {
	fmt.Fprint(a.out, label)
	select {
	case <-ctx.Done():
		return "", false
	case line, ok = <-a.lines:
		return line, ok
	}
}

func readLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
