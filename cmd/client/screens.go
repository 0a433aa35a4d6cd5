package main

import (
	"anonchat/app/internal/chat"
	"anonchat/app/internal/flow"
	"anonchat/app/internal/match"
	"anonchat/app/internal/models"
	"anonchat/app/internal/profile"
	"anonchat/app/internal/sessionstore"
	"anonchat/app/internal/stomp"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

func (a *app) profileScreen(ctx context.Context) flow.Screen {
	sub := profile.NewSubmitter(a.store, a.api, a.cfg.Region, a.cfg.Country, a.log)
	form := sub.Prefill(ctx)
	a.say("profile_title")

	for {
		if !a.fillForm(ctx, &form) {
			return screenQuit
		}
		_, err := sub.Submit(ctx, form)
		switch {
		case err == nil:
			return a.router.ProfileSubmitted()
		case errors.Is(err, profile.ErrIncomplete):
			a.say("profile_incomplete")
		case errors.Is(err, profile.ErrEnqueueFailed):
			if _, ok := a.prompt(ctx, "enqueue_failed"); !ok {
				return screenQuit
			}
		default:
			fmt.Fprintln(a.out, err)
		}
	}
}

// fillForm asks for every field. An empty answer keeps the current value.
func (a *app) fillForm(ctx context.Context, f *profile.Form) bool {
	ask := func(key string, current string, args ...any) (string, bool) {
		label := a.loc.Format(a.lang, key, args...)
		if current != "" {
			label = strings.TrimSuffix(label, ": ") + " [" + current + "]: "
		}
		line, ok := a.promptText(ctx, label)
		line = strings.TrimSpace(line)
		if line == "" {
			return current, ok
		}
		return line, ok
	}

	var ok bool
	if f.Name, ok = ask("prompt_name", f.Name); !ok {
		return false
	}

	years := profile.BirthYears()
	current := ""
	if f.BirthYear != 0 {
		current = strconv.Itoa(f.BirthYear)
	}
	year, ok := ask("prompt_birth_year", current, years[len(years)-1], years[0])
	if !ok {
		return false
	}
	f.BirthYear, _ = strconv.Atoi(year)

	if f.Gender, ok = ask("prompt_gender", f.Gender); !ok {
		return false
	}
	if f.GenderPreference, ok = ask("prompt_gender_preference", f.GenderPreference); !ok {
		return false
	}

	filter, ok := a.prompt(ctx, "prompt_interest_filter")
	if !ok {
		return false
	}
	f.InterestFilterEnabled = strings.HasPrefix(strings.ToLower(strings.TrimSpace(filter)), "y")
	if f.InterestFilterEnabled {
		line, ok := ask("prompt_interests", strings.Join(f.Interests, ", "))
		if !ok {
			return false
		}
		f.Interests = nil
		for _, s := range strings.Split(line, ",") {
			f.AddInterest(s)
		}
	}
	return true
}

func (a *app) matchingScreen(ctx context.Context) flow.Screen {
	local, found, err := sessionstore.LoadIdentity(ctx, a.store)
	if err != nil || !found {
		a.log.Warn("no identity for matching", zap.Error(err))
		return a.router.SessionInvalid()
	}

	loop := match.NewLoop(a.store, a.api,
		match.WithDebounce(a.cfg.MatchDebounce),
		match.WithBackOff(backoff.NewConstantBackOff(a.cfg.MatchPollInterval)),
		match.WithLogger(a.log),
	)

	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		h   models.SessionHandle
		err error
	}
	done := make(chan result, 1)
	go func() {
		h, err := loop.Run(searchCtx, local)
		done <- result{h, err}
	}()

	ticker := time.NewTicker(a.cfg.MatchPollInterval)
	defer ticker.Stop()
	for {
		select {
		case res := <-done:
			if res.err != nil {
				a.log.Info("match search ended", zap.Error(res.err))
				return a.router.SessionInvalid()
			}
			return a.router.Matched(res.h)
		case <-ticker.C:
			a.say("finding_match", loop.Attempts())
		case line, ok := <-a.lines:
			if !ok || strings.TrimSpace(line) == "/cancel" {
				cancel()
				<-done
				if !ok {
					return screenQuit
				}
				return a.router.SessionInvalid()
			}
		case <-ctx.Done():
			return flow.ScreenMatching
		}
	}
}

func (a *app) chatScreen(ctx context.Context) flow.Screen {
	dial := func(local models.Participant) chat.Channel {
		return stomp.NewClient(stomp.Options{
			URL:       a.cfg.RealtimeURL,
			Login:     local.ParticipantID,
			Reconnect: backoff.NewConstantBackOff(a.cfg.ReconnectDelay),
			Logger:    a.log,
		})
	}
	coord := chat.NewCoordinator(a.store, a.api, dial, chat.ReloadFunc(a.router.WasReloaded), a.log)

	reloaded := a.router.WasReloaded()
	if err := coord.Activate(ctx, a.router.Transient()); err != nil {
		a.log.Warn("chat activation failed", zap.Error(err))
		a.say("session_invalid")
		return a.router.SessionInvalid()
	}
	h, _ := coord.Handle()
	if reloaded {
		a.say("resumed_chat", h.PeerParticipant.DisplayName)
	} else {
		a.say("matched_with", h.PeerParticipant.DisplayName)
	}

	chatCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := coord.Run(chatCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("chat loop ended", zap.Error(err))
		}
	}()
	defer coord.Close()

	printed := 0
	state := stomp.Disconnected
	a.say("state_connecting")
	for {
		select {
		case <-ctx.Done():
			return flow.ScreenChat
		case <-coord.Updates():
			printed = a.printTranscript(coord.Transcript(), printed, h)
			if s := coord.State(); s != state && s != stomp.Connecting {
				state = s
				if s == stomp.Connected {
					a.say("state_connected")
				} else {
					a.say("state_disconnected")
				}
			}
		case line, ok := <-a.lines:
			if !ok {
				return screenQuit
			}
			if strings.TrimSpace(line) == "/leave" {
				if _, err := a.router.Leave(ctx); err != nil {
					a.log.Warn("clearing session handle", zap.Error(err))
				}
				a.say("chat_left")
				return flow.ScreenProfile
			}
			coord.SetDraft(line)
			if err := coord.SendDraft(); errors.Is(err, chat.ErrNotConnected) {
				a.say("not_connected")
			}
			printed = a.printTranscript(coord.Transcript(), printed, h)
		}
	}
}

func (a *app) printTranscript(entries []chat.Entry, from int, h models.SessionHandle) int {
	you := a.loc.GetString(a.lang, "you")
	for _, e := range entries[from:] {
		who := h.PeerParticipant.DisplayName
		if e.FromSelf {
			who = you
		}
		fmt.Fprintf(a.out, "[%s] %s\n", who, e.Content)
	}
	return len(entries)
}
