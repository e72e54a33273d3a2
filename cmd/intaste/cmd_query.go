// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codelibs/intaste-go/pkg/assist"
	"github.com/codelibs/intaste-go/pkg/assist/session"
)

var (
	flagInteractive  bool
	flagNoStream     bool
	flagMaxSuggested int
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question and stream the answer",
	Long: "Streams an answer token by token with progress and citations.\n" +
		"With --interactive, keeps one conversation open across questions.",
	Example: `  intaste query "how do I configure crawlers?"
  intaste query --no-stream "what file types are indexed?"
  intaste query --interactive`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().BoolVarP(&flagInteractive, "interactive", "i", false, "read questions from stdin in a loop")
	queryCmd.Flags().BoolVar(&flagNoStream, "no-stream", false, "wait for the full answer instead of streaming")
	queryCmd.Flags().IntVar(&flagMaxSuggested, "max-suggested", 3, "maximum follow-up suggestions (0-3)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	client, cfg, err := newClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &assist.QueryOptions{
		MaxSuggested: flagMaxSuggested,
		Language:     cfg.Language,
	}
	sess := session.New(client)

	if flagInteractive {
		return interactiveLoop(ctx, sess, client, opts)
	}

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("no question given (or use --interactive)")
	}
	return ask(ctx, sess, client, question, opts)
}

// interactiveLoop reads one question per line until EOF or "exit". The
// session carries the conversation id and history between turns.
func interactiveLoop(ctx context.Context, sess *session.Session, client *assist.Client, opts *assist.QueryOptions) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), assist.MaxQueryLength*4)

	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(os.Stderr)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := ask(ctx, sess, client, line, opts); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Keep the loop alive on per-question failures.
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

// ask runs a single question and renders the result. Streaming mode
// prints chunks as they arrive; --no-stream waits for the synchronous
// endpoint.
func ask(ctx context.Context, sess *session.Session, client *assist.Client, question string, opts *assist.QueryOptions) error {
	if flagNoStream {
		req := &assist.QueryRequest{
			Query:        question,
			QueryHistory: sess.History(),
			Options:      opts,
		}
		if snap := sess.Snapshot(); snap.Session.ID != "" {
			req.SessionID = snap.Session.ID
		}
		resp, err := client.Query(ctx, req)
		if err != nil {
			return err
		}
		fmt.Println(resp.Answer.Text)
		renderCitations(os.Stdout, resp.Citations)
		renderSuggestions(os.Stdout, resp.Answer.SuggestedQuestions)
		renderNotice(os.Stderr, resp.Notice)
		return nil
	}

	r := newRenderer(os.Stdout, os.Stderr)
	sess.SetObserver(r.observe)
	defer sess.SetObserver(nil)

	if err := sess.Send(ctx, question, opts); err != nil {
		r.clearProgress()
		return err
	}

	snap := sess.Snapshot()
	if snap.Failure != nil {
		return fmt.Errorf("%s: %s", snap.Failure.Code, snap.Failure.Message)
	}
	renderCitations(os.Stdout, snap.Citations)
	renderSuggestions(os.Stdout, snap.SuggestedQuestions)
	renderNotice(os.Stderr, snap.Notice)
	return nil
}
