// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codelibs/intaste-go/pkg/assist"
)

var (
	flagFeedbackSession string
	flagFeedbackTurn    int
	flagFeedbackRating  string
	flagFeedbackComment string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Rate an answer from a previous conversation turn",
	Example: `  intaste feedback --session 8f14e45f-ceea-4e7a-9c3e-0d1b2c3d4e5f --turn 1 --rating up
  intaste feedback --session 8f14e45f-ceea-4e7a-9c3e-0d1b2c3d4e5f --turn 2 --rating down --comment "answer cited the wrong page"`,
	RunE: runFeedback,
}

func init() {
	feedbackCmd.Flags().StringVar(&flagFeedbackSession, "session", "", "conversation session id (uuid)")
	feedbackCmd.Flags().IntVar(&flagFeedbackTurn, "turn", 0, "turn number within the session")
	feedbackCmd.Flags().StringVar(&flagFeedbackRating, "rating", "", `"up" or "down"`)
	feedbackCmd.Flags().StringVar(&flagFeedbackComment, "comment", "", "optional free-text comment")
	_ = feedbackCmd.MarkFlagRequired("session")
	_ = feedbackCmd.MarkFlagRequired("turn")
	_ = feedbackCmd.MarkFlagRequired("rating")
	rootCmd.AddCommand(feedbackCmd)
}

func runFeedback(cmd *cobra.Command, _ []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}

	req := &assist.FeedbackRequest{
		SessionID: flagFeedbackSession,
		Turn:      flagFeedbackTurn,
		Rating:    flagFeedbackRating,
		Comment:   flagFeedbackComment,
	}
	if err := client.Feedback(cmd.Context(), req); err != nil {
		return err
	}
	fmt.Println("feedback recorded")
	return nil
}
