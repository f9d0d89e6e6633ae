package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ksred/claude-session-manager/internal/claude"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// queryCmd is a thin CLI front door onto the ten engine commands of
// spec section 6, for scripting and debugging without standing up the
// HTTP server.
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a single engine query and print its JSON result",
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (want RFC3339): %w", s, err)
	}
	return &t, nil
}

var (
	flagProjectDir       string
	flagSessionPath      string
	flagCorpusRoot       string
	flagSessionID        string
	flagQuery            string
	flagOffset           int
	flagLimit            int
	flagExcludeSidechain bool
	flagStartDate        string
	flagEndDate          string
)

func dateWindow() (*claude.TokenRangeFilter, error) {
	start, err := parseOptionalDate(flagStartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate(flagEndDate)
	if err != nil {
		return nil, err
	}
	if start == nil && end == nil {
		return nil, nil
	}
	return &claude.TokenRangeFilter{StartDate: start, EndDate: end}, nil
}

var querySessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "load_project_sessions: session summaries for a project directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := claude.LoadProjectSessions(flagProjectDir, flagExcludeSidechain, logrus.StandardLogger())
		if err != nil {
			return err
		}
		return printJSON(sessions)
	},
}

var queryMessagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "load_session_messages: every message in a session file",
	RunE: func(cmd *cobra.Command, args []string) error {
		messages, err := claude.LoadSessionMessages(flagSessionPath)
		if err != nil {
			return err
		}
		return printJSON(messages)
	},
}

var queryMessagesPageCmd = &cobra.Command{
	Use:   "messages-page",
	Short: "load_session_messages_paginated: a reverse-paginated window of messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := claude.Paginate(flagSessionPath, flagOffset, flagLimit, flagExcludeSidechain)
		if err != nil {
			return err
		}
		return printJSON(page)
	},
}

var queryMessageCountCmd = &cobra.Command{
	Use:   "message-count",
	Short: "get_session_message_count: valid message count for a session file",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := claude.GetSessionMessageCount(flagSessionPath, flagExcludeSidechain)
		if err != nil {
			return err
		}
		return printJSON(map[string]int{"count": count})
	},
}

var querySearchCmd = &cobra.Command{
	Use:   "search",
	Short: "search_messages: case-insensitive substring search across the corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := claude.Search(flagCorpusRoot, flagQuery)
		if err != nil {
			return err
		}
		return printJSON(results)
	},
}

var querySessionStatsCmd = &cobra.Command{
	Use:   "session-stats",
	Short: "session_token_stats: token and tool rollup for one session",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := claude.GetSessionTokenStats(flagSessionPath)
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var queryProjectStatsCmd = &cobra.Command{
	Use:   "project-stats",
	Short: "project_stats_summary: project-level rollup with an optional date window",
	RunE: func(cmd *cobra.Command, args []string) error {
		window, err := dateWindow()
		if err != nil {
			return err
		}
		summary, err := claude.GetProjectStatsSummary(flagProjectDir, window)
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

var queryProjectTokenStatsCmd = &cobra.Command{
	Use:   "project-token-stats",
	Short: "project_token_stats: paginated per-session token stats, sorted by total tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		window, err := dateWindow()
		if err != nil {
			return err
		}
		stats, err := claude.GetProjectTokenStats(flagProjectDir, flagOffset, flagLimit, window)
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var querySessionComparisonCmd = &cobra.Command{
	Use:   "session-comparison",
	Short: "session_comparison: percent and rank of one session within its project",
	RunE: func(cmd *cobra.Command, args []string) error {
		comparison, err := claude.GetSessionComparison(flagSessionID, flagProjectDir)
		if err != nil {
			return err
		}
		return printJSON(comparison)
	},
}

var queryGlobalStatsCmd = &cobra.Command{
	Use:   "global-stats",
	Short: "global_stats_summary: corpus-wide rollup with the top 10 projects by tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := claude.GetGlobalStatsSummary(flagCorpusRoot)
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

func init() {
	querySessionsCmd.Flags().StringVar(&flagProjectDir, "project-dir", "", "absolute path to the project directory (required)")
	querySessionsCmd.Flags().BoolVar(&flagExcludeSidechain, "exclude-sidechain", false, "drop sidechain-only sessions from the result")
	querySessionsCmd.MarkFlagRequired("project-dir")

	queryMessagesCmd.Flags().StringVar(&flagSessionPath, "session-path", "", "absolute path to the session file (required)")
	queryMessagesCmd.MarkFlagRequired("session-path")

	queryMessagesPageCmd.Flags().StringVar(&flagSessionPath, "session-path", "", "absolute path to the session file (required)")
	queryMessagesPageCmd.Flags().IntVar(&flagOffset, "offset", 0, "offset counted back from the newest message")
	queryMessagesPageCmd.Flags().IntVar(&flagLimit, "limit", 50, "page size")
	queryMessagesPageCmd.Flags().BoolVar(&flagExcludeSidechain, "exclude-sidechain", false, "drop sidechain records from pagination")
	queryMessagesPageCmd.MarkFlagRequired("session-path")

	queryMessageCountCmd.Flags().StringVar(&flagSessionPath, "session-path", "", "absolute path to the session file (required)")
	queryMessageCountCmd.Flags().BoolVar(&flagExcludeSidechain, "exclude-sidechain", false, "drop sidechain records from the count")
	queryMessageCountCmd.MarkFlagRequired("session-path")

	querySearchCmd.Flags().StringVar(&flagCorpusRoot, "corpus-root", "", "absolute path to the corpus root, <home>/.claude (required)")
	querySearchCmd.Flags().StringVar(&flagQuery, "q", "", "case-insensitive substring query (required)")
	querySearchCmd.MarkFlagRequired("corpus-root")
	querySearchCmd.MarkFlagRequired("q")

	querySessionStatsCmd.Flags().StringVar(&flagSessionPath, "session-path", "", "absolute path to the session file (required)")
	querySessionStatsCmd.MarkFlagRequired("session-path")

	queryProjectStatsCmd.Flags().StringVar(&flagProjectDir, "project-dir", "", "absolute path to the project directory (required)")
	queryProjectStatsCmd.Flags().StringVar(&flagStartDate, "start-date", "", "RFC3339 window start")
	queryProjectStatsCmd.Flags().StringVar(&flagEndDate, "end-date", "", "RFC3339 window end")
	queryProjectStatsCmd.MarkFlagRequired("project-dir")

	queryProjectTokenStatsCmd.Flags().StringVar(&flagProjectDir, "project-dir", "", "absolute path to the project directory (required)")
	queryProjectTokenStatsCmd.Flags().IntVar(&flagOffset, "offset", 0, "page offset")
	queryProjectTokenStatsCmd.Flags().IntVar(&flagLimit, "limit", 20, "page size")
	queryProjectTokenStatsCmd.Flags().StringVar(&flagStartDate, "start-date", "", "RFC3339 window start")
	queryProjectTokenStatsCmd.Flags().StringVar(&flagEndDate, "end-date", "", "RFC3339 window end")
	queryProjectTokenStatsCmd.MarkFlagRequired("project-dir")

	querySessionComparisonCmd.Flags().StringVar(&flagSessionID, "session-id", "", "the session's actual_session_id (required)")
	querySessionComparisonCmd.Flags().StringVar(&flagProjectDir, "project-dir", "", "absolute path to the project directory (required)")
	querySessionComparisonCmd.MarkFlagRequired("session-id")
	querySessionComparisonCmd.MarkFlagRequired("project-dir")

	queryGlobalStatsCmd.Flags().StringVar(&flagCorpusRoot, "corpus-root", "", "absolute path to the corpus root, <home>/.claude (required)")
	queryGlobalStatsCmd.MarkFlagRequired("corpus-root")

	queryCmd.AddCommand(
		querySessionsCmd,
		queryMessagesCmd,
		queryMessagesPageCmd,
		queryMessageCountCmd,
		querySearchCmd,
		querySessionStatsCmd,
		queryProjectStatsCmd,
		queryProjectTokenStatsCmd,
		querySessionComparisonCmd,
		queryGlobalStatsCmd,
	)
}
