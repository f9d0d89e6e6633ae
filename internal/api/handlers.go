package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/claude-session-manager/internal/claude"
)

// This file contains HTTP handlers wrapping the ten engine commands of
// spec section 6 (plus the ambient activity feed and path decoder) as
// JSON request/response operations. Every handler validates its
// required query parameters itself and never calls the engine with an
// empty path, per spec section 7's "contract violations" error class.

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: "claude-session-manager"})
}

// loadProjectSessionsHandler implements load_project_sessions.
// @Summary List session summaries for a project
// @Param project_dir query string true "Absolute path to the project directory"
// @Param exclude_sidechain query bool false "Drop sidechain-only sessions from the result"
// @Success 200 {object} SessionsResponse
// @Failure 400 {object} ErrorResponse
// @Router /sessions [get]
func (s *Server) loadProjectSessionsHandler(c *gin.Context) {
	projectDir := c.Query("project_dir")
	if projectDir == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "project_dir is required"})
		return
	}
	excludeSidechain := c.Query("exclude_sidechain") == "true"

	sessions, err := claude.LoadProjectSessions(projectDir, excludeSidechain, s.logger)
	if err != nil {
		s.logger.WithError(err).WithField("project_dir", projectDir).Error("load_project_sessions failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SessionsResponse{
		ProjectDir:       projectDir,
		ExcludeSidechain: excludeSidechain,
		Sessions:         sessions,
		Total:            len(sessions),
	})
}

// loadSessionMessagesHandler implements load_session_messages.
// @Param session_path query string true "Absolute path to the session file"
// @Success 200 {object} MessagesResponse
// @Router /sessions/messages [get]
func (s *Server) loadSessionMessagesHandler(c *gin.Context) {
	sessionPath := c.Query("session_path")
	if sessionPath == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session_path is required"})
		return
	}

	messages, err := claude.LoadSessionMessages(sessionPath)
	if err != nil {
		s.logger.WithError(err).WithField("session_path", sessionPath).Error("load_session_messages failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, MessagesResponse{
		SessionPath: sessionPath,
		Messages:    messages,
		Total:       len(messages),
	})
}

// paginateSessionMessagesHandler implements load_session_messages_paginated.
// @Param session_path query string true "Absolute path to the session file"
// @Param offset query int false "Offset counted back from the newest message" default(0)
// @Param limit query int false "Page size" default(50)
// @Param exclude_sidechain query bool false "Drop sidechain records from pagination"
// @Success 200 {object} claude.Page
// @Router /sessions/messages/page [get]
func (s *Server) paginateSessionMessagesHandler(c *gin.Context) {
	sessionPath := c.Query("session_path")
	if sessionPath == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session_path is required"})
		return
	}
	offset := queryInt(c, "offset", 0)
	limit := queryInt(c, "limit", 50)
	excludeSidechain := c.Query("exclude_sidechain") == "true"

	page, err := claude.Paginate(sessionPath, offset, limit, excludeSidechain)
	if err != nil {
		s.logger.WithError(err).WithField("session_path", sessionPath).Error("paginate failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, page)
}

// sessionMessageCountHandler implements get_session_message_count.
// @Param session_path query string true "Absolute path to the session file"
// @Param exclude_sidechain query bool false "Drop sidechain records from the count"
// @Success 200 {object} MessageCountResponse
// @Router /sessions/messages/count [get]
func (s *Server) sessionMessageCountHandler(c *gin.Context) {
	sessionPath := c.Query("session_path")
	if sessionPath == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session_path is required"})
		return
	}
	excludeSidechain := c.Query("exclude_sidechain") == "true"

	count, err := claude.GetSessionMessageCount(sessionPath, excludeSidechain)
	if err != nil {
		s.logger.WithError(err).WithField("session_path", sessionPath).Error("get_session_message_count failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, MessageCountResponse{SessionPath: sessionPath, Count: count})
}

// searchHandler implements search_messages.
// @Param corpus_root query string true "Absolute path to the corpus root (<home>/.claude)"
// @Param q query string true "Case-insensitive substring query"
// @Success 200 {object} SearchResponse
// @Failure 400 {object} ErrorResponse
// @Router /search [get]
func (s *Server) searchHandler(c *gin.Context) {
	corpusRoot := c.Query("corpus_root")
	query := c.Query("q")
	if corpusRoot == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "corpus_root is required"})
		return
	}
	if query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query parameter 'q' is required"})
		return
	}

	results, err := claude.Search(corpusRoot, query)
	if err != nil {
		s.logger.WithError(err).WithField("corpus_root", corpusRoot).Error("search_messages failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SearchResponse{Query: query, Results: results, Total: len(results)})
}

// sessionTokenStatsHandler implements session_token_stats.
// @Param session_path query string true "Absolute path to the session file"
// @Success 200 {object} claude.SessionTokenStats
// @Router /stats/session [get]
func (s *Server) sessionTokenStatsHandler(c *gin.Context) {
	sessionPath := c.Query("session_path")
	if sessionPath == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session_path is required"})
		return
	}

	stats, err := claude.GetSessionTokenStats(sessionPath)
	if err != nil {
		s.logger.WithError(err).WithField("session_path", sessionPath).Error("session_token_stats failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// projectStatsSummaryHandler implements project_stats_summary.
// @Param project_dir query string true "Absolute path to the project directory"
// @Param start_date query string false "RFC 3339 window start"
// @Param end_date query string false "RFC 3339 window end"
// @Success 200 {object} claude.ProjectStatsSummary
// @Router /stats/project [get]
func (s *Server) projectStatsSummaryHandler(c *gin.Context) {
	projectDir := c.Query("project_dir")
	if projectDir == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "project_dir is required"})
		return
	}

	window, err := parseDateWindow(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	summary, err := claude.GetProjectStatsSummary(projectDir, window)
	if err != nil {
		s.logger.WithError(err).WithField("project_dir", projectDir).Error("project_stats_summary failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// projectTokenStatsHandler implements project_token_stats: a paginated
// list of per-session token stats sorted by total_tokens descending.
// @Param project_dir query string true "Absolute path to the project directory"
// @Param offset query int false "Page offset" default(0)
// @Param limit query int false "Page size" default(20)
// @Param start_date query string false "RFC 3339 window start"
// @Param end_date query string false "RFC 3339 window end"
// @Success 200 {array} claude.SessionTokenStats
// @Router /stats/project/tokens [get]
func (s *Server) projectTokenStatsHandler(c *gin.Context) {
	projectDir := c.Query("project_dir")
	if projectDir == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "project_dir is required"})
		return
	}
	offset := queryInt(c, "offset", 0)
	limit := queryInt(c, "limit", 20)

	window, err := parseDateWindow(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	stats, err := claude.GetProjectTokenStats(projectDir, offset, limit, window)
	if err != nil {
		s.logger.WithError(err).WithField("project_dir", projectDir).Error("project_token_stats failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": stats, "offset": offset, "limit": limit})
}

// sessionComparisonHandler implements session_comparison.
// @Param session_id query string true "The session's actual_session_id"
// @Param project_dir query string true "Absolute path to the project directory"
// @Success 200 {object} claude.SessionComparison
// @Router /stats/comparison [get]
func (s *Server) sessionComparisonHandler(c *gin.Context) {
	sessionID := c.Query("session_id")
	projectDir := c.Query("project_dir")
	if sessionID == "" || projectDir == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session_id and project_dir are required"})
		return
	}

	comparison, err := claude.GetSessionComparison(sessionID, projectDir)
	if err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Error("session_comparison failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, comparison)
}

// globalStatsSummaryHandler implements global_stats_summary.
// @Param corpus_root query string true "Absolute path to the corpus root (<home>/.claude)"
// @Success 200 {object} claude.GlobalStatsSummary
// @Router /stats/global [get]
func (s *Server) globalStatsSummaryHandler(c *gin.Context) {
	corpusRoot := c.Query("corpus_root")
	if corpusRoot == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "corpus_root is required"})
		return
	}

	summary, err := claude.GetGlobalStatsSummary(corpusRoot)
	if err != nil {
		s.logger.WithError(err).WithField("corpus_root", corpusRoot).Error("global_stats_summary failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// decodeProjectPathHandler exposes the path decoder of spec section
// 4.9 directly, for shells that only know the encoded directory name.
// @Param encoded query string true "Encoded project directory name, e.g. -Users-me-project"
// @Success 200 {object} claude.DecodedPath
// @Router /projects/decode [get]
func (s *Server) decodeProjectPathHandler(c *gin.Context) {
	encoded := c.Query("encoded")
	if encoded == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "encoded is required"})
		return
	}

	decoded := claude.DecodeProjectPath(encoded)
	worktree := claude.DetectWorktree(decoded.Path)

	c.JSON(http.StatusOK, gin.H{
		"path":      decoded.Path,
		"confirmed": decoded.Confirmed,
		"worktree":  worktree,
	})
}

// activityRecentHandler returns the recent event log from the
// sqlite-backed activity store (SPEC_FULL.md section 3); this is
// ambient, not one of the ten engine commands.
// @Param limit query int false "Maximum number of events to return" default(50)
// @Success 200 {object} ActivityFeedResponse
// @Router /activity/recent [get]
func (s *Server) activityRecentHandler(c *gin.Context) {
	if s.activity == nil {
		c.JSON(http.StatusOK, ActivityFeedResponse{Events: []struct{}{}, Total: 0})
		return
	}
	limit := queryInt(c, "limit", 50)

	events, err := s.activity.Recent(limit)
	if err != nil {
		s.logger.WithError(err).Error("failed to read activity log")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, ActivityFeedResponse{Events: events, Total: len(events)})
}

// activityLiveHandler returns the current per-session status snapshot.
// @Success 200 {object} LiveSessionsResponse
// @Router /activity/live [get]
func (s *Server) activityLiveHandler(c *gin.Context) {
	if s.activity == nil {
		c.JSON(http.StatusOK, LiveSessionsResponse{Sessions: []struct{}{}, Total: 0})
		return
	}

	sessions, err := s.activity.LiveSessions()
	if err != nil {
		s.logger.WithError(err).Error("failed to read live session snapshot")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, LiveSessionsResponse{Sessions: sessions, Total: len(sessions)})
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func parseDateWindow(c *gin.Context) (*claude.TokenRangeFilter, error) {
	startRaw := c.Query("start_date")
	endRaw := c.Query("end_date")
	if startRaw == "" && endRaw == "" {
		return nil, nil
	}

	window := &claude.TokenRangeFilter{}
	if startRaw != "" {
		t, err := time.Parse(time.RFC3339, startRaw)
		if err != nil {
			return nil, err
		}
		window.StartDate = &t
	}
	if endRaw != "" {
		t, err := time.Parse(time.RFC3339, endRaw)
		if err != nil {
			return nil, err
		}
		window.EndDate = &t
	}
	return window, nil
}
