package api

// setupRoutes configures all API routes around the ten-operation
// command surface of spec section 6, plus the ambient activity feed
// and websocket endpoint.
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.healthHandler)

		// load_project_sessions
		v1.GET("/sessions", s.loadProjectSessionsHandler)

		// load_session_messages, load_session_messages_paginated,
		// get_session_message_count
		v1.GET("/sessions/messages", s.loadSessionMessagesHandler)
		v1.GET("/sessions/messages/page", s.paginateSessionMessagesHandler)
		v1.GET("/sessions/messages/count", s.sessionMessageCountHandler)

		// search_messages
		v1.GET("/search", s.searchHandler)

		// session_token_stats, project_stats_summary,
		// project_token_stats, session_comparison, global_stats_summary
		v1.GET("/stats/session", s.sessionTokenStatsHandler)
		v1.GET("/stats/project", s.projectStatsSummaryHandler)
		v1.GET("/stats/project/tokens", s.projectTokenStatsHandler)
		v1.GET("/stats/comparison", s.sessionComparisonHandler)
		v1.GET("/stats/global", s.globalStatsSummaryHandler)

		// ambient activity feed (internal/activity), not one of the
		// ten commands but consumed by the same shell
		v1.GET("/activity/recent", s.activityRecentHandler)
		v1.GET("/activity/live", s.activityLiveHandler)

		// path decoder / worktree detection (spec section 4.9)
		v1.GET("/projects/decode", s.decodeProjectPathHandler)

		v1.GET("/ws", s.websocketHandler)
	}

	s.router.Static("/static", "./static")
}
