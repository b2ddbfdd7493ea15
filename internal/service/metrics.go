package service

import (
	"encoding/json"
	"log"
)

// Metric events, one log line each
const (
	EventUserRegister    = "user_register"
	EventUserLogin       = "user_login"
	EventUserDelete      = "user_delete"
	EventSaveProgress    = "save_progress"
	EventGetLatestSave   = "get_latest_save"
	EventGetSaveHistory  = "get_save_history"
	EventSessionFinished = "session_finished"
	EventLeaderboardView = "leaderboard_view"
)

// Fields is the payload of a metric event
type Fields map[string]interface{}

// logEvent writes a greppable metric line: [METRIC] <event> <json>
func logEvent(event string, fields Fields) {
	if fields == nil {
		fields = Fields{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		data = []byte(`{}`)
	}
	log.Printf("[METRIC] %s %s", event, data)
}
