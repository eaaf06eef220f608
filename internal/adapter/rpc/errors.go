package rpc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Error codes the feed service uses for transient conditions.
const (
	CodeSeeOther = 303 // call must be repeated against another datacenter
	CodeFlood    = 420 // caller must wait before repeating the call
)

const (
	floodWaitPrefix = "FLOOD_WAIT_"
	maxFloodWait    = 24 * time.Hour
	migrateMarker   = "_MIGRATE_"

	// MigratePhone is the redirect kind returned by the login code request.
	MigratePhone = "PHONE"
)

// ErrRetriesExhausted is returned when transient failures persist past the
// configured retry cap.
var ErrRetriesExhausted = errors.New("rpc retries exhausted")

// RemoteError is a failure reported by the feed service.
type RemoteError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// FloodWait returns the wait demanded by a rate-limit failure, capped at 24h.
func (e *RemoteError) FloodWait() (time.Duration, bool) {
	if e.Code != CodeFlood {
		return 0, false
	}
	_, after, found := strings.Cut(e.Message, floodWaitPrefix)
	if !found {
		return 0, false
	}
	seconds, err := strconv.Atoi(after)
	if err != nil || seconds < 0 {
		return 0, false
	}
	if seconds > int(maxFloodWait/time.Second) {
		return maxFloodWait, true
	}
	return time.Duration(seconds) * time.Second, true
}

// Migrate returns the redirect kind (PHONE, NETWORK, USER, ...) and target
// datacenter of a redirect failure.
func (e *RemoteError) Migrate() (kind string, dc int, ok bool) {
	if e.Code != CodeSeeOther {
		return "", 0, false
	}
	kind, after, found := strings.Cut(e.Message, migrateMarker)
	if !found {
		return "", 0, false
	}
	dc, err := strconv.Atoi(after)
	if err != nil || dc <= 0 {
		return "", 0, false
	}
	return kind, dc, true
}
