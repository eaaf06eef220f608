package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/siren-relay/internal/adapter/rpc"
	"github.com/couchcryptid/siren-relay/internal/domain"
)

var (
	// ErrPeerNotFound means the channel name did not resolve to a channel.
	ErrPeerNotFound = errors.New("channel not found")

	// ErrFetch wraps any failure while reading channel history.
	ErrFetch = errors.New("fetch channel history")
)

// Caller performs a remote call with transient-failure recovery.
// It is implemented by *rpc.Caller.
type Caller interface {
	Call(ctx context.Context, method string, params any, opts rpc.CallOptions) (json.RawMessage, error)
}

// Accessor reads a single channel through the feed service.
// It implements pipeline.FeedReader.
type Accessor struct {
	caller       Caller
	historyLimit int
	logger       *slog.Logger
}

// NewAccessor creates an Accessor that requests at most historyLimit messages
// per history call.
func NewAccessor(caller Caller, historyLimit int, logger *slog.Logger) *Accessor {
	return &Accessor{caller: caller, historyLimit: historyLimit, logger: logger}
}

// ResolvePeer looks up a channel by its public username.
func (a *Accessor) ResolvePeer(ctx context.Context, channel string) (domain.Peer, error) {
	if channel == "" {
		return domain.Peer{}, fmt.Errorf("resolve peer: empty channel name: %w", ErrPeerNotFound)
	}

	raw, err := a.caller.Call(ctx, "contacts.resolveUsername", map[string]any{
		"username": channel,
	}, rpc.CallOptions{})
	if err != nil {
		return domain.Peer{}, fmt.Errorf("resolve peer %q: %w", channel, err)
	}

	var resp resolvedPeer
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.Peer{}, fmt.Errorf("decode resolved peer: %w", err)
	}

	for _, chat := range resp.Chats {
		if resp.Peer.ChannelID != 0 && int64(chat.ID) == int64(resp.Peer.ChannelID) {
			return domain.Peer{
				ID:         int64(chat.ID),
				AccessHash: int64(chat.AccessHash),
				Title:      chat.Title,
			}, nil
		}
	}
	return domain.Peer{}, fmt.Errorf("resolve peer %q: %w", channel, ErrPeerNotFound)
}

// LatestMessage returns the newest message in the channel, or a zero Message
// when the channel is empty.
func (a *Accessor) LatestMessage(ctx context.Context, peer domain.Peer) (domain.Message, error) {
	messages, err := a.history(ctx, peer)
	if err != nil {
		return domain.Message{}, err
	}
	if len(messages) == 0 {
		return domain.Message{}, nil
	}
	return messages[len(messages)-1], nil
}

// NewMessages returns the messages with an id above watermark, oldest first.
// An empty slice with a nil error means there is nothing new; a fetch failure
// is logged and returned wrapped in ErrFetch.
func (a *Accessor) NewMessages(ctx context.Context, peer domain.Peer, watermark int64) ([]domain.Message, error) {
	messages, err := a.history(ctx, peer)
	if err != nil {
		a.logger.Error("fetch new messages failed", "watermark", watermark, "error", err)
		return nil, err
	}

	fresh := make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		if m.ID > watermark {
			fresh = append(fresh, m)
		}
	}
	return fresh, nil
}

// history fetches the most recent page of the channel, sorted by ascending id.
func (a *Accessor) history(ctx context.Context, peer domain.Peer) ([]domain.Message, error) {
	raw, err := a.caller.Call(ctx, "messages.getHistory", map[string]any{
		"peer": map[string]any{
			"_":           "inputPeerChannel",
			"channel_id":  strconv.FormatInt(peer.ID, 10),
			"access_hash": strconv.FormatInt(peer.AccessHash, 10),
		},
		"offset_date": 0,
		"limit":       a.historyLimit,
	}, rpc.CallOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	var resp historyPage
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode history: %w", ErrFetch, err)
	}

	messages := make([]domain.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msg := domain.Message{ID: int64(m.ID), Text: m.Message}
		if m.Date > 0 {
			msg.Date = time.Unix(m.Date, 0).UTC()
		}
		messages = append(messages, msg)
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })
	return messages, nil
}

// Feed service response types.

type resolvedPeer struct {
	Peer struct {
		ChannelID flexInt64 `json:"channel_id"`
	} `json:"peer"`
	Chats []struct {
		ID         flexInt64 `json:"id"`
		AccessHash flexInt64 `json:"access_hash"`
		Title      string    `json:"title"`
	} `json:"chats"`
}

type historyPage struct {
	Messages []struct {
		ID      flexInt64 `json:"id"`
		Message string    `json:"message"`
		Date    int64     `json:"date"`
	} `json:"messages"`
}

// flexInt64 accepts a JSON number or a decimal string. The feed service
// encodes 64-bit identifiers as strings to survive JavaScript clients.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("parse int64 %q: %w", b, err)
	}
	*f = flexInt64(n)
	return nil
}
