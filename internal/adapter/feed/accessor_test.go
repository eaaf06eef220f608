package feed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/siren-relay/internal/adapter/rpc"
	"github.com/couchcryptid/siren-relay/internal/domain"
	"github.com/couchcryptid/siren-relay/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for accessor tests ---

type stubCaller struct {
	responses map[string]string
	err       error
	methods   []string
	params    []any
}

func (s *stubCaller) Call(_ context.Context, method string, params any, _ rpc.CallOptions) (json.RawMessage, error) {
	s.methods = append(s.methods, method)
	s.params = append(s.params, params)
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.responses[method]), nil
}

const historyJSON = `{
  "messages": [
    {"_": "message", "id": 104, "message": "Отбой ракетной опасности", "date": 1727784000},
    {"_": "message", "id": "103", "message": "Ракетная опасность", "date": 1727783900},
    {"_": "messageService", "id": 101, "date": 1727783000}
  ]
}`

func newTestAccessor(c Caller) *Accessor {
	return NewAccessor(c, 50, observability.DiscardLogger())
}

// --- tests ---

func TestResolvePeer_Success(t *testing.T) {
	c := &stubCaller{responses: map[string]string{
		"contacts.resolveUsername": `{
			"peer": {"_": "peerChannel", "channel_id": "1234567890"},
			"chats": [
				{"_": "channel", "id": "42", "access_hash": "1", "title": "Other"},
				{"_": "channel", "id": "1234567890", "access_hash": "-8012345678901234567", "title": "Air Alerts"}
			]
		}`,
	}}

	peer, err := newTestAccessor(c).ResolvePeer(context.Background(), "air_alerts")
	require.NoError(t, err)

	assert.Equal(t, domain.Peer{ID: 1234567890, AccessHash: -8012345678901234567, Title: "Air Alerts"}, peer)
	assert.Equal(t, []string{"contacts.resolveUsername"}, c.methods)
	assert.Equal(t, map[string]any{"username": "air_alerts"}, c.params[0])
}

func TestResolvePeer_NoMatchingChat(t *testing.T) {
	c := &stubCaller{responses: map[string]string{
		"contacts.resolveUsername": `{"peer": {"_": "peerUser", "user_id": 7}, "chats": [], "users": [{"id": 7}]}`,
	}}

	_, err := newTestAccessor(c).ResolvePeer(context.Background(), "some_user")
	assert.ErrorIs(t, err, ErrPeerNotFound)
}

func TestResolvePeer_EmptyName(t *testing.T) {
	c := &stubCaller{}
	_, err := newTestAccessor(c).ResolvePeer(context.Background(), "")
	assert.ErrorIs(t, err, ErrPeerNotFound)
	assert.Empty(t, c.methods, "no remote call for an empty name")
}

func TestResolvePeer_RemoteError(t *testing.T) {
	c := &stubCaller{err: &rpc.RemoteError{Code: 400, Message: "USERNAME_NOT_OCCUPIED"}}
	_, err := newTestAccessor(c).ResolvePeer(context.Background(), "missing")

	var remote *rpc.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "USERNAME_NOT_OCCUPIED", remote.Message)
}

func TestLatestMessage(t *testing.T) {
	c := &stubCaller{responses: map[string]string{"messages.getHistory": historyJSON}}

	msg, err := newTestAccessor(c).LatestMessage(context.Background(), domain.Peer{ID: 1, AccessHash: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(104), msg.ID)
	assert.Equal(t, "Отбой ракетной опасности", msg.Text)
	assert.Equal(t, time.Unix(1727784000, 0).UTC(), msg.Date)
}

func TestLatestMessage_EmptyChannel(t *testing.T) {
	c := &stubCaller{responses: map[string]string{"messages.getHistory": `{"messages": []}`}}

	msg, err := newTestAccessor(c).LatestMessage(context.Background(), domain.Peer{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.Message{}, msg)
}

func TestNewMessages_FiltersAndSortsAscending(t *testing.T) {
	c := &stubCaller{responses: map[string]string{"messages.getHistory": historyJSON}}

	got, err := newTestAccessor(c).NewMessages(context.Background(), domain.Peer{ID: 1, AccessHash: 2}, 101)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, int64(103), got[0].ID)
	assert.Equal(t, int64(104), got[1].ID)

	params, ok := c.params[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 50, params["limit"])
	assert.Equal(t, map[string]any{"_": "inputPeerChannel", "channel_id": "1", "access_hash": "2"}, params["peer"])
}

func TestNewMessages_NothingNew(t *testing.T) {
	c := &stubCaller{responses: map[string]string{"messages.getHistory": historyJSON}}

	got, err := newTestAccessor(c).NewMessages(context.Background(), domain.Peer{ID: 1}, 104)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewMessages_FetchErrorIsDistinct(t *testing.T) {
	cause := errors.New("gateway unreachable")
	c := &stubCaller{err: cause}

	got, err := newTestAccessor(c).NewMessages(context.Background(), domain.Peer{ID: 1}, 100)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, cause)
}

func TestNewMessages_MalformedResponse(t *testing.T) {
	c := &stubCaller{responses: map[string]string{"messages.getHistory": `{"messages": "nope"}`}}

	_, err := newTestAccessor(c).NewMessages(context.Background(), domain.Peer{ID: 1}, 100)
	assert.ErrorIs(t, err, ErrFetch)
}
