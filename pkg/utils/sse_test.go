package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendSSEEventFormatsFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)

	require.NoError(t, SendSSEEvent(rec, rec, "message.added", map[string]string{"content": "hi"}))
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Equal(t, "event: message.added\ndata: {\"content\":\"hi\"}\n\n", rec.Body.String())
	require.True(t, rec.Flushed)
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, 404, "session not found")

	require.Equal(t, 404, rec.Code)
	require.JSONEq(t, `{"error":"session not found"}`, rec.Body.String())
}
