package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	chatmodel "github.com/zhouzirui/chat-widget/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/chat-widget/backend/internal/service/chat"
	"github.com/zhouzirui/chat-widget/backend/internal/service/reply"
	"github.com/zhouzirui/chat-widget/backend/internal/service/widgetconfig"
)

const widgetDocument = `{
  "name": "Acme",
  "logo": "logo.svg",
  "icon": "icon.svg",
  "primaryColor": "#000",
  "secondaryColor": "#fff",
  "tertiaryColor": "#333",
  "opacity": 1,
  "borderRadius": "8px",
  "buttonBorderRadius": "50%",
  "position": "bottom-right",
  "defaultMessage": "Welcome!",
  "thinkingTime": 1,
  "ID_chatbot_client": "acme",
  "suggestions": ["Hours?"],
  "responses": ["9–5 Mon–Fri"]
}`

type testEnv struct {
	router http.Handler
	loader *widgetconfig.Loader
}

func setupRouter(t *testing.T, document string, remote http.HandlerFunc) testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(document), 0o600))
	loader := widgetconfig.NewLoader(path)
	loader.Start(context.Background())

	endpoint := httptest.NewServer(remote)
	t.Cleanup(endpoint.Close)

	resolver := reply.NewResolver(reply.NewHTTPCompleter(endpoint.URL, time.Second), time.Second)
	chatSvc := chatservice.NewService(loader, resolver)
	return testEnv{router: NewRouter(loader, resolver, chatSvc, nil), loader: loader}
}

func (e testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e testEnv) createSession(t *testing.T) chatmodel.Session {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var session chatmodel.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	return session
}

func (e testEnv) transcript(t *testing.T, sessionID string) []chatmodel.Message {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/api/sessions/"+sessionID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var messages []chatmodel.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &messages))
	return messages
}

func answer(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": message})
	}
}

func TestSuggestionScenario(t *testing.T) {
	env := setupRouter(t, widgetDocument, answer("unused"))
	session := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/api/sessions/"+session.ID+"/suggestions", map[string]string{"prompt": "Hours?"})
	require.Equal(t, http.StatusOK, rec.Code)

	messages := env.transcript(t, session.ID)
	require.Len(t, messages, 2)
	require.Equal(t, chatmodel.SenderUser, messages[0].Sender)
	require.Equal(t, "Hours?", messages[0].Content)
	require.Equal(t, chatmodel.SenderBot, messages[1].Sender)
	require.Equal(t, "9–5 Mon–Fri", messages[1].Content)
}

func TestFreeTextScenario(t *testing.T) {
	env := setupRouter(t, widgetDocument, answer("42"))
	session := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/api/sessions/"+session.ID+"/messages", map[string]string{"text": "random question"})
	require.Equal(t, http.StatusOK, rec.Code)

	messages := env.transcript(t, session.ID)
	require.Equal(t, "42", messages[len(messages)-1].Content)
	require.Equal(t, chatmodel.SenderBot, messages[len(messages)-1].Sender)
}

func TestFreeTextFallbackScenario(t *testing.T) {
	env := setupRouter(t, widgetDocument, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	session := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/api/sessions/"+session.ID+"/messages", map[string]string{"text": "random question"})
	require.Equal(t, http.StatusOK, rec.Code)

	messages := env.transcript(t, session.ID)
	require.Equal(t, "Sorry, something went wrong while fetching the response.", messages[len(messages)-1].Content)

	statusRec := env.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, statusRec.Code)
	require.Contains(t, statusRec.Body.String(), `"fallback":1`)
}

func TestToggleRoute(t *testing.T) {
	env := setupRouter(t, widgetDocument, answer("unused"))
	session := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/api/sessions/"+session.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got chatmodel.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got.Visible)

	messages := env.transcript(t, session.ID)
	require.Len(t, messages, 1)
	require.Equal(t, "Welcome!", messages[0].Content)
}

func TestRouteErrors(t *testing.T) {
	env := setupRouter(t, widgetDocument, answer("unused"))
	session := env.createSession(t)

	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/sessions/missing", nil).Code)
	require.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, "/api/sessions/"+session.ID+"/messages", map[string]string{"text": ""}).Code)
	require.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, "/api/sessions/"+session.ID+"/suggestions", map[string]string{"prompt": "Nope"}).Code)
}

func TestPublicWidgetConfig(t *testing.T) {
	env := setupRouter(t, widgetDocument, answer("unused"))

	rec := env.do(t, http.MethodGet, "/api/widget", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"suggestions":["Hours?"]`)
	require.NotContains(t, rec.Body.String(), "9–5")
}

func TestMissingFieldDisablesWidget(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(widgetDocument), &doc))
	delete(doc, "logo")
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	env := setupRouter(t, string(raw), answer("unused"))

	statusRec := env.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusServiceUnavailable, statusRec.Code)
	require.Contains(t, statusRec.Body.String(), "missing required field: logo")

	require.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/api/widget", nil).Code)

	session := env.createSession(t)
	rec := env.do(t, http.MethodPost, "/api/sessions/"+session.ID+"/messages", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
