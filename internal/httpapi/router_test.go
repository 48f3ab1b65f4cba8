package httpapi

import (
	"bufio"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/companion-api/internal/account"
	"github.com/suPer8Hu/companion-api/internal/ai"
	"github.com/suPer8Hu/companion-api/internal/chat"
	"github.com/suPer8Hu/companion-api/internal/config"
	"github.com/suPer8Hu/companion-api/internal/httpapi/handlers"
	"github.com/suPer8Hu/companion-api/internal/insights"
	"github.com/suPer8Hu/companion-api/internal/models"
	"github.com/suPer8Hu/companion-api/internal/payment"
	"github.com/suPer8Hu/companion-api/internal/persona"
	"github.com/suPer8Hu/companion-api/internal/queue"
	"github.com/suPer8Hu/companion-api/internal/store/memstore"
	"github.com/suPer8Hu/companion-api/internal/usage"
)

type upstream struct {
	srv    *httptest.Server
	calls  atomic.Int32
	status int
	body   string
}

func newUpstream(t *testing.T, body string) *upstream {
	t.Helper()
	u := &upstream{status: http.StatusOK, body: body}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		if u.status != http.StatusOK {
			http.Error(w, "upstream down", u.status)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, u.body)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

type testApp struct {
	router   *gin.Engine
	store    *memstore.Store
	upstream *upstream
	queue    *queue.InMemoryQueue
}

const webhookSecret = "cf-secret"

func newTestApp(t *testing.T, body string, limit int, configured bool) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memstore.New()
	up := newUpstream(t, body)
	var provider ai.Provider
	if configured {
		provider = ai.NewOpenAIProvider("groq", up.srv.URL, "key", "model")
	}

	personas := persona.NewDefaultRegistry()
	gate := usage.NewGate(limit)
	accounts := account.NewService(st, nil, nil, personas, gate, account.Options{
		JWTSecret: "secret",
		DevUserID: "dev-user",
	})
	q := queue.NewInMemoryQueue(8)
	t.Cleanup(func() { _ = q.Close() })

	h := &handlers.Handler{
		Store:    st,
		ChatSvc:  chat.NewService(st, provider, personas, gate, 6),
		Accounts: accounts,
		Payments: payment.NewService(payment.NewCashfreeClient("http://127.0.0.1:1", "app", webhookSecret), st, accounts, 99, "INR"),
		Insights: insights.NewService(st, q),
		Personas: personas,
	}
	cfg := config.Config{DevFallbackEnabled: true, CORSAllowedOrigins: []string{"*"}}
	return &testApp{router: NewRouter(h, cfg), store: st, upstream: up, queue: q}
}

func (a *testApp) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func sseBody(deltas ...string) string {
	var b strings.Builder
	for _, d := range deltas {
		fmt.Fprintf(&b, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func readFrames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), "frame line %q", line)
		var f map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f))
		frames = append(frames, f)
	}
	return frames
}

func TestChatStreamsFramesThenPaywall(t *testing.T) {
	app := newTestApp(t, sseBody("Hi", " yaar"), 20, true)
	_, err := app.store.IncrementMessages(context.Background(), "dev-user", 19)
	require.NoError(t, err)

	w := app.do(http.MethodPost, "/api/chat", `{"content":"hi","sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	frames := readFrames(t, w.Body.String())
	require.Len(t, frames, 3)
	assert.Equal(t, map[string]any{"content": "Hi", "done": false}, frames[0])
	assert.Equal(t, map[string]any{"content": " yaar", "done": false}, frames[1])
	last := frames[2]
	assert.Equal(t, true, last["done"])
	assert.Equal(t, "", last["content"])
	assert.Equal(t, "s1", last["sessionId"])
	assert.Equal(t, float64(20), last["messageCount"])
	assert.Equal(t, float64(20), last["messageLimit"])
	assert.Equal(t, "Hi yaar", last["fullResponse"])

	w = app.do(http.MethodPost, "/api/chat", `{"content":"again","sessionId":"s1"}`)
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	var pw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pw))
	assert.Equal(t, "PAYWALL_HIT", pw["error"])
	assert.Equal(t, float64(20), pw["messageCount"])
	assert.Equal(t, float64(20), pw["messageLimit"])
	assert.NotEmpty(t, pw["message"])
	assert.EqualValues(t, 1, app.upstream.calls.Load())

	w = app.do(http.MethodGet, "/api/messages?sessionId=s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []models.MessageView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, models.RoleAI, msgs[1].Role)
	assert.Equal(t, "Hi yaar", msgs[1].Content)
}

func TestChatRejectsBadContent(t *testing.T) {
	app := newTestApp(t, sseBody("x"), 20, true)

	for _, body := range []string{`{}`, `{"content":""}`, `{"content":"   "}`, `{"content":42}`, `not json`} {
		w := app.do(http.MethodPost, "/api/chat", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Zero(t, app.upstream.calls.Load())

	msgs, err := app.store.ListMessages(context.Background(), "dev-user", "")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestChatUpstreamFailures(t *testing.T) {
	app := newTestApp(t, "", 20, false)
	w := app.do(http.MethodPost, "/api/chat", `{"content":"hi","sessionId":"s1"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "service not configured")

	app = newTestApp(t, "", 20, true)
	app.upstream.status = http.StatusServiceUnavailable
	w = app.do(http.MethodPost, "/api/chat", `{"content":"hi","sessionId":"s1"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	st, err := app.store.GetUsage(context.Background(), "dev-user")
	require.NoError(t, err)
	assert.Zero(t, st.TotalMessages)
}

func TestChatMidStreamErrorFrame(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n\n" +
		"data: {\"error\":{\"message\":\"overloaded\"}}\n\n"
	app := newTestApp(t, body, 20, true)

	w := app.do(http.MethodPost, "/api/chat", `{"content":"hi","sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	frames := readFrames(t, w.Body.String())
	require.Len(t, frames, 2)
	assert.Equal(t, true, frames[1]["done"])
	assert.NotEmpty(t, frames[1]["error"])
}

func TestSessionEndpoint(t *testing.T) {
	app := newTestApp(t, "", 20, true)

	w := app.do(http.MethodPost, "/api/session", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	var sess map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.NotEmpty(t, sess["id"])
	assert.Equal(t, "dev-user", sess["user_id"])
	assert.Equal(t, "chat", sess["type"])
	assert.NotEmpty(t, sess["started_at"])

	w2 := app.do(http.MethodPost, "/api/session", `{}`)
	var again map[string]any
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &again))
	assert.Equal(t, sess["id"], again["id"])

	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodGet, "/api/messages", "").Code)
}

func TestUserAndPersonaEndpoints(t *testing.T) {
	app := newTestApp(t, "", 20, true)

	w := app.do(http.MethodGet, "/api/personas", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"key":"riya"`)

	w = app.do(http.MethodPatch, "/api/user", `{"persona":"kabir","name":"Asha"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"persona":"kabir"`)

	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodPatch, "/api/user", `{"persona":"nobody"}`).Code)

	w = app.do(http.MethodGet, "/api/user", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"messageLimit":20`)

	assert.Equal(t, http.StatusUnauthorized, app.do(http.MethodGet, "/api/user", "", "Authorization", "Bearer nope").Code)
	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodPost, "/api/auth/otp/send", `{"phone":"123"}`).Code)
}

func TestCallEndpoints(t *testing.T) {
	app := newTestApp(t, "", 1, true)

	w := app.do(http.MethodPost, "/api/call/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "greeting")

	w = app.do(http.MethodPost, "/api/call/end", `{"durationSeconds":42}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_call_seconds":42`)
	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodPost, "/api/call/end", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodPost, "/api/call/end", `{"durationSeconds":-5}`).Code)

	_, err := app.store.IncrementMessages(context.Background(), "dev-user", 1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusPaymentRequired, app.do(http.MethodPost, "/api/call/start", "").Code)
}

func TestPaymentWebhookUpgradesUser(t *testing.T) {
	app := newTestApp(t, "", 20, true)
	ctx := context.Background()
	require.NoError(t, app.store.CreatePayment(ctx, &models.Payment{OrderID: "o1", UserID: "dev-user", Amount: 99, Currency: "INR", Status: models.PaymentPending}))
	_, err := app.store.EnsureUser(ctx, &models.User{ID: "dev-user"})
	require.NoError(t, err)

	body := `{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":"o1"}}}`
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte("1700000000" + body))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	w := app.do(http.MethodPost, "/api/payment/webhook", body, "x-webhook-timestamp", "1700000000", "x-webhook-signature", "bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(http.MethodPost, "/api/payment/webhook", body, "x-webhook-timestamp", "1700000000", "x-webhook-signature", sig)
	require.Equal(t, http.StatusOK, w.Code)

	u, err := app.store.GetUser(ctx, "dev-user")
	require.NoError(t, err)
	assert.True(t, u.Premium)

	w = app.do(http.MethodGet, "/api/payment/status/o1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"paid"`)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/api/payment/status/nope", "").Code)
}

func TestSummaryEndpoints(t *testing.T) {
	app := newTestApp(t, sseBody("hello"), 20, true)
	w := app.do(http.MethodPost, "/api/chat", `{"content":"hi","sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodPost, "/api/summary", `{"sessionId":"s1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp struct {
		Data struct {
			JobID string `json:"jobId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.JobID)

	w = app.do(http.MethodGet, "/api/summary/"+resp.Data.JobID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"queued"`)

	assert.Equal(t, http.StatusNotFound, app.do(http.MethodPost, "/api/summary", `{"sessionId":"other"}`).Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/api/summary/missing", "").Code)
}

func TestPingAndNoRoute(t *testing.T) {
	app := newTestApp(t, "", 20, true)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/ping", "").Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/nope", "").Code)
}
