package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/companion-api/internal/ai"
	"github.com/suPer8Hu/companion-api/internal/models"
	"github.com/suPer8Hu/companion-api/internal/persona"
	"github.com/suPer8Hu/companion-api/internal/store/memstore"
	"github.com/suPer8Hu/companion-api/internal/usage"
)

// scriptedProvider replays a fixed SSE body through the real frame decoder.
type scriptedProvider struct {
	body    string
	openErr error
	calls   int
	last    []ai.Message
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	return "", errors.New("not used")
}

func (p *scriptedProvider) OpenStream(ctx context.Context, messages []ai.Message) (ai.Stream, error) {
	p.calls++
	p.last = append([]ai.Message(nil), messages...)
	if p.openErr != nil {
		return nil, p.openErr
	}
	dec := ai.NewFrameDecoder(strings.NewReader(p.body))
	return &decoderStream{next: dec.Next}, nil
}

type decoderStream struct {
	next func() (string, error)
}

func (s *decoderStream) Recv() (string, error) { return s.next() }
func (s *decoderStream) Close() error          { return nil }

func sse(deltas ...string) string {
	var b strings.Builder
	for _, d := range deltas {
		fmt.Fprintf(&b, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

type fixture struct {
	store    *memstore.Store
	provider *scriptedProvider
	svc      *Service
	user     *models.User
}

func newFixture(t *testing.T, body string) *fixture {
	t.Helper()
	st := memstore.New()
	prov := &scriptedProvider{body: body}
	svc := NewService(st, prov, persona.NewDefaultRegistry(), usage.NewGate(20), 6)
	user, err := st.EnsureUser(context.Background(), &models.User{ID: "u1", Persona: "riya"})
	require.NoError(t, err)
	return &fixture{store: st, provider: prov, svc: svc, user: user}
}

func (f *fixture) setCount(t *testing.T, n int) {
	t.Helper()
	_, err := f.store.IncrementMessages(context.Background(), f.user.ID, n)
	require.NoError(t, err)
}

func (f *fixture) run(t *testing.T, content, sessionID string) ([]any, error) {
	t.Helper()
	turn, err := f.svc.StartTurn(context.Background(), f.user, content, sessionID)
	if err != nil {
		return nil, err
	}
	var frames []any
	runErr := turn.Run(context.Background(), func(frame any) error {
		frames = append(frames, frame)
		return nil
	})
	return frames, runErr
}

func (f *fixture) messages(t *testing.T, sessionID string) []models.Message {
	t.Helper()
	msgs, err := f.store.ListMessages(context.Background(), f.user.ID, sessionID)
	require.NoError(t, err)
	return msgs
}

func TestTurnStreamsAndPersistsOnce(t *testing.T) {
	f := newFixture(t, sse("Hel", "lo ", "ji"))
	f.setCount(t, 19)

	frames, err := f.run(t, "hi", "s1")
	require.NoError(t, err)
	require.Len(t, frames, 4)

	var concat strings.Builder
	for _, fr := range frames[:3] {
		d, ok := fr.(DeltaFrame)
		require.True(t, ok)
		assert.False(t, d.Done)
		concat.WriteString(d.Content)
	}
	done, ok := frames[3].(DoneFrame)
	require.True(t, ok)
	assert.True(t, done.Done)
	assert.Empty(t, done.Content)
	assert.Equal(t, "s1", done.SessionID)
	assert.Equal(t, 20, done.MessageCount)
	assert.Equal(t, 20, done.MessageLimit)
	assert.Equal(t, concat.String(), done.FullResponse)
	assert.Equal(t, "Hello ji", done.FullResponse)

	msgs := f.messages(t, "s1")
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, models.RoleAI, msgs[1].Role)
	assert.Equal(t, "Hello ji", msgs[1].Text)

	st, err := f.store.GetUsage(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, st.TotalMessages)
}

func TestPaywallBlocksBeforeAnySideEffect(t *testing.T) {
	f := newFixture(t, sse("ok"))
	f.setCount(t, 19)

	_, err := f.run(t, "hi", "s1")
	require.NoError(t, err)
	require.Equal(t, 1, f.provider.calls)

	_, err = f.run(t, "again", "s1")
	var pw *PaywallError
	require.True(t, errors.As(err, &pw))
	assert.Equal(t, 20, pw.MessageCount)
	assert.Equal(t, 20, pw.MessageLimit)

	assert.Equal(t, 1, f.provider.calls, "upstream must not be called after the paywall")
	assert.Len(t, f.messages(t, "s1"), 2, "no new rows")
}

func TestPremiumBypassesPaywall(t *testing.T) {
	f := newFixture(t, sse("ok"))
	f.setCount(t, 50)
	require.NoError(t, f.store.SetPremium(context.Background(), f.user.ID, true, nil))
	u, err := f.store.GetUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	f.user = u

	frames, err := f.run(t, "hi", "s1")
	require.NoError(t, err)
	assert.Equal(t, 51, frames[len(frames)-1].(DoneFrame).MessageCount)
}

func TestEmptyContentHasNoSideEffects(t *testing.T) {
	f := newFixture(t, sse("ok"))

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := f.run(t, content, "s1")
		assert.ErrorIs(t, err, ErrEmptyContent)
	}
	assert.Empty(t, f.messages(t, "s1"))
	assert.Zero(t, f.provider.calls)
}

func TestDoneOnlyStreamPersistsNoAssistantRow(t *testing.T) {
	f := newFixture(t, "data: [DONE]\n\n")

	frames, err := f.run(t, "hi", "s1")
	require.NoError(t, err)
	require.Len(t, frames, 1)
	done := frames[0].(DoneFrame)
	assert.True(t, done.Done)
	assert.Empty(t, done.FullResponse)
	assert.Zero(t, done.MessageCount)

	msgs := f.messages(t, "s1")
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
}

func TestMalformedLineIsSkipped(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n" +
		"data: not-json\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n" +
		"data: [DONE]\n\n"
	f := newFixture(t, body)

	frames, err := f.run(t, "hi", "s1")
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, "ab", frames[2].(DoneFrame).FullResponse)
}

func TestUpstreamErrorFrameEndsTurnWithoutPersist(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n\n" +
		"data: {\"error\":{\"message\":\"overloaded\"}}\n\n"
	f := newFixture(t, body)

	frames, err := f.run(t, "hi", "s1")
	require.Error(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, DeltaFrame{Content: "par"}, frames[0])
	ef, ok := frames[1].(ErrorFrame)
	require.True(t, ok)
	assert.True(t, ef.Done)
	assert.NotEmpty(t, ef.Error)

	assert.Len(t, f.messages(t, "s1"), 1)
	st, _ := f.store.GetUsage(context.Background(), f.user.ID)
	assert.Zero(t, st.TotalMessages)
}

func TestUpstreamStatusFailureIsUpstreamError(t *testing.T) {
	f := newFixture(t, "")
	f.provider.openErr = &ai.StatusError{Provider: "groq", StatusCode: 503}

	_, err := f.run(t, "hi", "s1")
	assert.ErrorIs(t, err, ErrUpstream)

	st, _ := f.store.GetUsage(context.Background(), f.user.ID)
	assert.Zero(t, st.TotalMessages)
	assert.Len(t, f.messages(t, "s1"), 1, "only the inbound message stays")
}

func TestUnconfiguredProvider(t *testing.T) {
	st := memstore.New()
	svc := NewService(st, nil, persona.NewDefaultRegistry(), usage.NewGate(20), 6)

	_, err := svc.StartTurn(context.Background(), &models.User{ID: "u1"}, "hi", "s1")
	assert.ErrorIs(t, err, ErrNotConfigured)

	msgs, err := st.ListMessages(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestPaywallReportedBeforeMissingProvider(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	_, err := st.IncrementMessages(ctx, "u1", 20)
	require.NoError(t, err)
	svc := NewService(st, nil, persona.NewDefaultRegistry(), usage.NewGate(20), 6)

	_, err = svc.StartTurn(ctx, &models.User{ID: "u1"}, "hi", "s1")
	var pw *PaywallError
	require.True(t, errors.As(err, &pw), "got %v", err)
	assert.Equal(t, 20, pw.MessageCount)
}

func TestSessionCreatedLazilyAndReused(t *testing.T) {
	f := newFixture(t, sse("ok"))

	frames, err := f.run(t, "hi", "")
	require.NoError(t, err)
	sid := frames[len(frames)-1].(DoneFrame).SessionID
	require.NotEmpty(t, sid)

	frames, err = f.run(t, "again", "")
	require.NoError(t, err)
	assert.Equal(t, sid, frames[len(frames)-1].(DoneFrame).SessionID)
	assert.Len(t, f.messages(t, sid), 4)
}

func TestContextWindowExcludesInboundAndKeepsSix(t *testing.T) {
	f := newFixture(t, sse("r"))
	for i := 0; i < 5; i++ {
		_, err := f.run(t, fmt.Sprintf("m%d", i), "s1")
		require.NoError(t, err)
	}

	_, err := f.run(t, "latest", "s1")
	require.NoError(t, err)

	sent := f.provider.last
	require.Len(t, sent, 2)
	assert.Equal(t, ai.RoleSystem, sent[0].Role)
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "latest"}, sent[1])

	system := sent[0].Content
	assert.Contains(t, system, "You are Riya")
	assert.NotContains(t, system, "You: m1\n", "older than the window")
	assert.Contains(t, system, "You: m2")
	assert.Contains(t, system, "Riya: r")
	assert.Contains(t, system, "You: m4")
	assert.NotContains(t, system, "latest")
	assert.Equal(t, 6, strings.Count(system, ": ")-strings.Count(persona.BuildSystemPrompt(persona.NewDefaultRegistry().Get("riya")), ": "))
}

func TestClientWriteFailureStopsTurn(t *testing.T) {
	f := newFixture(t, sse("a", "b"))

	turn, err := f.svc.StartTurn(context.Background(), f.user, "hi", "s1")
	require.NoError(t, err)
	err = turn.Run(context.Background(), func(frame any) error { return io.ErrClosedPipe })
	require.ErrorIs(t, err, io.ErrClosedPipe)

	assert.Len(t, f.messages(t, "s1"), 1)
}

func TestListMessagesView(t *testing.T) {
	f := newFixture(t, sse("yo"))
	_, err := f.run(t, "hi", "s1")
	require.NoError(t, err)

	views, err := f.svc.ListMessages(context.Background(), f.user.ID, "s1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, views[1].Content, views[1].Text)
	assert.Equal(t, models.TagChat, views[0].Tag)
}
