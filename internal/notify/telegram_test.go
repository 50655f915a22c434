package notify

import (
	"errors"
	"io"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"yoyaku/internal/events"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func published(t *testing.T, p events.FormPublished) events.Event {
	t.Helper()
	ev, err := events.New(events.TypeFormPublished, p)
	require.NoError(t, err)
	return ev
}

func TestMessage(t *testing.T) {
	text, err := Message(published(t, events.FormPublished{
		FormName:  "サロン予約",
		StoreName: "サロン青山",
		PublicURL: "https://forms.example.com/aoyama.html",
		Hash:      "0123456789abcdef",
	}))
	require.NoError(t, err)
	assert.Equal(t, "✅ フォームを公開しました: サロン予約（サロン青山）\nURL: https://forms.example.com/aoyama.html\nHash: 0123456789ab", text)

	text, err = Message(published(t, events.FormPublished{FormName: "x", Skipped: true}))
	require.NoError(t, err)
	assert.Empty(t, text)

	saved, err := events.New(events.TypeFormSaved, events.FormSaved{FormID: "f1", FormName: "x", Problems: []string{"ui_settings: bad"}})
	require.NoError(t, err)
	text, err = Message(saved)
	require.NoError(t, err)
	assert.Contains(t, text, "\n- ui_settings: bad")

	_, err = Message(events.Event{Type: events.TypeFormPublished, Payload: []byte("{")})
	assert.Error(t, err)
}

func TestHandleEventSendsToEveryChat(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 1
	})).Return(nil).Once()
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 2
	})).Return(errors.New("Forbidden: bot was blocked by the user")).Once()

	logger := zerolog.New(io.Discard)
	n := NewTelegram(sender, []int64{1, 2}, 1000, &logger)

	bus := events.NewEventBus()
	n.Subscribe(bus)

	err := bus.Publish(published(t, events.FormPublished{FormName: "サロン予約", PublicURL: "https://x"}))
	assert.ErrorContains(t, err, "send to 2")
	sender.AssertExpectations(t)
}

func TestHandleEventSkipsQuietEvents(t *testing.T) {
	sender := &mockSender{}
	logger := zerolog.New(io.Discard)
	n := NewTelegram(sender, []int64{1}, 1000, &logger)

	assert.NoError(t, n.HandleEvent(published(t, events.FormPublished{Skipped: true})))
	saved, err := events.New(events.TypeFormSaved, events.FormSaved{FormID: "f1"})
	require.NoError(t, err)
	assert.NoError(t, n.HandleEvent(saved))
	sender.AssertNotCalled(t, "Send", mock.Anything)
}
