package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/Dmetrikx/goDiscordArcade/internal/config"
	"github.com/Dmetrikx/goDiscordArcade/internal/market"
	"github.com/Dmetrikx/goDiscordArcade/internal/session"
	"github.com/Dmetrikx/goDiscordArcade/internal/store"
)

// sentMessage is one message the bot produced
type sentMessage struct {
	ChannelID string
	Content   string
	ReplyTo   string
	Embed     *discordgo.MessageEmbed
}

// mockDiscordSession is a mock implementation for testing
type mockDiscordSession struct {
	mu          sync.Mutex
	nextID      int
	sent        []sentMessage
	deleted     []string
	bans        map[string]string
	kicks       map[string]string
	timeouts    map[string]*time.Time
	permissions map[string]int64
	registered  []string
	sendErr     error
}

func newMockSession() *mockDiscordSession {
	return &mockDiscordSession{
		bans:        make(map[string]string),
		kicks:       make(map[string]string),
		timeouts:    make(map[string]*time.Time),
		permissions: make(map[string]int64),
	}
}

func (m *mockDiscordSession) record(msg sentMessage) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.nextID++
	m.sent = append(m.sent, msg)
	return &discordgo.Message{
		ID:        fmt.Sprintf("msg-%d", m.nextID),
		ChannelID: msg.ChannelID,
		Content:   msg.Content,
	}, nil
}

func (m *mockDiscordSession) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

func (m *mockDiscordSession) last() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMessage{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockDiscordSession) Open() error {
	return nil
}

func (m *mockDiscordSession) Close() error {
	return nil
}

func (m *mockDiscordSession) User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error) {
	return &discordgo.User{ID: "bot-user", Username: "testbot"}, nil
}

func (m *mockDiscordSession) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return m.record(sentMessage{ChannelID: channelID, Content: content})
}

func (m *mockDiscordSession) ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return m.record(sentMessage{ChannelID: channelID, Content: content, ReplyTo: reference.MessageID})
}

func (m *mockDiscordSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return m.record(sentMessage{ChannelID: channelID, Embed: embed})
}

func (m *mockDiscordSession) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *mockDiscordSession) GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bans[userID] = reason
	return nil
}

func (m *mockDiscordSession) GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kicks[userID] = reason
	return nil
}

func (m *mockDiscordSession) GuildMemberTimeout(guildID string, userID string, until *time.Time, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts[userID] = until
	return nil
}

func (m *mockDiscordSession) UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permissions[userID], nil
}

func (m *mockDiscordSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	msg := sentMessage{ChannelID: "interaction:" + interaction.ID, Content: resp.Data.Content}
	if len(resp.Data.Embeds) > 0 {
		msg.Embed = resp.Data.Embeds[0]
	}
	_, err := m.record(msg)
	return err
}

func (m *mockDiscordSession) FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return m.record(sentMessage{ChannelID: "followup:" + interaction.ID, Content: data.Content})
}

func (m *mockDiscordSession) ApplicationCommandCreate(appID string, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, cmd.Name)
	return cmd, nil
}

func (m *mockDiscordSession) HeartbeatLatency() time.Duration {
	return 42 * time.Millisecond
}

func (m *mockDiscordSession) AddHandler(handler interface{}) func() {
	return func() {}
}

func (m *mockDiscordSession) GetState() *discordgo.State {
	return &discordgo.State{}
}

// fakeAI is a canned completion client
type fakeAI struct {
	mu     sync.Mutex
	calls  int
	reply  string
	err    error
	prompt string
}

func (f *fakeAI) Ask(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompt = prompt
	return f.reply, f.err
}

type stubTimer struct {
	f       func()
	stopped bool
}

func (t *stubTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// manualTimers holds session timers until the test fires them
type manualTimers struct {
	mu     sync.Mutex
	timers []*stubTimer
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) session.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &stubTimer{f: f}
	m.timers = append(m.timers, t)
	return t
}

func (m *manualTimers) fireAll() {
	m.mu.Lock()
	timers := append([]*stubTimer(nil), m.timers...)
	m.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

// testHorses always produce the same winner: Fast
var testHorses = []session.Horse{
	{Name: "Fast", Speed: 100},
	{Name: "Slow A", Speed: 1},
	{Name: "Slow B", Speed: 1},
}

var testQuestions = []session.Question{{Prompt: "Capital of France?", Answer: "paris"}}

type harness struct {
	bot       *Bot
	discord   *mockDiscordSession
	store     *store.Store
	sessions  *session.Registry
	timers    *manualTimers
	ai        *fakeAI
	shutdowns int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := store.New(store.NewMemoryBackend(nil), logger, store.Options{})
	st.Open(ctx)

	h := &harness{
		discord: newMockSession(),
		store:   st,
		timers:  &manualTimers{},
		ai:      &fakeAI{reply: "42"},
	}
	h.sessions = session.NewRegistry(st, logger, session.Options{
		Horses:    testHorses,
		Questions: testQuestions,
		Rand:      rand.New(rand.NewPCG(3, 5)),
		AfterFunc: h.timers.AfterFunc,
	})
	mkt := market.New(st, logger, rand.New(rand.NewPCG(1, 2)))
	mkt.Seed()

	cfg := &config.Config{
		CommandPrefix: "?",
		OwnerID:       "owner",
		AskRateLimit:  2,
	}
	h.bot = NewBot(cfg, Deps{
		Session:  h.discord,
		Store:    st,
		Market:   mkt,
		Sessions: h.sessions,
		AI:       h.ai,
		Shutdown: func() { h.shutdowns++ },
	}, logger)
	h.bot.revealDelay = 0
	t.Cleanup(h.sessions.Close)
	return h
}

// say delivers a guild message from author and returns what the bot sent in response
func (h *harness) say(author, content string) []sentMessage {
	before := len(h.discord.messages())
	h.bot.handleEvent(context.Background(), Event{
		AuthorID:   author,
		AuthorName: author,
		GuildID:    "guild-1",
		ChannelID:  "chan-1",
		MessageID:  "in-" + author,
		Content:    content,
	})
	return h.discord.messages()[before:]
}

// sayOne is say for commands expected to answer with exactly one message
func (h *harness) sayOne(t *testing.T, author, content string) sentMessage {
	t.Helper()
	out := h.say(author, content)
	require.Len(t, out, 1, "responses to %q", content)
	return out[0]
}
