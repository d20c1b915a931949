package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Token           string
	AppID           string
	GuildID         string
	NotifyChannelID string
}

// Bot connects the dispatcher to the Discord gateway.
type Bot struct {
	s    *discordgo.Session
	d    *Dispatcher
	opts Options
	log  logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	return s, nil
}

func New(opts Options, d *Dispatcher, log logrus.FieldLogger) (*Bot, error) {
	s, err := NewSession(opts.Token)
	if err != nil {
		return nil, err
	}
	return &Bot{s: s, d: d, opts: opts, log: log.WithField("component", "bot")}, nil
}

// Open connects to the gateway and registers the commands. A registration
// failure is logged; the bot keeps serving whatever commands Discord
// already knows.
func (b *Bot) Open(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.s.AddHandler(b.onReady)
	b.s.AddHandler(b.onInteraction)
	if err := b.s.Open(); err != nil {
		b.cancel()
		return fmt.Errorf("open gateway: %w", err)
	}

	cmds, err := Register(b.s, b.opts.AppID, b.opts.GuildID)
	if err != nil {
		b.log.WithError(err).Error("command registration failed")
	} else {
		b.log.WithField("count", len(cmds)).Info("commands registered")
	}
	return nil
}

// Close cancels in-flight commands and disconnects.
func (b *Bot) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	return b.s.Close()
}

// Notify posts content to the notification channel, if one is configured.
func (b *Bot) Notify(ctx context.Context, content string) error {
	if b.opts.NotifyChannelID == "" {
		return nil
	}
	_, err := b.s.ChannelMessageSend(b.opts.NotifyChannelID, content, discordgo.WithContext(ctx))
	return err
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.WithFields(logrus.Fields{
		"user":   r.User.Username,
		"guilds": len(r.Guilds),
	}).Info("connected to Discord")
}

// onInteraction runs on its own goroutine; discordgo dispatches handlers
// asynchronously.
func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	req := Request{
		ID:      i.ID,
		Command: i.ApplicationCommandData().Name,
		User:    interactionUser(i.Interaction),
	}
	b.d.Handle(b.ctx, req, &interactionResponder{s: s, i: i.Interaction})
}

func interactionUser(i *discordgo.Interaction) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.Username
	case i.User != nil:
		return i.User.Username
	}
	return ""
}

type interactionResponder struct {
	s *discordgo.Session
	i *discordgo.Interaction
}

func (r *interactionResponder) Ack(ctx context.Context, content string) error {
	return r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	}, discordgo.WithContext(ctx))
}

func (r *interactionResponder) Edit(ctx context.Context, content string) error {
	_, err := r.s.InteractionResponseEdit(r.i, &discordgo.WebhookEdit{Content: &content}, discordgo.WithContext(ctx))
	return err
}
