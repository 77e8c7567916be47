// Package services – Orchestrator
//
// This file implements the conversation orchestrator: the top-level driver
// for every inbound WhatsApp event. It consults the conversation state and
// the session tracker, resolves state-machine transitions (language menu,
// address capture, order confirmation) locally, and otherwise forwards the
// turn to the generation collaborator and dispatches any resulting tool
// call. No error escapes a turn: everything is caught here, logged, and
// answered with a fixed apology so the upstream channel always gets its ack.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maachbazar/maachbazar-bot/internal/domain"
	"github.com/maachbazar/maachbazar-bot/internal/llm"
	"github.com/maachbazar/maachbazar-bot/internal/repo"
	"github.com/maachbazar/maachbazar-bot/internal/session"
)

// Event kinds delivered by the channel adapter.
const (
	EventText        = "text"
	EventButtonReply = "button_reply"
	EventListReply   = "list_reply"
)

// Interactive element ids shared with the channel adapter.
const (
	ButtonConfirmOrder  = "confirm_order"
	ButtonChangeAddress = "change_address"
)

// languageByListID maps language-menu selections to stored language names.
var languageByListID = map[string]string{
	"lang_en": "English",
	"lang_bn": "Bangla",
	"lang_hi": "Hinglish",
}

// Fixed user-facing strings. Language-agnostic by design: they must be
// sendable before a language preference exists.
const (
	apologyReply      = "Aare dada, ektu problem hocche. Please try again later. 😓"
	addressPromptText = "Please type your new address (include Floor, Block, Gali)."
	addressEmptyText  = "Please provide a valid address. It cannot be empty."
	addressCapText    = "Maximum address changes reached. Please contact support."
)

// InboundEvent is one normalized webhook event for a single user.
type InboundEvent struct {
	UserID string
	Kind   string

	// Text is set for EventText.
	Text string
	// ButtonID is set for EventButtonReply.
	ButtonID string
	// ListReplyID is set for EventListReply.
	ListReplyID string
	// ReplyContextID is the wamid of the message this event replies to,
	// when the channel provided one.
	ReplyContextID string
}

// Button is one interactive reply button.
type Button struct {
	ID    string
	Title string
}

// Channel is the outbound messaging surface the orchestrator needs. All
// sends return the external message id (wamid) for conversation logging.
type Channel interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendButtons(ctx context.Context, to, body string, buttons []Button) (string, error)
	SendLanguageMenu(ctx context.Context, to string) (string, error)
}

// Orchestrator drives the conversation state machine.
type Orchestrator struct {
	DB         *gorm.DB
	Sessions   *session.Tracker
	Generator  llm.Client
	Channel    Channel
	Dispatcher *Dispatcher
	Classifier ConfirmationClassifier

	MaxAddressChanges int
	HistoryLimit      int
	// GenerationTimeout bounds one generation call; zero means the caller's
	// context deadline applies unchanged.
	GenerationTimeout time.Duration
}

// HandleEvent processes one inbound event end to end. The returned error is
// for logging only; callers acknowledge the event to the channel regardless,
// so it is never redelivered indefinitely.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev InboundEvent) error {
	tr := otel.Tracer("services/Orchestrator")
	ctx, span := tr.Start(ctx, "HandleEvent",
		trace.WithAttributes(
			attribute.String("event.kind", ev.Kind),
			attribute.String("user.phone", ev.UserID),
		),
	)
	defer span.End()

	o.Sessions.Touch(ev.UserID)
	if err := repo.TouchUserActivity(ctx, o.DB, ev.UserID, time.Now()); err != nil {
		log.Warn().Err(err).Str("user", ev.UserID).Msg("last_active update failed")
	}

	user, isNew, err := repo.GetOrCreateUser(ctx, o.DB, ev.UserID)
	if err != nil {
		log.Error().Err(err).Str("user", ev.UserID).Msg("user lookup failed")
		o.sendText(ctx, ev.UserID, apologyReply)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if isNew {
		if _, err := o.Channel.SendLanguageMenu(ctx, ev.UserID); err != nil {
			log.Error().Err(err).Str("user", ev.UserID).Msg("language menu send failed")
			return fmt.Errorf("%w: %v", ErrChannelSend, err)
		}
		return nil
	}

	switch ev.Kind {
	case EventListReply:
		return o.handleLanguageSelection(ctx, user, ev.ListReplyID)
	case EventButtonReply:
		switch ev.ButtonID {
		case ButtonConfirmOrder:
			return o.handleConfirmOrder(ctx, user, ev.ReplyContextID)
		case ButtonChangeAddress:
			return o.handleChangeAddress(ctx, user)
		default:
			log.Debug().Str("button", ev.ButtonID).Msg("ignoring unknown button reply")
			return nil
		}
	case EventText:
		state, err := repo.GetConversationState(ctx, o.DB, user.Phone)
		if err != nil {
			log.Error().Err(err).Str("user", user.Phone).Msg("state lookup failed")
			o.sendText(ctx, user.Phone, apologyReply)
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if state != nil && *state == domain.StateAwaitingAddress {
			return o.handleAddressCapture(ctx, user, ev.Text)
		}
		return o.handleChat(ctx, user, ev.Text)
	default:
		log.Debug().Str("kind", ev.Kind).Msg("ignoring unsupported event kind")
		return nil
	}
}

// handleLanguageSelection persists the chosen language and acknowledges.
func (o *Orchestrator) handleLanguageSelection(ctx context.Context, user *domain.User, listID string) error {
	lang, ok := languageByListID[listID]
	if !ok {
		lang = "English"
	}
	if err := repo.UpdateUserLanguage(ctx, o.DB, user.Phone, lang); err != nil {
		log.Error().Err(err).Str("user", user.Phone).Msg("language update failed")
		o.sendText(ctx, user.Phone, apologyReply)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	o.sendAndLog(ctx, user.Phone, fmt.Sprintf("Language set to %s. How can I help you today?", lang))
	return nil
}

// handleConfirmOrder treats the button tap as the chat turn "Confirm". The
// reply-context wamid, when resolvable, becomes the idempotency key for any
// order the generation collaborator decides to place.
func (o *Orchestrator) handleConfirmOrder(ctx context.Context, user *domain.User, replyContextID string) error {
	var messageID *uint
	if replyContextID != "" {
		id, err := repo.MessageIDByChannelID(ctx, o.DB, replyContextID)
		if err != nil {
			log.Warn().Err(err).Str("wamid", replyContextID).Msg("reply context resolution failed")
		} else {
			messageID = id
		}
	}

	if _, err := repo.LogMessage(ctx, o.DB, user.Phone, domain.RoleUser, "Confirm", nil); err != nil {
		log.Warn().Err(err).Str("user", user.Phone).Msg("user turn not logged")
	}
	return o.generateAndRespond(ctx, user, "Confirm", messageID)
}

// handleChangeAddress enters the address-capture sub-flow.
func (o *Orchestrator) handleChangeAddress(ctx context.Context, user *domain.User) error {
	state := domain.StateAwaitingAddress
	if err := repo.SetConversationState(ctx, o.DB, user.Phone, &state); err != nil {
		log.Error().Err(err).Str("user", user.Phone).Msg("state transition failed")
		o.sendText(ctx, user.Phone, apologyReply)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	o.sendAndLog(ctx, user.Phone, addressPromptText)
	return nil
}

// handleAddressCapture interprets a text message as the new delivery address.
// Exits: empty input (state kept), cap reached (state cleared), success
// (state cleared, confirmation re-presented). The state is never left
// dangling on any path that ends the sub-flow.
func (o *Orchestrator) handleAddressCapture(ctx context.Context, user *domain.User, text string) error {
	address := strings.TrimSpace(text)
	if address == "" {
		o.sendAndLog(ctx, user.Phone, addressEmptyText)
		return nil
	}

	count, err := repo.GetAddressUpdateCount(ctx, o.DB, user.Phone)
	if err != nil {
		log.Error().Err(err).Str("user", user.Phone).Msg("address counter read failed")
		o.sendText(ctx, user.Phone, apologyReply)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if count >= o.MaxAddressChanges {
		o.sendAndLog(ctx, user.Phone, addressCapText)
		// Clear state so the user is not stuck; the counter stays put.
		if err := repo.SetConversationState(ctx, o.DB, user.Phone, nil); err != nil {
			log.Error().Err(err).Str("user", user.Phone).Msg("state clear failed")
		}
		return nil
	}

	if err := repo.UpdateUserAddress(ctx, o.DB, user.Phone, address); err != nil {
		log.Error().Err(err).Str("user", user.Phone).Msg("address update failed")
		o.sendText(ctx, user.Phone, apologyReply)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := repo.IncrementAddressUpdateCount(ctx, o.DB, user.Phone); err != nil {
		log.Error().Err(err).Str("user", user.Phone).Msg("address counter increment failed")
	}
	if err := repo.SetConversationState(ctx, o.DB, user.Phone, nil); err != nil {
		log.Error().Err(err).Str("user", user.Phone).Msg("state clear failed")
	}

	if _, err := repo.LogMessage(ctx, o.DB, user.Phone, domain.RoleUser, "Updated address to: "+address, nil); err != nil {
		log.Warn().Err(err).Str("user", user.Phone).Msg("address turn not logged")
	}

	remaining := o.MaxAddressChanges - (count + 1)
	confirm := fmt.Sprintf(
		"Address updated to: %s. (Changes remaining: %d)\nDo you want to confirm your order now?",
		address, remaining,
	)
	wamid, err := o.Channel.SendButtons(ctx, user.Phone, confirm, confirmButtons())
	if err != nil {
		log.Error().Err(err).Str("user", user.Phone).Msg("confirmation prompt send failed")
		return fmt.Errorf("%w: %v", ErrChannelSend, err)
	}
	o.logAssistant(ctx, user.Phone, confirm, wamid)
	return nil
}

// handleChat is the normal free-text path: log the turn, generate, dispatch.
func (o *Orchestrator) handleChat(ctx context.Context, user *domain.User, text string) error {
	if _, err := repo.LogMessage(ctx, o.DB, user.Phone, domain.RoleUser, text, nil); err != nil {
		log.Warn().Err(err).Str("user", user.Phone).Msg("user turn not logged")
	}
	return o.generateAndRespond(ctx, user, text, nil)
}

// generateAndRespond runs the generation collaborator on the current turn
// and delivers the outcome: a tool-call dispatch result, an interactive
// confirmation prompt, or plain text. messageID, when set, is attached to
// any resulting order as the idempotency key.
func (o *Orchestrator) generateAndRespond(ctx context.Context, user *domain.User, text string, messageID *uint) error {
	history, err := repo.RecentHistory(ctx, o.DB, user.Phone, o.HistoryLimit)
	if err != nil {
		log.Warn().Err(err).Str("user", user.Phone).Msg("history load failed, generating without it")
		history = nil
	}
	inventory, err := repo.ListAvailableInventory(ctx, o.DB)
	if err != nil {
		log.Warn().Err(err).Msg("inventory load failed, using fallback price list")
		inventory = nil
	}

	lang := "English"
	if user.Language != nil && *user.Language != "" {
		lang = *user.Language
	}

	genCtx := ctx
	if o.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, o.GenerationTimeout)
		defer cancel()
	}

	reply, err := o.Generator.Generate(genCtx, llm.Request{
		System:  llm.SystemInstruction(inventory, lang, user.Address),
		History: llm.HistoryMessages(history),
		Prompt:  text,
	})
	if err != nil {
		log.Error().Err(err).Str("user", user.Phone).Msg("generation failed")
		o.sendAndLog(ctx, user.Phone, apologyReply)
		return fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	if reply.ToolCall != nil {
		res, derr := o.Dispatcher.Dispatch(ctx, user.Phone, user.Address, ToolCallInput{
			Name:      reply.ToolCall.Name,
			Arguments: reply.ToolCall.Arguments,
			MessageID: messageID,
		})
		if derr != nil {
			log.Error().Err(derr).Str("user", user.Phone).Msg("tool call dispatch failed")
			o.sendAndLog(ctx, user.Phone, apologyReply)
			return derr
		}
		if res.OrderPlaced {
			ordersPlaced.Inc()
		}
		o.sendAndLog(ctx, user.Phone, res.Reply)
		return nil
	}

	// A reply that reads like "shall I place the order?" is upgraded to an
	// interactive two-button prompt; the plain-text send is suppressed.
	if o.Classifier != nil && o.Classifier.IsConfirmationQuestion(reply.Text) {
		wamid, serr := o.Channel.SendButtons(ctx, user.Phone, reply.Text, confirmButtons())
		if serr != nil {
			log.Error().Err(serr).Str("user", user.Phone).Msg("button prompt send failed")
			return fmt.Errorf("%w: %v", ErrChannelSend, serr)
		}
		o.logAssistant(ctx, user.Phone, reply.Text, wamid)
		return nil
	}

	o.sendAndLog(ctx, user.Phone, reply.Text)
	return nil
}

// confirmButtons is the standard confirm / change-address button pair.
func confirmButtons() []Button {
	return []Button{
		{ID: ButtonConfirmOrder, Title: "Confirm Korun ✅"},
		{ID: ButtonChangeAddress, Title: "Change Address 🏠"},
	}
}

// sendText delivers a message without logging it to the conversation.
// Used for apologies on paths where the log itself may be failing.
func (o *Orchestrator) sendText(ctx context.Context, to, body string) {
	if _, err := o.Channel.SendText(ctx, to, body); err != nil {
		log.Error().Err(err).Str("user", to).Msg("send failed")
	}
}

// sendAndLog delivers a text message and appends the assistant turn with
// its wamid so later reply contexts can be resolved.
func (o *Orchestrator) sendAndLog(ctx context.Context, to, body string) {
	wamid, err := o.Channel.SendText(ctx, to, body)
	if err != nil {
		log.Error().Err(err).Str("user", to).Msg("send failed")
		return
	}
	o.logAssistant(ctx, to, body, wamid)
}

// logAssistant appends an assistant turn; a failure here only loses history.
func (o *Orchestrator) logAssistant(ctx context.Context, phone, content, wamid string) {
	var channelID *string
	if wamid != "" {
		channelID = &wamid
	}
	if _, err := repo.LogMessage(ctx, o.DB, phone, domain.RoleAssistant, content, channelID); err != nil {
		log.Warn().Err(err).Str("user", phone).Msg("assistant turn not logged")
	}
}
