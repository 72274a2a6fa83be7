package actions

import (
	"context"
	"time"
)

// ReplyChatAction sends a chat reply. The original implementation this was
// distilled from conflated the "reply to" message id with the "id to
// delete on undo"; per §9's ambiguity note this action keeps the sent
// message id separately (captured in ActionResult.Metadata) rather than
// reusing the action's own MessageID field for both purposes.
type ReplyChatAction struct {
	BaseAction
	ChannelID string
	MessageID string // the message being replied to
	Text      string
	Client    ChatClient
	now       func() time.Time
}

func NewReplyChatAction(channelID, messageID, text string, client ChatClient) *ReplyChatAction {
	return &ReplyChatAction{
		BaseAction: BaseAction{ID: sanitizeID("reply_chat", channelID, messageID), Type: "reply_chat", Duration: time.Second},
		ChannelID:  channelID,
		MessageID:  messageID,
		Text:       text,
		Client:     client,
		now:        time.Now,
	}
}

func (a *ReplyChatAction) SupportsUndo() bool { return true }

func (a *ReplyChatAction) Validate() ValidationResult {
	return NewValidationBuilder().
		ErrorUnless(a.ChannelID != "", "channel_id is required").
		ErrorUnless(a.Text != "", "text is required").
		ErrorUnless(a.Client != nil, "chat client is not configured").
		Build()
}

func (a *ReplyChatAction) Execute() ActionResult {
	start := a.now()
	sentID, err := a.Client.SendMessage(context.Background(), a.ChannelID, a.Text)
	if err != nil {
		return ActionResult{Success: false, Duration: a.now().Sub(start), Error: err, ExecutedAt: a.now()}
	}
	// sent_message_id is the id to delete on undo; it is never the same
	// field as a.MessageID (the message being replied to).
	return ActionResult{Success: true, Duration: a.now().Sub(start), Metadata: map[string]any{"sent_message_id": sentID}, ExecutedAt: a.now()}
}

func (a *ReplyChatAction) CanUndo(result ActionResult) bool {
	_, ok := result.Metadata["sent_message_id"]
	return result.Success && ok
}

func (a *ReplyChatAction) Undo(result ActionResult) bool {
	sentID, _ := result.Metadata["sent_message_id"].(string)
	if sentID == "" {
		return false
	}
	return a.Client.DeleteMessage(context.Background(), a.ChannelID, sentID) == nil
}

// FlagMessageAction flags a chat message for follow-up. No practical undo
// (unflag is not modeled by the external API this targets).
type FlagMessageAction struct {
	BaseAction
	ChannelID string
	MessageID string
	Client    ChatClient
	now       func() time.Time
}

func NewFlagMessageAction(channelID, messageID string, client ChatClient) *FlagMessageAction {
	return &FlagMessageAction{
		BaseAction: BaseAction{ID: sanitizeID("flag_message", channelID, messageID), Type: "flag_message", Duration: time.Second},
		ChannelID:  channelID,
		MessageID:  messageID,
		Client:     client,
		now:        time.Now,
	}
}

func (a *FlagMessageAction) Validate() ValidationResult {
	return NewValidationBuilder().
		ErrorUnless(a.ChannelID != "", "channel_id is required").
		ErrorUnless(a.MessageID != "", "message_id is required").
		ErrorUnless(a.Client != nil, "chat client is not configured").
		Build()
}

func (a *FlagMessageAction) Execute() ActionResult {
	start := a.now()
	if err := a.Client.FlagMessage(context.Background(), a.ChannelID, a.MessageID); err != nil {
		return ActionResult{Success: false, Duration: a.now().Sub(start), Error: err, ExecutedAt: a.now()}
	}
	return ActionResult{Success: true, Duration: a.now().Sub(start), ExecutedAt: a.now()}
}

func (a *FlagMessageAction) CanUndo(ActionResult) bool { return false }
func (a *FlagMessageAction) Undo(ActionResult) bool    { return false }

// CreateTaskFromMessageAction creates a task from a chat message.
type CreateTaskFromMessageAction struct {
	*CreateTaskAction
}

func NewCreateTaskFromMessageAction(name, note, project string, tasks TaskManager) *CreateTaskFromMessageAction {
	a := NewCreateTaskAction(name, note, project, nil, 0, 0, false, tasks)
	a.BaseAction.ID = sanitizeID("create_task_from_message", name)
	a.BaseAction.Type = "create_task_from_message"
	return &CreateTaskFromMessageAction{CreateTaskAction: a}
}
