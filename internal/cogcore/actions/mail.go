package actions

import (
	"context"
	"fmt"
	"time"
)

func sanitizeID(parts ...string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ":"
		}
		out += p
	}
	return out
}

// ArchiveEmailAction moves a message to the archive folder. Reversible:
// undo restores the message's original folder, captured in
// ActionResult.Metadata at execute time.
type ArchiveEmailAction struct {
	BaseAction
	MessageID     string
	ArchiveFolder string
	Client        MailClient
	now           func() time.Time
}

func NewArchiveEmailAction(messageID, archiveFolder string, client MailClient) *ArchiveEmailAction {
	return &ArchiveEmailAction{
		BaseAction:    BaseAction{ID: sanitizeID("archive_email", messageID), Type: "archive_email", Duration: 2 * time.Second},
		MessageID:     messageID,
		ArchiveFolder: archiveFolder,
		Client:        client,
		now:           time.Now,
	}
}

func (a *ArchiveEmailAction) SupportsUndo() bool { return true }

func (a *ArchiveEmailAction) Validate() ValidationResult {
	return NewValidationBuilder().
		ErrorUnless(a.MessageID != "", "message_id is required").
		ErrorUnless(a.ArchiveFolder != "", "archive_folder is required").
		ErrorUnless(a.Client != nil, "mail client is not configured").
		Build()
}

func (a *ArchiveEmailAction) Execute() ActionResult {
	ctx := context.Background()
	start := a.now()
	originalFolder, _ := a.Client.GetMessageFolder(ctx, a.MessageID)
	if err := a.Client.MoveMessage(ctx, a.MessageID, a.ArchiveFolder); err != nil {
		return ActionResult{Success: false, Duration: a.now().Sub(start), Error: err, ExecutedAt: a.now()}
	}
	return ActionResult{
		Success:    true,
		Duration:   a.now().Sub(start),
		Metadata:   map[string]any{"original_folder": originalFolder},
		ExecutedAt: a.now(),
	}
}

func (a *ArchiveEmailAction) CanUndo(result ActionResult) bool {
	if !result.Success {
		return false
	}
	_, ok := result.Metadata["original_folder"]
	return ok
}

func (a *ArchiveEmailAction) Undo(result ActionResult) bool {
	folder, _ := result.Metadata["original_folder"].(string)
	if folder == "" {
		return false
	}
	return a.Client.MoveMessage(context.Background(), a.MessageID, folder) == nil
}

// DeleteEmailAction moves a message to trash, unless Permanent is set, in
// which case it is genuinely unrecoverable and declared not-undoable
// statically so risk assessment and the planner reach the right conclusion
// (§9 ambiguity note).
type DeleteEmailAction struct {
	BaseAction
	MessageID   string
	TrashFolder string
	Permanent   bool
	Client      MailClient
	now         func() time.Time
}

func NewDeleteEmailAction(messageID, trashFolder string, permanent bool, client MailClient) *DeleteEmailAction {
	return &DeleteEmailAction{
		BaseAction:  BaseAction{ID: sanitizeID("delete_email", messageID), Type: "delete_email", Duration: 2 * time.Second},
		MessageID:   messageID,
		TrashFolder: trashFolder,
		Permanent:   permanent,
		Client:      client,
		now:         time.Now,
	}
}

func (a *DeleteEmailAction) SupportsUndo() bool { return !a.Permanent }

func (a *DeleteEmailAction) Validate() ValidationResult {
	b := NewValidationBuilder().
		ErrorUnless(a.MessageID != "", "message_id is required").
		ErrorUnless(a.Client != nil, "mail client is not configured")
	if !a.Permanent {
		b.ErrorUnless(a.TrashFolder != "", "trash_folder is required for non-permanent delete")
	}
	return b.Build()
}

func (a *DeleteEmailAction) Execute() ActionResult {
	ctx := context.Background()
	start := a.now()
	var originalFolder string
	if !a.Permanent {
		originalFolder, _ = a.Client.GetMessageFolder(ctx, a.MessageID)
	}
	if err := a.Client.DeleteMessage(ctx, a.MessageID, a.Permanent); err != nil {
		return ActionResult{Success: false, Duration: a.now().Sub(start), Error: err, ExecutedAt: a.now()}
	}
	meta := map[string]any{}
	if !a.Permanent {
		meta["original_folder"] = originalFolder
	}
	return ActionResult{Success: true, Duration: a.now().Sub(start), Metadata: meta, ExecutedAt: a.now()}
}

func (a *DeleteEmailAction) CanUndo(result ActionResult) bool {
	// Permanent delete's undo is a no-op; statically declared non-undoable
	// via SupportsUndo rather than discovered here at result time.
	return !a.Permanent && result.Success
}

func (a *DeleteEmailAction) Undo(result ActionResult) bool {
	if a.Permanent {
		return false
	}
	folder, _ := result.Metadata["original_folder"].(string)
	if folder == "" {
		folder = "Inbox"
	}
	return a.Client.MoveMessage(context.Background(), a.MessageID, folder) == nil
}

// MoveEmailAction moves a message to a configured reference folder.
type MoveEmailAction struct {
	BaseAction
	MessageID string
	ToFolder  string
	Client    MailClient
	now       func() time.Time
}

func NewMoveEmailAction(messageID, toFolder string, client MailClient) *MoveEmailAction {
	return &MoveEmailAction{
		BaseAction: BaseAction{ID: sanitizeID("move_email", messageID, toFolder), Type: "move_email", Duration: 2 * time.Second},
		MessageID:  messageID,
		ToFolder:   toFolder,
		Client:     client,
		now:        time.Now,
	}
}

func (a *MoveEmailAction) SupportsUndo() bool { return true }

func (a *MoveEmailAction) Validate() ValidationResult {
	return NewValidationBuilder().
		ErrorUnless(a.MessageID != "", "message_id is required").
		ErrorUnless(a.ToFolder != "", "to_folder is required").
		ErrorUnless(a.Client != nil, "mail client is not configured").
		Build()
}

func (a *MoveEmailAction) Execute() ActionResult {
	ctx := context.Background()
	start := a.now()
	originalFolder, _ := a.Client.GetMessageFolder(ctx, a.MessageID)
	if err := a.Client.MoveMessage(ctx, a.MessageID, a.ToFolder); err != nil {
		return ActionResult{Success: false, Duration: a.now().Sub(start), Error: err, ExecutedAt: a.now()}
	}
	return ActionResult{Success: true, Duration: a.now().Sub(start), Metadata: map[string]any{"original_folder": originalFolder}, ExecutedAt: a.now()}
}

func (a *MoveEmailAction) CanUndo(result ActionResult) bool {
	_, ok := result.Metadata["original_folder"]
	return result.Success && ok
}

func (a *MoveEmailAction) Undo(result ActionResult) bool {
	folder, _ := result.Metadata["original_folder"].(string)
	if folder == "" {
		return false
	}
	return a.Client.MoveMessage(context.Background(), a.MessageID, folder) == nil
}

// PrepareReplyAction drafts (but does not send) a reply to a message;
// execution stores the draft via the DraftCreator callback and is
// reversible by discarding the draft.
type DraftCreator interface {
	CreateDraft(ctx context.Context, inReplyTo, body string) (draftID string, err error)
	DiscardDraft(ctx context.Context, draftID string) error
}

type PrepareReplyAction struct {
	BaseAction
	MessageID string
	Body      string
	Drafts    DraftCreator
	now       func() time.Time
}

func NewPrepareReplyAction(messageID, body string, drafts DraftCreator) *PrepareReplyAction {
	return &PrepareReplyAction{
		BaseAction: BaseAction{ID: sanitizeID("prepare_reply", messageID), Type: "prepare_reply", Duration: time.Second},
		MessageID:  messageID,
		Body:       body,
		Drafts:     drafts,
		now:        time.Now,
	}
}

func (a *PrepareReplyAction) SupportsUndo() bool { return true }

func (a *PrepareReplyAction) Validate() ValidationResult {
	return NewValidationBuilder().
		ErrorUnless(a.MessageID != "", "message_id is required").
		ErrorUnless(a.Body != "", "body is required").
		ErrorUnless(a.Drafts != nil, "draft creator is not configured").
		Build()
}

func (a *PrepareReplyAction) Execute() ActionResult {
	ctx := context.Background()
	start := a.now()
	draftID, err := a.Drafts.CreateDraft(ctx, a.MessageID, a.Body)
	if err != nil {
		return ActionResult{Success: false, Duration: a.now().Sub(start), Error: err, ExecutedAt: a.now()}
	}
	return ActionResult{Success: true, Duration: a.now().Sub(start), Output: fmt.Sprintf("draft %s created", draftID), Metadata: map[string]any{"draft_id": draftID}, ExecutedAt: a.now()}
}

func (a *PrepareReplyAction) CanUndo(result ActionResult) bool {
	_, ok := result.Metadata["draft_id"]
	return result.Success && ok
}

func (a *PrepareReplyAction) Undo(result ActionResult) bool {
	draftID, _ := result.Metadata["draft_id"].(string)
	if draftID == "" {
		return false
	}
	return a.Drafts.DiscardDraft(context.Background(), draftID) == nil
}
