package actions

import "context"

// The interfaces below model the external collaborators named only by
// interface in spec.md §6: source-specific I/O clients, the credential
// store, the note manager, and the task manager. They are out of scope for
// implementation (owned by account-specific integrations outside this
// module) but concrete actions depend on them to validate/execute.

// MailClient applies mail side-effects: move to folder (archive/delete/
// reference), and is consulted lazily at execute time, never cached on the
// action instance.
type MailClient interface {
	MoveMessage(ctx context.Context, messageID, folder string) error
	GetMessageFolder(ctx context.Context, messageID string) (string, error)
	SendReply(ctx context.Context, inReplyTo, body string) (messageID string, err error)
	DeleteMessage(ctx context.Context, messageID string, permanent bool) error
}

// CalendarClient applies calendar side-effects.
type CalendarClient interface {
	RespondToEvent(ctx context.Context, eventID string, response string) error
	CreateEvent(ctx context.Context, title string, startUnixSec, endUnixSec int64) (eventID string, err error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// ChatClient applies chat side-effects.
type ChatClient interface {
	SendMessage(ctx context.Context, channelID, text string) (messageID string, err error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	FlagMessage(ctx context.Context, channelID, messageID string) error
}

// SecretStore resolves account-scoped credentials lazily at execute time.
// Retrieval order (platform-keychain -> environment -> configured default
// -> nil) is the implementation's responsibility, not the action's.
type SecretStore interface {
	GetSecret(ctx context.Context, key string) (string, bool)
}

// NoteManager is consulted by note actions and the knowledge updater (C9).
type NoteManager interface {
	CreateNote(ctx context.Context, title, content string, tags []string, entities map[string]any, metadata map[string]any) (noteID string, err error)
	UpdateNote(ctx context.Context, id string, changes map[string]any) error
	GetNote(ctx context.Context, id string) (map[string]any, bool, error)
	DeleteNote(ctx context.Context, id string) error
}

// TaskManager is consulted by task actions.
type TaskManager interface {
	AddTask(ctx context.Context, name, note, project string, tags []string, dueUnixSec int64, estimatedMinutes int, flagged bool) (taskID string, err error)
	EditTask(ctx context.Context, idOrName string, changes map[string]any) error
	RemoveTask(ctx context.Context, idOrName string) error
	GetTaskByID(ctx context.Context, id string) (map[string]any, bool, error)
	GetTaskByName(ctx context.Context, name string) (map[string]any, bool, error)
}
