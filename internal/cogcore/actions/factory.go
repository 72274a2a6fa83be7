package actions

import (
	"manifold/internal/cogcore/event"
)

// AnalysisAction is the converged analysis's chosen verdict, the input to
// the factory's mapping table (spec.md §4.4).
type AnalysisAction string

const (
	AnalysisArchive   AnalysisAction = "archive"
	AnalysisDelete    AnalysisAction = "delete"
	AnalysisReference AnalysisAction = "reference"
	AnalysisTask      AnalysisAction = "task"
	AnalysisReview    AnalysisAction = "review"
	AnalysisSnooze    AnalysisAction = "snooze"
)

// AccountConfig carries the account-scoped configuration every action
// needs to validate (folders, etc). Credentials themselves are resolved
// lazily at execute time via SecretStore, never stored here.
type AccountConfig struct {
	AccountID        string
	ArchiveFolder    string
	TrashFolder      string
	ReferenceFolder  string
	DefaultProject   string
	PermanentDelete  bool
}

// Clients bundles the external collaborators a factory-produced action may
// need; unused fields for a given analysis action are simply nil.
type Clients struct {
	Mail  MailClient
	Tasks TaskManager
}

// Factory is a pure mapping from (converged analysis, event, account
// config) to a list of actions. It holds no state of its own beyond the
// clients/config it was constructed with.
type Factory struct {
	Account AccountConfig
	Clients Clients
}

func New(account AccountConfig, clients Clients) *Factory {
	return &Factory{Account: account, Clients: clients}
}

// Build maps an analysis verdict plus its driving event to the actions
// spec.md §4.4's table specifies. No branch reads snoozeAt.
func (f *Factory) Build(verdict AnalysisAction, ev *event.PerceivedEvent, snoozeAt int64) []Action {
	switch verdict {
	case AnalysisArchive:
		return []Action{NewArchiveEmailAction(ev.SourceID(), f.Account.ArchiveFolder, f.Clients.Mail)}

	case AnalysisDelete:
		return []Action{NewDeleteEmailAction(ev.SourceID(), f.Account.TrashFolder, f.Account.PermanentDelete, f.Clients.Mail)}

	case AnalysisReference:
		return []Action{NewMoveEmailAction(ev.SourceID(), f.Account.ReferenceFolder, f.Clients.Mail)}

	case AnalysisTask:
		taskName := ev.Title()
		create := NewCreateTaskAction(taskName, ev.Content(), f.Account.DefaultProject, ev.Topics(), 0, 0, false, f.Clients.Tasks)
		archive := NewArchiveEmailAction(ev.SourceID(), f.Account.ArchiveFolder, f.Clients.Mail)
		archive.Deps = []string{create.ActionID()}
		return []Action{create, archive}

	case AnalysisReview:
		// No actions: the event surfaces to the review queue instead.
		return nil

	case AnalysisSnooze:
		// No actions: like review, the event surfaces to the queue. snoozeAt
		// is not read here, so no scheduled time is attached to it.
		return nil

	default:
		return nil
	}
}
