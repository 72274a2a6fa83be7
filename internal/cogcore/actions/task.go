package actions

import (
	"context"
	"time"
)

// CreateTaskAction creates a task-manager entry. The original
// implementation this module was distilled from never finished this
// action — it logged a warning and fell back to archiving instead. It is
// fully implemented here, including undo (removes the created task by id,
// captured in ActionResult.Metadata at execute time), per spec.md §4.4's
// "task -> CreateTask + ArchiveEmail" table entry.
type CreateTaskAction struct {
	BaseAction
	Name             string
	Note             string
	Project          string
	Tags             []string
	DueUnixSec       int64
	EstimatedMinutes int
	Flagged          bool
	Client           TaskManager
	now              func() time.Time
}

func NewCreateTaskAction(name, note, project string, tags []string, dueUnixSec int64, estimatedMinutes int, flagged bool, client TaskManager) *CreateTaskAction {
	return &CreateTaskAction{
		BaseAction:       BaseAction{ID: sanitizeID("create_task", name), Type: "create_task", Duration: 2 * time.Second},
		Name:             name,
		Note:             note,
		Project:          project,
		Tags:             tags,
		DueUnixSec:       dueUnixSec,
		EstimatedMinutes: estimatedMinutes,
		Flagged:          flagged,
		Client:           client,
		now:              time.Now,
	}
}

func (a *CreateTaskAction) SupportsUndo() bool { return true }

func (a *CreateTaskAction) Validate() ValidationResult {
	return NewValidationBuilder().
		ErrorUnless(a.Name != "", "name is required").
		ErrorUnless(a.Client != nil, "task manager is not configured").
		Build()
}

func (a *CreateTaskAction) Execute() ActionResult {
	start := a.now()
	taskID, err := a.Client.AddTask(context.Background(), a.Name, a.Note, a.Project, a.Tags, a.DueUnixSec, a.EstimatedMinutes, a.Flagged)
	if err != nil {
		return ActionResult{Success: false, Duration: a.now().Sub(start), Error: err, ExecutedAt: a.now()}
	}
	return ActionResult{Success: true, Duration: a.now().Sub(start), Metadata: map[string]any{"task_id": taskID}, ExecutedAt: a.now()}
}

func (a *CreateTaskAction) CanUndo(result ActionResult) bool {
	_, ok := result.Metadata["task_id"]
	return result.Success && ok
}

func (a *CreateTaskAction) Undo(result ActionResult) bool {
	taskID, _ := result.Metadata["task_id"].(string)
	if taskID == "" {
		return false
	}
	return a.Client.RemoveTask(context.Background(), taskID) == nil
}

// CompleteTaskAction marks a task complete. Undo reopens it by setting
// completed=false; the task's prior completion state is not captured.
type CompleteTaskAction struct {
	BaseAction
	TaskID string
	Client TaskManager
	now    func() time.Time
}

func NewCompleteTaskAction(taskID string, client TaskManager) *CompleteTaskAction {
	return &CompleteTaskAction{
		BaseAction: BaseAction{ID: sanitizeID("complete_task", taskID), Type: "complete_task", Duration: time.Second},
		TaskID:     taskID,
		Client:     client,
		now:        time.Now,
	}
}

func (a *CompleteTaskAction) SupportsUndo() bool { return true }

func (a *CompleteTaskAction) Validate() ValidationResult {
	return NewValidationBuilder().
		ErrorUnless(a.TaskID != "", "task_id is required").
		ErrorUnless(a.Client != nil, "task manager is not configured").
		Build()
}

func (a *CompleteTaskAction) Execute() ActionResult {
	start := a.now()
	if err := a.Client.EditTask(context.Background(), a.TaskID, map[string]any{"completed": true}); err != nil {
		return ActionResult{Success: false, Duration: a.now().Sub(start), Error: err, ExecutedAt: a.now()}
	}
	return ActionResult{Success: true, Duration: a.now().Sub(start), ExecutedAt: a.now()}
}

func (a *CompleteTaskAction) CanUndo(result ActionResult) bool { return result.Success }

func (a *CompleteTaskAction) Undo(ActionResult) bool {
	return a.Client.EditTask(context.Background(), a.TaskID, map[string]any{"completed": false}) == nil
}

// CreateNoteAction creates a note via the note manager.
type CreateNoteAction struct {
	BaseAction
	Title    string
	Content  string
	Tags     []string
	Entities map[string]any
	Client   NoteManager
	now      func() time.Time
}

func NewCreateNoteAction(title, content string, tags []string, entities map[string]any, client NoteManager) *CreateNoteAction {
	return &CreateNoteAction{
		BaseAction: BaseAction{ID: sanitizeID("create_note", title), Type: "create_note", Duration: time.Second},
		Title:      title,
		Content:    content,
		Tags:       tags,
		Entities:   entities,
		Client:     client,
		now:        time.Now,
	}
}

func (a *CreateNoteAction) SupportsUndo() bool { return true }

func (a *CreateNoteAction) Validate() ValidationResult {
	return NewValidationBuilder().
		ErrorUnless(a.Title != "", "title is required").
		ErrorUnless(a.Client != nil, "note manager is not configured").
		Build()
}

func (a *CreateNoteAction) Execute() ActionResult {
	start := a.now()
	noteID, err := a.Client.CreateNote(context.Background(), a.Title, a.Content, a.Tags, a.Entities, nil)
	if err != nil {
		return ActionResult{Success: false, Duration: a.now().Sub(start), Error: err, ExecutedAt: a.now()}
	}
	return ActionResult{Success: true, Duration: a.now().Sub(start), Metadata: map[string]any{"note_id": noteID}, ExecutedAt: a.now()}
}

func (a *CreateNoteAction) CanUndo(result ActionResult) bool {
	_, ok := result.Metadata["note_id"]
	return result.Success && ok
}

func (a *CreateNoteAction) Undo(result ActionResult) bool {
	noteID, _ := result.Metadata["note_id"].(string)
	if noteID == "" {
		return false
	}
	return a.Client.DeleteNote(context.Background(), noteID) == nil
}

// UpdateNoteAction updates an existing note. Undo restores the note's
// prior field values, captured at execute time.
type UpdateNoteAction struct {
	BaseAction
	NoteID  string
	Changes map[string]any
	Client  NoteManager
	now     func() time.Time
}

func NewUpdateNoteAction(noteID string, changes map[string]any, client NoteManager) *UpdateNoteAction {
	return &UpdateNoteAction{
		BaseAction: BaseAction{ID: sanitizeID("update_note", noteID), Type: "update_note", Duration: time.Second},
		NoteID:     noteID,
		Changes:    changes,
		Client:     client,
		now:        time.Now,
	}
}

func (a *UpdateNoteAction) SupportsUndo() bool { return true }

func (a *UpdateNoteAction) Validate() ValidationResult {
	return NewValidationBuilder().
		ErrorUnless(a.NoteID != "", "note_id is required").
		ErrorUnless(len(a.Changes) > 0, "changes cannot be empty").
		ErrorUnless(a.Client != nil, "note manager is not configured").
		Build()
}

func (a *UpdateNoteAction) Execute() ActionResult {
	start := a.now()
	prior, _, _ := a.Client.GetNote(context.Background(), a.NoteID)
	if err := a.Client.UpdateNote(context.Background(), a.NoteID, a.Changes); err != nil {
		return ActionResult{Success: false, Duration: a.now().Sub(start), Error: err, ExecutedAt: a.now()}
	}
	return ActionResult{Success: true, Duration: a.now().Sub(start), Metadata: map[string]any{"prior_values": prior}, ExecutedAt: a.now()}
}

func (a *UpdateNoteAction) CanUndo(result ActionResult) bool {
	_, ok := result.Metadata["prior_values"]
	return result.Success && ok
}

func (a *UpdateNoteAction) Undo(result ActionResult) bool {
	prior, ok := result.Metadata["prior_values"].(map[string]any)
	if !ok || prior == nil {
		return false
	}
	return a.Client.UpdateNote(context.Background(), a.NoteID, prior) == nil
}
