package actions

import (
	"context"
	"time"
)

// CalendarRespondAction responds to a meeting invitation. Irreversible in
// the sense that most calendar backends don't expose "un-respond"; modeled
// as not supporting undo.
type CalendarRespondAction struct {
	BaseAction
	EventID  string
	Response string // "accept" | "decline" | "tentative"
	Client   CalendarClient
	now      func() time.Time
}

func NewCalendarRespondAction(eventID, response string, client CalendarClient) *CalendarRespondAction {
	return &CalendarRespondAction{
		BaseAction: BaseAction{ID: sanitizeID("calendar_respond", eventID, response), Type: "calendar_respond", Duration: 2 * time.Second},
		EventID:    eventID,
		Response:   response,
		Client:     client,
		now:        time.Now,
	}
}

func (a *CalendarRespondAction) Validate() ValidationResult {
	return NewValidationBuilder().
		ErrorUnless(a.EventID != "", "event_id is required").
		ErrorUnless(a.Response == "accept" || a.Response == "decline" || a.Response == "tentative", "response must be accept, decline, or tentative").
		ErrorUnless(a.Client != nil, "calendar client is not configured").
		Build()
}

func (a *CalendarRespondAction) Execute() ActionResult {
	start := a.now()
	if err := a.Client.RespondToEvent(context.Background(), a.EventID, a.Response); err != nil {
		return ActionResult{Success: false, Duration: a.now().Sub(start), Error: err, ExecutedAt: a.now()}
	}
	return ActionResult{Success: true, Duration: a.now().Sub(start), ExecutedAt: a.now()}
}

func (a *CalendarRespondAction) CanUndo(ActionResult) bool { return false }
func (a *CalendarRespondAction) Undo(ActionResult) bool    { return false }

// BlockTimeAction creates a calendar hold. Undo deletes the created event.
type BlockTimeAction struct {
	BaseAction
	Title         string
	StartUnixSec  int64
	EndUnixSec    int64
	Client        CalendarClient
	now           func() time.Time
}

func NewBlockTimeAction(title string, start, end int64, client CalendarClient) *BlockTimeAction {
	return &BlockTimeAction{
		BaseAction:   BaseAction{ID: sanitizeID("block_time", title), Type: "block_time", Duration: 2 * time.Second},
		Title:        title,
		StartUnixSec: start,
		EndUnixSec:   end,
		Client:       client,
		now:          time.Now,
	}
}

func (a *BlockTimeAction) SupportsUndo() bool { return true }

func (a *BlockTimeAction) Validate() ValidationResult {
	return NewValidationBuilder().
		ErrorUnless(a.Title != "", "title is required").
		ErrorUnless(a.EndUnixSec > a.StartUnixSec, "end must be after start").
		ErrorUnless(a.Client != nil, "calendar client is not configured").
		Build()
}

func (a *BlockTimeAction) Execute() ActionResult {
	start := a.now()
	eventID, err := a.Client.CreateEvent(context.Background(), a.Title, a.StartUnixSec, a.EndUnixSec)
	if err != nil {
		return ActionResult{Success: false, Duration: a.now().Sub(start), Error: err, ExecutedAt: a.now()}
	}
	return ActionResult{Success: true, Duration: a.now().Sub(start), Metadata: map[string]any{"created_event_id": eventID}, ExecutedAt: a.now()}
}

func (a *BlockTimeAction) CanUndo(result ActionResult) bool {
	_, ok := result.Metadata["created_event_id"]
	return result.Success && ok
}

func (a *BlockTimeAction) Undo(result ActionResult) bool {
	eventID, _ := result.Metadata["created_event_id"].(string)
	if eventID == "" {
		return false
	}
	return a.Client.DeleteEvent(context.Background(), eventID) == nil
}

// CreateTaskFromEventAction creates a task manager entry from a calendar
// event. Shares undo semantics with CreateTaskAction (see task.go).
type CreateTaskFromEventAction struct {
	*CreateTaskAction
}

func NewCreateTaskFromEventAction(name, note, project string, tasks TaskManager) *CreateTaskFromEventAction {
	a := NewCreateTaskAction(name, note, project, nil, 0, 0, false, tasks)
	a.BaseAction.ID = sanitizeID("create_task_from_event", name)
	a.BaseAction.Type = "create_task_from_event"
	return &CreateTaskFromEventAction{CreateTaskAction: a}
}
