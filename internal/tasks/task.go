package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no task has the requested id.
	ErrNotFound = errors.New("todo not found")
	// ErrInvalidTask is returned for a malformed task or patch.
	ErrInvalidTask = errors.New("invalid todo")
	// ErrEmptyPatch is returned for an update that sets nothing.
	ErrEmptyPatch = errors.New("no data to update")
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusRunning, StatusCompleted}

// Valid returns true when s is supported.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted:
		return true
	}
	return false
}

// Priority ranks tasks.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every priority from low to high.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid returns true when p is supported.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// UnassignedPIC is the label for tasks without a person in charge.
const UnassignedPIC = "Unassigned"

// Task is an item of the CNC machine to-do list.
type Task struct {
	ID        int64     `json:"id"`
	UUID      string    `json:"uuid"`
	Task      string    `json:"task"`
	PIC       *string   `json:"pic"`
	Status    Status    `json:"status"`
	Priority  Priority  `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New builds a pending task. An empty priority defaults to medium and an
// empty pic leaves the task unassigned.
func New(text string, priority Priority, pic string, now time.Time) (Task, error) {
	if priority == "" {
		priority = PriorityMedium
	}
	t := Task{
		UUID:      uuid.NewString(),
		Task:      strings.TrimSpace(text),
		PIC:       normalizePIC(pic),
		Status:    StatusPending,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Validate checks task invariants.
func (t Task) Validate() error {
	if t.Task == "" {
		return fmt.Errorf("%w: task is required", ErrInvalidTask)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTask, t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, t.Priority)
	}
	return nil
}

// NullableString records whether a JSON key was present, including as null.
type NullableString struct {
	Set   bool
	Value string
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = ""
		return nil
	}
	return json.Unmarshal(data, &n.Value)
}

// Patch is a partial task update. A present but empty pic unassigns the task.
type Patch struct {
	Task     *string        `json:"task"`
	Status   *Status        `json:"status"`
	Priority *Priority      `json:"priority"`
	PIC      NullableString `json:"pic"`
}

// Empty reports whether the patch sets no field.
func (p Patch) Empty() bool {
	return p.Task == nil && p.Status == nil && p.Priority == nil && !p.PIC.Set
}

// Validate checks the patch is usable.
func (p Patch) Validate() error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	if p.Task != nil && strings.TrimSpace(*p.Task) == "" {
		return fmt.Errorf("%w: task must not be empty", ErrInvalidTask)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTask, *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, *p.Priority)
	}
	return nil
}

// Apply merges the patch into t.
func (p Patch) Apply(t Task) Task {
	if p.Task != nil {
		t.Task = strings.TrimSpace(*p.Task)
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.PIC.Set {
		t.PIC = normalizePIC(p.PIC.Value)
	}
	return t
}

func normalizePIC(pic string) *string {
	pic = strings.TrimSpace(pic)
	if pic == "" {
		return nil
	}
	return &pic
}

// Stats summarizes the to-do list for the dashboard.
type Stats struct {
	TotalTodos          int              `json:"totalTodos"`
	StatusStats         map[Status]int   `json:"statusStats"`
	PriorityStats       map[Priority]int `json:"priorityStats"`
	PICStats            map[string]int   `json:"picStats"`
	RunningTodos        []Task           `json:"runningTodos"`
	HighPriorityPending []Task           `json:"highPriorityPending"`
	UnassignedTodos     int              `json:"unassignedTodos"`
}

// Repository manages task persistence.
type Repository interface {
	List(ctx context.Context) ([]Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	Create(ctx context.Context, task Task) (Task, error)
	Update(ctx context.Context, id int64, patch Patch, at time.Time) (Task, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (Stats, error)
	// ByPIC lists tasks of one person, newest first. UnassignedKey selects
	// tasks without a pic.
	ByPIC(ctx context.Context, pic string) ([]Task, error)
	PICs(ctx context.Context) ([]string, error)
}

// UnassignedKey is the ByPIC argument selecting unassigned tasks.
const UnassignedKey = "unassigned"

// SampleTasks returns the starter list inserted by SeedSamples.
func SampleTasks(now time.Time) []Task {
	samples := []struct {
		task     string
		pic      string
		status   Status
		priority Priority
	}{
		{"Setup workpiece alignment", "John Smith", StatusCompleted, PriorityHigh},
		{"Load G-code program", "Maria Garcia", StatusRunning, PriorityHigh},
		{"Calibrate tool offset", "David Johnson", StatusPending, PriorityMedium},
		{"Check coolant level", "Sarah Wilson", StatusPending, PriorityLow},
	}
	out := make([]Task, 0, len(samples))
	for _, s := range samples {
		t, _ := New(s.task, s.priority, s.pic, now)
		t.Status = s.status
		out = append(out, t)
	}
	return out
}
