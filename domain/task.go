package domain

import "time"

// Category classifies a task into one of the fixed buckets users file
// tasks under.
type Category string

const (
	CategoryWork     Category = "Work"
	CategoryPersonal Category = "Personal"
	CategoryUrgent   Category = "Urgent"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryUrgent:
		return true
	}
	return false
}

// Priority ranks how pressing a task is.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a single unit of work in a user's ordered list. Order is a
// dense index scoped to the owner: after every successful mutation the
// orders of one owner's tasks are exactly 0..n-1.
type Task struct {
	ID          string    `json:"id"`
	Owner       string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    Category  `json:"category"`
	Priority    Priority  `json:"priority"`
	Completed   bool      `json:"completed"`
	DueDate     time.Time `json:"dueDate"`
	CreatedAt   time.Time `json:"createdAt"`
	Order       int       `json:"order"`
}

// Fields carries the client-supplied attributes of a new task. The
// server assigns ID, Owner, CreatedAt and Order.
type Fields struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    Category  `json:"category"`
	Priority    Priority  `json:"priority"`
	Completed   bool      `json:"completed"`
	DueDate     time.Time `json:"dueDate"`
}

// Normalize fills unset enum fields with their defaults and reports
// whether the remaining values are acceptable.
func (f *Fields) Normalize() bool {
	if f.Category == "" {
		f.Category = CategoryPersonal
	}
	if f.Priority == "" {
		f.Priority = PriorityMedium
	}
	return f.Category.Valid() && f.Priority.Valid()
}

// Patch is a partial task update. Identity fields (id, owner) and
// server-managed fields (createdAt, order) are deliberately not
// representable here, so a payload trying to set them is dropped on
// decode.
type Patch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Category    *Category  `json:"category,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// Apply copies the set fields of p onto t.
func (p Patch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
}

// OrderEntry is one element of a reorder batch: a task id paired with
// its desired position.
type OrderEntry struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}
