package schedule

import (
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/RidhwanAhamed/aqademiq-sync/core"
)

// Kind discriminates the three local entity types a calendar event can map to.
type Kind string

const (
	KindScheduleBlock Kind = "schedule_block"
	KindAssignment    Kind = "assignment"
	KindExam          Kind = "exam"
)

// Recurrence descriptors for schedule blocks.
const (
	RecurrenceNone     = "none"
	RecurrenceWeekly   = "weekly"
	RecurrenceBiweekly = "biweekly"
)

// classifyRule is one ordered title-classification rule.
type classifyRule struct {
	keywords []string
	kind     Kind
}

// classifyRules are applied in order; first match wins.
var classifyRules = []classifyRule{
	{keywords: []string{"exam", "test"}, kind: KindExam},
	{keywords: []string{"assignment", "homework"}, kind: KindAssignment},
}

// ClassifyTitle decides which local entity kind an imported event title maps
// to: a case-insensitive substring match over an ordered rule list, falling
// back to a schedule block.
func ClassifyTitle(title string) Kind {
	lower := strings.ToLower(title)
	for _, rule := range classifyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.kind
			}
		}
	}
	return KindScheduleBlock
}

// ScheduleBlock is a recurring or dated block on the student's timetable.
// StartTime/EndTime hold local wall-clock time; the owning user's profile
// timezone gives them meaning.
type ScheduleBlock struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Location     string    `json:"location,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	DayOfWeek    int       `json:"day_of_week"` // time.Weekday numbering
	SpecificDate null.Time `json:"specific_date,omitempty"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Recurrence   string    `json:"recurrence"`
	Color        string    `json:"color,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Assignment is a piece of work with a due timestamp (wall-clock).
type Assignment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	DueAt     time.Time `json:"due_at"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Exam has a date plus an estimated duration.
type Exam struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title"`
	Location        string    `json:"location,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	ExamDate        time.Time `json:"exam_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Color           string    `json:"color,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewScheduleBlock contains information needed to create a ScheduleBlock.
type NewScheduleBlock struct {
	Title        string    `json:"title" validate:"required"`
	Location     string    `json:"location"`
	Notes        string    `json:"notes"`
	DayOfWeek    int       `json:"day_of_week" validate:"min=0,max=6"`
	SpecificDate null.Time `json:"specific_date"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Recurrence   string    `json:"recurrence" validate:"omitempty,oneof=none weekly biweekly"`
	Color        string    `json:"color"`
}

func (nb *NewScheduleBlock) Validate(validate *validator.Validate, _ ut.Translator) error {
	nb.Title = core.CleanString(nb.Title)
	if nb.Recurrence == "" {
		nb.Recurrence = RecurrenceNone
	}
	return validate.Struct(nb)
}

// NewAssignment contains information needed to create an Assignment.
type NewAssignment struct {
	Title string    `json:"title" validate:"required"`
	Notes string    `json:"notes"`
	DueAt time.Time `json:"due_at" validate:"required"`
	Color string    `json:"color"`
}

func (na *NewAssignment) Validate(validate *validator.Validate, _ ut.Translator) error {
	na.Title = core.CleanString(na.Title)
	return validate.Struct(na)
}

// NewExam contains information needed to create an Exam.
type NewExam struct {
	Title           string    `json:"title" validate:"required"`
	Location        string    `json:"location"`
	Notes           string    `json:"notes"`
	ExamDate        time.Time `json:"exam_date" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,min=1"`
	Color           string    `json:"color"`
}

func (ne *NewExam) Validate(validate *validator.Validate, _ ut.Translator) error {
	ne.Title = core.CleanString(ne.Title)
	if ne.DurationMinutes == 0 {
		ne.DurationMinutes = 120
	}
	return validate.Struct(ne)
}
