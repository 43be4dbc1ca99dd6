// file: internals/features/sync/service/event_processor.go
package service

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	rosterModel "sekolahsync_backend/internals/features/roster/model"
	"sekolahsync_backend/internals/features/sis"
)

/* =========================================================
   EVENT PROCESSOR (incremental sync)
   Cursor forward-only per tenant. Event diasumsikan urut
   kronologis dari upstream, tidak di-sort ulang. Satu event
   rusak tidak membatalkan batch — di-log dan lanjut.
========================================================= */

const eventBatchLimit = 1000

/* ---------------------------------------------------------
   Tagged-variant classification: payload dinamis upstream
   dipetakan dulu ke {student|teacher|section|term|skipped}
   sebelum masuk handler typed.
--------------------------------------------------------- */

type eventKind int

const (
	eventSkipped eventKind = iota
	eventStudent
	eventTeacher
	eventSection
	eventTerm
)

type classifiedEvent struct {
	Kind   eventKind
	Action string // created|updated|deleted
	ID     string // external id object

	Student sis.Student
	Teacher sis.Teacher
	Section sis.Section
	Term    sis.Term
}

type userEventPayload struct {
	Object struct {
		ID        string `json:"id"`
		SchoolID  string `json:"school"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Roles     struct {
			Student *struct {
				Grade         string `json:"grade"`
				StudentNumber string `json:"student_number"`
			} `json:"student"`
			Teacher *struct {
				Title string `json:"title"`
			} `json:"teacher"`
		} `json:"roles"`
	} `json:"object"`
}

func classifyEvent(ev sis.Event) classifiedEvent {
	object, action, ok := strings.Cut(ev.Type, ".")
	if !ok || len(ev.Data) == 0 {
		return classifiedEvent{Kind: eventSkipped}
	}
	switch action {
	case "created", "updated", "deleted":
	default:
		return classifiedEvent{Kind: eventSkipped}
	}

	switch object {
	case "users":
		var p userEventPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.Object.ID == "" {
			return classifiedEvent{Kind: eventSkipped}
		}
		// role menentukan student vs teacher
		switch {
		case p.Object.Roles.Student != nil:
			return classifiedEvent{
				Kind: eventStudent, Action: action, ID: p.Object.ID,
				Student: sis.Student{
					ID:            p.Object.ID,
					SchoolID:      p.Object.SchoolID,
					FirstName:     p.Object.FirstName,
					LastName:      p.Object.LastName,
					Email:         p.Object.Email,
					Grade:         p.Object.Roles.Student.Grade,
					StudentNumber: p.Object.Roles.Student.StudentNumber,
				},
			}
		case p.Object.Roles.Teacher != nil:
			return classifiedEvent{
				Kind: eventTeacher, Action: action, ID: p.Object.ID,
				Teacher: sis.Teacher{
					ID:        p.Object.ID,
					SchoolID:  p.Object.SchoolID,
					FirstName: p.Object.FirstName,
					LastName:  p.Object.LastName,
					Email:     p.Object.Email,
					Title:     p.Object.Roles.Teacher.Title,
				},
			}
		default:
			return classifiedEvent{Kind: eventSkipped}
		}

	case "sections":
		var p struct {
			Object sis.Section `json:"object"`
		}
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.Object.ID == "" {
			return classifiedEvent{Kind: eventSkipped}
		}
		return classifiedEvent{Kind: eventSection, Action: action, ID: p.Object.ID, Section: p.Object}

	case "terms":
		var p struct {
			Object sis.Term `json:"object"`
		}
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.Object.ID == "" {
			return classifiedEvent{Kind: eventSkipped}
		}
		return classifiedEvent{Kind: eventTerm, Action: action, ID: p.Object.ID, Term: p.Object}

	default:
		// district-level (districts, courses, schools) dan tipe asing: skip
		return classifiedEvent{Kind: eventSkipped}
	}
}

/* ---------------------------------------------------------
   Processor
--------------------------------------------------------- */

type EventsSummary struct {
	TotalEventsProcessed int `json:"total_events_processed"`

	StudentCreated int `json:"student_created"`
	StudentUpdated int `json:"student_updated"`
	StudentDeleted int `json:"student_deleted"`
	TeacherCreated int `json:"teacher_created"`
	TeacherUpdated int `json:"teacher_updated"`
	TeacherDeleted int `json:"teacher_deleted"`
	SectionCreated int `json:"section_created"`
	SectionUpdated int `json:"section_updated"`
	SectionDeleted int `json:"section_deleted"`
	TermCreated    int `json:"term_created"`
	TermUpdated    int `json:"term_updated"`
	TermDeleted    int `json:"term_deleted"`

	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`

	LastEventID string `json:"last_event_id,omitempty"`
}

func (s EventsSummary) Counts() EntityCounts {
	return EntityCounts{
		Processed: s.TotalEventsProcessed,
		Updated: s.StudentCreated + s.StudentUpdated + s.TeacherCreated + s.TeacherUpdated +
			s.SectionCreated + s.SectionUpdated + s.TermCreated + s.TermUpdated,
		Failed:  s.Failed,
		Deleted: s.StudentDeleted + s.TeacherDeleted + s.SectionDeleted + s.TermDeleted,
	}
}

type EventProcessor struct {
	api      sis.RosterAPI
	students *StudentHandler
	teachers *TeacherHandler
	sections *SectionHandler
	terms    *TermHandler
}

func NewEventProcessor(api sis.RosterAPI, students *StudentHandler, teachers *TeacherHandler,
	sections *SectionHandler, terms *TermHandler) *EventProcessor {
	return &EventProcessor{api: api, students: students, teachers: teachers, sections: sections, terms: terms}
}

// ProcessSince tarik event sejak cursor (tenant-filtered) dan route satu
// per satu. Cursor baru = id event terakhir di batch.
func (p *EventProcessor) ProcessSince(sc *SyncContext, syncID uuid.UUID, cursor string) (EventsSummary, error) {
	summary := EventsSummary{LastEventID: cursor}

	events, err := p.api.ListEvents(sc.Ctx, cursor, sc.School.SchoolExternalID, eventBatchLimit)
	if err != nil {
		return summary, fmt.Errorf("fetch events: %w", err)
	}

	for _, ev := range events {
		if err := sc.Canceled(); err != nil {
			return summary, err
		}
		if err := p.processOne(sc, syncID, ev, &summary); err != nil {
			// satu event rusak tidak menggagalkan batch
			summary.Failed++
			log.Printf("[ERROR] event %s (%s): %v", ev.ID, ev.Type, err)
		}
		summary.TotalEventsProcessed++
		summary.LastEventID = ev.ID
	}

	return summary, nil
}

func (p *EventProcessor) processOne(sc *SyncContext, syncID uuid.UUID, ev sis.Event, summary *EventsSummary) error {
	ce := classifyEvent(ev)

	switch ce.Kind {
	case eventStudent:
		switch ce.Action {
		case "deleted":
			if _, err := p.students.HandleDelete(sc, ce.ID); err != nil {
				return err
			}
			summary.StudentDeleted++
		case "created":
			if _, err := p.students.Upsert(sc, ce.Student); err != nil {
				return err
			}
			summary.StudentCreated++
		default:
			if _, err := p.students.Upsert(sc, ce.Student); err != nil {
				return err
			}
			summary.StudentUpdated++
		}

	case eventTeacher:
		switch ce.Action {
		case "deleted":
			if _, err := p.teachers.HandleDelete(sc, ce.ID); err != nil {
				return err
			}
			summary.TeacherDeleted++
		case "created":
			if _, err := p.teachers.Upsert(sc, ce.Teacher); err != nil {
				return err
			}
			summary.TeacherCreated++
		default:
			if _, err := p.teachers.Upsert(sc, ce.Teacher); err != nil {
				return err
			}
			summary.TeacherUpdated++
		}

	case eventSection:
		switch ce.Action {
		case "deleted":
			if _, err := p.sections.HandleDelete(sc, syncID, ce.ID); err != nil {
				return err
			}
			summary.SectionDeleted++
		default:
			// Upsert sekalian re-sync membership teacher/student:
			// payload section dan membership datang di satu event.
			if _, err := p.sections.Upsert(sc, ce.Section); err != nil {
				return err
			}
			if err := p.stampSectionEvent(sc, ce.ID); err != nil {
				return err
			}
			if ce.Action == "created" {
				summary.SectionCreated++
			} else {
				summary.SectionUpdated++
			}
		}

	case eventTerm:
		switch ce.Action {
		case "deleted":
			if _, err := p.terms.HandleDelete(sc, ce.ID); err != nil {
				return err
			}
			summary.TermDeleted++
		case "created":
			if _, err := p.terms.Upsert(sc, ce.Term); err != nil {
				return err
			}
			summary.TermCreated++
		default:
			if _, err := p.terms.Upsert(sc, ce.Term); err != nil {
				return err
			}
			summary.TermUpdated++
		}

	default:
		summary.Skipped++
	}

	return nil
}

func (p *EventProcessor) stampSectionEvent(sc *SyncContext, externalID string) error {
	return sc.Tenant.WithContext(sc.Ctx).
		Model(&rosterModel.SectionModel{}).
		Where("section_external_id = ?", externalID).
		UpdateColumn("section_last_event_received_at", sc.Now()).Error
}
