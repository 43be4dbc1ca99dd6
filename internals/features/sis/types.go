// file: internals/features/sis/types.go
package sis

import "encoding/json"

/* =========================================================
   Tipe data upstream SIS API (wire format)
========================================================= */

type Student struct {
	ID            string `json:"id"`
	SchoolID      string `json:"school"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email,omitempty"`
	Grade         string `json:"grade,omitempty"`
	StudentNumber string `json:"student_number,omitempty"`
}

type Teacher struct {
	ID        string `json:"id"`
	SchoolID  string `json:"school"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Title     string `json:"title,omitempty"`
}

type Section struct {
	ID         string   `json:"id"`
	SchoolID   string   `json:"school"`
	Name       string   `json:"name"`
	Period     string   `json:"period,omitempty"`
	Subject    string   `json:"subject,omitempty"`
	TermID     string   `json:"term_id,omitempty"`
	TeacherIDs []string `json:"teachers,omitempty"`
	StudentIDs []string `json:"students,omitempty"`
}

type Term struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate   string `json:"end_date,omitempty"`
}

type Admin struct {
	ID        string `json:"id"`
	SchoolID  string `json:"school"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
}

/* =========================================================
   Change events
   Type: "<object>.<action>", contoh "users.created",
   "sections.updated", "terms.deleted".
   Payload users membawa sub-object roles untuk membedakan
   student vs teacher.
========================================================= */

type Event struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	SchoolID string          `json:"school,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// envelope list endpoint: {"data":[...], "links":{"next":"..."}}
type listEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Links struct {
		Next string `json:"next,omitempty"`
	} `json:"links"`
}
