package model

import "time"

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Poll is the unit of a classroom question round. Option order is fixed at
// creation time and selectedOption indexes refer into it.
type Poll struct {
	ID        string     `json:"id" rethinkdb:"id,omitempty"`
	Question  string     `json:"question" rethinkdb:"question"`
	Options   []Option   `json:"options" rethinkdb:"options"`
	IsActive  bool       `json:"isActive" rethinkdb:"isActive"`
	CreatedAt time.Time  `json:"createdAt" rethinkdb:"createdAt"`
	StartTime time.Time  `json:"startTime" rethinkdb:"startTime"`
	Timer     int        `json:"timer" rethinkdb:"timer"`
	Responses []Response `json:"responses" rethinkdb:"responses"`
}

type Option struct {
	Text  string `json:"text" rethinkdb:"text"`
	Votes int    `json:"votes" rethinkdb:"votes"`
}

type Response struct {
	StudentName    string    `json:"studentName" rethinkdb:"studentName"`
	SelectedOption int       `json:"selectedOption" rethinkdb:"selectedOption"`
	Timestamp      time.Time `json:"timestamp" rethinkdb:"timestamp"`
}

type User struct {
	ID       string `json:"id" rethinkdb:"id,omitempty"`
	Name     string `json:"name" rethinkdb:"name"`
	Email    string `json:"email" rethinkdb:"email"`
	Password string `json:"password" rethinkdb:"password"`
}

// ResponseFor returns the recorded response for a student name, or nil.
func (p *Poll) ResponseFor(studentName string) *Response {
	for i := range p.Responses {
		if p.Responses[i].StudentName == studentName {
			return &p.Responses[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing shared slices.
func (p *Poll) Clone() *Poll {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Options = make([]Option, len(p.Options))
	copy(cp.Options, p.Options)
	cp.Responses = make([]Response, len(p.Responses))
	copy(cp.Responses, p.Responses)
	return &cp
}
