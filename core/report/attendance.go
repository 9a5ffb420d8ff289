// Package report builds the attendance report and renders it as a PDF document.
package report

import (
	"strings"
	"time"

	"github.com/trezcool/shule/core/school"
)

const (
	DefaultTitle = "Attendance Report"
	Unassigned   = "Unassigned"
)

// Filter restricts the records kept in a report. Zero fields match everything; the date range is inclusive.
type Filter struct {
	BranchID string      `query:"branch_id" form:"branch_id"`
	From     school.Date `query:"from" form:"from"`
	To       school.Date `query:"to" form:"to"`
}

func (f Filter) match(rec school.AttendanceRecord) bool {
	if f.BranchID != "" && !strings.EqualFold(f.BranchID, rec.BranchID.String) {
		return false
	}
	if !f.From.IsZero() && rec.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && rec.Date.After(f.To) {
		return false
	}
	return true
}

type Row struct {
	No        int
	Student   string
	Classroom string
	Date      school.Date
	Status    string
}

// Section holds the rows of one branch.
type Section struct {
	BranchID string
	Branch   string
	Rows     []Row
}

type Report struct {
	Title       string
	GeneratedOn school.Date
	Filter      Filter
	Sections    []Section
}

// BuildAttendance groups records by branch, in the order each branch first appears.
// Rows are numbered from 1 within each section.
func BuildAttendance(records []school.AttendanceRecord, filter Filter, now time.Time) Report {
	rep := Report{
		Title:       DefaultTitle,
		GeneratedOn: school.DateOf(now),
		Filter:      filter,
		Sections:    []Section{},
	}

	index := make(map[string]int)
	for _, rec := range records {
		if !filter.match(rec) {
			continue
		}

		key, name := branchOf(rec)
		i, ok := index[key]
		if !ok {
			i = len(rep.Sections)
			index[key] = i
			rep.Sections = append(rep.Sections, Section{BranchID: rec.BranchID.String, Branch: name})
		}

		sec := &rep.Sections[i]
		sec.Rows = append(sec.Rows, Row{
			No:        len(sec.Rows) + 1,
			Student:   rec.StudentName,
			Classroom: rec.Classroom.String,
			Date:      rec.Date,
			Status:    rec.Status,
		})
	}
	return rep
}

func branchOf(rec school.AttendanceRecord) (key, name string) {
	name = strings.TrimSpace(rec.BranchName.String)
	if name == "" {
		name = Unassigned
	}
	if rec.BranchID.Valid && rec.BranchID.String != "" {
		return rec.BranchID.String, name
	}
	if name == Unassigned {
		return "", name
	}
	return "name:" + name, name
}

// Len returns the number of rows across all sections.
func (r Report) Len() int {
	var n int
	for _, s := range r.Sections {
		n += len(s.Rows)
	}
	return n
}

func (r Report) Filename() string {
	return "attendance-report-" + r.GeneratedOn.String() + ".pdf"
}
