package store

import (
	"context"
	"testing"

	"github.com/dukerupert/agenda/internal/model"
)

func TestTaskCRUD(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	uid := createTestUser(t, db, "alice")

	task, err := ts.Create(uid, "Pay rent", "2024-05-01", "09:00", "09:30", "high")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Completed {
		t.Error("new task should not be completed")
	}

	toggled, err := ts.ToggleCompleted(task.ID, uid)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !toggled.Completed {
		t.Error("expected completed after toggle")
	}

	updated, err := ts.Update(task.ID, uid, "Pay rent now", "2024-05-02", "10:00", "", "low", false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Description != "Pay rent now" || updated.DueDate != "2024-05-02" || updated.Completed {
		t.Errorf("updated = %+v", updated)
	}

	other := createTestUser(t, db, "bob")
	got, err := ts.GetByID(task.ID, other)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got != nil {
		t.Error("task should not be visible to another owner")
	}

	if err := ts.Delete(task.ID, uid); err != nil {
		t.Fatalf("delete: %v", err)
	}
	tasks, _ := ts.List(uid)
	if len(tasks) != 0 {
		t.Errorf("len(tasks) = %d, want 0", len(tasks))
	}
}

func TestTaskListPendingBetween(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	uid := createTestUser(t, db, "alice")

	ts.Create(uid, "before", "2024-04-29", "09:00", "", "")
	ts.Create(uid, "yesterday", "2024-04-30", "09:00", "", "")
	ts.Create(uid, "today", "2024-05-01", "09:00", "", "")
	done, _ := ts.Create(uid, "done", "2024-05-01", "10:00", "", "")
	ts.ToggleCompleted(done.ID, uid)
	ts.Create(uid, "tomorrow", "2024-05-02", "09:00", "", "")
	ts.Create(uid, "after", "2024-05-03", "09:00", "", "")

	tasks, err := ts.ListPendingBetween(context.Background(), uid, "2024-04-30", "2024-05-02")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	var names []string
	for _, task := range tasks {
		names = append(names, task.Description)
	}
	want := []string{"yesterday", "today", "tomorrow"}
	if len(names) != len(want) {
		t.Fatalf("tasks = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tasks[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRoutineDaysAndActive(t *testing.T) {
	db := setupTestDB(t)
	rs := NewRoutineStore(db)
	uid := createTestUser(t, db, "alice")

	r, err := rs.Create(uid, model.Routine{
		Description: "Gym",
		StartDate:   "2024-01-01",
		StartTime:   "18:00",
		DaysOfWeek:  []string{"Lunes", " Miércoles ", ""},
		Active:      true,
	})
	if err != nil {
		t.Fatalf("create routine: %v", err)
	}
	if len(r.DaysOfWeek) != 2 || r.DaysOfWeek[1] != "Miércoles" {
		t.Errorf("days = %q, want [Lunes Miércoles]", r.DaysOfWeek)
	}

	rs.Create(uid, model.Routine{Description: "Paused", StartTime: "07:00"})

	active, err := rs.ListActive(context.Background(), uid)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].Description != "Gym" {
		t.Errorf("active = %+v, want only Gym", active)
	}
}

func TestAppointmentListBetween(t *testing.T) {
	db := setupTestDB(t)
	as := NewAppointmentStore(db)
	uid := createTestUser(t, db, "alice")

	as.Create(uid, "Dentist", "2024-05-01", "10:30", "11:00", "Clinic")
	as.Create(uid, "Old", "2024-04-01", "10:30", "11:00", "")

	appts, err := as.ListBetween(context.Background(), uid, "2024-04-30", "2024-05-02")
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	if len(appts) != 1 || appts[0].Location != "Clinic" {
		t.Errorf("appointments = %+v, want only Dentist", appts)
	}
}

func TestActivityList(t *testing.T) {
	db := setupTestDB(t)
	uid := createTestUser(t, db, "alice")
	ts := NewTaskStore(db)
	ts.Create(uid, "Buy milk", "2024-05-01", "18:00:00", "", "")
	done, _ := ts.Create(uid, "Call mum", "2024-05-01", "09:00", "", "")
	ts.ToggleCompleted(done.ID, uid)
	NewAppointmentStore(db).Create(uid, "Dentist", "2024-05-03", "10:30", "", "")
	NewRoutineStore(db).Create(uid, model.Routine{Description: "Stretch", StartTime: "07:00", Active: true})

	as := NewActivityStore(db)
	ctx := context.Background()

	all, err := as.List(ctx, uid, ActivityFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"Dentist", "Call mum", "Buy milk", "Stretch"}
	if len(all) != len(want) {
		t.Fatalf("len = %d, want %d", len(all), len(want))
	}
	for i, w := range want {
		if all[i].Description != w {
			t.Errorf("all[%d] = %q, want %q", i, all[i].Description, w)
		}
	}
	if all[2].StartTime != "18:00" {
		t.Errorf("start time = %q, want HH:MM", all[2].StartTime)
	}

	completed, _ := as.List(ctx, uid, ActivityFilter{Status: "completed"})
	if len(completed) != 1 || completed[0].Description != "Call mum" {
		t.Errorf("completed = %+v", completed)
	}

	ranged, _ := as.List(ctx, uid, ActivityFilter{From: "2024-05-02"})
	if len(ranged) != 2 {
		t.Errorf("ranged len = %d, want 2 (Dentist and undated routine)", len(ranged))
	}

	byKind, _ := as.List(ctx, uid, ActivityFilter{Kind: "appointment", Query: "dent"})
	if len(byKind) != 1 || byKind[0].Kind != model.ActivityAppointment {
		t.Errorf("byKind = %+v", byKind)
	}
}
