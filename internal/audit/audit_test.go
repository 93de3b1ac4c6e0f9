package audit

import (
	"context"
	"testing"

	"docsign/internal/apperr"
	"docsign/internal/models"
	"docsign/internal/testutil"
)

func TestDiffCreationEmitsEveryKey(t *testing.T) {
	changes := Diff(nil, map[string]any{"b": 2, "a": 1})
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	for _, c := range changes {
		if c.OldValue != nil {
			t.Errorf("%s: old value = %v, want nil", c.Field, c.OldValue)
		}
	}
	if changes[0].Field != "a" || changes[1].Field != "b" {
		t.Errorf("changes not sorted: %+v", changes)
	}
}

func TestDiffIdenticalIsEmpty(t *testing.T) {
	x := map[string]any{"a": 1, "nested": map[string]any{"k": []any{1, "two"}}}
	if changes := Diff(x, x); len(changes) != 0 {
		t.Errorf("expected no changes, got %+v", changes)
	}
	if changes := Diff(nil, nil); len(changes) != 0 {
		t.Errorf("expected no changes for nil snapshots, got %+v", changes)
	}
}

func TestDiffDetectsChangesAndRemovals(t *testing.T) {
	before := map[string]any{"title": "Proposta", "status": "draft", "removed": true, "n": 1}
	after := map[string]any{"title": "Proposta", "status": "finalized", "added": "x", "n": 1.0}
	changes := Diff(before, after)

	want := []Change{
		{Field: "added", OldValue: nil, NewValue: "x"},
		{Field: "removed", OldValue: true, NewValue: nil},
		{Field: "status", OldValue: "draft", NewValue: "finalized"},
	}
	if len(changes) != len(want) {
		t.Fatalf("got %+v", changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, changes[i], want[i])
		}
	}
}

func TestSnapshotUsesJSONNames(t *testing.T) {
	snap, err := Snapshot(struct {
		Title string `json:"title"`
		Skip  string `json:"-"`
	}{Title: "Contrato", Skip: "x"})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap["title"] != "Contrato" || len(snap) != 1 {
		t.Errorf("snapshot = %v", snap)
	}
	var nilDoc *models.GeneratedDocument
	if snap, err := Snapshot(nilDoc); err != nil || snap != nil {
		t.Errorf("nil pointer snapshot = %v, %v", snap, err)
	}
}

func TestRecorderHistory(t *testing.T) {
	db := testutil.DB(t)
	rec := NewRecorder(db, testutil.Logger(t))
	ctx := context.Background()

	err := rec.Record(ctx, nil, Event{
		Actor: "ana", Action: models.ActionCreate, EntityType: models.EntityTemplate, EntityID: "t1",
		After: map[string]any{"name": "Orçamento", "version": 1},
	})
	if err != nil {
		t.Fatalf("Record create: %v", err)
	}
	err = db.Transaction(ctx, func(tx *models.DB) error {
		return rec.Record(ctx, tx, Event{
			Actor: "ana", Action: models.ActionUpdate, EntityType: models.EntityTemplate, EntityID: "t1",
			Before: map[string]any{"name": "Orçamento", "version": 1},
			After:  map[string]any{"name": "Orçamento 2024", "version": 2},
		})
	})
	if err != nil {
		t.Fatalf("Record update: %v", err)
	}

	history, err := rec.History(ctx, models.EntityTemplate, "t1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].Action != models.ActionCreate || len(history[0].Changes) != 2 {
		t.Errorf("create entry = %+v", history[0])
	}
	if history[1].Label != "Atualização" || len(history[1].Changes) != 2 {
		t.Errorf("update entry = %+v", history[1])
	}
}

func TestRecorderRejectsUnknownAction(t *testing.T) {
	rec := NewRecorder(testutil.DB(t), testutil.Logger(t))
	err := rec.Record(context.Background(), nil, Event{Action: "archive", EntityType: "x", EntityID: "1"})
	if !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
