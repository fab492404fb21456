package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEditorState_RoundTripPerCompany(t *testing.T) {
	t.Setenv("EMCTL_CONFIG_DIR", t.TempDir())

	st, err := LoadEditorState()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := st.View("c1"); ok {
		t.Fatalf("expected no view before save")
	}

	st.SetView("c1", EditorView{Relation: "user-project", Mode: "user", PivotID: "u2"})
	st.SetView("c2", EditorView{Relation: "activity-project", Mode: "project"})
	if err := SaveEditorState(st); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadEditorState()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	v, ok := got.View("c1")
	if !ok || v.Relation != "user-project" || v.Mode != "user" || v.PivotID != "u2" {
		t.Fatalf("unexpected c1 view: %#v (ok=%v)", v, ok)
	}
	if v, _ := got.View("c2"); v.PivotID != "" || v.Relation != "activity-project" {
		t.Fatalf("unexpected c2 view: %#v", v)
	}
}

func TestEditorState_CorruptFileIsIgnored(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EMCTL_CONFIG_DIR", dir)
	if err := os.WriteFile(filepath.Join(dir, editorStateFileName), []byte("{nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	st, err := LoadEditorState()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.Version != 1 || len(st.Companies) != 0 {
		t.Fatalf("expected empty state, got %#v", st)
	}
}
