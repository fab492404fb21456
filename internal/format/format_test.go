package format

import (
	"bytes"
	"strings"
	"testing"
)

type member struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds,omitempty"`
}

func TestWriteEDN_KebabKeywords(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, map[string]any{"data": member{ID: "p1", Name: "proj1", MemberIDs: []string{"u1"}}}, "edn", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := strings.TrimSpace(buf.String())
	want := `{:data {:id "p1" :member-ids ["u1"] :name "proj1"}}`
	if got != want {
		t.Fatalf("edn mismatch:\n got: %s\nwant: %s", got, want)
	}
}

func TestWriteText_Table(t *testing.T) {
	var buf bytes.Buffer
	rows := []member{{ID: "u1", Name: "user1"}, {ID: "u2", Name: "user2"}}
	if err := Write(&buf, map[string]any{"data": rows}, "text", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "NAME") {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "u2") || !strings.Contains(lines[2], "user2") {
		t.Fatalf("unexpected row: %q", lines[2])
	}
}

func TestWriteText_Scalars(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, map[string]any{"data": []string{"a", "b"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "a\nb\n" {
		t.Fatalf("unexpected: %q", buf.String())
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, 1, "xml", false); err == nil {
		t.Fatalf("expected error")
	}
}
