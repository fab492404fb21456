package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const editorStateFileName = "editor_state.json"

// EditorState remembers where the interactive editor was left, per company,
// so the next launch reopens the same relation, side and pivot.
//
// It is best effort: callers tolerate missing or invalid data.
type EditorState struct {
	Version   int                   `json:"version"`
	Companies map[string]EditorView `json:"companies,omitempty"`
}

type EditorView struct {
	// Relation is a relation name, e.g. "user-project".
	Relation string `json:"relation,omitempty"`
	// Mode is the pivot kind, e.g. "project".
	Mode string `json:"mode,omitempty"`
	// PivotID is the last shown pivot.
	PivotID string `json:"pivotId,omitempty"`
}

func editorStatePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, editorStateFileName), nil
}

func LoadEditorState() (*EditorState, error) {
	path, err := editorStatePath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &EditorState{Version: 1}, nil
		}
		return nil, err
	}
	var st EditorState
	if err := json.Unmarshal(b, &st); err != nil {
		// Corrupt state is treated as missing.
		return &EditorState{Version: 1}, nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	return &st, nil
}

func SaveEditorState(st *EditorState) error {
	if st == nil {
		return nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	path, err := editorStatePath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(dir, editorStateFileName+".*.tmp", path, b, 0o644)
}

// View returns the remembered view for companyID, if any.
func (s *EditorState) View(companyID string) (EditorView, bool) {
	if s == nil || s.Companies == nil {
		return EditorView{}, false
	}
	v, ok := s.Companies[strings.TrimSpace(companyID)]
	return v, ok
}

func (s *EditorState) SetView(companyID string, v EditorView) {
	if s.Companies == nil {
		s.Companies = map[string]EditorView{}
	}
	s.Companies[strings.TrimSpace(companyID)] = v
}
