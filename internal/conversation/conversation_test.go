package conversation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestClone_Independent(t *testing.T) {
	orig := Default()
	cp := orig.Clone()

	cp.Title = "changed"
	cp.Messages[0].Content = "changed"
	cp.Messages[0].StarterPrompts[0] = "changed"

	if orig.Title == "changed" {
		t.Error("title mutation leaked into original")
	}
	if orig.Messages[0].Content == "changed" {
		t.Error("message mutation leaked into original")
	}
	if orig.Messages[0].StarterPrompts[0] == "changed" {
		t.Error("starter prompt mutation leaked into original")
	}
}

func TestClone_PreservesEmptyPrompts(t *testing.T) {
	c := &Conversation{ID: "x", Messages: []Message{{ID: 1, Role: RoleAssistant, StarterPrompts: []string{}}}}
	cp := c.Clone()
	if cp.Messages[0].StarterPrompts == nil {
		t.Error("expected empty non-nil starter prompts to survive clone")
	}
}

func TestMessageMarshal_StarterPrompts(t *testing.T) {
	tests := []struct {
		name    string
		prompts []string
		want    string
		absent  bool
	}{
		{"nil omitted", nil, "", true},
		{"empty kept", []string{}, `"starterPrompts":[]`, false},
		{"values kept", []string{"a"}, `"starterPrompts":["a"]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(Message{ID: 1, Role: RoleAssistant, Content: "hi", StarterPrompts: tt.prompts})
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			s := string(data)
			if tt.absent && strings.Contains(s, "starterPrompts") {
				t.Errorf("expected starterPrompts omitted, got %s", s)
			}
			if !tt.absent && !strings.Contains(s, tt.want) {
				t.Errorf("expected %s in %s", tt.want, s)
			}
			if !strings.Contains(s, `"role":"assistant"`) {
				t.Errorf("expected role in output, got %s", s)
			}
		})
	}
}

func TestMessageByID(t *testing.T) {
	c := Default()
	m, ok := c.MessageByID(4)
	if !ok {
		t.Fatal("expected message 4")
	}
	if m.Role != RoleUser {
		t.Errorf("expected user role, got %s", m.Role)
	}
	if _, ok := c.MessageByID(404); ok {
		t.Error("expected no message 404")
	}
}

func TestCountByRole(t *testing.T) {
	u, a := Default().CountByRole()
	if u != 3 || a != 4 {
		t.Errorf("expected 3 user / 4 assistant, got %d / %d", u, a)
	}
}

func TestStore_ReplaceBumpsRevision(t *testing.T) {
	s := NewStore(Default())
	if s.Revision() != 1 {
		t.Fatalf("expected revision 1, got %d", s.Revision())
	}

	rev := s.Replace(&Conversation{ID: "c2", Title: "T", Messages: []Message{{ID: 1, Role: RoleUser}}})
	if rev != 2 {
		t.Errorf("expected revision 2, got %d", rev)
	}

	cur, gotRev, err := s.Current()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cur.ID != "c2" || gotRev != 2 {
		t.Errorf("expected c2@2, got %s@%d", cur.ID, gotRev)
	}
}

func TestStore_CurrentIsCopy(t *testing.T) {
	s := NewStore(Default())
	cur, _, _ := s.Current()
	cur.Messages[0].Content = "mutated"

	again, _, _ := s.Current()
	if again.Messages[0].Content == "mutated" {
		t.Error("store contents mutated through returned copy")
	}
}

func TestStore_Empty(t *testing.T) {
	s := NewStore(nil)
	if _, _, err := s.Current(); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}
