package shaping

import (
	"testing"

	"github.com/go-text/typesetting/language"
)

func TestIsSimpleRune(t *testing.T) {
	tests := []struct {
		name string
		r    rune
		want bool
	}{
		{"latin letter", 'A', true},
		{"digit", '7', true},
		{"space", ' ', true},
		{"cyrillic", 'Ж', true},
		{"han", '中', true},
		{"control", '\x1b', false},
		{"combining acute", '́', false},
		{"zero width joiner", '‍', false},
		{"arabic letter", 'ا', false},
		{"devanagari", 'क', false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSimpleRune(tt.r); got != tt.want {
				t.Errorf("isSimpleRune(%q) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}

func TestAnalyzeScript_SingleRun(t *testing.T) {
	s := NewGoTextShaper(NewFaceArena())
	text := []rune("Hello, world")
	runs, err := s.AnalyzeScript(text, 0, len(text))
	if err != nil {
		t.Fatalf("AnalyzeScript: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.Position != 0 || r.Length != len(text) {
		t.Errorf("run = [%d,%d), want [0,%d)", r.Position, r.Position+r.Length, len(text))
	}
	if r.Script != language.Latin {
		t.Errorf("script = %v, want Latin", r.Script)
	}
	if r.RTL {
		t.Error("latin run should not be RTL")
	}
}

func TestAnalyzeScript_SplitsOnScriptChange(t *testing.T) {
	s := NewGoTextShaper(NewFaceArena())
	text := []rune("ab中文")
	runs, err := s.AnalyzeScript(text, 0, len(text))
	if err != nil {
		t.Fatalf("AnalyzeScript: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Position != 0 || runs[0].Length != 2 || runs[0].Script != language.Latin {
		t.Errorf("run 0 = %+v, want Latin [0,2)", runs[0])
	}
	if runs[1].Position != 2 || runs[1].Length != 2 || runs[1].Script != language.Han {
		t.Errorf("run 1 = %+v, want Han [2,4)", runs[1])
	}
}

func TestAnalyzeScript_RTL(t *testing.T) {
	s := NewGoTextShaper(NewFaceArena())
	text := []rune("שלום") // Hebrew
	runs, err := s.AnalyzeScript(text, 0, len(text))
	if err != nil {
		t.Fatalf("AnalyzeScript: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if !runs[0].RTL {
		t.Error("hebrew run should be RTL")
	}
}

func TestAnalyzeScript_Window(t *testing.T) {
	s := NewGoTextShaper(NewFaceArena())
	text := []rune("xx中文xx")
	runs, err := s.AnalyzeScript(text, 2, 2)
	if err != nil {
		t.Fatalf("AnalyzeScript: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].Position != 2 || runs[0].Length != 2 {
		t.Errorf("run = [%d,%d), want [2,4)", runs[0].Position, runs[0].Position+runs[0].Length)
	}
}

func TestAnalyzeScript_EmptyWindow(t *testing.T) {
	s := NewGoTextShaper(NewFaceArena())
	runs, err := s.AnalyzeScript([]rune("abc"), 1, 0)
	if err != nil {
		t.Fatalf("AnalyzeScript: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("got %d runs, want 0", len(runs))
	}
}
