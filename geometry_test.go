package termatlas

import "testing"

func TestRect_Empty(t *testing.T) {
	if !(Rect{}).Empty() {
		t.Error("zero rect should be empty")
	}
	if !(Rect{Left: 5, Top: 0, Right: 5, Bottom: 10}).Empty() {
		t.Error("zero-width rect should be empty")
	}
	if (Rect{Left: 0, Top: 0, Right: 1, Bottom: 1}).Empty() {
		t.Error("unit rect should not be empty")
	}
}

func TestRect_Union(t *testing.T) {
	a := Rect{Left: 1, Top: 2, Right: 4, Bottom: 5}
	b := Rect{Left: 3, Top: 0, Right: 8, Bottom: 3}
	want := Rect{Left: 1, Top: 0, Right: 8, Bottom: 5}
	if got := a.Union(b); got != want {
		t.Errorf("Union = %+v, want %+v", got, want)
	}

	// Empty is the identity in either position.
	if got := (Rect{}).Union(a); got != a {
		t.Errorf("empty.Union = %+v, want %+v", got, a)
	}
	if got := a.Union(Rect{}); got != a {
		t.Errorf("Union(empty) = %+v, want %+v", got, a)
	}
}

func TestRect_Clamp(t *testing.T) {
	got := Rect{Left: -3, Top: -1, Right: 100, Bottom: 50}.Clamp(80, 24)
	want := Rect{Left: 0, Top: 0, Right: 80, Bottom: 24}
	if got != want {
		t.Errorf("Clamp = %+v, want %+v", got, want)
	}

	got = Rect{Left: 90, Top: 30, Right: 95, Bottom: 31}.Clamp(80, 24)
	if !got.Empty() {
		t.Errorf("out-of-grid Clamp = %+v, want empty", got)
	}
	if got.Left > got.Right || got.Top > got.Bottom {
		t.Errorf("Clamp broke ordering: %+v", got)
	}
}
