package mbr

import "testing"

func TestWithin(t *testing.T) {
	outer := Box{0, 0, 10, 10}
	inner := Box{2, 2, 8, 8}
	if !Within(inner, outer) {
		t.Fatal("expected inner within outer")
	}
	if Within(outer, inner) {
		t.Fatal("outer should not be within inner")
	}
	if !Within(outer, outer) {
		t.Fatal("a box is within itself")
	}
}

func TestIntersectInclusiveEdges(t *testing.T) {
	a := Box{0, 0, 10, 10}
	b := Box{10, 0, 20, 10} // touches at x=10
	if !Intersect(a, b) {
		t.Fatal("touching edges should count as intersecting")
	}
}

func TestDisjoint(t *testing.T) {
	a := Box{0, 0, 1, 1}
	b := Box{5, 5, 6, 6}
	if !Disjoint(a, b) {
		t.Fatal("expected disjoint boxes")
	}
	if Disjoint(a, a) {
		t.Fatal("a box is never disjoint from itself")
	}
}

func TestDisjointDefinition(t *testing.T) {
	cases := []struct{ a, b Box }{
		{Box{0, 0, 1, 1}, Box{5, 5, 6, 6}},
		{Box{0, 0, 10, 10}, Box{2, 2, 8, 8}},
		{Box{0, 0, 5, 5}, Box{4, 4, 9, 9}},
		{Box{0, 0, 1, 1}, Box{1, 1, 2, 2}},
	}
	for _, c := range cases {
		got := Disjoint(c.a, c.b)
		want := !Within(c.a, c.b) && !Within(c.b, c.a) && !Intersect(c.a, c.b)
		if got != want {
			t.Errorf("Disjoint(%v,%v) = %v, want %v", c.a, c.b, got, want)
		}
	}
}

func TestMergeCommutativeAndContains(t *testing.T) {
	a := Box{0, 0, 5, 5}
	b := Box{3, -2, 8, 4}
	m1 := Merge(a, b)
	m2 := Merge(b, a)
	if m1 != m2 {
		t.Fatalf("merge not commutative: %v != %v", m1, m2)
	}
	if !Within(a, m1) || !Within(b, m1) {
		t.Fatalf("merge %v must contain both inputs", m1)
	}
}

func TestMergeAssociative(t *testing.T) {
	a := Box{0, 0, 1, 1}
	b := Box{2, 2, 3, 3}
	c := Box{-1, -1, 0.5, 0.5}
	left := Merge(Merge(a, b), c)
	right := Merge(a, Merge(b, c))
	if left != right {
		t.Fatalf("merge not associative: %v != %v", left, right)
	}
}

func TestOverlapDisjointIsZero(t *testing.T) {
	a := Box{0, 0, 1, 1}
	b := Box{5, 5, 6, 6}
	ov := Overlap(a, b)
	if ov != Zero {
		t.Fatalf("overlap of disjoint boxes should be zero box, got %v", ov)
	}
	if Area(ov) != 0 {
		t.Fatalf("zero box must have zero area")
	}
}

func TestOverlapAreaBound(t *testing.T) {
	a := Box{0, 0, 10, 10}
	b := Box{5, 5, 15, 15}
	ov := Overlap(a, b)
	if Area(ov) > Area(a) || Area(ov) > Area(b) {
		t.Fatalf("overlap area %v exceeds min(area(a), area(b))", Area(ov))
	}
}

func TestNewNormalizesOrder(t *testing.T) {
	b := New(10, 10, 0, 0)
	if b.W != 0 || b.S != 0 || b.E != 10 || b.N != 10 {
		t.Fatalf("New did not normalize coordinates: %v", b)
	}
}
