package coverage

import "testing"

func TestBitmap_SetGetCardinality(t *testing.T) {
	b := NewBitmap(70)
	for _, i := range []int{0, 7, 8, 63, 64, 69} {
		b.Set(i)
	}
	if got := b.Cardinality(); got != 6 {
		t.Fatalf("cardinality = %d, want 6", got)
	}
	if !b.Get(63) || b.Get(62) {
		t.Error("bit membership wrong around word boundary")
	}
}

func TestBitmap_CloneIsIndependent(t *testing.T) {
	b := NewBitmap(16)
	b.Set(3)
	c := b.Clone()
	c.Set(4)
	if b.Get(4) {
		t.Error("mutating the clone leaked into the original")
	}
	if !c.Get(3) {
		t.Error("clone lost a bit")
	}
}

func TestBitmap_UnionIntersectInPlace(t *testing.T) {
	a := NewBitmap(32)
	a.Set(1)
	a.Set(2)
	b := NewBitmap(32)
	b.Set(2)
	b.Set(3)

	u := a.Clone()
	u.UnionInPlace(b)
	if u.Cardinality() != 3 || !u.Get(1) || !u.Get(3) {
		t.Errorf("union wrong: cardinality %d", u.Cardinality())
	}

	i := a.Clone()
	i.IntersectInPlace(b)
	if i.Cardinality() != 1 || !i.Get(2) {
		t.Errorf("intersection wrong: cardinality %d", i.Cardinality())
	}
}

func TestBitmap_UnionCardinalityDoesNotMutate(t *testing.T) {
	a := NewBitmap(32)
	a.Set(0)
	b := NewBitmap(32)
	b.Set(1)
	b.Set(2)

	if got := a.UnionCardinality(b); got != 3 {
		t.Fatalf("union cardinality = %d, want 3", got)
	}
	if a.Cardinality() != 1 || b.Cardinality() != 2 {
		t.Error("union cardinality mutated an operand")
	}
}

func TestBitmap_BytesRoundTrip(t *testing.T) {
	b := NewBitmap(13)
	b.Set(0)
	b.Set(8)
	b.Set(12)

	data := b.Bytes()
	if len(data) != 2 {
		t.Fatalf("serialised to %d bytes, want 2", len(data))
	}

	back, err := BitmapFromBytes(13, data)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 13; i++ {
		if back.Get(i) != b.Get(i) {
			t.Fatalf("bit %d lost in round trip", i)
		}
	}
}

func TestBitmapFromBytes_WrongLength(t *testing.T) {
	if _, err := BitmapFromBytes(16, []byte{0}); err == nil {
		t.Fatal("expected width mismatch error")
	}
}

func TestBitmap_Bar(t *testing.T) {
	b := NewBitmap(40)
	for i := 0; i < 10; i++ {
		b.Set(i)
	}
	bar := b.Bar(4)
	if bar != "█···" {
		t.Errorf("bar = %q, want one filled cell of four", bar)
	}
	if NewBitmap(0).Bar(20) != "" {
		t.Error("zero-width bitmap should render an empty bar")
	}
}
