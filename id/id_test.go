package id

import "testing"

func TestInfimumSupremumOrder(t *testing.T) {
	if !Less(Infimum(), Supremum()) {
		t.Fatal("infimum should sort before supremum")
	}
	if Equal(Infimum(), Supremum()) {
		t.Fatal("infimum and supremum must not be equal")
	}
}

func TestAllocateBetweenIsStrictlyBetween(t *testing.T) {
	mid, err := AllocateBetween(Infimum(), Supremum(), 0, 3)
	if err != nil {
		t.Fatalf("AllocateBetween: %v", err)
	}
	if !Less(Infimum(), mid) || !Less(mid, Supremum()) {
		t.Fatalf("mid %s not strictly between infimum and supremum", mid)
	}
}

func TestAllocateBetweenDistinctPeersNeverCollide(t *testing.T) {
	left, right := Infimum(), Supremum()
	a, err := AllocateBetween(left, right, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	b, err := AllocateBetween(left, right, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	c, err := AllocateBetween(left, right, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if Equal(a, b) || Equal(b, c) || Equal(a, c) {
		t.Fatalf("distinct peers produced colliding IDs: %s, %s, %s", a, b, c)
	}
	// ordering is fixed by peer ID, not by call order.
	if !Less(a, b) || !Less(b, c) {
		t.Fatalf("expected a < b < c by peer ID, got %s, %s, %s", a, b, c)
	}
}

func TestAllocateBetweenRejectsPeerIDOutOfRange(t *testing.T) {
	if _, err := AllocateBetween(Infimum(), Supremum(), -1, 3); err == nil {
		t.Fatal("expected an error for negative peerID")
	}
	if _, err := AllocateBetween(Infimum(), Supremum(), 3, 3); err == nil {
		t.Fatal("expected an error for peerID >= networkSize")
	}
}

func TestAllocateBetweenNeverExhausts(t *testing.T) {
	left, right := Infimum(), Supremum()
	for i := 0; i < 200; i++ {
		mid, err := AllocateBetween(left, right, 0, 3)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if !Less(left, mid) || !Less(mid, right) {
			t.Fatalf("iteration %d: %s not between %s and %s", i, mid, left, right)
		}
		right = mid // repeatedly squeeze the left-hand gap
	}
}

func TestAllocateBetweenRejectsNonStrictOrder(t *testing.T) {
	a, err := AllocateBetween(Infimum(), Supremum(), 0, 3)
	if err != nil {
		t.Fatalf("AllocateBetween: %v", err)
	}
	if _, err := AllocateBetween(a, a, 0, 3); err != ErrCapacityExhausted {
		t.Fatalf("equal bounds: got %v, want ErrCapacityExhausted", err)
	}
	if _, err := AllocateBetween(Supremum(), Infimum(), 0, 3); err != ErrCapacityExhausted {
		t.Fatalf("reversed bounds: got %v, want ErrCapacityExhausted", err)
	}
}

func TestMarshalUnmarshalTextRoundTrip(t *testing.T) {
	want, err := AllocateBetween(Infimum(), Supremum(), 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	text, err := want.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var got ID
	if err := got.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if !Equal(want, got) {
		t.Fatalf("round-trip mismatch: %s vs %s", want, got)
	}
}

func TestUnmarshalTextRejectsGarbage(t *testing.T) {
	var out ID
	if err := out.UnmarshalText([]byte("not-a-rational")); err == nil {
		t.Fatal("expected an error decoding garbage text")
	}
}

func TestCompareOrdering(t *testing.T) {
	a, _ := AllocateBetween(Infimum(), Supremum(), 0, 3)
	b, _ := AllocateBetween(a, Supremum(), 0, 3)
	if Compare(a, b) >= 0 {
		t.Fatalf("expected a < b, got Compare=%d", Compare(a, b))
	}
	if Compare(b, a) <= 0 {
		t.Fatalf("expected b > a, got Compare=%d", Compare(b, a))
	}
	if Compare(a, a) != 0 {
		t.Fatalf("expected a == a, got Compare=%d", Compare(a, a))
	}
}
