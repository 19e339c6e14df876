package delta

import "testing"

func TestInsertAt_NoRetainAtZero(t *testing.T) {
	d := InsertAt(0, "abc")
	if len(d) != 1 || d[0].Kind != KindInsert {
		t.Fatalf("InsertAt(0) = %+v, want single insert", d)
	}
	if got := d.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
}

func TestDeleteAt_RetainsPrefix(t *testing.T) {
	d := DeleteAt(4, 2)
	if len(d) != 2 || d[0].Kind != KindRetain || d[0].Count != 4 {
		t.Fatalf("DeleteAt(4,2) = %+v", d)
	}
	if got := d.Len(); got != -2 {
		t.Fatalf("Len() = %d, want -2", got)
	}
}

func TestLen_CountsRunes(t *testing.T) {
	d := InsertAt(1, "héllo")
	if got := d.Len(); got != 5 {
		t.Fatalf("Len() = %d, want 5", got)
	}
}
