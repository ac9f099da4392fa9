package record

import (
	"testing"
	"testing/quick"
)

func TestKeyRoundTrip(t *testing.T) {
	f := func(id uint32) bool {
		got, err := DecodeKey(EncodeKey(id))
		return err == nil && got == id
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	cases := []StoredRecord{
		{Deleted: false, Vector: []float32{1, 0, 1, 1}},
		{Deleted: true, Vector: []float32{}},
		{Deleted: false, Vector: nil},
		{Deleted: true, Vector: []float32{-1.5, 2.25, 0}},
	}
	for _, c := range cases {
		got, err := Decode(Encode(c))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.Deleted != c.Deleted {
			t.Errorf("Deleted = %v, want %v", got.Deleted, c.Deleted)
		}
		if len(got.Vector) != len(c.Vector) {
			t.Fatalf("Vector length = %d, want %d", len(got.Vector), len(c.Vector))
		}
		for i := range c.Vector {
			if got.Vector[i] != c.Vector[i] {
				t.Errorf("Vector[%d] = %v, want %v", i, got.Vector[i], c.Vector[i])
			}
		}
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	data := Encode(StoredRecord{Deleted: false, Vector: []float32{1, 2, 3}})
	data[0] ^= 0xFF
	if _, err := Decode(data); err != ErrCorrupt {
		t.Fatalf("Decode of corrupted record: got err=%v, want ErrCorrupt", err)
	}
}

func TestDecodeRejectsShortInput(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short input")
	}
}
