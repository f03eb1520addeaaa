package storage

import (
	"bytes"
	"testing"
)

func TestMemDBGetReturnsCopy(t *testing.T) {
	db := NewMemDB()
	key := []byte("k")
	if err := db.Put(key, []byte{1, 2, 3}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got[0] = 0xff

	again, err := db.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(again, []byte{1, 2, 3}) {
		t.Fatalf("stored value mutated through returned slice: %v", again)
	}
}

func TestMemDBPutCopiesValue(t *testing.T) {
	db := NewMemDB()
	key := []byte("k")
	value := []byte{4, 5, 6}
	if err := db.Put(key, value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 0xff

	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte{4, 5, 6}) {
		t.Fatalf("stored value aliased caller's slice: %v", got)
	}
}
