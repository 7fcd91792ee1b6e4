package storage

import (
	"fmt"
	"testing"
)

func TestPrefixDB_GetPutDelete(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("session-1/"))

	if err := db.Put([]byte("key1"), []byte("val1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get([]byte("key1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "val1" {
		t.Fatalf("Get = %q, want %q", got, "val1")
	}

	raw, err := inner.Get([]byte("session-1/key1"))
	if err != nil || string(raw) != "val1" {
		t.Fatalf("inner key = %q, %v", raw, err)
	}

	if err := db.Delete([]byte("key1")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := db.Has([]byte("key1")); ok {
		t.Fatal("Has after delete = true, want false")
	}
}

func TestPrefixDB_Isolation(t *testing.T) {
	inner := NewMemory()
	dbA := NewPrefixDB(inner, []byte("a/"))
	dbB := NewPrefixDB(inner, []byte("b/"))

	dbA.Put([]byte("key"), []byte("fromA"))
	dbB.Put([]byte("key"), []byte("fromB"))

	got, _ := dbA.Get([]byte("key"))
	if string(got) != "fromA" {
		t.Fatalf("A.Get = %q, want %q", got, "fromA")
	}
	got, _ = dbB.Get([]byte("key"))
	if string(got) != "fromB" {
		t.Fatalf("B.Get = %q, want %q", got, "fromB")
	}
	if ok, _ := dbA.Has([]byte("b/key")); ok {
		t.Fatal("A should not see B's raw key")
	}
}

func TestPrefixDB_ForEachStripsPrefix(t *testing.T) {
	db := NewPrefixDB(NewMemory(), []byte("pre/"))
	db.Put([]byte("tx/1"), []byte("a"))
	db.Put([]byte("tx/2"), []byte("b"))
	db.Put([]byte("m/x"), []byte("c"))

	var keys []string
	err := db.ForEach([]byte("tx/"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if len(keys) != 2 || keys[0] != "tx/1" || keys[1] != "tx/2" {
		t.Fatalf("ForEach keys = %v, want [tx/1 tx/2]", keys)
	}
}

func TestPrefixDB_ForEachStopEarly(t *testing.T) {
	db := NewPrefixDB(NewMemory(), []byte("p/"))
	for i := 0; i < 10; i++ {
		db.Put([]byte(fmt.Sprintf("k%d", i)), []byte("v"))
	}

	count := 0
	stopErr := fmt.Errorf("stop")
	err := db.ForEach(nil, func(key, value []byte) error {
		count++
		if count >= 3 {
			return stopErr
		}
		return nil
	})
	if err != stopErr {
		t.Fatalf("ForEach err = %v, want stopErr", err)
	}
	if count != 3 {
		t.Fatalf("ForEach called %d times, want 3", count)
	}
}

func TestPrefixDB_DeleteAll(t *testing.T) {
	inner := NewMemory()
	dbA := NewPrefixDB(inner, []byte("a/"))
	dbB := NewPrefixDB(inner, []byte("b/"))

	dbA.Put([]byte("k1"), []byte("v1"))
	dbA.Put([]byte("k2"), []byte("v2"))
	dbB.Put([]byte("k1"), []byte("other"))

	if err := dbA.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	for _, k := range []string{"k1", "k2"} {
		if ok, _ := dbA.Has([]byte(k)); ok {
			t.Fatalf("A still has %q after DeleteAll", k)
		}
	}
	got, err := dbB.Get([]byte("k1"))
	if err != nil || string(got) != "other" {
		t.Fatalf("B.Get after A.DeleteAll = %q, %v", got, err)
	}
}

func TestPrefixDB_Batch(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("s/"))

	b := db.NewBatch()
	b.Put([]byte("x"), []byte("1"))
	b.Put([]byte("y"), []byte("2"))
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	for _, k := range []string{"s/x", "s/y"} {
		if ok, _ := inner.Has([]byte(k)); !ok {
			t.Errorf("inner missing %s", k)
		}
	}
}

// plainDB hides the Batcher implementation of the wrapped store.
type plainDB struct{ DB }

func TestPrefixDB_BatchWithoutBatcher(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(plainDB{inner}, []byte("s/"))
	inner.Put([]byte("s/old"), []byte("x"))

	b := db.NewBatch()
	b.Put([]byte("new"), []byte("1"))
	b.Delete([]byte("old"))
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if ok, _ := inner.Has([]byte("s/new")); !ok {
		t.Error("put not applied")
	}
	if ok, _ := inner.Has([]byte("s/old")); ok {
		t.Error("delete not applied")
	}
}

func TestPrefixDB_CloseIsNoop(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("x/"))
	db.Put([]byte("key"), []byte("val"))

	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got, err := inner.Get([]byte("x/key"))
	if err != nil || string(got) != "val" {
		t.Fatalf("inner.Get after Close = %q, %v", got, err)
	}
}
