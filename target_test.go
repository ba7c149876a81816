package idbmigrate

import (
	"bytes"
	"path/filepath"
	"reflect"
	"testing"
)

func openTestTarget(t *testing.T, path string, version uint32, provisioned *int) *Target {
	t.Helper()
	tgt, err := OpenTarget(path, version, func(pv *Provision) error {
		if provisioned != nil {
			*provisioned++
		}
		return pv.CreateStore("terms")
	})
	if err != nil {
		t.Fatalf("** OpenTarget: %v", err)
	}
	return tgt
}

func TestTargetProvisionsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.db")
	var provisioned int

	tgt := openTestTarget(t, path, 1, &provisioned)
	tgt.Close()
	tgt = openTestTarget(t, path, 1, &provisioned)
	tgt.Close()

	if provisioned != 1 {
		t.Errorf("** provisioning callback ran %d times across two opens, wanted 1", provisioned)
	}
}

func TestTargetReprovisionsOnVersionBump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.db")
	var provisioned int

	tgt := openTestTarget(t, path, 1, &provisioned)
	tgt.Close()
	tgt = openTestTarget(t, path, 2, &provisioned)
	tgt.Close()

	if provisioned != 2 {
		t.Errorf("** provisioning callback ran %d times across a version bump, wanted 2", provisioned)
	}
}

func TestTargetPutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.db")
	tgt := openTestTarget(t, path, 1, nil)
	defer tgt.Close()

	structured := DecodedValue{Structured: map[string]any{"expr": "猫"}, IsStruct: true}
	opaque := DecodedValue{Opaque: []byte{0xFF, 0x00, 0x10}}

	err := tgt.WriteStore("terms", func(stx *StoreTx) error {
		if err := stx.Put([]byte("t1"), structured); err != nil {
			return err
		}
		return stx.Put([]byte("t2"), opaque)
	})
	if err != nil {
		t.Fatalf("** WriteStore: %v", err)
	}

	err = tgt.ReadStore("terms", func(stx *StoreTx) error {
		got, found, err := stx.Get([]byte("t1"))
		if err != nil || !found {
			t.Fatalf("** Get(t1) = (found=%v, err=%v), wanted a record", found, err)
		}
		if !got.IsStruct || !reflect.DeepEqual(got.Structured, map[string]any{"expr": "猫"}) {
			t.Errorf("** Get(t1) = %+v, wanted structured {expr: 猫}", got)
		}

		got, found, err = stx.Get([]byte("t2"))
		if err != nil || !found {
			t.Fatalf("** Get(t2) = (found=%v, err=%v), wanted a record", found, err)
		}
		if got.IsStruct || !bytes.Equal(got.Opaque, []byte{0xFF, 0x00, 0x10}) {
			t.Errorf("** Get(t2) = %+v, wanted opaque ff0010", got)
		}

		if _, found, _ := stx.Get([]byte("t3")); found {
			t.Errorf("** Get(t3) found a record that was never written")
		}
		if n := stx.Count(); n != 2 {
			t.Errorf("** Count() = %d, wanted 2", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("** ReadStore: %v", err)
	}
}

func TestTargetPutIsUpsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.db")
	tgt := openTestTarget(t, path, 1, nil)
	defer tgt.Close()

	for i := 0; i < 2; i++ {
		err := tgt.WriteStore("terms", func(stx *StoreTx) error {
			return stx.Put([]byte("t1"), DecodedValue{Structured: map[string]any{"n": float64(i)}, IsStruct: true})
		})
		if err != nil {
			t.Fatalf("** WriteStore: %v", err)
		}
	}

	tgt.ReadStore("terms", func(stx *StoreTx) error {
		if n := stx.Count(); n != 1 {
			t.Errorf("** Count() after double put = %d, wanted 1", n)
		}
		got, _, _ := stx.Get([]byte("t1"))
		if !reflect.DeepEqual(got.Structured, map[string]any{"n": float64(1)}) {
			t.Errorf("** Get(t1) = %v, wanted the second write to win", got.Structured)
		}
		return nil
	})
}

func TestTargetAddAssignsSequentialKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.db")
	tgt := openTestTarget(t, path, 1, nil)
	defer tgt.Close()

	err := tgt.WriteStore("terms", func(stx *StoreTx) error {
		for i := 0; i < 3; i++ {
			if err := stx.Add(DecodedValue{Opaque: []byte{byte(i)}}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("** WriteStore: %v", err)
	}

	tgt.ReadStore("terms", func(stx *StoreTx) error {
		if n := stx.Count(); n != 3 {
			t.Errorf("** Count() = %d, wanted 3 auto-keyed records", n)
		}
		return nil
	})
}

func TestTargetUnprovisionedStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.db")
	tgt := openTestTarget(t, path, 1, nil)
	defer tgt.Close()

	err := tgt.WriteStore("nonsense", func(stx *StoreTx) error { return nil })
	if err == nil {
		t.Fatalf("** WriteStore on an unprovisioned store succeeded, wanted an error")
	}
}
