package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestZipRoundTrip(t *testing.T) {
	a := New()
	a.Set("ppt/presentation.xml", []byte("<p:presentation/>"))
	a.Set("[Content_Types].xml", []byte("<Types/>"))
	a.Set("ppt/media/image1.png", bytes.Repeat([]byte{0x89, 'P'}, 512))

	data, err := a.Bytes()
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("std reader: %v", err)
	}
	if zr.File[0].Name != ContentTypesName {
		t.Errorf("content types should be the first entry, got %s", zr.File[0].Name)
	}
	for _, f := range zr.File {
		if f.Method != zip.Deflate {
			t.Errorf("%s: expected deflate, got method %d", f.Name, f.Method)
		}
	}

	back, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"[Content_Types].xml", "ppt/presentation.xml", "ppt/media/image1.png"}
	if diff := cmp.Diff(want, Paths(back, nil)); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	for _, name := range want {
		orig, _ := a.Get(name)
		got, _ := back.Get(name)
		if !bytes.Equal(orig, got) {
			t.Errorf("%s payload changed", name)
		}
	}
}

func TestWriteStampsNewParts(t *testing.T) {
	stamp := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
	var src bytes.Buffer
	zw := zip.NewWriter(&src)
	for _, name := range []string{ContentTypesName, "ppt/presentation.xml"} {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: stamp})
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte("<x/>"))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	a, err := Decode(src.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	a.Set("ppt/media/image1.webp", []byte("RIFF"))
	data, err := a.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range zr.File {
		if f.ModifiedDate == 0 || !f.Modified.Equal(stamp) {
			t.Errorf("%s: modified %v (dos date %d), want %v", f.Name, f.Modified, f.ModifiedDate, stamp)
		}
	}

	fresh := New()
	fresh.Set("a.xml", []byte("<a/>"))
	data, err = fresh.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	zr, err = zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if f := zr.File[0]; !f.Modified.Equal(DOSEpoch) {
		t.Errorf("in-memory archive entry modified %v, want %v", f.Modified, DOSEpoch)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not a zip"))
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
}

func TestReadWithLimits(t *testing.T) {
	a := New()
	a.Set("big", bytes.Repeat([]byte("a"), 4096))
	data, err := a.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	_, err = ReadWithLimits(bytes.NewReader(data), int64(len(data)), Limits{MaxEntrySize: 1024})
	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Path != "big" {
		t.Fatalf("expected IOError for oversized entry, got %v", err)
	}
}
