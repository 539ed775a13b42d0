package validate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/opc"
	"github.com/wudi/pptxkit/pptxtest"
)

func codeOf(t *testing.T, err error) Code {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	return ve.Code
}

func TestInputAcceptsPresentation(t *testing.T) {
	data := pptxtest.Basic(2).Bytes()
	a, err := Input("deck.PPTX", data, 0)
	if err != nil {
		t.Fatalf("Input: %v", err)
	}
	if !a.Has(opc.PresentationPath) {
		t.Errorf("decoded archive lacks the presentation")
	}
}

func TestInputRejects(t *testing.T) {
	good := pptxtest.Basic(1).Bytes()

	noSlides, err := pptxtest.New().Archive().Bytes()
	if err != nil {
		t.Fatal(err)
	}

	missing := pptxtest.Basic(1).Archive()
	missing.Remove(opc.RootRelsPath)
	missing.Remove(opc.ContentTypesPath)
	missingData, err := missing.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		file    string
		data    []byte
		maxSize int64
		want    Code
	}{
		{"extension", "deck.ppt", good, 0, CodeExtension},
		{"size", "deck.pptx", good, int64(len(good) - 1), CodeSize},
		{"not zip", "deck.pptx", []byte("hello"), 0, CodeNotZip},
		{"empty", "deck.pptx", nil, 0, CodeNotZip},
		{"no slides", "deck.pptx", noSlides, 0, CodeNoSlides},
		{"missing parts", "deck.pptx", missingData, 0, CodeMissingPart},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Input(tc.file, tc.data, tc.maxSize)
			if got := codeOf(t, err); got != tc.want {
				t.Errorf("code = %s, want %s (%v)", got, tc.want, err)
			}
		})
	}
}

func TestCheckListsEveryProblem(t *testing.T) {
	a := archive.New()
	var codes []Code
	for _, p := range Check(a) {
		codes = append(codes, p.Code)
	}
	want := []Code{CodeMissingPart, CodeMissingPart, CodeMissingPart, CodeNoSlides}
	if diff := cmp.Diff(want, codes); diff != "" {
		t.Errorf("codes mismatch (-want +got):\n%s", diff)
	}
}

func TestNotZipWrapsIOError(t *testing.T) {
	_, err := Input("", []byte("PK\x03\x04garbage"), 0)
	var ioErr *archive.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected wrapped IOError, got %v", err)
	}
}
