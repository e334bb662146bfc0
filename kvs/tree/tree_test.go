package tree_test

import (
	"testing"

	"github.com/jrife/flock/kvs/tree"
)

func TestHashDeterminism(t *testing.T) {
	dir := tree.Directory{
		"b": tree.NewFileVal(float64(42)),
		"a": tree.NewFileVal("hello"),
	}

	enc1, err := tree.EncodeDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}

	enc2, err := tree.EncodeDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}

	if string(enc1) != string(enc2) {
		t.Fatalf("expected identical encodings, got %q and %q", enc1, enc2)
	}

	if tree.HashOf(enc1) != tree.HashOf(enc2) {
		t.Fatal("expected identical hashes for identical encodings")
	}
}

func TestDirentRoundTrip(t *testing.T) {
	cases := []tree.Dirent{
		tree.NewFileVal(float64(42)),
		tree.NewFileVal(nil),
		tree.NewFileRef("sha256:" + repeat("0", 64)),
		tree.NewDirRef("sha256:" + repeat("1", 64)),
		tree.NewLinkVal("a.b"),
		tree.NewDirVal(tree.Directory{"x": tree.NewFileVal(true)}),
	}

	for _, d := range cases {
		enc, err := tree.EncodeDirent(d)
		if err != nil {
			t.Fatalf("encode %v: %v", d, err)
		}

		got, err := tree.DecodeDirent(enc)
		if err != nil {
			t.Fatalf("decode %v: %v", d, err)
		}

		if got.Tag != d.Tag {
			t.Fatalf("tag mismatch: want %v got %v", d.Tag, got.Tag)
		}
	}
}

func TestValidateNameRejectsDot(t *testing.T) {
	if err := tree.ValidateName("a.b"); err == nil {
		t.Fatal("expected error for name containing '.'")
	}

	if err := tree.ValidateName("ab"); err != nil {
		t.Fatalf("unexpected error for valid name: %v", err)
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s[0])
	}
	return string(out)
}
