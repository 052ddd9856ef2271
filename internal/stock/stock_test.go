package stock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	tbl := NewTable()
	ctx := context.Background()
	if got := tbl.Str(ctx, Draft); got != "Draft" {
		t.Errorf("Draft = %q", got)
	}
	if got := tbl.Str(ctx, AcSetupMsgSubject); got != "Autocrypt Setup Message" {
		t.Errorf("AcSetupMsgSubject = %q", got)
	}
	if got := tbl.Str(ctx, ID(999)); got != "ErrStr:stock#999" {
		t.Errorf("unknown id = %q", got)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.toml")
	if err := os.WriteFile(path, []byte("draft = \"Entwurf\"\nself_msg = \"Ich\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	tbl := NewTable()
	if err := tbl.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if got := tbl.Str(ctx, Draft); got != "Entwurf" {
		t.Errorf("Draft = %q, want Entwurf", got)
	}
	if got := tbl.Str(ctx, SelfMsg); got != "Ich" {
		t.Errorf("SelfMsg = %q, want Ich", got)
	}
	if got := tbl.Str(ctx, Image); got != "Image" {
		t.Errorf("Image = %q, want default", got)
	}
}

func TestLoadFileRejectsUnknownName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.toml")
	if err := os.WriteFile(path, []byte("draft = \"Entwurf\"\nbogus = \"x\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	tbl := NewTable()
	if err := tbl.LoadFile(path); err == nil {
		t.Fatal("expected error for unknown name")
	}
	if got := tbl.Str(context.Background(), Draft); got != "Draft" {
		t.Errorf("Draft = %q, table should be unchanged", got)
	}
}
