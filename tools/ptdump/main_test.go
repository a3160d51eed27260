package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	defer func(level log.Level) { log.SetLevel(level) }(log.GetLevel())

	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	app.ErrWriter = &buf

	err := app.Run(append([]string{"ptdump"}, args...))
	return buf.String(), err
}

func TestMapCommand(t *testing.T) {
	out, err := runApp(t, "map", "--layout", filepath.Join("testdata", "virt.toml"))
	if err != nil {
		t.Fatal(err)
	}

	for _, exp := range []string{
		"0x0000000009000000-0x0000000009000fff -> 0x0000000009000000 k rw- device    (1 entries)\n",
		"0x0000000040001000-0x00000000403fffff -> 0x0000000040001000 k rwx normal    (1023 entries)\n",
		"pages: 999 total, 6 used, 993 free; tables: 1 boot, 6 kernel\n",
	} {
		if !strings.Contains(out, exp) {
			t.Errorf("expected output to contain %q; got:\n%s", exp, out)
		}
	}
}

func TestMapCommandBootAddressSpace(t *testing.T) {
	out, err := runApp(t, "--verbose", "map", "--boot", "--layout", filepath.Join("testdata", "virt.toml"))
	if err != nil {
		t.Fatal(err)
	}

	if exp := "0x0000000040000000-0x000000007fffffff -> 0x0000000040000000 k rwx normal    (1 entries)\n"; !strings.Contains(out, exp) {
		t.Errorf("expected output to contain %q; got:\n%s", exp, out)
	}
}

func TestTranslateCommand(t *testing.T) {
	out, err := runApp(t, "translate", "--layout", filepath.Join("testdata", "virt.toml"), "0x40123456", "0x40000000", "0x9000018")
	if err != nil {
		t.Fatal(err)
	}

	exp := "0x0000000040123456 -> 0x0000000040123456 k rwx normal (level 2)\n" +
		"0x0000000040000000 -> unmapped\n" +
		"0x0000000009000018 -> 0x0000000009000018 k rw- device (level 2)\n"
	if out != exp {
		t.Fatalf("expected output:\n%s\ngot:\n%s", exp, out)
	}
}

func TestCommandErrors(t *testing.T) {
	specs := []struct {
		descr string
		args  []string
	}{
		{"missing layout flag", []string{"map"}},
		{"missing layout file", []string{"map", "--layout", filepath.Join("testdata", "missing.toml")}},
		{"no addresses", []string{"translate", "--layout", filepath.Join("testdata", "virt.toml")}},
		{"bad address", []string{"translate", "--layout", filepath.Join("testdata", "virt.toml"), "0xzz"}},
		{"missing output", []string{"render", "--layout", filepath.Join("testdata", "virt.toml")}},
		{"bad cell size", []string{"render", "--layout", filepath.Join("testdata", "virt.toml"), "--out", filepath.Join(t.TempDir(), "out.png"), "--cell", "0"}},
	}

	for _, spec := range specs {
		if _, err := runApp(t, spec.args...); err == nil {
			t.Errorf("[%s] expected an error", spec.descr)
		}
	}
}

func TestRenderCommand(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "frames.png")
	out, err := runApp(t, "render", "--layout", filepath.Join("testdata", "virt.toml"), "--out", outPath, "--cell", "2")
	if err != nil {
		t.Fatal(err)
	}

	if exp := "wrote 1024 frames to " + outPath + "\n"; out != exp {
		t.Fatalf("expected output %q; got %q", exp, out)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}

	// 1024 frames are drawn in 16 rows of 64 three-pixel cells.
	if bounds := img.Bounds(); bounds.Dx() != 193 || bounds.Dy() != 49 {
		t.Fatalf("expected a 193x49 image; got %dx%d", bounds.Dx(), bounds.Dy())
	}
}
