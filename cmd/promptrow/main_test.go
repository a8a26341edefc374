package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/rogpeppe/go-internal/testscript"

	"github.com/barysiuk/promptrow/cmd/promptrow/cmd"
)

func TestMain(m *testing.M) {
	testscript.Main(m, map[string]func(){
		"promptrow": func() {
			if err := cmd.Execute(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	})
}

func TestScript(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir:                 filepath.Join("testdata", "script"),
		RequireExplicitExec: true,
		Setup: func(e *testscript.Env) error {
			// Keep every root promptrow touches inside WORK.
			home := filepath.Join(e.WorkDir, ".promptrow")
			e.Vars = append(e.Vars,
				"HOME="+e.WorkDir,
				"PROMPTROW_HOME="+home,
			)
			return writeConfig(home, e.WorkDir)
		},
		Cmds: map[string]func(ts *testscript.TestScript, neg bool, args []string){
			// make-zip archives the contents of a directory.
			// Usage: make-zip <out.zip> <dir>
			"make-zip": cmdMakeZip,

			// is-symlink asserts that a path is (or is not) a symlink.
			// Usage: [!] is-symlink <path>
			"is-symlink": cmdIsSymlink,

			// file-contains asserts that a file contains (or doesn't contain) a substring.
			// Usage: [!] file-contains <path> <substring>
			"file-contains": cmdFileContains,

			// dir-not-exists asserts that a directory does not exist.
			// Usage: [!] dir-not-exists <path>
			"dir-not-exists": cmdDirNotExists,
		},
	})
}

func writeConfig(home, work string) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return err
	}
	cfg := map[string]string{
		"globalStorage":  filepath.Join(work, "storage"),
		"userPromptsDir": filepath.Join(work, "user", "prompts"),
		"userSkillsDir":  filepath.Join(work, "user", "skills"),
		"userMcpConfig":  filepath.Join(work, "user", "mcp.json"),
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(home, "config.json"), data, 0o644)
}

func cmdMakeZip(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("make-zip does not support negation")
	}
	if len(args) != 2 {
		ts.Fatalf("usage: make-zip <out.zip> <dir>")
	}
	out, err := os.Create(ts.MkAbs(args[0]))
	if err != nil {
		ts.Fatalf("creating %s: %v", args[0], err)
	}
	defer out.Close()

	root := ts.MkAbs(args[1])
	zw := zip.NewWriter(out)
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		ts.Fatalf("zipping %s: %v", args[1], err)
	}
	if err := zw.Close(); err != nil {
		ts.Fatalf("closing zip: %v", err)
	}
}

// cmdIsSymlink checks if a path is a symlink.
func cmdIsSymlink(ts *testscript.TestScript, neg bool, args []string) {
	if len(args) != 1 {
		ts.Fatalf("usage: is-symlink <path>")
	}
	path := ts.MkAbs(args[0])
	fi, err := os.Lstat(path)
	isSymlink := err == nil && fi.Mode()&os.ModeSymlink != 0

	if neg {
		if isSymlink {
			ts.Fatalf("%s is a symlink (expected not to be)", args[0])
		}
	} else {
		if !isSymlink {
			if err != nil {
				ts.Fatalf("%s: %v", args[0], err)
			}
			ts.Fatalf("%s is not a symlink (mode: %s)", args[0], fi.Mode())
		}
	}
}

// cmdFileContains checks if a file contains a substring.
func cmdFileContains(ts *testscript.TestScript, neg bool, args []string) {
	if len(args) < 2 {
		ts.Fatalf("usage: file-contains <path> <substring>")
	}
	data, err := os.ReadFile(ts.MkAbs(args[0]))
	if err != nil {
		ts.Fatalf("reading %s: %v", args[0], err)
	}

	contains := strings.Contains(string(data), args[1])
	if neg {
		if contains {
			ts.Fatalf("file %s contains %q (expected not to)", args[0], args[1])
		}
	} else {
		if !contains {
			ts.Fatalf("file %s does not contain %q\nContent:\n%s", args[0], args[1], string(data))
		}
	}
}

// cmdDirNotExists checks that a directory does not exist.
func cmdDirNotExists(ts *testscript.TestScript, neg bool, args []string) {
	if len(args) != 1 {
		ts.Fatalf("usage: dir-not-exists <path>")
	}
	_, err := os.Stat(ts.MkAbs(args[0]))
	doesNotExist := os.IsNotExist(err)

	if neg {
		// ! dir-not-exists == dir exists
		if doesNotExist {
			ts.Fatalf("%s does not exist (expected it to exist)", args[0])
		}
	} else {
		if !doesNotExist {
			ts.Fatalf("%s exists (expected it not to)", args[0])
		}
	}
}
