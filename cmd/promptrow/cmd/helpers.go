package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/barysiuk/promptrow/internal/core"
	"github.com/barysiuk/promptrow/internal/core/archive"
	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/manifest"
	"github.com/barysiuk/promptrow/internal/tui"
)

// joinStrings concatenates string slices with ", " separator.
func joinStrings(ss []string) string {
	return strings.Join(ss, ", ")
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// terminalWidth is the stdout width, or 80 when stdout is not a terminal.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// loadBundle reads a bundle argument. A zip file is returned as data; a
// directory yields nil data and a file:// descriptor so the engine uses it
// in place. The descriptor id and name come from the bundle's manifest
// unless --id is given.
func loadBundle(cmd *cobra.Command, arg string) (core.BundleDescriptor, []byte, error) {
	var d core.BundleDescriptor

	path, err := filepath.Abs(arg)
	if err != nil {
		return d, nil, fmt.Errorf("resolving %s: %w", arg, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return d, nil, fmt.Errorf("reading bundle: %w", err)
	}

	var data []byte
	var m *manifest.Manifest
	if info.IsDir() {
		m, err = manifest.Load(path)
		d.SourceType = bundle.SourceTypeLocal
	} else {
		if data, err = os.ReadFile(path); err != nil {
			return d, nil, fmt.Errorf("reading bundle: %w", err)
		}
		var raw []byte
		if raw, err = archive.ReadFile(data, manifest.FileName); err == nil {
			m, err = manifest.Parse(raw)
		}
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return d, nil, err
	}
	d.DownloadURL = bundle.FileURL(path)

	d.ID, _ = cmd.Flags().GetString("id")
	d.Version, _ = cmd.Flags().GetString("version")
	if m != nil {
		if d.ID == "" {
			d.ID = m.ID
		}
		d.Name, d.Description, d.Author = m.Name, m.Description, m.Author
	}
	if d.ID == "" {
		return d, nil, fmt.Errorf("%s has no %s; pass --id", arg, manifest.FileName)
	}

	if st, _ := cmd.Flags().GetString("source-type"); st != "" {
		d.SourceType = bundle.SourceType(st)
	}
	d.SourceName, _ = cmd.Flags().GetString("source-name")
	return d, data, nil
}

// scopeFlag parses --scope. An empty value is returned as is.
func scopeFlag(cmd *cobra.Command) (bundle.Scope, error) {
	s, _ := cmd.Flags().GetString("scope")
	if s == "" {
		return "", nil
	}
	return bundle.ParseScope(s)
}

// suggest returns up to three installed bundle ids resembling name.
func suggest(name string, candidates []string) []string {
	var out []string
	for _, match := range fuzzy.Find(name, candidates) {
		out = append(out, match.Str)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "%s %s\n", tui.WarningStyle.Render("Warning:"), w)
	}
}

// cancelled reports a declined overwrite. It is not a failure.
func cancelled(err error) bool {
	if errors.Is(err, core.ErrInstallationCancelled) {
		fmt.Fprintln(os.Stdout, "Installation cancelled.")
		return true
	}
	return false
}

func addBundleFlags(cmd *cobra.Command) {
	cmd.Flags().String("id", "", "Bundle id (default: from the bundle manifest)")
	cmd.Flags().String("version", "", "Expected bundle version (default: accept any)")
	cmd.Flags().String("source-type", "", "Source type: github, http, local, skills, local-skills, external-skills")
	cmd.Flags().String("source-name", "", "Source display name, used for external skills directories")
}
