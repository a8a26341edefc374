// Package mcp installs the MCP servers a bundle declares into the scope's
// mcp.json. Every failure is reported in the result; nothing here returns an
// error to the install pipeline.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/fsutil"
	"github.com/barysiuk/promptrow/internal/core/gitexclude"
	"github.com/barysiuk/promptrow/internal/core/layout"
	"github.com/barysiuk/promptrow/internal/core/manifest"
	"github.com/barysiuk/promptrow/internal/logging"
)

// ConfigKey is the mcp.json object holding server entries.
const ConfigKey = "servers"

// excludeBlock names the git exclude block for a local-only mcp.json.
const excludeBlock = "mcp"

// Result reports the outcome of Install.
type Result struct {
	Success          bool
	ServersInstalled int
	ServerNames      []string
	ConfigPath       string
	Warnings         []string
	Errors           []string
}

// UninstallResult reports the outcome of Uninstall.
type UninstallResult struct {
	ServersRemoved int
	Warnings       []string
	Errors         []string
}

// Installer writes bundle servers into mcp.json files.
type Installer struct {
	layout *layout.Layout
	log    *slog.Logger
}

// NewInstaller returns an Installer. A nil logger discards output.
func NewInstaller(l *layout.Layout, log *slog.Logger) *Installer {
	if log == nil {
		log = logging.Discard()
	}
	return &Installer{layout: l, log: log}
}

// EntryName is the mcp.json key for one of a bundle's servers.
func EntryName(bundleID, server string) string {
	return bundleID + "." + server
}

// Install adds every server in m to the scope's mcp.json, substituting
// ${bundlePath}, ${bundleId} and ${bundleVersion}.
func (i *Installer) Install(bundleID, version, installPath string, m *manifest.Manifest, scope bundle.Scope, commitMode bundle.CommitMode) Result {
	res := Result{Success: true}
	if m == nil || len(m.MCPServers) == 0 {
		return res
	}

	configPath, err := i.layout.MCPConfigPath(scope)
	if err != nil {
		if errors.Is(err, layout.ErrNoWorkspace) || errors.Is(err, layout.ErrNoWorkspaceStorage) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("skipping MCP servers: %v", err))
			i.log.Warn("skipping MCP servers", "bundle", bundleID, "error", err)
			return res
		}
		return res.fail(i.log, bundleID, fmt.Errorf("resolving mcp config: %w", err))
	}
	res.ConfigPath = configPath

	content, err := readConfigFile(configPath)
	if err != nil {
		return res.fail(i.log, bundleID, fmt.Errorf("reading config: %w", err))
	}
	created := content == ""
	if created {
		content = "{}"
	}

	root, err := hujson.Parse([]byte(content))
	if err != nil {
		return res.fail(i.log, bundleID, fmt.Errorf("parsing %s: %w", configPath, err))
	}

	topKeyPtr := "/" + jsonPointerEscape(ConfigKey)
	if root.Find(topKeyPtr) == nil {
		topKeyPatch := fmt.Sprintf(`[{"op":"add","path":%q,"value":{}}]`, topKeyPtr)
		if err := root.Patch([]byte(topKeyPatch)); err != nil {
			return res.fail(i.log, bundleID, fmt.Errorf("creating config key %q: %w", ConfigKey, err))
		}
	}

	vars := map[string]string{
		"${bundlePath}":    installPath,
		"${bundleId}":      bundleID,
		"${bundleVersion}": version,
	}

	for _, name := range m.ServerNames() {
		server := m.MCPServers[name]
		if server.Disabled {
			res.Warnings = append(res.Warnings, fmt.Sprintf("server %s is disabled, not installed", name))
			continue
		}
		if err := server.Validate(); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("server %s: %v", name, err))
			continue
		}

		valueJSON, err := buildEntry(server, vars)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("server %s: %v", name, err))
			continue
		}

		entryPtr := topKeyPtr + "/" + jsonPointerEscape(EntryName(bundleID, name))
		op := "add"
		if root.Find(entryPtr) != nil {
			op = "replace"
		}
		patch := fmt.Sprintf(`[{"op":%q,"path":%q,"value":%s}]`, op, entryPtr, valueJSON)
		if err := root.Patch([]byte(patch)); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("server %s: writing entry: %v", name, err))
			continue
		}
		res.ServersInstalled++
		res.ServerNames = append(res.ServerNames, name)
	}

	if res.ServersInstalled > 0 {
		if err := writeConfigFile(configPath, finalizeConfig(&root)); err != nil {
			return res.fail(i.log, bundleID, fmt.Errorf("writing %s: %w", configPath, err))
		}
		if created && scope == bundle.ScopeRepository && commitMode == bundle.CommitModeLocalOnly {
			rel, err := filepath.Rel(i.layout.Workspace, configPath)
			if err == nil {
				err = gitexclude.Add(i.layout.Workspace, excludeBlock, []string{rel})
			}
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("updating git exclude: %v", err))
			}
		}
	}

	if len(res.Errors) > 0 {
		res.Success = false
		for _, e := range res.Errors {
			i.log.Warn("MCP server install failed", "bundle", bundleID, "error", e)
		}
	}
	i.log.Debug("MCP servers installed", "bundle", bundleID, "count", res.ServersInstalled, "config", configPath)
	return res
}

// Uninstall removes every "<bundleID>." entry from the scope's mcp.json.
// A config left with no servers and no other content is deleted.
func (i *Installer) Uninstall(bundleID string, scope bundle.Scope) UninstallResult {
	var res UninstallResult

	configPath, err := i.layout.MCPConfigPath(scope)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("skipping MCP servers: %v", err))
		return res
	}
	content, err := readConfigFile(configPath)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("reading config: %v", err))
		return res
	}
	if content == "" {
		return res
	}

	root, err := hujson.Parse([]byte(content))
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("parsing %s: %v", configPath, err))
		return res
	}

	names := entryNames(&root, bundleID+".")
	for _, name := range names {
		entryPtr := "/" + jsonPointerEscape(ConfigKey) + "/" + jsonPointerEscape(name)
		patch := fmt.Sprintf(`[{"op":"remove","path":%q}]`, entryPtr)
		if err := root.Patch([]byte(patch)); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("removing %s: %v", name, err))
			continue
		}
		res.ServersRemoved++
	}
	if res.ServersRemoved == 0 {
		return res
	}

	if isEmptyConfig(&root) {
		if err := os.Remove(configPath); err != nil && !os.IsNotExist(err) {
			res.Errors = append(res.Errors, fmt.Sprintf("removing %s: %v", configPath, err))
		}
		if scope == bundle.ScopeRepository {
			if err := gitexclude.Remove(i.layout.Workspace, excludeBlock); err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("updating git exclude: %v", err))
			}
		}
	} else if err := writeConfigFile(configPath, finalizeConfig(&root)); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("writing %s: %v", configPath, err))
	}

	i.log.Debug("MCP servers removed", "bundle", bundleID, "count", res.ServersRemoved, "config", configPath)
	return res
}

// Installed lists the bundle's server names currently present in the
// scope's mcp.json, without the bundle prefix.
func (i *Installer) Installed(bundleID string, scope bundle.Scope) ([]string, error) {
	configPath, err := i.layout.MCPConfigPath(scope)
	if err != nil {
		return nil, err
	}
	content, err := readConfigFile(configPath)
	if err != nil || content == "" {
		return nil, err
	}
	root, err := hujson.Parse([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}
	prefix := bundleID + "."
	var out []string
	for _, n := range entryNames(&root, prefix) {
		out = append(out, strings.TrimPrefix(n, prefix))
	}
	return out, nil
}

func (r Result) fail(log *slog.Logger, bundleID string, err error) Result {
	r.Success = false
	r.Errors = append(r.Errors, err.Error())
	log.Warn("MCP server install failed", "bundle", bundleID, "error", err)
	return r
}

// buildEntry renders a server as the JSON value stored in mcp.json.
func buildEntry(s manifest.Server, vars map[string]string) (string, error) {
	sub := func(v string) string {
		for k, val := range vars {
			v = strings.ReplaceAll(v, k, val)
		}
		return v
	}
	subMap := func(in map[string]string) map[string]string {
		if len(in) == 0 {
			return nil
		}
		out := make(map[string]string, len(in))
		for k, v := range in {
			out[k] = sub(v)
		}
		return out
	}

	entry := map[string]any{}
	if s.IsStdio() {
		entry["type"] = "stdio"
		entry["command"] = sub(s.Command)
		args := make([]string, len(s.Args))
		for i, a := range s.Args {
			args[i] = sub(a)
		}
		if len(args) > 0 {
			entry["args"] = args
		}
		if env := subMap(s.Env); env != nil {
			entry["env"] = env
		}
		if s.EnvFile != "" {
			entry["envFile"] = sub(s.EnvFile)
		}
	} else {
		transport := s.Type
		if transport == "" {
			transport = "http"
		}
		entry["type"] = transport
		entry["url"] = sub(s.URL)
		if headers := subMap(s.Headers); headers != nil {
			entry["headers"] = headers
		}
	}

	data, err := json.MarshalIndent(entry, "\t\t", "\t")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// entryNames returns the keys under ConfigKey starting with prefix.
func entryNames(root *hujson.Value, prefix string) []string {
	servers := root.Find("/" + jsonPointerEscape(ConfigKey))
	if servers == nil {
		return nil
	}
	obj, ok := servers.Value.(*hujson.Object)
	if !ok {
		return nil
	}
	var names []string
	for _, m := range obj.Members {
		lit, ok := m.Name.Value.(hujson.Literal)
		if !ok {
			continue
		}
		var name string
		if err := json.Unmarshal(lit, &name); err != nil {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names
}

// isEmptyConfig reports whether root holds nothing but an empty servers object.
func isEmptyConfig(root *hujson.Value) bool {
	obj, ok := root.Value.(*hujson.Object)
	if !ok || len(obj.Members) != 1 {
		return false
	}
	if strings.TrimSpace(string(root.BeforeExtra)) != "" || strings.TrimSpace(string(root.AfterExtra)) != "" {
		return false
	}
	servers, ok := obj.Members[0].Value.Value.(*hujson.Object)
	return ok && len(servers.Members) == 0
}

// finalizeConfig formats the JSONC AST and produces final output bytes.
// Comments are kept; mcp.json is read as JSONC by its consumers.
func finalizeConfig(root *hujson.Value) []byte {
	root.Format()
	removeTrailingCommas(root)
	return root.Pack()
}

// readConfigFile reads a config file. Returns empty string if not found.
func readConfigFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

func writeConfigFile(path string, content []byte) error {
	return fsutil.WriteFileAtomic(path, content)
}

// jsonPointerEscape escapes a string for use as a JSON Pointer token (RFC 6901).
func jsonPointerEscape(s string) string {
	r := strings.NewReplacer("~", "~0", "/", "~1")
	return r.Replace(s)
}

// removeTrailingCommas walks the JSONC AST and removes trailing commas. A
// comment after the last member moves behind it instead of being dropped.
func removeTrailingCommas(v *hujson.Value) {
	switch vv := v.Value.(type) {
	case *hujson.Object:
		for i := range vv.Members {
			removeTrailingCommas(&vv.Members[i].Value)
		}
		if n := len(vv.Members); n > 0 {
			vv.AfterExtra = dropComma(&vv.Members[n-1].Value, vv.AfterExtra)
		}
	case *hujson.Array:
		for i := range vv.Elements {
			removeTrailingCommas(&vv.Elements[i])
		}
		if n := len(vv.Elements); n > 0 {
			vv.AfterExtra = dropComma(&vv.Elements[n-1], vv.AfterExtra)
		}
	}
}

// dropComma clears last.AfterExtra, which hujson reads as a trailing comma,
// and returns the composite's closing extra with that text prepended.
func dropComma(last *hujson.Value, closing hujson.Extra) hujson.Extra {
	if last.AfterExtra == nil {
		return closing
	}
	moved := append(append(hujson.Extra{}, last.AfterExtra...), closing...)
	last.AfterExtra = nil
	return moved
}
