// Package prompt implements the system-prompt composer of §4.G: template
// loading from a directory, deterministic `{{VARIABLE}}` substitution, and
// user-memory injection after a `---` separator.
//
// Grounded on the teacher's static system-prompt strings (no template
// engine exists in the pack for this concern); the substitution rules are
// implemented directly against spec.md §4.G and §9 "Prompt composer
// determinism" since no example repo carries an equivalent templating
// library — see DESIGN.md for why this one component is hand-rolled
// rather than pulled from a third-party templating package.
package prompt

import (
	"os"
	"path/filepath"
	"strings"
)

// promptsDirEnv is the environment variable overriding the default
// template directory.
const promptsDirEnv = "LLXPRT_PROMPTS_DIR"

const defaultPromptsDirName = ".llxprt/prompts"

// Vars is the substitution map passed to Compose.
type Vars map[string]string

// PromptsDir resolves the template directory: LLXPRT_PROMPTS_DIR if set,
// else ~/.llxprt/prompts.
func PromptsDir() string {
	if v := os.Getenv(promptsDirEnv); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultPromptsDirName
	}
	return filepath.Join(home, defaultPromptsDirName)
}

// LoadTemplate reads a named template file from the prompts directory.
func LoadTemplate(name string) (string, error) {
	path := filepath.Join(PromptsDir(), name)
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Substitute implements §4.G's token-substitution rules exactly:
//   - a `{{VARIABLE}}` token is replaced by vars[VARIABLE]; unmatched keys
//     become empty string.
//   - nested `{{ }}` (a second "{{" encountered before the matching "}}")
//     is kept literal — the outer braces are not treated as a token.
//   - an unbalanced opening `{{` with no matching `}}` is emitted as-is,
//     and scanning resumes immediately after the opener (not consuming it
//     as part of a token).
//
// Deterministic on (template, vars) alone, per §9 "Prompt composer
// determinism" — no implicit variables are consulted.
func Substitute(tmpl string, vars Vars) string {
	var out strings.Builder
	i := 0
	n := len(tmpl)

	for i < n {
		if i+1 < n && tmpl[i] == '{' && tmpl[i+1] == '{' {
			// Look for the matching "}}", bailing out (nested-brace rule)
			// if another "{{" appears first.
			start := i + 2
			j := start
			nested := false
			closed := -1
			for j < n {
				if j+1 < n && tmpl[j] == '{' && tmpl[j+1] == '{' {
					nested = true
					break
				}
				if j+1 < n && tmpl[j] == '}' && tmpl[j+1] == '}' {
					closed = j
					break
				}
				j++
			}

			if nested || closed == -1 {
				// Unbalanced or nested: emit the opener literally and
				// resume scanning right after it.
				out.WriteString("{{")
				i += 2
				continue
			}

			name := strings.TrimSpace(tmpl[start:closed])
			out.WriteString(vars[name])
			i = closed + 2
			continue
		}

		out.WriteByte(tmpl[i])
		i++
	}

	return out.String()
}

// Compose builds the final system prompt: the base template with
// variables substituted, followed by the user memory after a `---`
// separator when present (§4.G, §6 "userMemory").
func Compose(tmpl string, vars Vars, userMemory string) string {
	body := Substitute(tmpl, vars)
	if userMemory == "" {
		return body
	}
	return body + "\n---\n" + userMemory
}

// BuildVars assembles the standard variable set every adapter's step 4
// (§4.F) passes to Compose.
func BuildVars(model, providerName string, hasTools bool) Vars {
	toolsFlag := "false"
	if hasTools {
		toolsFlag = "true"
	}
	return Vars{
		"MODEL":    model,
		"PROVIDER": providerName,
		"TOOLS":    toolsFlag,
	}
}
