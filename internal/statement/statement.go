// Package statement models provisioning actions as immutable values and
// renders them into shell (unix) or batch (windows) script text.
//
// Statements only describe side effects. Paths and commands may carry the
// tokens {root}, {fs} and {md}; they are resolved per Family at render time.
package statement

import (
	"strings"
)

// Statement is one provisioning action. Render returns the script fragment
// for f, each line terminated by the family's newline.
type Statement interface {
	Render(f Family) (string, error)
}

// Exec runs a single command line.
type Exec struct {
	Command string
}

func NewExec(command string) Exec { return Exec{Command: command} }

func (s Exec) Render(f Family) (string, error) {
	cmd, err := Expand(s.Command, f)
	if err != nil {
		return "", err
	}
	if strings.ContainsAny(cmd, "\r\n") {
		return "", renderError("exec command must be a single line", cmd)
	}
	return cmd + f.newline(), nil
}

// heredocDelimiter terminates AppendFile bodies on unix. A content line equal
// to it would end the heredoc early and is rejected.
const heredocDelimiter = "END_OF_CHEFBOOT_FILE"

// AppendFile appends Lines to the file at Path, creating it if needed.
type AppendFile struct {
	Path  string
	Lines []string
}

func NewAppendFile(path string, lines []string) AppendFile {
	return AppendFile{Path: path, Lines: append([]string(nil), lines...)}
}

func (s AppendFile) Render(f Family) (string, error) {
	path, err := Expand(s.Path, f)
	if err != nil {
		return "", err
	}
	for _, line := range s.Lines {
		if strings.ContainsAny(line, "\r\n") {
			return "", renderError("appended line must not contain line breaks", path)
		}
	}

	nl := f.newline()
	var b strings.Builder
	switch f {
	case Windows:
		for _, line := range s.Lines {
			b.WriteString(`>>"`)
			b.WriteString(path)
			b.WriteString(`" echo`)
			if line == "" {
				b.WriteString(".")
			} else {
				b.WriteByte(' ')
				b.WriteString(batchEscape(line))
			}
			b.WriteString(nl)
		}
	default:
		b.WriteString("cat >> ")
		b.WriteString(shellQuote(path))
		b.WriteString(" <<'" + heredocDelimiter + "'")
		b.WriteString(nl)
		for _, line := range s.Lines {
			if line == heredocDelimiter {
				return "", renderError("appended line collides with the heredoc delimiter", path)
			}
			b.WriteString(line)
			b.WriteString(nl)
		}
		b.WriteString(heredocDelimiter)
		b.WriteString(nl)
	}
	return b.String(), nil
}

// List runs Statements in order.
type List struct {
	Statements []Statement
}

func NewList(statements ...Statement) List {
	return List{Statements: append([]Statement(nil), statements...)}
}

func (s List) Render(f Family) (string, error) {
	var b strings.Builder
	for _, st := range s.Statements {
		if st == nil {
			continue
		}
		out, err := st.Render(f)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

// installFunc is the shell function wrapping an ExitOnFailure body on unix.
const installFunc = "chefboot_install"

// Guards end the script when the preceding command failed.
const (
	unixGuard    = `[ "$?" -eq 0 ] || exit 1`
	windowsGuard = "if errorlevel 1 exit /b 1"
)

// ExitOnFailure runs Inner and terminates the whole script when any command
// of it fails, instead of returning a status and letting the caller continue.
//
// On unix the body runs in a subshell under errexit and pipefail. The call is
// not part of an || list: bash ignores errexit inside functions
// called from a tested context. On windows every command line is followed by
// an errorlevel check.
type ExitOnFailure struct {
	Inner Statement
}

func NewExitOnFailure(inner Statement) ExitOnFailure { return ExitOnFailure{Inner: inner} }

func (s ExitOnFailure) Render(f Family) (string, error) {
	if s.Inner == nil {
		return "", renderError("exit-on-failure wraps no statement", "")
	}
	body, err := s.Inner.Render(f)
	if err != nil {
		return "", err
	}
	nl := f.newline()
	var b strings.Builder
	if f == Windows {
		for _, line := range strings.SplitAfter(body, nl) {
			if line == "" {
				continue
			}
			b.WriteString(line)
			if batchChecksAfter(strings.TrimSuffix(line, nl)) {
				b.WriteString(windowsGuard + nl)
			}
		}
		return b.String(), nil
	}
	b.WriteString(installFunc + "() (" + nl)
	b.WriteString("set -eo pipefail" + nl)
	b.WriteString(body)
	b.WriteString(")" + nl)
	b.WriteString(installFunc + nl)
	b.WriteString(unixGuard + nl)
	return b.String(), nil
}

// batchChecksAfter reports whether an errorlevel check may follow line:
// not after blanks, comments, labels, continuations or block openers.
func batchChecksAfter(line string) bool {
	t := strings.TrimSpace(line)
	lower := strings.ToLower(t)
	switch {
	case t == "":
		return false
	case strings.HasPrefix(t, ":"), lower == "rem", strings.HasPrefix(lower, "rem "):
		return false
	case strings.HasSuffix(t, "^"), strings.HasSuffix(t, "("):
		return false
	}
	return true
}

// Raw is an opaque, pre-written script fragment per family. Families without
// text fail to render.
type Raw struct {
	Text map[Family]string
}

func NewRaw(unix, windows string) Raw {
	text := make(map[Family]string, 2)
	if unix != "" {
		text[Unix] = unix
	}
	if windows != "" {
		text[Windows] = windows
	}
	return Raw{Text: text}
}

func (s Raw) Render(f Family) (string, error) {
	if _, err := f.tokens(); err != nil {
		return "", err
	}
	text, ok := s.Text[f]
	if !ok {
		return "", unsupportedFamily(f)
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	nl := f.newline()
	return strings.ReplaceAll(text, "\n", nl) + nl, nil
}

// Script renders st as a complete, executable script for f.
func Script(st Statement, f Family) (string, error) {
	body, err := st.Render(f)
	if err != nil {
		return "", err
	}
	nl := f.newline()
	if f == Windows {
		return "@echo off" + nl + body, nil
	}
	return "#!/bin/bash" + nl + "set -u" + nl + body, nil
}

func shellQuote(s string) string {
	if s != "" && strings.Trim(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789/._-") == "" {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// batchEscape escapes cmd metacharacters outside double quotes with ^.
// Inside quotes cmd takes them literally, a ^ included. % is expanded in
// both cases and is always doubled.
func batchEscape(s string) string {
	var b strings.Builder
	quoted := false
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
		case r == '%':
			b.WriteByte('%')
		case !quoted && strings.ContainsRune("^&|<>", r):
			b.WriteByte('^')
		}
		b.WriteRune(r)
	}
	return b.String()
}
