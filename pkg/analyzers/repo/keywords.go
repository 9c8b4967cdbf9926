package repo

import (
	"regexp"
	"strings"

	"github.com/pubguard/engine/pkg/shared/severity"
)

// Permission-risk classes detected in freeform repository text.
const (
	PermShellAccess       = "shellAccess"
	PermRootRequired      = "rootRequired"
	PermCredentialStorage = "credentialStorage"
	PermFilesystemAccess  = "filesystemAccess"
	PermBrowserControl    = "browserControl"
)

// permissionClass pairs a class with its trigger keywords and the severity a
// detection carries.
type permissionClass struct {
	name     string
	severity severity.Level
	keywords []string
}

// permissionClasses is ordered heaviest-first; scoring weights follow the
// same order.
var permissionClasses = []permissionClass{
	{
		name:     PermShellAccess,
		severity: severity.High,
		keywords: []string{
			"child_process", "subprocess", "os.system", "shell access",
			"command execution", "executes shell", "spawns a shell",
			"arbitrary commands",
		},
	},
	{
		name:     PermRootRequired,
		severity: severity.High,
		keywords: []string{
			"run as root", "requires root", "sudo", "administrator privileges",
			"elevated privileges", "admin rights",
		},
	},
	{
		name:     PermCredentialStorage,
		severity: severity.High,
		keywords: []string{
			"stores your api key", "api key", "access token", "credentials",
			"keychain", "stores passwords", "secret storage",
		},
	},
	{
		name:     PermFilesystemAccess,
		severity: severity.Medium,
		keywords: []string{
			"file system access", "filesystem access", "writes files",
			"reads your files", "home directory", "watches files",
		},
	},
	{
		name:     PermBrowserControl,
		severity: severity.Medium,
		keywords: []string{
			"puppeteer", "playwright", "selenium", "browser automation",
			"chromedriver", "headless chrome", "controls your browser",
		},
	},
}

// detectPermissionClasses scans freeform text (README, security policy) for
// permission-risk keyword classes. Matching is case-insensitive; each class
// triggers at most once.
func detectPermissionClasses(text string) []string {
	lower := strings.ToLower(text)
	var detected []string
	for _, pc := range permissionClasses {
		for _, kw := range pc.keywords {
			if strings.Contains(lower, kw) {
				detected = append(detected, pc.name)
				break
			}
		}
	}
	return detected
}

// permissionSeverity returns the severity carried by a permission class.
func permissionSeverity(class string) severity.Level {
	for _, pc := range permissionClasses {
		if pc.name == class {
			return pc.severity
		}
	}
	return severity.Low
}

// renamePatterns extract historical project names from rename/rebrand
// language in descriptions and READMEs.
var renamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:formerly|previously)\s+(?:known\s+as\s+)?[` + "`" + `"']?([A-Za-z0-9][A-Za-z0-9._-]{1,40}[A-Za-z0-9])`),
	regexp.MustCompile(`(?i)\brenamed\s+from\s+[` + "`" + `"']?([A-Za-z0-9][A-Za-z0-9._-]{1,40}[A-Za-z0-9])`),
	regexp.MustCompile(`(?i)\brebranded\s+from\s+[` + "`" + `"']?([A-Za-z0-9][A-Za-z0-9._-]{1,40}[A-Za-z0-9])`),
	regexp.MustCompile(`(?i)\bwas\s+called\s+[` + "`" + `"']?([A-Za-z0-9][A-Za-z0-9._-]{1,40}[A-Za-z0-9])`),
}

// stopWords are captures that are grammar, not names.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "part": true, "known": true,
}

// detectRenames extracts historical names from rename language in text.
func detectRenames(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, re := range renamePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := strings.Trim(m[1], "`\"'.,:;")
			key := strings.ToLower(name)
			if name == "" || stopWords[key] || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, name)
		}
	}
	return out
}

// securityCommitRe matches commit messages that concern security work.
var securityCommitRe = regexp.MustCompile(`(?i)\b(security|vulnerab|cve-\d{4}-\d+|xss|injection|advisory|hardening)\b`)

// countSecurityCommits counts commits whose messages reference security work.
func countSecurityCommits(commits []Commit) int {
	n := 0
	for _, c := range commits {
		if securityCommitRe.MatchString(c.Message) {
			n++
		}
	}
	return n
}
