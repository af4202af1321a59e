package threat

import (
	"net/netip"
	"regexp"
	"strings"

	"docs-sentinel/pkg/models"
)

// Finding categories.
const (
	CategoryBase64Exec      = "base64-exec"
	CategoryPipeToShell     = "pipe-to-shell"
	CategoryCmdSubstitution = "cmd-substitution"
	CategoryRawIPURL        = "raw-ip-url"
	CategoryExecutableURL   = "executable-url"
	CategoryPromptInjection = "prompt-injection"
)

var (
	// Line-scoped: a base64 decode piped into a shell on the same line.
	// Decode and shell mentions on different lines are prose, not a dropper.
	base64ExecRe = regexp.MustCompile(`base64[^|\n]*(?:--decode|-d|-D)\b[^|\n]*\|\s*(?:sudo\s+)?(?:bash|sh|zsh)\b`)

	// Line-scoped: a download command with an http(s) URL piped into a shell.
	pipeToShellRe = regexp.MustCompile(`(?:curl|wget)[^|\n]*https?://[^|\n]*\|\s*(?:sudo\s+)?(?:bash|sh|zsh)\b`)

	// Command substitution wrapping a download with an http(s) URL.
	cmdSubstRes = []*regexp.Regexp{
		regexp.MustCompile(`\$\((?:curl|wget)[^)\n]*https?://[^)\n]*\)`),
		regexp.MustCompile("`(?:curl|wget)[^`\n]*https?://[^`\n]*`"),
	}

	// Any http(s) URL; trailing quotes/brackets are trimmed after matching.
	urlRe = regexp.MustCompile(`https?://[^\s<>]+`)

	ipv4HostRe = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}$`)

	// Address space where a dotted-quad URL is unremarkable: loopback,
	// RFC 1918, and carrier-grade NAT / overlay-network space.
	privateIPRanges = []netip.Prefix{
		netip.MustParsePrefix("127.0.0.0/8"),
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("192.168.0.0/16"),
		netip.MustParsePrefix("100.64.0.0/10"),
	}

	executableExtensions = []string{
		"exe", "msi", "dmg", "pkg", "deb", "rpm", "appimage",
		"zip", "rar", "7z", "tar.gz", "tgz",
		"bat", "cmd", "ps1", "vbs",
		"jar", "apk", "ipa",
	}

	// Phrase patterns aimed at an AI agent consuming the mirrored text.
	// Only the first match per pattern per document is reported.
	promptInjectionRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bsetup[ \-_]?wizard\b:?`),
		regexp.MustCompile(`(?i)\binstallation[ \-_]?required\b:?`),
		regexp.MustCompile(`(?i)\bsystem[ \-_]?command\b:?`),
		regexp.MustCompile(`(?i)\b(?:ai agent|ai assistant|assistant|agent|claude|chatgpt|copilot|llm)\b[^\n]{0,80}?\b(?:run|execute)\b`),
		regexp.MustCompile(`(?i)\bignore (?:all )?(?:previous|prior|above) instructions and\b`),
		regexp.MustCompile(`(?i)\b(?:urgent|critical|immediately|right now|asap)\b[^\n]{0,80}?\b(?:run|execute)\b`),
		regexp.MustCompile(`(?i)\b(?:run|execute)\b[^\n]{0,80}?\b(?:immediately|right now|urgently|asap)\b`),
	}
)

// trailing characters that belong to surrounding markup, not the URL
const urlTrimCutset = "\"'`)].,;"

// Scan applies the full detector battery to a document and returns every
// finding. Pure function: deterministic, no I/O. Findings are ordered by
// detector, then by position in the document.
func Scan(content string) []models.Finding {
	var findings []models.Finding

	for _, match := range base64ExecRe.FindAllString(content, -1) {
		findings = append(findings, models.Finding{Type: CategoryBase64Exec, Match: match})
	}

	for _, match := range pipeToShellRe.FindAllString(content, -1) {
		if containsAny(match, TrustedShellDomains) {
			continue
		}
		findings = append(findings, models.Finding{Type: CategoryPipeToShell, Match: match})
	}

	for _, re := range cmdSubstRes {
		for _, match := range re.FindAllString(content, -1) {
			if containsAny(match, TrustedShellDomains) {
				continue
			}
			findings = append(findings, models.Finding{Type: CategoryCmdSubstitution, Match: match})
		}
	}

	urls := urlRe.FindAllString(content, -1)

	for _, raw := range urls {
		url := strings.TrimRight(raw, urlTrimCutset)
		host := urlHost(url)
		if !ipv4HostRe.MatchString(host) {
			continue
		}
		addr, err := netip.ParseAddr(host)
		if err != nil || isPrivateAddr(addr) {
			continue
		}
		findings = append(findings, models.Finding{Type: CategoryRawIPURL, Match: url})
	}

	for _, raw := range urls {
		url := strings.TrimRight(raw, urlTrimCutset)
		if !hasExecutableExtension(url) {
			continue
		}
		if containsAny(url, TrustedExecutableDomains) {
			continue
		}
		findings = append(findings, models.Finding{Type: CategoryExecutableURL, Match: url})
	}

	for _, re := range promptInjectionRes {
		if match := re.FindString(content); match != "" {
			findings = append(findings, models.Finding{Type: CategoryPromptInjection, Match: match})
		}
	}

	return findings
}

// urlHost extracts the host portion of an http(s) URL, dropping any port.
func urlHost(url string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func isPrivateAddr(addr netip.Addr) bool {
	for _, prefix := range privateIPRanges {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func hasExecutableExtension(url string) bool {
	lower := strings.ToLower(url)
	for _, ext := range executableExtensions {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return false
}

// containsAny reports whether s contains any entry of the allow-list.
// Case-sensitive substring scan; the lists stay small enough that anything
// fancier would be overhead.
func containsAny(s string, domains []string) bool {
	for _, domain := range domains {
		if strings.Contains(s, domain) {
			return true
		}
	}
	return false
}
