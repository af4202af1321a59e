package threat

// Documentation legitimately contains official installer one-liners and
// links to real installers; without these lists the detectors would drown
// the report in false positives. Additions should be rare and deliberate:
// every extra entry reduces detection recall.

// TrustedShellDomains suppresses pipe-to-shell and cmd-substitution findings
// whose matched text contains one of these domains.
var TrustedShellDomains = []string{
	"bun.sh",
	"sh.rustup.rs",
	"get.docker.com",
	"brew.sh",
	"raw.githubusercontent.com/Homebrew",
	"install.python-poetry.org",
	"get.helm.sh",
	"deno.land",
	"get.pnpm.io",
	"ollama.com",
	"astral.sh",
	"nixos.org",
}

// TrustedExecutableDomains suppresses executable-url findings whose URL
// contains one of these domains.
var TrustedExecutableDomains = []string{
	"github.com",
	"githubusercontent.com",
	"objects.githubusercontent.com",
	"dl.google.com",
	"download.microsoft.com",
	"go.dev",
	"golang.org",
	"nodejs.org",
	"python.org",
	"releases.hashicorp.com",
	"download.mozilla.org",
	"downloads.apache.org",
	"download.oracle.com",
}
