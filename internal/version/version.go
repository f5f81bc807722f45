package version

// Set at build time via -ldflags, e.g.
// go build -ldflags "-X github.com/formzs/poe-to-gpt/internal/version.Version=v1.2.0"
var (
	Version = "dev"
	Commit  = "none"
)
