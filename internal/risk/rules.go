package risk

import (
	"fmt"

	"github.com/dshills/prsignal/internal/glob"
	"github.com/dshills/prsignal/internal/model"
)

// Rule maps a glob pattern to a risk category and severity.
type Rule struct {
	Pattern  string         `json:"pattern" yaml:"pattern" mapstructure:"pattern"`
	Category string         `json:"category" yaml:"category" mapstructure:"category"`
	Severity model.Severity `json:"severity,omitempty" yaml:"severity,omitempty" mapstructure:"severity"`
	Message  string         `json:"message" yaml:"message" mapstructure:"message"`
}

// Normalize returns a copy of r with the severity defaulted to medium when it
// is missing or not a recognised level.
func (r Rule) Normalize() Rule {
	if sev, ok := model.ParseSeverity(string(r.Severity)); ok {
		r.Severity = sev
	} else {
		r.Severity = model.SeverityMedium
	}
	return r
}

var defaultRules = []Rule{
	{"**/.env*", "security", model.SeverityHigh, "Environment file changed; make sure no secrets are committed"},
	{"**/*.pem", "security", model.SeverityHigh, "Certificate or private key file changed"},
	{"**/*.key", "security", model.SeverityHigh, "Private key file changed"},
	{"**/*.p12", "security", model.SeverityHigh, "Keystore file changed"},
	{"**/*secret*", "security", model.SeverityHigh, "File name suggests it holds secrets"},
	{"**/*credential*", "security", model.SeverityHigh, "File name suggests it holds credentials"},
	{"**/auth/**", "security", model.SeverityMedium, "Authentication code changed; review access control carefully"},
	{"**/*auth*.*", "security", model.SeverityMedium, "Authentication-related file changed"},

	{"**/migrations/**", "database", model.SeverityHigh, "Database migration; check reversibility and locking impact"},
	{"**/migrate/**", "database", model.SeverityHigh, "Database migration; check reversibility and locking impact"},
	{"**/*.sql", "database", model.SeverityMedium, "SQL changed; verify queries and schema effects"},
	{"**/schema.prisma", "database", model.SeverityMedium, "Database schema definition changed"},
	{"**/schema.rb", "database", model.SeverityMedium, "Database schema definition changed"},

	{".github/workflows/**", "infrastructure", model.SeverityHigh, "CI/CD workflow changed"},
	{"**/*.tf", "infrastructure", model.SeverityHigh, "Terraform infrastructure changed"},
	{"**/k8s/**", "infrastructure", model.SeverityHigh, "Kubernetes manifests changed"},
	{"**/helm/**", "infrastructure", model.SeverityHigh, "Helm chart changed"},
	{"**/Dockerfile*", "infrastructure", model.SeverityMedium, "Container image definition changed"},
	{"**/docker-compose*.y*ml", "infrastructure", model.SeverityMedium, "Docker Compose configuration changed"},

	{"**/package.json", "dependencies", model.SeverityMedium, "Node.js dependencies changed"},
	{"**/go.mod", "dependencies", model.SeverityMedium, "Go module dependencies changed"},
	{"**/requirements*.txt", "dependencies", model.SeverityMedium, "Python dependencies changed"},
	{"**/Gemfile", "dependencies", model.SeverityMedium, "Ruby dependencies changed"},
	{"**/pom.xml", "dependencies", model.SeverityMedium, "Maven dependencies changed"},
	{"**/Cargo.toml", "dependencies", model.SeverityMedium, "Rust dependencies changed"},
	{"**/package-lock.json", "dependencies", model.SeverityLow, "Lockfile updated"},
	{"**/yarn.lock", "dependencies", model.SeverityLow, "Lockfile updated"},
	{"**/go.sum", "dependencies", model.SeverityLow, "Lockfile updated"},
	{"**/Gemfile.lock", "dependencies", model.SeverityLow, "Lockfile updated"},
	{"**/Cargo.lock", "dependencies", model.SeverityLow, "Lockfile updated"},

	{"**/api/**", "api", model.SeverityMedium, "Public API surface changed; check backwards compatibility"},
	{"**/routes/**", "api", model.SeverityMedium, "Routing changed; check backwards compatibility"},
	{"**/*.proto", "api", model.SeverityMedium, "Protocol buffer contract changed"},
	{"**/openapi.*", "api", model.SeverityMedium, "OpenAPI contract changed"},

	{"**/config/**", "configuration", model.SeverityLow, "Configuration changed"},
	{"**/*.config.*", "configuration", model.SeverityLow, "Tooling configuration changed"},
	{"**/settings.*", "configuration", model.SeverityLow, "Settings changed"},
}

// DefaultRules returns a fresh copy of the built-in ordered rule set.
func DefaultRules() []Rule {
	out := make([]Rule, len(defaultRules))
	copy(out, defaultRules)
	return out
}

// Rules returns the default rules followed by the normalised custom rules.
func Rules(custom []Rule) []Rule {
	out := DefaultRules()
	for _, r := range custom {
		out = append(out, r.Normalize())
	}
	return out
}

// Invalid returns one error per rule whose pattern is malformed. Such rules
// are still accepted by Classify; they simply never match.
func Invalid(rules []Rule) []error {
	var errs []error
	for i, r := range rules {
		if err := glob.Validate(r.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("rule %d (%s): %w", i, r.Category, err))
		}
	}
	return errs
}
