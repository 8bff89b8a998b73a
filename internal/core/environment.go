package core

// Environment identifies the deployment tier the process runs in. It drives
// log verbosity and any other tier-dependent defaults.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether e is the production tier.
func (e Environment) IsProduction() bool {
	return e == Production
}

// ParseEnvironment maps the ENVIRONMENT value to a known tier. Anything
// unrecognized counts as development so a local run never needs the variable
// set.
func ParseEnvironment(v string) Environment {
	switch Environment(v) {
	case Production, Staging, Testing:
		return Environment(v)
	default:
		return Development
	}
}
