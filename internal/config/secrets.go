package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
)

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

// Resolver expands ${ENV:name}, ${VAULT:path#key} and ${AWS_SM:name}
// references. References may be embedded in a longer value, such as the
// password part of a connection URI.
type Resolver struct {
	VaultAddress string
	AWSRegion    string
	AWSProfile   string
}

// ResolveValue resolves secret references using environment defaults.
func ResolveValue(val string) (string, error) {
	return (&Resolver{}).Resolve(context.Background(), val)
}

// Resolve replaces every reference in val with its secret.
func (r *Resolver) Resolve(ctx context.Context, val string) (string, error) {
	var firstErr error
	out := secretPattern.ReplaceAllStringFunc(val, func(ref string) string {
		if firstErr != nil {
			return ref
		}
		m := secretPattern.FindStringSubmatch(ref)
		secret, err := r.lookup(ctx, m[1], m[2])
		if err != nil {
			firstErr = err
			return ref
		}
		return secret
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func (r *Resolver) lookup(ctx context.Context, provider, ref string) (string, error) {
	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ctx, r.VaultAddress, ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ctx, r.AWSRegion, r.AWSProfile, ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}
