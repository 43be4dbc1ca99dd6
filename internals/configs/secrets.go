// file: internals/configs/secrets.go
package configs

import (
	"fmt"
	"strings"
)

// SecretStore abstracts wherever bearer credentials and per-tenant DSNs live.
// Implementasi default pakai ENV, sama seperti kredensial lain di project ini.
type SecretStore interface {
	GetGlobalSecret(name string) (string, error)
	GetTenantSecret(prefix, name string) (string, error)
}

type EnvSecretStore struct{}

func NewEnvSecretStore() *EnvSecretStore { return &EnvSecretStore{} }

func (s *EnvSecretStore) GetGlobalSecret(name string) (string, error) {
	v := GetEnv(envKey(name))
	if v == "" {
		return "", fmt.Errorf("secret %s tidak ditemukan", name)
	}
	return v, nil
}

func (s *EnvSecretStore) GetTenantSecret(prefix, name string) (string, error) {
	v := GetEnv(envKey(prefix + "_" + name))
	if v == "" {
		return "", fmt.Errorf("secret %s/%s tidak ditemukan", prefix, name)
	}
	return v, nil
}

func envKey(name string) string {
	k := strings.ToUpper(name)
	k = strings.ReplaceAll(k, "-", "_")
	k = strings.ReplaceAll(k, ".", "_")
	return k
}
