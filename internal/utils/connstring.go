package utils

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// ExtractServerName returns the lowercased host component of a SQL Server
// connection string in URL form. localhost and IP addresses are replaced
// with the machine's hostname so lock and blob paths stay meaningful
// across environments.
func ExtractServerName(connectionString string) (string, error) {
	u, err := url.Parse(connectionString)
	if err != nil {
		return "", fmt.Errorf("failed to parse connection string: %w", err)
	}

	host := u.Host
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if idx := strings.Index(host, "\\"); idx != -1 {
		host = host[:idx]
	}
	if host == "" {
		return "", fmt.Errorf("server name not found in connection string")
	}

	if strings.EqualFold(host, "localhost") || net.ParseIP(host) != nil {
		hostname, err := os.Hostname()
		if err != nil {
			return "", fmt.Errorf("failed to get hostname: %w", err)
		}
		host = hostname
	}

	return strings.ToLower(strings.Split(host, ".")[0]), nil
}
