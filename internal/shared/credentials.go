// Session credentials for the Deezer gateway.
package shared

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// CredentialProvider supplies the session token attached to every gateway request.
//
// The token is opaque; where it came from is the provider's business.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticCredential is a token given directly by flag, environment or config.
type StaticCredential string

// Token returns the static token, or [ErrAuthentication] if it is empty.
func (s StaticCredential) Token(context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", fmt.Errorf("%w: %w: no session token", ErrAuthentication, ErrMissingCredentials)
	}
	return token, nil
}

// CurlFileCredential reads the sid cookie from a saved "Copy as cURL" request.
type CurlFileCredential string

// Token parses the file and returns its sid cookie.
func (c CurlFileCredential) Token(context.Context) (string, error) {
	headers, err := ParseCurlFile(string(c))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	sid := headers.SessionID()
	if sid == "" {
		return "", fmt.Errorf("%w: %w: no sid cookie in %s", ErrAuthentication, ErrMissingCredentials, string(c))
	}
	return sid, nil
}

// ChainCredential returns the first token any of its providers can supply.
type ChainCredential []CredentialProvider

// Token tries each provider in order.
func (c ChainCredential) Token(ctx context.Context) (string, error) {
	lastErr := fmt.Errorf("%w: %w: no credential providers", ErrAuthentication, ErrMissingCredentials)
	for _, p := range c {
		if p == nil {
			continue
		}
		token, err := p.Token(ctx)
		if err == nil {
			return token, nil
		}
		lastErr = err
	}
	return "", lastErr
}

// CurlHeaders represents parsed headers and cookies from a cURL command.
type CurlHeaders struct {
	Headers map[string]string
	Cookie  string
}

var (
	headerRegex = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	cookieRegex = regexp.MustCompile(`(?:-b|--cookie)\s+'([^']+)'|(?:-b|--cookie)\s+"([^"]+)"`)
)

// ParseCurlFile reads a .sh file containing a cURL command and extracts headers.
func ParseCurlFile(filepath string) (*CurlHeaders, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(string(content))
}

// ParseCurlCommand parses a cURL command string and extracts headers.
//
// A -b/--cookie argument takes precedence over a Cookie header.
func ParseCurlCommand(curlCmd string) (*CurlHeaders, error) {
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	headers := make(map[string]string)
	var cookie string

	for _, match := range headerRegex.FindAllStringSubmatch(curlCmd, -1) {
		headerLine := firstNonEmpty(match[1], match[2])
		key, value, ok := strings.Cut(headerLine, ":")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if strings.EqualFold(key, "cookie") {
			if cookie == "" {
				cookie = value
			}
			continue
		}
		headers[key] = value
	}

	if m := cookieRegex.FindStringSubmatch(curlCmd); len(m) > 2 {
		cookie = firstNonEmpty(m[1], m[2])
	}

	if len(headers) == 0 && cookie == "" {
		return nil, fmt.Errorf("no headers found in curl command")
	}

	return &CurlHeaders{Headers: headers, Cookie: cookie}, nil
}

// SessionID returns the value of the sid cookie, or an empty string.
func (c *CurlHeaders) SessionID() string {
	for _, part := range strings.Split(c.Cookie, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name == "sid" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
