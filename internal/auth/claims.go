package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// authClaimNamespace is the namespaced claim OpenAI tokens carry their
// Codex account metadata under.
const authClaimNamespace = "https://api.openai.com/auth"

// ClaimsDecoder reads identity metadata out of a bearer token. The default
// implementation does not verify signatures; it exists as an interface so a
// verifying decoder can be swapped in without touching callers.
type ClaimsDecoder interface {
	DecodeClaims(token string) map[string]interface{}
	ExtractAccountID(token string) string
}

// UnverifiedClaimsDecoder decodes JWT-style payload segments without any
// signature check. The claims are used for routing and display only, never
// for authorization decisions.
type UnverifiedClaimsDecoder struct{}

func (UnverifiedClaimsDecoder) DecodeClaims(token string) map[string]interface{} {
	return DecodeClaims(token)
}

func (UnverifiedClaimsDecoder) ExtractAccountID(token string) string {
	return ExtractAccountID(token)
}

// DecodeClaims extracts the claim set embedded in a token's payload segment.
// It returns nil for anything that does not look like a claims-bearing token;
// malformed input never produces an error.
func DecodeClaims(token string) map[string]interface{} {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil
	}

	payload, err := base64URLDecode(parts[1])
	if err != nil {
		return nil
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil
	}
	return claims
}

// ExtractAccountID resolves the ChatGPT account id from a token's claims.
// Checked in order: the direct chatgpt_account_id claim, the namespaced auth
// claim, then the first entry of the organizations list. Returns "" when no
// claim yields a string.
func ExtractAccountID(token string) string {
	claims := DecodeClaims(token)
	if claims == nil {
		return ""
	}

	if id, ok := claims["chatgpt_account_id"].(string); ok && id != "" {
		return id
	}

	if nested, ok := claims[authClaimNamespace].(map[string]interface{}); ok {
		if id, ok := nested["chatgpt_account_id"].(string); ok && id != "" {
			return id
		}
	}

	if orgs, ok := claims["organizations"].([]interface{}); ok && len(orgs) > 0 {
		if org, ok := orgs[0].(map[string]interface{}); ok {
			if id, ok := org["id"].(string); ok && id != "" {
				return id
			}
		}
	}

	return ""
}

// base64URLDecode decodes a base64url segment, restoring the padding that
// JWTs strip off.
func base64URLDecode(data string) ([]byte, error) {
	data = strings.ReplaceAll(data, "-", "+")
	data = strings.ReplaceAll(data, "_", "/")
	switch len(data) % 4 {
	case 2:
		data += "=="
	case 3:
		data += "="
	}
	return base64.StdEncoding.DecodeString(data)
}
