package service

import (
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// UnknownCountry is the fallback code when every detection path fails.
	UnknownCountry = "UN"
	// LocalIdentity is the fallback identity for requests with no usable address.
	LocalIdentity = "local"
)

// VisitorResolver derives a stable identity key and a country code from
// request metadata. Resolution never fails: every missing or malformed
// input degrades to a fallback value.
type VisitorResolver struct {
	// GeoLookupURL, when set, is queried as GET <url>/<ip>/country/ for a
	// best-effort reverse-IP country lookup (ipapi.co format). Empty
	// disables the lookup.
	GeoLookupURL string

	httpClient *http.Client
}

func NewVisitorResolver(geoLookupURL string) *VisitorResolver {
	return &VisitorResolver{
		GeoLookupURL: geoLookupURL,
		httpClient:   &http.Client{Timeout: 2 * time.Second},
	}
}

// Resolve returns (identityKey, country) for the request. payloadCountry is
// the country the client detected itself, which wins when it looks valid.
func (v *VisitorResolver) Resolve(r *http.Request, payloadCountry string) (string, string) {
	identity := v.resolveIdentity(r)
	country := v.resolveCountry(r, payloadCountry, identity)
	return identity, country
}

func (v *VisitorResolver) resolveIdentity(r *http.Request) string {
	if userID := strings.TrimSpace(r.Header.Get("X-User-ID")); userID != "" {
		return "user:" + userID
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
		if first != "" {
			return first
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return LocalIdentity
}

func (v *VisitorResolver) resolveCountry(r *http.Request, payloadCountry, identity string) string {
	if code, ok := normalizeCountry(payloadCountry); ok {
		return code
	}

	for _, header := range []string{"CF-IPCountry", "X-Vercel-IP-Country"} {
		if code, ok := normalizeCountry(r.Header.Get(header)); ok {
			return code
		}
	}

	if v.GeoLookupURL != "" && net.ParseIP(identity) != nil {
		if code, ok := v.lookupCountry(identity); ok {
			return code
		}
	}

	return UnknownCountry
}

// lookupCountry calls the reverse-IP geolocation endpoint. Failures are
// logged and swallowed so resolution never blocks the caller beyond the
// client timeout.
func (v *VisitorResolver) lookupCountry(ip string) (string, bool) {
	url := fmt.Sprintf("%s/%s/country/", strings.TrimRight(v.GeoLookupURL, "/"), ip)
	resp, err := v.httpClient.Get(url)
	if err != nil {
		log.Printf("Geo lookup failed for %s: %v", ip, err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Geo lookup for %s returned status %d", ip, resp.StatusCode)
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16))
	if err != nil {
		log.Printf("Geo lookup read failed for %s: %v", ip, err)
		return "", false
	}

	return normalizeCountry(string(body))
}

// normalizeCountry upper-cases a candidate code and rejects anything that is
// not two ASCII letters.
func normalizeCountry(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return "", false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return "", false
		}
	}
	return code, true
}
