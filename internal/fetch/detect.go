package fetch

import (
	"bytes"
	"net/http"
	"strings"
)

// Detector examines a direct-fetch response to decide whether a bot
// protection vendor challenged the request instead of serving content.
// Challenged pages carry no extractable data and are worth retrying through
// the browser service.
type Detector func(statusCode int, headers http.Header, body []byte) (detected bool, source string)

// DefaultDetectors returns the standard set of challenge detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// DetectChallenge runs the response through all detectors and returns the
// first hit.
func DetectChallenge(statusCode int, headers http.Header, body []byte, detectors []Detector) (bool, string) {
	for _, d := range detectors {
		if detected, source := d(statusCode, headers, body); detected {
			return true, source
		}
	}
	return false, ""
}

func detectCloudflare(statusCode int, headers http.Header, body []byte) (bool, string) {
	// 403/503 are the usual CF challenge statuses
	if statusCode == http.StatusForbidden || statusCode == http.StatusServiceUnavailable {
		if strings.Contains(strings.ToLower(headers.Get("Server")), "cloudflare") {
			return true, "Cloudflare"
		}

		if bytes.Contains(body, []byte("cf-browser-verification")) ||
			bytes.Contains(body, []byte("cloudflare-nginx")) ||
			bytes.Contains(body, []byte("cf-turnstile")) ||
			bytes.Contains(body, []byte("Attention Required! | Cloudflare")) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}

func detectAkamai(statusCode int, headers http.Header, body []byte) (bool, string) {
	if statusCode == http.StatusForbidden {
		if strings.Contains(strings.ToLower(headers.Get("Server")), "akamai") {
			return true, "Akamai"
		}

		// Akamai's generic block page carries a "Reference #"
		if bytes.Contains(body, []byte("Reference #")) && bytes.Contains(body, []byte("Access Denied")) {
			return true, "Akamai"
		}
	}
	return false, ""
}

func detectDataDome(statusCode int, headers http.Header, body []byte) (bool, string) {
	if statusCode == http.StatusForbidden {
		if strings.Contains(strings.ToLower(headers.Get("Server")), "datadome") {
			return true, "DataDome"
		}

		if headers.Get("X-DataDome") != "" || headers.Get("X-DataDome-Response") != "" {
			return true, "DataDome"
		}

		if bytes.Contains(body, []byte("geo.captcha-delivery.com")) || bytes.Contains(body, []byte("datadome")) {
			return true, "DataDome"
		}
	}
	return false, ""
}

func detectPerimeterX(statusCode int, headers http.Header, body []byte) (bool, string) {
	if statusCode == http.StatusForbidden {
		if headers.Get("X-Px-Captcha") != "" {
			return true, "PerimeterX"
		}

		if bytes.Contains(body, []byte("client.perimeterx.net")) ||
			bytes.Contains(body, []byte("px-captcha")) ||
			bytes.Contains(body, []byte("_pxBlock")) {
			return true, "PerimeterX"
		}
	}
	return false, ""
}
