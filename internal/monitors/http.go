package monitors

import (
	"fmt"
	"slices"
)

const (
	maxURLPathLen  = 256
	maxHostnameLen = 256

	minExpectedCodes = 1
	maxExpectedCodes = 3
	minExpectedCode  = 100
	maxExpectedCode  = 599
)

// HTTPStatus issues a bare HTTP/1.0 request against the member and
// succeeds when the response status code is one of the expected codes.
// With useSSL the connection is wrapped in TLS (SNI set to the
// configured hostname, certificates unverified).
type HTTPStatus struct {
	Base `mapstructure:",squash"`

	useSSL bool

	Hostname      string `mapstructure:"hostname" json:"hostname,omitempty"`
	URLPath       string `mapstructure:"url_path" json:"url_path"`
	Port          int    `mapstructure:"port" json:"port"`
	ExpectedCodes []int  `mapstructure:"expected_codes" json:"expected_codes"`
}

func newHTTPStatus(useSSL bool) *HTTPStatus {
	return &HTTPStatus{
		Base:    Base{IntervalSec: 10, TimeoutSec: 5, NumRetries: 2},
		useSSL:  useSSL,
		URLPath: "/",
	}
}

func (m *HTTPStatus) Name() string {
	if m.useSSL {
		return "https_status"
	}
	return "http_status"
}

func (m *HTTPStatus) validate() error {
	if err := m.Base.validate(); err != nil {
		return err
	}

	if len(m.URLPath) > maxURLPathLen {
		return fmt.Errorf("url_path %q must be a string, %d chars max",
			m.URLPath, maxURLPathLen)
	}
	if m.URLPath == "" {
		m.URLPath = "/"
	}
	if m.URLPath[0] != '/' {
		m.URLPath = "/" + m.URLPath
	}

	if len(m.Hostname) > maxHostnameLen {
		return fmt.Errorf("hostname %q must be a string, %d chars max",
			m.Hostname, maxHostnameLen)
	}

	// default port depends on the scheme
	if m.Port == 0 {
		if m.useSSL {
			m.Port = 443
		} else {
			m.Port = 80
		}
	}
	if err := validatePort(m.Port); err != nil {
		return err
	}

	if m.ExpectedCodes == nil {
		m.ExpectedCodes = []int{200}
	}
	if len(m.ExpectedCodes) < minExpectedCodes || len(m.ExpectedCodes) > maxExpectedCodes {
		return fmt.Errorf("expected_codes %v must contain between %d and %d codes",
			m.ExpectedCodes, minExpectedCodes, maxExpectedCodes)
	}
	for _, code := range m.ExpectedCodes {
		if code < minExpectedCode || code > maxExpectedCode {
			return fmt.Errorf("expected code %d must be between %d and %d",
				code, minExpectedCode, maxExpectedCode)
		}
	}
	slices.Sort(m.ExpectedCodes)
	m.ExpectedCodes = slices.Compact(m.ExpectedCodes)

	return nil
}

func (m *HTTPStatus) Run(dstIP string) error {
	req := httpRequest{
		ip:       dstIP,
		port:     m.Port,
		useSSL:   m.useSSL,
		hostname: m.Hostname,
		urlPath:  m.URLPath,
		timeout:  m.Timeout(),
	}

	resp, err := req.get()
	if err != nil {
		return err
	}

	if !slices.Contains(m.ExpectedCodes, resp.statusCode) {
		return fmt.Errorf("%d %s", resp.statusCode, resp.statusReason)
	}
	return nil
}
