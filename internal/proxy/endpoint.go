// Package proxy maintains a pool of outbound proxy endpoints, selects one
// per request under a configurable rotation strategy, and executes HTTP
// requests with bounded retries, feeding observed success/failure and
// latency back into per-endpoint statistics.
package proxy

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Endpoint is a proxy address in the form scheme://[user:pass@]host:port.
// The pool treats it as an opaque key: no validation and no deduplication
// happen at load time, so a malformed entry only surfaces as a
// request-time failure against that entry.
type Endpoint string

// URL returns the endpoint formatted for use as an outbound proxy URL.
// Entries without an explicit scheme default to http.
func (e Endpoint) URL() (*url.URL, error) {
	raw := string(e)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "proxy: parse endpoint %q", string(e))
	}
	return u, nil
}
