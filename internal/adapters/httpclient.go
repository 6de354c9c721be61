package adapters

import "net/http"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=adapters_test -destination=mock_http_client_test.go -source=httpclient.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
