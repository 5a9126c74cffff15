package provider

import (
	"net/http"
	"reflect"
	"sync"
	"time"
)

// DefaultTimeout bounds requests made by the process-wide client.
const DefaultTimeout = 10 * time.Second

// HTTPClient sends provider requests. *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var (
	sharedOnce   sync.Once
	sharedClient HTTPClient
)

// SharedHTTPClient returns the process-wide client, creating it on first use.
func SharedHTTPClient() HTTPClient {
	sharedOnce.Do(func() {
		sharedClient = &http.Client{Timeout: DefaultTimeout}
	})
	return sharedClient
}

// ResolveHTTPClient picks the client a provider uses: the one given in its
// options, else the injected default, else the process-wide client. A typed
// nil such as (*http.Client)(nil) counts as absent.
func ResolveHTTPClient(explicit, injected HTTPClient) HTTPClient {
	if !isNil(explicit) {
		return explicit
	}
	if !isNil(injected) {
		return injected
	}
	return SharedHTTPClient()
}

func isNil(c HTTPClient) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
