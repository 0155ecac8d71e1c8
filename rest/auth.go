package rest

import nethttp "net/http"

// Authentication decides how outgoing requests are credentialed. The set of
// strategies is closed: NoAuthentication and BasicAuthentication.
type Authentication interface {
	authenticate(req *nethttp.Request)
}

// NoAuthentication sends requests without credentials
type NoAuthentication struct{}

func (NoAuthentication) authenticate(*nethttp.Request) {}

// BasicAuthentication sends preemptive HTTP Basic credentials with every request
type BasicAuthentication struct {
	Username string
	Password string
}

func (b BasicAuthentication) authenticate(req *nethttp.Request) {
	req.SetBasicAuth(b.Username, b.Password)
}
