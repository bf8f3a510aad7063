package browser

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/spnego"
)

// Auth decorates outgoing requests with credentials.
type Auth interface {
	Apply(req *http.Request) error
	Name() string
}

type noAuth struct{}

// NoAuth sends requests without credentials.
func NoAuth() Auth { return noAuth{} }

func (noAuth) Apply(*http.Request) error { return nil }
func (noAuth) Name() string              { return "none" }

type basicAuth struct {
	username, password string
}

// BasicAuth returns HTTP basic authentication.
func BasicAuth(username, password string) Auth {
	return basicAuth{username: username, password: password}
}

func (a basicAuth) Apply(req *http.Request) error {
	req.SetBasicAuth(a.username, a.password)
	return nil
}

func (basicAuth) Name() string { return "basic" }

// TicketOptions locates the Kerberos configuration and credential cache.
// Empty fields fall back to KRB5_CONFIG / KRB5CCNAME and then the system
// defaults.
type TicketOptions struct {
	ConfigPath string
	CCachePath string
	SPN        string
}

type ticketAuth struct {
	cl  *client.Client
	spn string
}

// TicketAuth returns SPNEGO authentication backed by a ticket the user
// already obtained (kinit). The ticket is never acquired or renewed here.
func TicketAuth(opts TicketOptions) (Auth, error) {
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("KRB5_CONFIG")
	}
	if cfgPath == "" {
		cfgPath = "/etc/krb5.conf"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load kerberos config %s: %w", cfgPath, err)
	}

	ccPath := opts.CCachePath
	if ccPath == "" {
		ccPath = os.Getenv("KRB5CCNAME")
	}
	if ccPath == "" {
		ccPath = fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
	}
	ccPath = strings.TrimPrefix(ccPath, "FILE:")

	ccache, err := credentials.LoadCCache(ccPath)
	if err != nil {
		return nil, fmt.Errorf("load kerberos credential cache %s: %w", ccPath, err)
	}
	cl, err := client.NewFromCCache(ccache, cfg, client.DisablePAFXFAST(true))
	if err != nil {
		return nil, fmt.Errorf("create kerberos client: %w", err)
	}
	return &ticketAuth{cl: cl, spn: opts.SPN}, nil
}

func (a *ticketAuth) Apply(req *http.Request) error {
	if err := spnego.SetSPNEGOHeader(a.cl, req, a.spn); err != nil {
		return fmt.Errorf("negotiate header: %w", err)
	}
	return nil
}

func (*ticketAuth) Name() string { return "ticket" }

// ResolveAuth picks the auth variant from run options. A ticket request wins
// over basic credentials.
func ResolveAuth(username, password string, ticket bool, opts TicketOptions) (Auth, error) {
	switch {
	case ticket:
		return TicketAuth(opts)
	case username != "" || password != "":
		return BasicAuth(username, password), nil
	default:
		return NoAuth(), nil
	}
}
