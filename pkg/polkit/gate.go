// Package polkit asks the system policy service whether the calling process
// may perform a privileged action.
package polkit

import (
	"context"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/logging"
	"github.com/grovetools/wizard/pkg/bus"
	"github.com/sirupsen/logrus"
)

const (
	AuthorityName      = "org.freedesktop.PolicyKit1"
	AuthorityPath      = dbus.ObjectPath("/org/freedesktop/PolicyKit1/Authority")
	AuthorityInterface = "org.freedesktop.PolicyKit1.Authority"

	// AllowUserInteraction lets polkit prompt for credentials.
	AllowUserInteraction uint32 = 1

	errorCancelled     = "org.freedesktop.PolicyKit1.Error.Cancelled"
	errorNotAuthorized = "org.freedesktop.PolicyKit1.Error.NotAuthorized"
)

// Result is the outcome of an authorization check.
type Result int

const (
	Authorized Result = iota
	Denied
)

func (r Result) String() string {
	if r == Authorized {
		return "authorized"
	}
	return "denied"
}

// AuthorizationResult is polkit's (bba{ss}) reply.
type AuthorizationResult struct {
	IsAuthorized bool
	IsChallenge  bool
	Details      map[string]string
}

// Authority is the polkit authority object.
type Authority struct {
	obj bus.Object
}

// NewAuthority binds the authority on a system bus connection.
func NewAuthority(conn bus.Conn) *Authority {
	return &Authority{obj: conn.Object(AuthorityName, AuthorityPath)}
}

// CheckAuthorization calls CheckAuthorization and returns its reply.
func (a *Authority) CheckAuthorization(ctx context.Context, subject Subject, action string, details map[string]string, flags uint32, cancelID string) (AuthorizationResult, error) {
	var result AuthorizationResult
	err := a.obj.CallWithContext(ctx, AuthorityInterface+".CheckAuthorization", 0,
		subject, action, details, flags, cancelID).Store(&result)
	return result, err
}

// Gate checks actions for one process.
type Gate struct {
	dial     bus.Dialer
	resolver SubjectResolver
	pid      func() uint32
	logger   *logrus.Entry
}

// Option configures a Gate.
type Option func(*Gate)

// WithPID fixes the process checked instead of the current one.
func WithPID(pid uint32) Option {
	return func(g *Gate) { g.pid = func() uint32 { return pid } }
}

// WithResolver replaces the proc filesystem resolver.
func WithResolver(r SubjectResolver) Option {
	return func(g *Gate) { g.resolver = r }
}

// NewGate returns a gate that reaches polkit through dial.
func NewGate(dial bus.Dialer, opts ...Option) *Gate {
	g := &Gate{
		dial:     dial,
		resolver: ProcessResolver{},
		pid:      func() uint32 { return uint32(os.Getpid()) },
		logger:   logging.NewLogger("polkit"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check asks whether action is allowed, letting polkit prompt the user.
// Process id 0 is always authorized. A dismissed prompt is Denied, not an
// error.
func (g *Gate) Check(ctx context.Context, action string) (Result, error) {
	pid := g.pid()
	logger := g.logger.WithFields(logrus.Fields{"action": action, "pid": pid})
	if pid == 0 {
		logger.Debug("No subject, authorized")
		return Authorized, nil
	}

	subject, err := g.resolver.Resolve(ctx, pid)
	if err != nil {
		return Denied, errors.GateFailed("resolve subject", err)
	}

	conn, err := g.dial(ctx, bus.SystemScope)
	if err != nil {
		return Denied, errors.GateFailed("connect", err)
	}
	defer conn.Close()

	res, err := NewAuthority(conn).CheckAuthorization(ctx, subject, action,
		map[string]string{}, AllowUserInteraction, "")
	if err != nil {
		switch bus.ErrorName(err) {
		case errorCancelled, errorNotAuthorized:
			logger.WithError(err).Info("Authorization dismissed")
			return Denied, nil
		}
		return Denied, errors.GateFailed("check authorization", err)
	}

	if !res.IsAuthorized {
		logger.WithField("challenge", res.IsChallenge).Info("Authorization denied")
		return Denied, nil
	}
	logger.Info("Authorized")
	return Authorized, nil
}
