package packagekit

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/pkg/bus"
	"github.com/sirupsen/logrus"
)

// DefaultHints mark the session interactive and opt in to plural signals.
var DefaultHints = []string{"interactive=true", "supports-plural-signals=true"}

// State is the lifecycle position of a Session.
type State int

const (
	StateCreated State = iota
	StateRequested
	StateStreaming
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRequested:
		return "requested"
	case StateStreaming:
		return "streaming"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "invalid"
}

// Operation is the work a session requests.
type Operation int

const (
	// OperationQuery asks for the details of local files.
	OperationQuery Operation = iota
	// OperationInstall installs local files.
	OperationInstall
)

func (o Operation) String() string {
	if o == OperationInstall {
		return "install"
	}
	return "query"
}

// Request describes one session's work.
type Request struct {
	Operation Operation
	// Files are absolute paths.
	Files []string
	// Flags apply to installs. Zero means FlagNone.
	Flags TransactionFlag
	// Hints replace DefaultHints when set.
	Hints []string
}

// ProgressFunc receives the aggregate percentage on every ItemProgress
// signal. It runs on the session's goroutine.
type ProgressFunc func(percentage uint32)

// Outcome is the result of a session that reached Finished.
type Outcome struct {
	// Details is set for queries, in arrival order. An empty list means
	// PackageKit reported no usable metadata.
	Details []PackageDetail `json:"details,omitempty"`
	// Installed is set for installs.
	Installed bool                   `json:"installed"`
	Packages  []InstalledPackageInfo `json:"packages,omitempty"`
	Progress  *ProgressSample        `json:"progress,omitempty"`
	Exit      Exit                   `json:"exit"`
}

// Session folds the signal stream of one transaction into an Outcome.
// A session runs once.
type Session struct {
	tx     *Transaction
	id     string
	logger *logrus.Entry

	mu    sync.Mutex
	state State

	details  []PackageDetail
	packages []InstalledPackageInfo
	last     *ProgressSample
}

// NewSession returns a session that owns tx.
func NewSession(tx *Transaction) *Session {
	id := uuid.NewString()
	return &Session{
		tx: tx,
		id: id,
		logger: log.WithFields(logrus.Fields{
			"session": id,
			"path":    string(tx.Path()),
		}),
		state: StateCreated,
	}
}

// ID returns the correlation id used in the session's log entries.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.logger.WithField("state", state.String()).Debug("Session state changed")
}

// Run sets the hints, issues the request and consumes signals until
// Finished, ErrorCode, the end of the feed, or ctx is done. The feed is
// armed before the request so no early signal is missed.
func (s *Session) Run(ctx context.Context, req Request, progress ProgressFunc) (*Outcome, error) {
	if s.State() != StateCreated {
		return nil, errors.New(errors.ErrCodeInternal, "session already ran").WithDetail("session", s.id)
	}
	s.logger.WithFields(logrus.Fields{
		"operation": req.Operation.String(),
		"files":     len(req.Files),
	}).Info("Starting transaction")

	hints := req.Hints
	if len(hints) == 0 {
		hints = DefaultHints
	}
	if err := s.tx.SetHints(ctx, hints...); err != nil {
		return nil, s.fail(err)
	}

	feed, err := s.tx.Subscribe()
	if err != nil {
		return nil, s.fail(err)
	}
	defer feed.Close()

	switch req.Operation {
	case OperationInstall:
		flags := req.Flags
		if flags == 0 {
			flags = FlagNone
		}
		err = s.tx.InstallFiles(ctx, flags, req.Files)
	default:
		err = s.tx.GetDetailsLocal(ctx, req.Files)
	}
	if err != nil {
		return nil, s.fail(err)
	}
	s.setState(StateRequested)
	s.setState(StateStreaming)

	prefix := TransactionInterface + "."
	for {
		select {
		case <-ctx.Done():
			return nil, s.fail(errors.Cancelled(ctx.Err()))
		case sig, ok := <-feed.Signals():
			if !ok {
				return nil, s.fail(errors.ConnectionClosed())
			}
			if sig == nil || sig.Path != s.tx.Path() || !strings.HasPrefix(sig.Name, prefix) {
				continue
			}

			event, err := Decode(bus.Member(sig.Name), sig.Body, s.tx)
			if err != nil {
				return nil, s.fail(err)
			}

			switch e := event.(type) {
			case Details:
				if e.Detail != nil {
					s.details = append(s.details, *e.Detail)
				}
			case Package:
				for _, info := range e.Infos {
					s.logger.WithFields(logrus.Fields{
						"info":       info.Info.String(),
						"package_id": info.PackageID,
					}).Debug("Package")
				}
				s.packages = append(s.packages, e.Infos...)
			case ItemProgress:
				s.foldProgress(e.Sample, progress)
			case ErrorCode:
				return nil, s.fail(errors.TransactionFailed(e.Code, e.Message).
					WithDetail("kind", ErrorKind(e.Code).String()))
			case Finished:
				return s.finish(req.Operation, e), nil
			}
		}
	}
}

func (s *Session) foldProgress(sample ProgressSample, progress ProgressFunc) {
	if sample.OverallPercentage > 100 {
		sample.OverallPercentage = 0
		if s.last != nil {
			sample.OverallPercentage = s.last.OverallPercentage
		}
	}
	s.last = &sample
	s.logger.WithFields(logrus.Fields{
		"status":     sample.Status.String(),
		"package_id": sample.PackageID,
		"item":       sample.ItemPercentage,
		"overall":    sample.OverallPercentage,
	}).Debug("Progress")
	if progress != nil {
		progress(sample.OverallPercentage)
	}
}

func (s *Session) finish(op Operation, f Finished) *Outcome {
	out := &Outcome{
		Packages: s.packages,
		Progress: s.last,
		Exit:     f.Exit,
	}
	if op == OperationInstall {
		out.Installed = !f.Exit.Failed()
	} else {
		out.Details = s.details
		if out.Details == nil {
			out.Details = []PackageDetail{}
		}
	}
	s.setState(StateSucceeded)
	s.logger.WithFields(logrus.Fields{
		"exit":      f.Exit.String(),
		"runtime":   f.Runtime,
		"details":   len(s.details),
		"installed": out.Installed,
	}).Info("Transaction finished")
	return out
}

func (s *Session) fail(err error) error {
	s.setState(StateFailed)
	s.logger.WithError(err).Warn("Transaction failed")
	return err
}
