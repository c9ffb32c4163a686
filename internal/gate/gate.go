// Package gate orchestrates one command's trip through classification,
// denied-command memory, challenge verification, authentication, and the
// audit trail.
package gate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/veto-sh/veto/internal/audit"
	"github.com/veto-sh/veto/internal/auth"
	"github.com/veto-sh/veto/internal/challenge"
	"github.com/veto-sh/veto/internal/models"
	"github.com/veto-sh/veto/internal/rules"
	"github.com/veto-sh/veto/internal/secret"
)

// Request is one command presented to the gate.
type Request struct {
	Command string
	// FileOp indicates Command is a file path to match against rule paths.
	FileOp bool
	// Interactive allows terminal prompts; hook adapters leave it false.
	Interactive bool
	// Force bypasses the denied-command memory (VETO_FORCE=yes).
	Force bool
	// AuthMethod overrides the configured chain with a single method.
	AuthMethod string
	Creds      auth.Credentials
}

// ForceFromEnv reads the VETO_FORCE bypass flag.
func ForceFromEnv() bool {
	return strings.EqualFold(os.Getenv("VETO_FORCE"), "yes")
}

// Result is the gate's decision plus everything needed to explain it.
type Result struct {
	Verdict  models.Verdict
	Decision auth.Decision
	Method   string
	Reason   string
	// Recorded is what went into the audit trail.
	Recorded audit.Result
	// Challenge is set when a new challenge was issued this evaluation;
	// Delivered lists the channels that carried it.
	Challenge *challenge.Challenge
	Delivered []string
}

// Allowed reports whether the command may run.
func (r Result) Allowed() bool { return r.Decision == auth.Approved }

// Gate wires the evaluation pipeline together.
type Gate struct {
	Engine     *rules.Engine
	Auth       *auth.Manager
	Challenges *challenge.Manager
	Denied     *DeniedMemory
	Audit      *audit.Log
	Config     *models.Config
	Store      secret.Store
}

// Evaluate runs the full pipeline for one request and records the outcome.
func (g *Gate) Evaluate(ctx context.Context, req Request) Result {
	var verdict models.Verdict
	if req.FileOp {
		verdict = g.Engine.ClassifyPath(req.Command)
	} else {
		verdict = g.Engine.Classify(req.Command)
	}

	if verdict.Risk == models.RiskAllow {
		return g.record(req, Result{
			Verdict:  verdict,
			Decision: auth.Approved,
			Method:   "none",
			Reason:   verdict.Reason,
			Recorded: audit.ResultAllowed,
		})
	}

	// A command the human already denied this session is refused outright;
	// re-prompting would let an agent retry until the human slips.
	if !req.Force && g.Denied.IsDenied(req.Command) {
		return g.record(req, Result{
			Verdict:  verdict,
			Decision: auth.Denied,
			Method:   "denied-memory",
			Reason:   "command was recently denied; set VETO_FORCE=yes to ask again",
			Recorded: audit.ResultBlocked,
		})
	}

	if res, handled := g.challengeStep(verdict, req); handled {
		return g.record(req, res)
	}

	authReq := &auth.Request{
		Command:     req.Command,
		Interactive: req.Interactive,
		Creds:       req.Creds,
	}
	var outcome auth.Outcome
	if req.AuthMethod != "" {
		outcome = g.Auth.RunChain(ctx, []string{req.AuthMethod}, authReq)
	} else {
		outcome = g.Auth.Authenticate(ctx, verdict.Risk, authReq)
	}

	res := Result{
		Verdict:  verdict,
		Decision: outcome.Decision,
		Method:   outcome.Method,
		Reason:   outcome.Reason,
	}
	switch outcome.Decision {
	case auth.Approved:
		res.Recorded = audit.ResultAllowed
		g.Denied.Forget(req.Command)
	case auth.NeedsInput:
		res.Recorded = audit.ResultBlocked
	default:
		res.Recorded = audit.ResultDenied
		if outcome.Explicit {
			if err := g.Denied.Mark(req.Command); err != nil {
				res.Reason = fmt.Sprintf("%s (failed to record denial: %v)", res.Reason, err)
			}
		}
	}
	return g.record(req, res)
}

// challengeStep handles rules flagged for challenge-response in
// non-interactive contexts. Interactive callers authenticate directly; the
// totp method is its own challenge and skips this path.
func (g *Gate) challengeStep(verdict models.Verdict, req Request) (Result, bool) {
	if !verdict.Challenge || req.Interactive {
		return Result{}, false
	}
	chain := g.Auth.MethodsForLevel(verdict.Risk)
	if len(chain) == 0 {
		return Result{}, false
	}
	method := chain[0]
	if method == "totp" {
		return Result{}, false
	}

	if req.Creds.Response == "" {
		// Reuse a live challenge rather than issuing a second one; a fresh
		// code would shadow the one already delivered.
		ch, ok := g.Challenges.Pending(req.Command)
		if !ok {
			var err error
			ch, err = g.Challenges.Issue(req.Command)
			if err != nil {
				return Result{
					Verdict:  verdict,
					Decision: auth.Denied,
					Method:   method,
					Reason:   fmt.Sprintf("failed to issue challenge: %v", err),
					Recorded: audit.ResultBlocked,
				}, true
			}
		}
		delivered := challenge.Notify(ch, req.Command, g.Config.Auth.Telegram, g.Store)
		return Result{
			Verdict:   verdict,
			Decision:  auth.NeedsInput,
			Method:    method,
			Reason:    challengeInstructions(method, delivered),
			Recorded:  audit.ResultBlocked,
			Challenge: ch,
			Delivered: delivered,
		}, true
	}

	err := g.Challenges.Verify(req.Command, req.Creds.Response, method, func(pin string) (bool, error) {
		return auth.CheckPIN(g.Store, pin)
	})
	if err != nil {
		reason := "challenge failed: " + err.Error()
		recorded := audit.ResultDenied
		if errors.Is(err, challenge.ErrExpired) || errors.Is(err, challenge.ErrNotFound) {
			recorded = audit.ResultBlocked
		}
		return Result{
			Verdict:  verdict,
			Decision: auth.Denied,
			Method:   method,
			Reason:   reason,
			Recorded: recorded,
		}, true
	}

	g.Denied.Forget(req.Command)
	return Result{
		Verdict:  verdict,
		Decision: auth.Approved,
		Method:   method,
		Reason:   "challenge verified",
		Recorded: audit.ResultAllowed,
	}, true
}

func challengeInstructions(method string, delivered []string) string {
	where := "nowhere (no notification channel available)"
	if len(delivered) > 0 {
		where = strings.Join(delivered, ", ")
	}
	format := "the code"
	if method == "pin" {
		format = "your PIN immediately followed by the code"
	}
	return fmt.Sprintf(
		"challenge sent via %s; retry with VETO_RESPONSE set to %s", where, format)
}

// record appends the decision to the audit trail. Audit failures never flip
// a decision but are surfaced in the reason.
func (g *Gate) record(req Request, res Result) Result {
	entry := audit.Entry{
		Result:  res.Recorded,
		Risk:    res.Verdict.Risk,
		Method:  res.Method,
		Command: req.Command,
	}
	if err := g.Audit.Append(entry); err != nil {
		res.Reason = fmt.Sprintf("%s (audit write failed: %v)", res.Reason, err)
	}
	return res
}

// RecordBlocked writes a BLOCKED entry for failures that happen before a
// gate can even be constructed, e.g. a malformed rules file. Fail-closed:
// the risk is recorded as CRITICAL because it could not be assessed.
func RecordBlocked(log *audit.Log, command string) {
	_ = log.Append(audit.Entry{
		Result:  audit.ResultBlocked,
		Risk:    models.RiskCritical,
		Method:  "config-error",
		Command: command,
	})
}
