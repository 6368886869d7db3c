// Package txn implements the Transaction Engine: multi-parameter
// configuration changes driven through validate -> snapshot -> apply ->
// commit/rollback, with atomic-vs-best-effort semantics and a
// notification callback on completion.
//
// A Transaction tracks per-operation state across the multi-step call,
// the same way a single RPC round trip is tracked, generalized here to
// a batch of parameters instead of one request.
package txn

import (
	"time"

	"github.com/google/uuid"

	"github.com/tenzoki/agen/paramgw/internal/events"
	"github.com/tenzoki/agen/paramgw/internal/gwerr"
	"github.com/tenzoki/agen/paramgw/internal/logging"
	"github.com/tenzoki/agen/paramgw/internal/parambus"
	"github.com/tenzoki/agen/paramgw/internal/valuecodec"
)

// ParamOp is one of the operation kinds a transaction's parameters may
// carry.
type ParamOp string

const (
	OpSet     ParamOp = "SET"
	OpGet     ParamOp = "GET"
	OpDelete  ParamOp = "DELETE"
	OpReplace ParamOp = "REPLACE"
	OpAdd     ParamOp = "ADD"
)

// Param is one target of a transaction: a named parameter, its op, and
// (for SET/REPLACE/ADD) the value to write.
type Param struct {
	Name  string
	Op    ParamOp
	Value string
	Type  valuecodec.WireType
}

// Config tunes the engine's size and timing bounds.
type Config struct {
	MaxTransactionSize        int
	TransactionTimeoutSeconds int
	EnableRollback            bool
	EnableValidation          bool
}

// Status is the engine's overall outcome classification.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusPartial
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	case StatusPartial:
		return "Partial"
	default:
		return "Unknown"
	}
}

// ParamResult is the per-parameter outcome recorded during Apply.
type ParamResult struct {
	Name    string
	Status  int
	Message string
}

// Transaction is one in-flight or completed multi-parameter change.
type Transaction struct {
	ID       string
	Params   []Param
	Atomic   bool
	UserID   string
	Source   string
	Deadline time.Time

	results    []ParamResult
	status     Status
	rolledBack bool
}

// Engine drives transactions against the Parambus Adapter, optionally
// publishing a NOTIFY_TRANSACTION_STATUS notification through the Event
// Pipeline on completion.
type Engine struct {
	adapter  *parambus.Adapter
	cfg      Config
	pipeline *events.Pipeline
	log      *logging.Logger

	rolledBackCount int64
}

// NewEngine constructs a Transaction Engine. pipeline may be nil, in
// which case Run completes without publishing a notification.
func NewEngine(adapter *parambus.Adapter, cfg Config, pipeline *events.Pipeline, log *logging.Logger) *Engine {
	return &Engine{adapter: adapter, cfg: cfg, pipeline: pipeline, log: log}
}

// NewTransaction constructs a Transaction with a generated id if id is
// empty.
func NewTransaction(id string, params []Param, atomic bool, userID, source string, deadline time.Time) *Transaction {
	if id == "" {
		id = uuid.New().String()
	}
	return &Transaction{ID: id, Params: params, Atomic: atomic, UserID: userID, Source: source, Deadline: deadline}
}

// Run executes the full validate -> snapshot -> apply -> commit/rollback
// -> publish lifecycle.
func (e *Engine) Run(tx *Transaction) (Status, []ParamResult, error) {
	if e.cfg.EnableValidation {
		if err := e.validate(tx); err != nil {
			tx.status = StatusFailure
			e.publish(tx)
			return StatusFailure, nil, err
		}
	}

	var backup map[string]valuecodec.TypedValue
	if tx.Atomic && e.cfg.EnableRollback {
		backup = e.snapshot(tx)
	}

	results, aborted := e.apply(tx)
	tx.results = results

	status := classify(results, tx.Atomic)

	if tx.Atomic && aborted && e.cfg.EnableRollback {
		e.rollback(tx, backup)
		status = StatusFailure
		tx.rolledBack = true
		e.rolledBackCount++
	}

	tx.status = status
	e.publish(tx)
	return status, results, nil
}

// validate checks the size bound, non-empty names, and that
// SET/REPLACE/ADD params carry a value.
func (e *Engine) validate(tx *Transaction) error {
	if e.cfg.MaxTransactionSize > 0 && len(tx.Params) > e.cfg.MaxTransactionSize {
		return gwerr.Newf(gwerr.InvalidRequest, "transaction exceeds max size %d", e.cfg.MaxTransactionSize)
	}
	for _, p := range tx.Params {
		if p.Name == "" {
			return gwerr.New(gwerr.InvalidRequest, "transaction parameter missing name")
		}
		switch p.Op {
		case OpSet, OpReplace, OpAdd:
			if p.Value == "" {
				return gwerr.Newf(gwerr.InvalidRequest, "%s on %q requires a non-null value", p.Op, p.Name)
			}
		}
	}
	return nil
}

// snapshot records the current typed value of every target parameter
// that currently has one (whatever its op), so a failed atomic
// transaction can be restored.
func (e *Engine) snapshot(tx *Transaction) map[string]valuecodec.TypedValue {
	backup := make(map[string]valuecodec.TypedValue, len(tx.Params))
	for _, p := range tx.Params {
		tv, err := e.adapter.GetTyped(p.Name)
		if err == nil {
			backup[p.Name] = tv
		}
	}
	return backup
}

// apply iterates params in order, recording a per-param result. On an
// atomic transaction the iteration stops at the first failure.
func (e *Engine) apply(tx *Transaction) (results []ParamResult, aborted bool) {
	for _, p := range tx.Params {
		res := e.applyOne(p)
		results = append(results, res)
		if res.Status >= 400 {
			if tx.Atomic {
				return results, true
			}
		}
	}
	return results, false
}

func (e *Engine) applyOne(p Param) ParamResult {
	switch p.Op {
	case OpSet, OpReplace:
		if err := e.adapter.SetTyped(p.Name, valuecodec.TypedValue{Value: p.Value, Type: p.Type}); err != nil {
			return errResult(p.Name, err)
		}
		return ParamResult{Name: p.Name, Status: 200, Message: "Success"}

	case OpAdd:
		if _, err := e.adapter.GetTyped(p.Name); err == nil {
			return ParamResult{Name: p.Name, Status: 409, Message: "parameter already exists"}
		}
		if err := e.adapter.SetTyped(p.Name, valuecodec.TypedValue{Value: p.Value, Type: p.Type}); err != nil {
			return errResult(p.Name, err)
		}
		return ParamResult{Name: p.Name, Status: 200, Message: "Success"}

	case OpDelete:
		if err := e.adapter.DeleteTableRow(p.Name); err != nil {
			return errResult(p.Name, err)
		}
		return ParamResult{Name: p.Name, Status: 200, Message: "Success"}

	case OpGet:
		if _, err := e.adapter.GetTyped(p.Name); err != nil {
			return errResult(p.Name, err)
		}
		return ParamResult{Name: p.Name, Status: 200, Message: "Success"}

	default:
		return ParamResult{Name: p.Name, Status: gwerr.InvalidRequest.Status(), Message: "unknown transaction op"}
	}
}

func errResult(name string, err error) ParamResult {
	ge, _ := gwerr.As(err)
	msg := err.Error()
	if ge != nil {
		msg = ge.Message
	}
	return ParamResult{Name: name, Status: gwerr.StatusOf(err), Message: msg}
}

// classify derives the overall status: all-success -> Success,
// all-failure -> Failure, mixed -> Partial (atomic transactions never
// reach this as Partial since apply aborts on first failure).
func classify(results []ParamResult, atomic bool) Status {
	successes, failures := 0, 0
	for _, r := range results {
		if r.Status < 400 {
			successes++
		} else {
			failures++
		}
	}
	switch {
	case failures == 0:
		return StatusSuccess
	case successes == 0:
		return StatusFailure
	default:
		if atomic {
			return StatusFailure
		}
		return StatusPartial
	}
}

// rollback restores every backed-up value, best-effort: a failure
// restoring one parameter does not stop restoration of the rest.
func (e *Engine) rollback(tx *Transaction, backup map[string]valuecodec.TypedValue) {
	for name, tv := range backup {
		if err := e.adapter.SetTyped(name, tv); err != nil {
			e.log.Error("rollback failed to restore %s in transaction %s: %v", name, tx.ID, err)
		}
	}
}

// RolledBackCount reports how many transactions this engine has rolled
// back, for monitoring hooks.
func (e *Engine) RolledBackCount() int64 {
	return e.rolledBackCount
}

func (e *Engine) publish(tx *Transaction) {
	if e.pipeline == nil {
		return
	}
	n, err := events.NewTransactionStatus(tx.Source, "", tx.ID, tx.status.String(), tx.rolledBack)
	if err != nil {
		e.log.Error("failed to build transaction-status notification for %s: %v", tx.ID, err)
		return
	}
	if err := e.pipeline.Emit(n); err != nil {
		e.log.Error("failed to emit transaction-status notification for %s: %v", tx.ID, err)
	}
}
