// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"github.com/felixgeelhaar/statekit"
)

// Phases in execution order.
const (
	PhasePrivilege   Phase = "privilege"
	PhaseDirectories Phase = "directories"
	PhaseBootstrap   Phase = "bootstrap"
	PhasePackages    Phase = "packages"
	PhaseArchives    Phase = "archives"
	PhaseSources     Phase = "sources"
	PhaseEnvironment Phase = "environment"
	PhaseCommit      Phase = "commit"
	PhaseSummary     Phase = "summary"
	PhaseAborted     Phase = "aborted"
)

const (
	eventNext  statekit.EventType = "NEXT"
	eventAbort statekit.EventType = "ABORT"
)

type (
	// Phase identifies one step of a run.
	Phase string

	// runState is the machine context.
	runState struct {
		completed  []Phase
		abandoned  Phase
		privileged bool
	}
)

func (p Phase) id() statekit.StateID { return statekit.StateID(p) }

// newMachine builds the linear phase chart. Every phase may abort; leaving
// the privilege phase forward requires the privileged guard.
func newMachine() (*statekit.MachineConfig[*runState], error) {
	return statekit.NewMachine[*runState]("provision").
		WithInitial(PhasePrivilege.id()).
		WithContext(&runState{}).
		WithAction("complete", recordCompleted).
		WithAction("abandon", recordAbandoned).
		WithGuard("privileged", guardPrivileged).
		State(PhasePrivilege.id()).
			On(eventNext).Target(PhaseDirectories.id()).Guard("privileged").Do("complete").
			On(eventAbort).Target(PhaseAborted.id()).Do("abandon").
			Done().
		State(PhaseDirectories.id()).
			On(eventNext).Target(PhaseBootstrap.id()).Do("complete").
			On(eventAbort).Target(PhaseAborted.id()).Do("abandon").
			Done().
		State(PhaseBootstrap.id()).
			On(eventNext).Target(PhasePackages.id()).Do("complete").
			On(eventAbort).Target(PhaseAborted.id()).Do("abandon").
			Done().
		State(PhasePackages.id()).
			On(eventNext).Target(PhaseArchives.id()).Do("complete").
			On(eventAbort).Target(PhaseAborted.id()).Do("abandon").
			Done().
		State(PhaseArchives.id()).
			On(eventNext).Target(PhaseSources.id()).Do("complete").
			On(eventAbort).Target(PhaseAborted.id()).Do("abandon").
			Done().
		State(PhaseSources.id()).
			On(eventNext).Target(PhaseEnvironment.id()).Do("complete").
			On(eventAbort).Target(PhaseAborted.id()).Do("abandon").
			Done().
		State(PhaseEnvironment.id()).
			On(eventNext).Target(PhaseCommit.id()).Do("complete").
			On(eventAbort).Target(PhaseAborted.id()).Do("abandon").
			Done().
		State(PhaseCommit.id()).
			On(eventNext).Target(PhaseSummary.id()).Do("complete").
			On(eventAbort).Target(PhaseAborted.id()).Do("abandon").
			Done().
		State(PhaseSummary.id()).Final().Done().
		State(PhaseAborted.id()).Final().Done().
		Build()
}

// recordCompleted appends the phase carried in the event payload. With a
// pointer context, actions receive **runState.
func recordCompleted(ctx **runState, ev statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	if p, ok := ev.Payload.(Phase); ok {
		(*ctx).completed = append((*ctx).completed, p)
	}
}

func recordAbandoned(ctx **runState, ev statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	if p, ok := ev.Payload.(Phase); ok {
		(*ctx).abandoned = p
	}
}

func guardPrivileged(ctx *runState, _ statekit.Event) bool {
	return ctx != nil && ctx.privileged
}
