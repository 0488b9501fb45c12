package supervisor

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// RecoveryOptions configures a Recovery coordinator.
type RecoveryOptions struct {
	// Logger receives per-agent recovery diagnostics. Defaults to NoOp
	// logger.
	Logger logging.Logger
}

// Recovery re-launches all agents persisted as previously active. It is the
// only place the store is read in bulk; steady-state operation never
// re-scans it.
type Recovery struct {
	supervisor *Supervisor
	store      core.Store
	lookup     core.AgentLookup
	logger     logging.Logger
}

// NewRecovery constructs a Recovery coordinator over the supervisor, the
// store holding runtime records and the lookup resolving ids to full agent
// definitions.
func NewRecovery(sup *Supervisor, store core.Store, lookup core.AgentLookup, optFns ...func(o *RecoveryOptions)) *Recovery {
	opts := RecoveryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Recovery{supervisor: sup, store: store, lookup: lookup, logger: opts.Logger}
}

// RecoverAll starts every agent whose persisted status is starting or
// running. Each agent is recovered independently: a failed lookup or start
// is logged and counted, never aborting the rest of the sweep. Returns the
// number of agents successfully started; the error is non-nil only when the
// bulk read itself fails.
func (r *Recovery) RecoverAll(ctx context.Context) (int, error) {
	records, err := r.store.ActiveAgents(ctx)
	if err != nil {
		return 0, fmt.Errorf("recovery: reading active agents: %w", err)
	}

	recovered := 0
	for _, record := range records {
		def, err := r.lookup.GetByID(record.ID, record.OwnerID)
		if err != nil {
			r.logger.Warn("recovery lookup failed agent_id=%s error=%v", record.ID, err)
			continue
		}

		if err := r.supervisor.Start(ctx, def); err != nil {
			r.logger.Warn("recovery start failed agent_id=%s error=%v", record.ID, err)
			continue
		}

		r.logger.Info("agent recovered agent_id=%s", record.ID)
		recovered++
	}

	r.logger.Info("recovery sweep finished recovered=%d of=%d", recovered, len(records))
	return recovered, nil
}
