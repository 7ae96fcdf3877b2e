package topology

import (
	"sort"

	"github.com/google/uuid"

	"grimm.is/hostnet/internal/errors"
	"grimm.is/hostnet/internal/logging"
	"grimm.is/hostnet/internal/metrics"
	"grimm.is/hostnet/internal/validation"
)

// step is one mutation with its inverse. An applied step whose undo is nil
// has nothing to restore (bringing a link up, adjusting an MTU).
type step struct {
	desc string
	run  func() error
	undo func() error
}

// Transaction applies change-sets against the host. A Transaction is
// reusable; each Apply call is independent and takes its own live snapshot.
type Transaction struct {
	drv    Driver
	links  LinkOps
	routes SourceRouter
	verify func(Snapshot) error
	log    *logging.Logger
}

// TxOption configures a Transaction.
type TxOption func(*Transaction)

// WithVerify installs a post-apply check. A failing check rolls the
// transaction back exactly as an apply failure would.
func WithVerify(fn func(Snapshot) error) TxOption {
	return func(t *Transaction) { t.verify = fn }
}

// NewTransaction builds a Transaction over the given collaborators.
func NewTransaction(drv Driver, links LinkOps, routes SourceRouter, opts ...TxOption) *Transaction {
	t := &Transaction{
		drv:    drv,
		links:  links,
		routes: routes,
		log:    logging.WithComponent("topology"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Apply validates and applies the change-set. Validation failures abort
// with zero side effects. A failure after the first successful mutation
// unwinds every applied step in reverse order; the original failure is
// reported, with rollback failures attached as secondary diagnostics.
func (t *Transaction) Apply(cs ChangeSet) error {
	txid := uuid.New().String()[:8]
	log := t.log.WithFields(map[string]any{"tx": txid})

	if cs.Empty() {
		log.Debug("empty change-set, nothing to do")
		return nil
	}

	snap, err := t.drv.Snapshot()
	if err != nil {
		return errors.Wrap(err, errors.KindDriver, "snapshot live state")
	}

	if err := validate(cs, snap); err != nil {
		metrics.TransactionsTotal.WithLabelValues("validation_failed").Inc()
		log.Warn("change-set rejected", "error", err)
		return err
	}

	steps := t.plan(cs, snap)
	log.Info("applying change-set",
		"networks", len(cs.Networks), "bonds", len(cs.Bonds), "steps", len(steps))

	var applied []step
	for _, s := range steps {
		log.Debug("step", "desc", s.desc)
		if err := s.run(); err != nil {
			kind := errors.GetKind(err)
			if kind == errors.KindUnknown {
				kind = errors.KindDriver
			}
			return t.rollback(log, applied, errors.Wrapf(err, kind, "step %q", s.desc))
		}
		applied = append(applied, s)
	}

	if t.verify != nil {
		post, err := t.drv.Snapshot()
		if err == nil {
			err = t.verify(post)
		}
		if err != nil {
			primary := errors.Wrap(err, errors.KindVerification, "post-apply verification failed")
			return t.rollback(log, applied, primary)
		}
	}

	metrics.TransactionsTotal.WithLabelValues("applied").Inc()
	log.Info("change-set applied")
	return nil
}

// rollback unwinds applied steps in reverse order, best-effort. The primary
// error is returned as-is when every undo succeeds, otherwise wrapped with
// the undo failures attached.
func (t *Transaction) rollback(log *logging.Logger, applied []step, primary error) error {
	metrics.TransactionsTotal.WithLabelValues("rolled_back").Inc()
	log.Warn("rolling back", "steps", len(applied), "cause", primary)

	var secondary []error
	for i := len(applied) - 1; i >= 0; i-- {
		s := applied[i]
		if s.undo == nil {
			continue
		}
		if err := s.undo(); err != nil {
			metrics.RollbackStepsTotal.WithLabelValues("failed").Inc()
			log.Error("rollback step failed", "desc", s.desc, "error", err)
			secondary = append(secondary,
				errors.Wrapf(err, errors.KindDriver, "undo %q", s.desc))
			continue
		}
		metrics.RollbackStepsTotal.WithLabelValues("ok").Inc()
	}

	if len(secondary) == 0 {
		return primary
	}
	return &RollbackError{Primary: primary, Secondary: secondary}
}

// Snapshot exposes the live kernel view for callers that report state.
func (t *Transaction) Snapshot() (Snapshot, error) {
	snap, err := t.drv.Snapshot()
	if err != nil {
		return Snapshot{}, errors.Wrap(err, errors.KindDriver, "snapshot live state")
	}
	return snap, nil
}

// validate enforces naming and exclusivity before anything is touched.
func validate(cs ChangeSet, snap Snapshot) error {
	for name, bond := range cs.Bonds {
		if err := validation.ValidateBondName(name); err != nil {
			return errors.Wrapf(err, errors.KindInvalidName, "bond %q", name)
		}
		if bond.Remove {
			if _, ok := snap.Bonds[name]; !ok {
				return errors.Errorf(errors.KindNotFound, "bond %q not found", name)
			}
			continue
		}
		if len(bond.Members) == 0 {
			return errors.Errorf(errors.KindValidation, "bond %q has no members", name)
		}
	}

	for name, network := range cs.Networks {
		if err := validation.ValidateIdentifier(name); err != nil {
			return errors.Wrapf(err, errors.KindInvalidName, "network %q", name)
		}
		if network.Remove {
			if _, ok := snap.Networks[name]; !ok {
				return errors.Errorf(errors.KindNotFound, "network %q not found", name)
			}
			continue
		}
		if network.Bridged {
			// The bridge takes the network's name, so it has to be a
			// valid device name too.
			if err := validation.ValidateInterfaceName(name); err != nil {
				return errors.Wrapf(err, errors.KindInvalidName, "network %q", name)
			}
		}
		if network.NIC != "" && network.Bond != "" {
			return errors.Errorf(errors.KindValidation,
				"network %q names both a nic and a bond", name)
		}
		if network.Southbound() == "" && !network.Bridged {
			return errors.Errorf(errors.KindValidation,
				"network %q has no southbound device and no bridge", name)
		}
		if network.VLAN != nil {
			if err := validation.ValidateVLANTag(*network.VLAN); err != nil {
				return errors.Wrapf(err, errors.KindValidation, "network %q", name)
			}
		}
		if network.Bond != "" {
			if _, planned := cs.Bonds[network.Bond]; !planned {
				if _, exists := snap.Bonds[network.Bond]; !exists {
					return errors.Errorf(errors.KindNotFound,
						"network %q references unknown bond %q", name, network.Bond)
				}
			}
		}
	}

	return validateExclusivity(cs, snap)
}

// validateExclusivity rejects any NIC claimed twice: once by live state
// (minus what this change-set removes) and once by the change-set, or twice
// within the change-set itself.
func validateExclusivity(cs ChangeSet, snap Snapshot) error {
	// Live claims, skipping entities this change-set removes or redefines.
	claims := make(map[string]string)
	for name, bond := range snap.Bonds {
		if _, mine := cs.Bonds[name]; mine {
			continue
		}
		for _, member := range bond.Members {
			claims[member] = "bond " + name
		}
	}
	for name, network := range snap.Networks {
		if _, mine := cs.Networks[name]; mine {
			continue
		}
		if network.NIC != "" {
			claims[network.NIC] = "network " + name
		}
	}

	claim := func(nic, owner string) error {
		if prev, taken := claims[nic]; taken {
			return errors.Errorf(errors.KindUsedDevice,
				"nic %q requested by %s is already used by %s", nic, owner, prev)
		}
		claims[nic] = owner
		return nil
	}

	for _, name := range sortedBondNames(cs.Bonds) {
		bond := cs.Bonds[name]
		if bond.Remove {
			continue
		}
		for _, member := range bond.Members {
			if err := claim(member, "bond "+name); err != nil {
				return err
			}
		}
	}
	for _, name := range sortedNetworkNames(cs.Networks) {
		network := cs.Networks[name]
		if network.Remove || network.NIC == "" {
			continue
		}
		if err := claim(network.NIC, "network "+name); err != nil {
			return err
		}
	}
	return nil
}

func sortedNetworkNames(m map[string]NetworkSpec) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedBondNames(m map[string]BondSpec) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
