// Package stages enforces the forward-only lifecycle of CRM entities.
//
// Each entity type has an ordered StageSet. Controller.Transition advances an
// entity only when the proposed stage lies after the current one; anything
// else is an ignored no-op. The entity update and the history close are
// conditional writes, so two concurrent transitions cannot both close the
// same open interval: the loser re-reads and retries. Timeline events and
// owner notifications follow the history update and never undo it.
//
// ComputeSuggestedStage derives a stage from related data; Reconciler routes
// that suggestion through Transition so automatic and manual moves obey the
// same rule.
package stages
