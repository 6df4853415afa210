// Package preferences stores per-user notification channel opt-ins. Rows are
// created on the first write; until then configured defaults apply.
package preferences
