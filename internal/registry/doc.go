// Package registry reconciles the desired account set against live
// sessions and aggregates cross-session read views.
//
// The registry is the single owner of the account-key → session mapping;
// external callers interact with it only through message-style operations
// (Reconcile, ListAccounts, ListOrders, GetOrder, AddAccount,
// RemoveAccount) and never see the mapping itself. Domain events from all
// sessions funnel through one forwarding channel to the external sink.
package registry
