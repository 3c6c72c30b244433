// Package auth provides the authentication and authorization core for the
// hiring platform: credential verification, HMAC-signed bearer tokens, a
// persistent revocation ledger, and the account lifecycle commands
// (registration, activation, recovery).
//
// Account lifecycle:
//   - Accounts are registered inactive with a one-time activation code. The
//     invited-employee flow pre-assigns a company; the self-service flow
//     creates and attaches one during activation, unwinding with compensating
//     actions when any step fails.
//   - Recovery codes are minted on request, expire after RecoveryCodeTTL, and
//     are cleared the moment a new password lands.
//
// Tokens:
//   - TokenService signs HS512 tokens carrying the account id, a role
//     snapshot, and a unique token_id. Authorization decisions downstream read
//     the snapshot, never the database, so role changes only surface after
//     renewal.
//   - Logout and renewal both write the token_id to the revocation ledger;
//     middleware/tokenware rejects any ledger hit before the handler runs.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     lifecycle commands to describe login, logout, renewal, registration, and
//     recovery events. Sinks run best-effort (errors are logged) so you can
//     forward to a database or queue without blocking authentication.
package auth
