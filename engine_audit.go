package driveauth

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventLogout           = "logout"
	auditEventRevokeAll        = "revoke_all"
	auditEventResolveRevoked   = "resolve_revoked"
	auditEventAuthorityDegrade = "authority_fail_open"
)

// AuditErrorCode is the stable error vocabulary written into audit
// events.
type AuditErrorCode string

const (
	auditErrUnauthenticated    AuditErrorCode = "unauthenticated"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrDigestConflict     AuditErrorCode = "digest_conflict"
	auditErrAuthorityDown      AuditErrorCode = "authority_unavailable"
	auditErrLedgerDown         AuditErrorCode = "ledger_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID int64, tokenDigest string, err error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := newAuditEvent(eventType)
	event.UserID = userID
	event.TokenDigest = tokenDigest
	event.IP = clientIPFromContext(ctx)
	event.UserAgent = userAgentFromContext(ctx)
	event.Success = success
	event.Metadata = metadata
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrDigestConflict):
		return auditErrDigestConflict
	case errors.Is(err, ErrAuthorityUnavailable):
		return auditErrAuthorityDown
	case errors.Is(err, ErrLedgerUnavailable):
		return auditErrLedgerDown
	default:
		return auditErrInternal
	}
}
