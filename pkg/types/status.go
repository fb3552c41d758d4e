package types

import "strings"

// CustodyStatus is the status string reported by the custody service for both
// signing jobs and transactions.
type CustodyStatus string

const (
	CustodyStatus_Submitted            CustodyStatus = "SUBMITTED"
	CustodyStatus_Queued               CustodyStatus = "QUEUED"
	CustodyStatus_PendingAmlScreening  CustodyStatus = "PENDING_AML_SCREENING"
	CustodyStatus_PendingAuthorization CustodyStatus = "PENDING_AUTHORIZATION"
	CustodyStatus_PendingSignature     CustodyStatus = "PENDING_SIGNATURE"
	CustodyStatus_Pending3rdParty      CustodyStatus = "PENDING_3RD_PARTY"
	CustodyStatus_Broadcasting         CustodyStatus = "BROADCASTING"
	CustodyStatus_Confirming           CustodyStatus = "CONFIRMING"
	CustodyStatus_Cancelling           CustodyStatus = "CANCELLING"

	CustodyStatus_Completed CustodyStatus = "COMPLETED"
	CustodyStatus_Failed    CustodyStatus = "FAILED"
	CustodyStatus_Rejected  CustodyStatus = "REJECTED"
	CustodyStatus_Cancelled CustodyStatus = "CANCELLED"
	CustodyStatus_Blocked   CustodyStatus = "BLOCKED"
	CustodyStatus_Timeout   CustodyStatus = "TIMEOUT"
)

// ParseCustodyStatus normalizes case and surrounding whitespace; the custody
// API is not consistent about either.
func ParseCustodyStatus(s string) CustodyStatus {
	return CustodyStatus(strings.ToUpper(strings.TrimSpace(s)))
}

func (s CustodyStatus) String() string {
	return string(s)
}

func (s CustodyStatus) IsSuccess() bool {
	return s == CustodyStatus_Completed
}

// IsFailure reports a terminal status other than success.
func (s CustodyStatus) IsFailure() bool {
	switch s {
	case CustodyStatus_Failed,
		CustodyStatus_Rejected,
		CustodyStatus_Cancelled,
		CustodyStatus_Blocked,
		CustodyStatus_Timeout:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the custody state machine will transition no further.
// Unknown statuses are treated as in-flight.
func (s CustodyStatus) IsTerminal() bool {
	return s.IsSuccess() || s.IsFailure()
}
