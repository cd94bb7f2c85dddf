package models

// EventStatus is the publication state of an event.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "DRAFT"
	EventStatusPublished EventStatus = "PUBLISHED"
	EventStatusEnded     EventStatus = "ENDED"
)

// TicketStatus only moves forward: CREATED -> PAID -> USED.
// CANCELLED is reachable from any pre-USED state via refund/admin action.
type TicketStatus string

const (
	TicketStatusCreated   TicketStatus = "CREATED"
	TicketStatusPaid      TicketStatus = "PAID"
	TicketStatusUsed      TicketStatus = "USED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
)

type PromoDiscountType string

const (
	DiscountPercent PromoDiscountType = "PERCENT"
	DiscountFixed   PromoDiscountType = "FIXED"
)

// UserRole is the closed role discriminator for User. Role-specific data
// (e.g. the organisation an organiser belongs to) lives in optional fields
// on User selected by this value.
type UserRole string

const (
	RoleAdmin       UserRole = "ADMIN"
	RoleOrganiser   UserRole = "ORGANISER"
	RoleParticipant UserRole = "PARTICIPANT"
	RoleAgent       UserRole = "AGENT"
)

// ScanResult is the outcome recorded for every scan attempt.
type ScanResult string

const (
	ScanOK              ScanResult = "OK"
	ScanNotFound        ScanResult = "NOT_FOUND"
	ScanInvalidEvent    ScanResult = "INVALID_EVENT"
	ScanCancelled       ScanResult = "CANCELLED"
	ScanSessionRequired ScanResult = "SESSION_REQUIRED"
	ScanInvalidSession  ScanResult = "INVALID_SESSION"
	ScanNotEntitled     ScanResult = "NOT_ENTITLED"
	ScanAlreadyUsed     ScanResult = "ALREADY_USED"
	ScanNotPaid         ScanResult = "NOT_PAID"
)
