package taskname

const (
	// Trigger/Action service
	ActionFire   = "loyalty:action:fire"
	ActionRefund = "loyalty:action:refund"

	// Reservation/Order subsystem
	ReservationAward  = "loyalty:reservation:award"
	ReservationRevoke = "loyalty:reservation:revoke"
	ReservationCancel = "loyalty:reservation:cancel"

	// Reward/Voucher subsystem
	PointsCreate = "loyalty:points:create"

	// Scheduled
	TierSync = "loyalty:tier:sync"
)

// Queues used by the worker, with their asynq priorities.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)
